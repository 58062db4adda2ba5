package registry

import (
	"github.com/quorumhq/quorum/internal/registry/repository"
	"github.com/quorumhq/quorum/internal/registry/service"
	"go.uber.org/fx"
)

var Module = fx.Module("registry.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
