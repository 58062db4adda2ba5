package recurring

import (
	"github.com/quorumhq/quorum/internal/recurring/repository"
	"github.com/quorumhq/quorum/internal/recurring/service"
	"go.uber.org/fx"
)

var Module = fx.Module("recurring",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)
