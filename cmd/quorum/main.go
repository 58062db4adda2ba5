package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/quorumhq/quorum/internal/audit"
	"github.com/quorumhq/quorum/internal/authorization"
	"github.com/quorumhq/quorum/internal/clock"
	"github.com/quorumhq/quorum/internal/config"
	"github.com/quorumhq/quorum/internal/ledger"
	"github.com/quorumhq/quorum/internal/logger"
	"github.com/quorumhq/quorum/internal/migration"
	"github.com/quorumhq/quorum/internal/observability"
	"github.com/quorumhq/quorum/internal/recurring"
	"github.com/quorumhq/quorum/internal/registry"
	"github.com/quorumhq/quorum/internal/scheduler"
	"github.com/quorumhq/quorum/internal/server"
	"github.com/quorumhq/quorum/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional domains
		authorization.Module,
		audit.Module,
		registry.Module,
		ledger.Module,
		recurring.Module,
		scheduler.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
