package ledger

import (
	"github.com/quorumhq/quorum/internal/config"
	"github.com/quorumhq/quorum/internal/ledger/lock"
	"github.com/quorumhq/quorum/internal/ledger/repository"
	"github.com/quorumhq/quorum/internal/ledger/service"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("ledger.service",
	fx.Provide(repository.Provide),
	fx.Provide(NewLocker),
	fx.Provide(service.New),
)

// NewLocker picks the redis locker when an address is configured so multiple
// instances serialize allocations against the same entities; otherwise the
// in-process locker covers the single-instance deployment.
func NewLocker(cfg config.Config, log *zap.Logger) lock.EntityLocker {
	if cfg.RedisAddr == "" {
		return lock.NewMemoryLocker()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	log.Info("using redis entity locker", zap.String("addr", cfg.RedisAddr))
	return lock.NewRedisLocker(client)
}
