package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quorumhq/quorum/internal/clock"
	"github.com/quorumhq/quorum/internal/config"
	ledgerdomain "github.com/quorumhq/quorum/internal/ledger/domain"
	recurringdomain "github.com/quorumhq/quorum/internal/recurring/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler: invalid configuration")

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Clock        clock.Clock
	RecurringSvc recurringdomain.Service

	Policy *config.LedgerConfigHolder `optional:"true"`
	Config Config                     `optional:"true"`
}

type Scheduler struct {
	db           *gorm.DB
	log          *zap.Logger
	cfg          Config
	clock        clock.Clock
	recurringSvc recurringdomain.Service
	policy       *config.LedgerConfigHolder
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.RecurringSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:           p.DB,
		log:          p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:          p.Config.withDefaults(),
		clock:        p.Clock,
		recurringSvc: p.RecurringSvc,
		policy:       p.Policy,
	}, nil
}

func (s *Scheduler) runInterval() time.Duration {
	if s.policy != nil {
		if interval := s.policy.Get().SchedulerInterval; interval > 0 {
			return interval
		}
	}
	return s.cfg.RunInterval
}

func (s *Scheduler) jobTimeout() time.Duration {
	if s.policy != nil {
		if timeout := s.policy.Get().SchedulerJobTimeout; timeout > 0 {
			return timeout
		}
	}
	return s.cfg.JobTimeout
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	timeout := s.jobTimeout()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	err := fn(ctx)
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.runJob(ctx, "materialize_recurring", s.MaterializeRecurringJob)
}

// MaterializeRecurringJob turns every due recurring charge template into a
// concrete charge, batch by batch.
func (s *Scheduler) MaterializeRecurringJob(ctx context.Context) error {
	asOf := s.clock.Now()
	materialized, err := s.recurringSvc.MaterializeAllDue(ctx, asOf)
	if materialized > 0 {
		s.log.Info("materialized recurring charges",
			zap.Int("count", materialized),
			zap.Time("as_of", asOf),
		)
	}
	if err != nil && ledgerdomain.IsRetryable(err) {
		// Another worker holds the rows; the next run picks them up.
		s.log.Warn("materialization lost a claim race", zap.Error(err))
		return nil
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	interval := s.runInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		if next := s.runInterval(); next != interval {
			interval = next
			ticker.Reset(interval)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
