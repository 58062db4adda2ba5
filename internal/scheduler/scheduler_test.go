package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/quorumhq/quorum/internal/clock"
	ledgerdomain "github.com/quorumhq/quorum/internal/ledger/domain"
	recurringdomain "github.com/quorumhq/quorum/internal/recurring/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recurringStub struct {
	mu    sync.Mutex
	calls []time.Time
	count int
	err   error
}

func (s *recurringStub) CreateTemplate(ctx context.Context, req recurringdomain.CreateTemplateRequest) (recurringdomain.RecurringCharge, error) {
	return recurringdomain.RecurringCharge{}, nil
}

func (s *recurringStub) GetTemplate(ctx context.Context, id snowflake.ID) (recurringdomain.RecurringCharge, error) {
	return recurringdomain.RecurringCharge{}, nil
}

func (s *recurringStub) ListTemplates(ctx context.Context) ([]recurringdomain.RecurringCharge, error) {
	return nil, nil
}

func (s *recurringStub) DeleteTemplate(ctx context.Context, id snowflake.ID) error {
	return nil
}

func (s *recurringStub) MaterializeDue(ctx context.Context, templateID snowflake.ID, asOf time.Time) (*ledgerdomain.Charge, error) {
	return nil, nil
}

func (s *recurringStub) MaterializeAllDue(ctx context.Context, asOf time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, asOf)
	return s.count, s.err
}

func (s *recurringStub) Calls() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.calls...)
}

func setupScheduler(t *testing.T, stub *recurringStub, fakeClock *clock.FakeClock) *Scheduler {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	sched, err := New(Params{
		DB:           db,
		Log:          zap.NewNop(),
		Clock:        fakeClock,
		RecurringSvc: stub,
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return sched
}

func TestRunOnceMaterializesAtClockTime(t *testing.T) {
	now := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	fakeClock := clock.NewFakeClock(now)
	stub := &recurringStub{count: 3}
	sched := setupScheduler(t, stub, fakeClock)

	if err := sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}

	calls := stub.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 materialization run, got %d", len(calls))
	}
	if !calls[0].Equal(now) {
		t.Fatalf("asOf = %v, want %v", calls[0], now)
	}

	fakeClock.Advance(24 * time.Hour)
	if err := sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once after advance: %v", err)
	}
	calls = stub.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(calls))
	}
	if !calls[1].Equal(now.Add(24 * time.Hour)) {
		t.Fatalf("asOf = %v, want %v", calls[1], now.Add(24*time.Hour))
	}
}

func TestRunOnceSwallowsClaimRaces(t *testing.T) {
	fakeClock := clock.NewFakeClock(time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC))
	stub := &recurringStub{err: ledgerdomain.ErrConcurrencyConflict}
	sched := setupScheduler(t, stub, fakeClock)

	// A lost claim race is not a job failure; the next tick retries.
	if err := sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("expected claim race to be swallowed, got %v", err)
	}
}

func TestRunOncePropagatesHardErrors(t *testing.T) {
	fakeClock := clock.NewFakeClock(time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC))
	wantErr := errors.New("disk on fire")
	stub := &recurringStub{err: wantErr}
	sched := setupScheduler(t, stub, fakeClock)

	err := sched.RunOnce(context.Background())
	if err == nil || !errors.Is(err, wantErr) {
		t.Fatalf("expected hard error to propagate, got %v", err)
	}
}
