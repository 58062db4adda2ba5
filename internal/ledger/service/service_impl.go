package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/quorumhq/quorum/internal/audit/domain"
	"github.com/quorumhq/quorum/internal/clock"
	"github.com/quorumhq/quorum/internal/communityctx"
	"github.com/quorumhq/quorum/internal/config"
	ledgerdomain "github.com/quorumhq/quorum/internal/ledger/domain"
	"github.com/quorumhq/quorum/internal/ledger/lock"
	obsmetrics "github.com/quorumhq/quorum/internal/observability/metrics"
	registrydomain "github.com/quorumhq/quorum/internal/registry/domain"
	pkgdb "github.com/quorumhq/quorum/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     ledgerdomain.Repository
	Registry registrydomain.Repository
	Locker   lock.EntityLocker

	AuditSvc   auditdomain.Service        `optional:"true"`
	Policy     *config.LedgerConfigHolder `optional:"true"`
	ObsMetrics *obsmetrics.Metrics        `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       ledgerdomain.Repository
	registry   registrydomain.Repository
	locker     lock.EntityLocker
	auditSvc   auditdomain.Service
	policy     *config.LedgerConfigHolder
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) ledgerdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		registry:   p.Registry,
		locker:     p.Locker,
		auditSvc:   p.AuditSvc,
		policy:     p.Policy,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) CreateCharge(ctx context.Context, req ledgerdomain.CreateChargeRequest) (ledgerdomain.Charge, error) {
	communityID, ok := communityctx.CommunityIDFromContext(ctx)
	if !ok || communityID == 0 {
		return ledgerdomain.Charge{}, ledgerdomain.ErrInvalidCommunity
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return ledgerdomain.Charge{}, ledgerdomain.ErrInvalidName
	}
	if req.Amount <= 0 {
		return ledgerdomain.Charge{}, ledgerdomain.ErrInvalidAmount
	}
	if err := req.Target.Validate(); err != nil {
		return ledgerdomain.Charge{}, err
	}
	if req.DueDate.IsZero() {
		return ledgerdomain.Charge{}, ledgerdomain.ErrInvalidDueDate
	}

	if err := s.ensureTargetExists(ctx, communityID, req.Target); err != nil {
		return ledgerdomain.Charge{}, err
	}

	charge := ledgerdomain.Charge{
		ID:          s.genID.Generate(),
		CommunityID: communityID,
		Target:      req.Target,
		Name:        name,
		Amount:      req.Amount,
		ChargeDate:  s.clock.Now(),
		DueDate:     req.DueDate,
		CreatedAt:   s.clock.Now(),
	}
	charge.RemainingBalance = charge.Amount

	if err := s.repo.InsertCharge(ctx, s.db, &charge); err != nil {
		return ledgerdomain.Charge{}, err
	}

	s.audit(ctx, communityID, "billing.charge_created", "billing_charge", charge.ID, map[string]any{
		"amount":      charge.Amount,
		"target_kind": string(charge.Target.Kind),
		"target_id":   charge.Target.ID.String(),
	})
	return charge, nil
}

func (s *Service) GetCharge(ctx context.Context, id snowflake.ID) (ledgerdomain.Charge, error) {
	communityID, ok := communityctx.CommunityIDFromContext(ctx)
	if !ok || communityID == 0 {
		return ledgerdomain.Charge{}, ledgerdomain.ErrInvalidCommunity
	}
	if id == 0 {
		return ledgerdomain.Charge{}, ledgerdomain.ErrInvalidID
	}

	charge, err := s.repo.FindChargeByID(ctx, s.db, communityID, id, false)
	if err != nil {
		return ledgerdomain.Charge{}, err
	}
	if charge == nil {
		return ledgerdomain.Charge{}, ledgerdomain.ErrNotFound
	}

	closings, err := s.repo.ChargeClosingBalances(ctx, s.db, communityID, id)
	if err != nil {
		return ledgerdomain.Charge{}, err
	}
	charge.RemainingBalance = ledgerdomain.RemainingBalance(charge.Amount, closings)
	return *charge, nil
}

func (s *Service) ListCharges(ctx context.Context, filter ledgerdomain.ListChargesFilter) ([]ledgerdomain.Charge, error) {
	communityID, ok := communityctx.CommunityIDFromContext(ctx)
	if !ok || communityID == 0 {
		return nil, ledgerdomain.ErrInvalidCommunity
	}

	items, err := s.repo.ListCharges(ctx, s.db, communityID, filter)
	if err != nil {
		return nil, err
	}

	charges := make([]ledgerdomain.Charge, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		closings, err := s.repo.ChargeClosingBalances(ctx, s.db, communityID, item.ID)
		if err != nil {
			return nil, err
		}
		item.RemainingBalance = ledgerdomain.RemainingBalance(item.Amount, closings)
		charges = append(charges, *item)
	}
	return charges, nil
}

func (s *Service) DeleteCharge(ctx context.Context, id snowflake.ID) error {
	communityID, ok := communityctx.CommunityIDFromContext(ctx)
	if !ok || communityID == 0 {
		return ledgerdomain.ErrInvalidCommunity
	}
	if id == 0 {
		return ledgerdomain.ErrInvalidID
	}

	deleted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		deleted, err = s.repo.DeleteCharge(ctx, tx, communityID, id)
		return err
	})
	if err != nil {
		return err
	}
	if !deleted {
		return ledgerdomain.ErrNotFound
	}

	s.audit(ctx, communityID, "billing.charge_deleted", "billing_charge", id, nil)
	return nil
}

func (s *Service) RecordPayment(ctx context.Context, req ledgerdomain.RecordPaymentRequest) (ledgerdomain.Payment, error) {
	communityID, ok := communityctx.CommunityIDFromContext(ctx)
	if !ok || communityID == 0 {
		return ledgerdomain.Payment{}, ledgerdomain.ErrInvalidCommunity
	}

	if req.PayerID == 0 {
		return ledgerdomain.Payment{}, ledgerdomain.ErrInvalidID
	}
	if req.Amount <= 0 {
		return ledgerdomain.Payment{}, ledgerdomain.ErrInvalidAmount
	}

	exists, err := s.registry.OccupantExists(ctx, s.db, communityID, req.PayerID)
	if err != nil {
		return ledgerdomain.Payment{}, err
	}
	if !exists {
		return ledgerdomain.Payment{}, ledgerdomain.ErrNotFound
	}

	paymentDate := req.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = s.clock.Now()
	}

	payment := ledgerdomain.Payment{
		ID:          s.genID.Generate(),
		CommunityID: communityID,
		PayerID:     req.PayerID,
		Amount:      req.Amount,
		PaymentDate: paymentDate,
		CreatedAt:   s.clock.Now(),
	}
	payment.RemainingBalance = payment.Amount

	if err := s.repo.InsertPayment(ctx, s.db, &payment); err != nil {
		return ledgerdomain.Payment{}, err
	}

	s.audit(ctx, communityID, "billing.payment_recorded", "billing_payment", payment.ID, map[string]any{
		"amount":   payment.Amount,
		"payer_id": payment.PayerID.String(),
	})
	return payment, nil
}

func (s *Service) GetPayment(ctx context.Context, id snowflake.ID) (ledgerdomain.Payment, error) {
	communityID, ok := communityctx.CommunityIDFromContext(ctx)
	if !ok || communityID == 0 {
		return ledgerdomain.Payment{}, ledgerdomain.ErrInvalidCommunity
	}
	if id == 0 {
		return ledgerdomain.Payment{}, ledgerdomain.ErrInvalidID
	}

	payment, err := s.repo.FindPaymentByID(ctx, s.db, communityID, id, false)
	if err != nil {
		return ledgerdomain.Payment{}, err
	}
	if payment == nil {
		return ledgerdomain.Payment{}, ledgerdomain.ErrNotFound
	}

	closings, err := s.repo.PaymentClosingBalances(ctx, s.db, communityID, id)
	if err != nil {
		return ledgerdomain.Payment{}, err
	}
	payment.RemainingBalance = ledgerdomain.RemainingBalance(payment.Amount, closings)
	return *payment, nil
}

func (s *Service) ListPayments(ctx context.Context, filter ledgerdomain.ListPaymentsFilter) ([]ledgerdomain.Payment, error) {
	communityID, ok := communityctx.CommunityIDFromContext(ctx)
	if !ok || communityID == 0 {
		return nil, ledgerdomain.ErrInvalidCommunity
	}

	items, err := s.repo.ListPayments(ctx, s.db, communityID, filter)
	if err != nil {
		return nil, err
	}

	payments := make([]ledgerdomain.Payment, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		closings, err := s.repo.PaymentClosingBalances(ctx, s.db, communityID, item.ID)
		if err != nil {
			return nil, err
		}
		item.RemainingBalance = ledgerdomain.RemainingBalance(item.Amount, closings)
		payments = append(payments, *item)
	}
	return payments, nil
}

func (s *Service) DeletePayment(ctx context.Context, id snowflake.ID) error {
	communityID, ok := communityctx.CommunityIDFromContext(ctx)
	if !ok || communityID == 0 {
		return ledgerdomain.ErrInvalidCommunity
	}
	if id == 0 {
		return ledgerdomain.ErrInvalidID
	}

	deleted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		deleted, err = s.repo.DeletePayment(ctx, tx, communityID, id)
		return err
	})
	if err != nil {
		return err
	}
	if !deleted {
		return ledgerdomain.ErrNotFound
	}

	s.audit(ctx, communityID, "billing.payment_deleted", "billing_payment", id, nil)
	return nil
}

// Allocate applies part of a payment against a charge as one atomic unit. It
// freezes both sides' opening and closing balances in the transaction row so
// balance derivation never replays history. Concurrent allocations touching
// the same charge or payment are serialized by entity locks plus row locks;
// a losing call fails fast with ErrConcurrencyConflict.
func (s *Service) Allocate(ctx context.Context, req ledgerdomain.AllocateRequest) (ledgerdomain.Transaction, error) {
	communityID, ok := communityctx.CommunityIDFromContext(ctx)
	if !ok || communityID == 0 {
		return ledgerdomain.Transaction{}, ledgerdomain.ErrInvalidCommunity
	}
	if req.PaymentID == 0 || req.ChargeID == 0 {
		return ledgerdomain.Transaction{}, ledgerdomain.ErrInvalidID
	}
	if req.Amount <= 0 {
		return ledgerdomain.Transaction{}, ledgerdomain.ErrInvalidAmount
	}

	lockTTL := config.DefaultLedgerConfig().LockTimeout
	if s.policy != nil {
		lockTTL = s.policy.Get().LockTimeout
	}

	// Charge before payment, always; a fixed order keeps two allocations that
	// share both entities from deadlocking.
	releaseCharge, ok, err := s.locker.TryLock(ctx, chargeLockKey(communityID, req.ChargeID), lockTTL)
	if err != nil {
		return ledgerdomain.Transaction{}, err
	}
	if !ok {
		s.obsMetrics.RecordConcurrencyConflict(ctx, "charge")
		return ledgerdomain.Transaction{}, ledgerdomain.ErrConcurrencyConflict
	}
	defer releaseCharge(ctx)

	releasePayment, ok, err := s.locker.TryLock(ctx, paymentLockKey(communityID, req.PaymentID), lockTTL)
	if err != nil {
		return ledgerdomain.Transaction{}, err
	}
	if !ok {
		s.obsMetrics.RecordConcurrencyConflict(ctx, "payment")
		return ledgerdomain.Transaction{}, ledgerdomain.ErrConcurrencyConflict
	}
	defer releasePayment(ctx)

	var txn ledgerdomain.Transaction
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		charge, err := s.repo.FindChargeByID(ctx, tx, communityID, req.ChargeID, true)
		if err != nil {
			return classifyLockErr(err)
		}
		if charge == nil {
			return ledgerdomain.ErrNotFound
		}

		payment, err := s.repo.FindPaymentByID(ctx, tx, communityID, req.PaymentID, true)
		if err != nil {
			return classifyLockErr(err)
		}
		if payment == nil {
			return ledgerdomain.ErrNotFound
		}

		if charge.CommunityID != payment.CommunityID {
			return ledgerdomain.ErrCommunityMismatch
		}

		existing, err := s.repo.FindTransaction(ctx, tx, communityID, req.PaymentID, req.ChargeID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ledgerdomain.ErrDuplicateAllocation
		}

		chargeClosings, err := s.repo.ChargeClosingBalances(ctx, tx, communityID, req.ChargeID)
		if err != nil {
			return err
		}
		paymentClosings, err := s.repo.PaymentClosingBalances(ctx, tx, communityID, req.PaymentID)
		if err != nil {
			return err
		}

		chargeOpening := ledgerdomain.RemainingBalance(charge.Amount, chargeClosings)
		paymentOpening := ledgerdomain.RemainingBalance(payment.Amount, paymentClosings)
		chargeClosing := chargeOpening - req.Amount
		paymentClosing := paymentOpening - req.Amount
		if chargeClosing < 0 || paymentClosing < 0 {
			return ledgerdomain.ErrBalanceViolation
		}

		txn = ledgerdomain.Transaction{
			CommunityID:           communityID,
			PaymentID:             req.PaymentID,
			ChargeID:              req.ChargeID,
			Amount:                req.Amount,
			ChargeOpeningBalance:  chargeOpening,
			ChargeClosingBalance:  chargeClosing,
			PaymentOpeningBalance: paymentOpening,
			PaymentClosingBalance: paymentClosing,
			CreatedAt:             s.clock.Now(),
		}
		if err := s.repo.InsertTransaction(ctx, tx, &txn); err != nil {
			if pkgdb.IsDuplicateKeyErr(err) {
				return ledgerdomain.ErrDuplicateAllocation
			}
			return classifyLockErr(err)
		}
		return nil
	})
	if err != nil {
		s.obsMetrics.RecordAllocationFailure(ctx, errorKind(err))
		return ledgerdomain.Transaction{}, err
	}

	s.obsMetrics.RecordAllocation(ctx)
	s.audit(ctx, communityID, "billing.payment_allocated", "billing_transaction", req.ChargeID, map[string]any{
		"payment_id":              req.PaymentID.String(),
		"charge_id":               req.ChargeID.String(),
		"transaction_amount":      req.Amount,
		"charge_closing_balance":  txn.ChargeClosingBalance,
		"payment_closing_balance": txn.PaymentClosingBalance,
	})
	return txn, nil
}

func (s *Service) ChargeTransactions(ctx context.Context, chargeID snowflake.ID) ([]ledgerdomain.Transaction, error) {
	communityID, ok := communityctx.CommunityIDFromContext(ctx)
	if !ok || communityID == 0 {
		return nil, ledgerdomain.ErrInvalidCommunity
	}
	if chargeID == 0 {
		return nil, ledgerdomain.ErrInvalidID
	}

	charge, err := s.repo.FindChargeByID(ctx, s.db, communityID, chargeID, false)
	if err != nil {
		return nil, err
	}
	if charge == nil {
		return nil, ledgerdomain.ErrNotFound
	}
	return s.repo.TransactionsByCharge(ctx, s.db, communityID, chargeID)
}

func (s *Service) PaymentTransactions(ctx context.Context, paymentID snowflake.ID) ([]ledgerdomain.Transaction, error) {
	communityID, ok := communityctx.CommunityIDFromContext(ctx)
	if !ok || communityID == 0 {
		return nil, ledgerdomain.ErrInvalidCommunity
	}
	if paymentID == 0 {
		return nil, ledgerdomain.ErrInvalidID
	}

	payment, err := s.repo.FindPaymentByID(ctx, s.db, communityID, paymentID, false)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ledgerdomain.ErrNotFound
	}
	return s.repo.TransactionsByPayment(ctx, s.db, communityID, paymentID)
}

func (s *Service) ensureTargetExists(ctx context.Context, communityID snowflake.ID, target ledgerdomain.Target) error {
	var (
		exists bool
		err    error
	)
	switch target.Kind {
	case ledgerdomain.TargetKindResidence:
		exists, err = s.registry.ResidenceExists(ctx, s.db, communityID, target.ID)
	case ledgerdomain.TargetKindOccupant:
		exists, err = s.registry.OccupantExists(ctx, s.db, communityID, target.ID)
	default:
		return ledgerdomain.ErrInvalidTarget
	}
	if err != nil {
		return err
	}
	if !exists {
		return ledgerdomain.ErrNotFound
	}
	return nil
}

func (s *Service) audit(ctx context.Context, communityID snowflake.ID, action, targetType string, targetID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	target := targetID.String()
	_ = s.auditSvc.AuditLog(ctx, &communityID, "", nil, action, targetType, &target, metadata)
}

func classifyLockErr(err error) error {
	if pkgdb.IsLockNotAvailableErr(err) || pkgdb.IsSerializationErr(err) {
		return ledgerdomain.ErrConcurrencyConflict
	}
	return err
}

func errorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ledgerdomain.ErrBalanceViolation):
		return "balance_violation"
	case errors.Is(err, ledgerdomain.ErrDuplicateAllocation):
		return "duplicate_allocation"
	case errors.Is(err, ledgerdomain.ErrConcurrencyConflict):
		return "concurrency_conflict"
	case errors.Is(err, ledgerdomain.ErrNotFound):
		return "not_found"
	default:
		return "persistence"
	}
}

func chargeLockKey(communityID, chargeID snowflake.ID) string {
	return fmt.Sprintf("ledger:%s:charge:%s", communityID, chargeID)
}

func paymentLockKey(communityID, paymentID snowflake.ID) string {
	return fmt.Sprintf("ledger:%s:payment:%s", communityID, paymentID)
}
