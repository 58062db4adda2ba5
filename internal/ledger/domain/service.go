package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type CreateChargeRequest struct {
	Target  Target
	Name    string
	Amount  int64
	DueDate time.Time
}

type RecordPaymentRequest struct {
	PayerID     snowflake.ID
	Amount      int64
	PaymentDate time.Time
}

type AllocateRequest struct {
	PaymentID snowflake.ID
	ChargeID  snowflake.ID
	Amount    int64
}

type ListChargesFilter struct {
	TargetKind TargetKind
	TargetID   snowflake.ID
	DueBefore  *time.Time
}

type ListPaymentsFilter struct {
	PayerID snowflake.ID
}

type Service interface {
	CreateCharge(ctx context.Context, req CreateChargeRequest) (Charge, error)
	GetCharge(ctx context.Context, id snowflake.ID) (Charge, error)
	ListCharges(ctx context.Context, filter ListChargesFilter) ([]Charge, error)
	DeleteCharge(ctx context.Context, id snowflake.ID) error

	RecordPayment(ctx context.Context, req RecordPaymentRequest) (Payment, error)
	GetPayment(ctx context.Context, id snowflake.ID) (Payment, error)
	ListPayments(ctx context.Context, filter ListPaymentsFilter) ([]Payment, error)
	DeletePayment(ctx context.Context, id snowflake.ID) error

	Allocate(ctx context.Context, req AllocateRequest) (Transaction, error)
	ChargeTransactions(ctx context.Context, chargeID snowflake.ID) ([]Transaction, error)
	PaymentTransactions(ctx context.Context, paymentID snowflake.ID) ([]Transaction, error)
}

var (
	ErrInvalidCommunity    = errors.New("invalid_community")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidTarget       = errors.New("invalid_target")
	ErrInvalidDueDate      = errors.New("invalid_due_date")
	ErrNotFound            = errors.New("not_found")
	ErrCommunityMismatch   = errors.New("community_mismatch")
	ErrDuplicateAllocation = errors.New("duplicate_allocation")
	ErrBalanceViolation    = errors.New("balance_violation")
	ErrConcurrencyConflict = errors.New("concurrency_conflict")
)

// IsRetryable reports whether the caller may retry the operation. Only
// concurrency conflicts are retryable; every other kind is terminal for the
// call.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
