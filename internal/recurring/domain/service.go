package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/quorumhq/quorum/internal/ledger/domain"
)

type CreateTemplateRequest struct {
	Target         ledgerdomain.Target
	Name           string
	Amount         int64
	Frequency      Frequency
	FrequencySkip  int
	TimeToPayDays  int
	NextChargeDate time.Time
}

type Service interface {
	CreateTemplate(ctx context.Context, req CreateTemplateRequest) (RecurringCharge, error)
	GetTemplate(ctx context.Context, id snowflake.ID) (RecurringCharge, error)
	ListTemplates(ctx context.Context) ([]RecurringCharge, error)
	DeleteTemplate(ctx context.Context, id snowflake.ID) error

	// MaterializeDue turns the template into a concrete charge when its next
	// charge date has arrived, advancing the template in the same atomic
	// step. A nil charge with nil error means the template is not due.
	MaterializeDue(ctx context.Context, templateID snowflake.ID, asOf time.Time) (*ledgerdomain.Charge, error)

	// MaterializeAllDue materializes every due template across communities
	// and reports how many charges were created.
	MaterializeAllDue(ctx context.Context, asOf time.Time) (int, error)
}

var (
	ErrInvalidFrequency  = errors.New("invalid_frequency")
	ErrInvalidSkip       = errors.New("invalid_frequency_skip")
	ErrInvalidTimeToPay  = errors.New("invalid_time_to_pay")
	ErrInvalidNextCharge = errors.New("invalid_next_charge_date")
)
