package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/quorumhq/quorum/internal/ledger/domain"
)

// Frequency is how often a recurring charge materializes.
type Frequency string

const (
	FrequencyYearly  Frequency = "YEARLY"
	FrequencyMonthly Frequency = "MONTHLY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyDaily   Frequency = "DAILY"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyYearly, FrequencyMonthly, FrequencyWeekly, FrequencyDaily:
		return true
	}
	return false
}

// RecurringCharge is a template that materializes into concrete charges.
// NextChargeDate is the only mutable field and is advanced exclusively by the
// materializer.
type RecurringCharge struct {
	ID            snowflake.ID        `gorm:"primaryKey" json:"id"`
	CommunityID   snowflake.ID        `gorm:"not null;index" json:"community_id"`
	Target        ledgerdomain.Target `gorm:"embedded" json:"target"`
	Name          string              `gorm:"type:text;not null" json:"name"`
	Amount        int64               `gorm:"not null" json:"amount"`
	Frequency     Frequency           `gorm:"type:text;not null" json:"frequency"`
	FrequencySkip int                 `gorm:"not null;default:1" json:"frequency_skip"`
	TimeToPayDays int                 `gorm:"not null" json:"time_to_pay_days"`

	NextChargeDate time.Time `gorm:"not null;index" json:"next_charge_date"`
	CreatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (RecurringCharge) TableName() string { return "billing_recurring_charges" }

// DueDateFor returns the due date of a charge materialized for chargeDate.
func (t RecurringCharge) DueDateFor(chargeDate time.Time) time.Time {
	return chargeDate.AddDate(0, 0, t.TimeToPayDays)
}
