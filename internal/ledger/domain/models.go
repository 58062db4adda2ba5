package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// TargetKind tags who a charge is levied against.
type TargetKind string

const (
	TargetKindResidence TargetKind = "residence"
	TargetKindOccupant  TargetKind = "occupant"
)

// Target identifies exactly one residence or occupant. The tagged form makes
// the both-set / neither-set states of the old nullable-pair schema
// unrepresentable.
type Target struct {
	Kind TargetKind   `gorm:"column:target_kind;type:text;not null" json:"kind"`
	ID   snowflake.ID `gorm:"column:target_id;not null" json:"id"`
}

func ResidenceTarget(id snowflake.ID) Target {
	return Target{Kind: TargetKindResidence, ID: id}
}

func OccupantTarget(id snowflake.ID) Target {
	return Target{Kind: TargetKindOccupant, ID: id}
}

func (t Target) Validate() error {
	switch t.Kind {
	case TargetKindResidence, TargetKindOccupant:
	default:
		return ErrInvalidTarget
	}
	if t.ID == 0 {
		return ErrInvalidTarget
	}
	return nil
}

// Charge is an amount owed by a residence or occupant. Amount is in minor
// currency units and immutable once created; only transactions append to it.
type Charge struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	CommunityID snowflake.ID `gorm:"not null;index" json:"community_id"`
	Target      Target       `gorm:"embedded" json:"target"`
	Name        string       `gorm:"type:text;not null" json:"name"`
	Amount      int64        `gorm:"not null" json:"amount"`
	ChargeDate  time.Time    `gorm:"not null" json:"charge_date"`
	DueDate     time.Time    `gorm:"not null" json:"due_date"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`

	// Derived from the transaction history, never stored.
	RemainingBalance int64 `gorm:"-" json:"remaining_balance"`
}

// TableName sets the database table name.
func (Charge) TableName() string { return "billing_charges" }

// Payment is an amount received from an occupant, in minor currency units.
type Payment struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	CommunityID snowflake.ID `gorm:"not null;index" json:"community_id"`
	PayerID     snowflake.ID `gorm:"not null;index" json:"payer_id"`
	Amount      int64        `gorm:"not null" json:"amount"`
	PaymentDate time.Time    `gorm:"not null" json:"payment_date"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`

	RemainingBalance int64 `gorm:"-" json:"remaining_balance"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "billing_payments" }

// Transaction allocates part of one payment against one charge. Its identity
// is the (payment, charge) pair; the four balances are frozen at creation so
// later balance derivation does not replay history.
type Transaction struct {
	CommunityID snowflake.ID `gorm:"not null;index" json:"community_id"`
	PaymentID   snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"payment_id"`
	ChargeID    snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"charge_id"`

	Amount                int64     `gorm:"column:transaction_amount;not null" json:"transaction_amount"`
	ChargeOpeningBalance  int64     `gorm:"not null" json:"charge_opening_balance"`
	ChargeClosingBalance  int64     `gorm:"not null" json:"charge_closing_balance"`
	PaymentOpeningBalance int64     `gorm:"not null" json:"payment_opening_balance"`
	PaymentClosingBalance int64     `gorm:"not null" json:"payment_closing_balance"`
	CreatedAt             time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Transaction) TableName() string { return "billing_transactions" }
