package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository persists ledger entities. Every method takes the unit of work it
// must run in; callers own transaction boundaries.
type Repository interface {
	InsertCharge(ctx context.Context, db *gorm.DB, charge *Charge) error
	FindChargeByID(ctx context.Context, db *gorm.DB, communityID, id snowflake.ID, forUpdate bool) (*Charge, error)
	ListCharges(ctx context.Context, db *gorm.DB, communityID snowflake.ID, filter ListChargesFilter) ([]*Charge, error)
	DeleteCharge(ctx context.Context, db *gorm.DB, communityID, id snowflake.ID) (bool, error)

	InsertPayment(ctx context.Context, db *gorm.DB, payment *Payment) error
	FindPaymentByID(ctx context.Context, db *gorm.DB, communityID, id snowflake.ID, forUpdate bool) (*Payment, error)
	ListPayments(ctx context.Context, db *gorm.DB, communityID snowflake.ID, filter ListPaymentsFilter) ([]*Payment, error)
	DeletePayment(ctx context.Context, db *gorm.DB, communityID, id snowflake.ID) (bool, error)

	InsertTransaction(ctx context.Context, db *gorm.DB, txn *Transaction) error
	FindTransaction(ctx context.Context, db *gorm.DB, communityID, paymentID, chargeID snowflake.ID) (*Transaction, error)
	TransactionsByCharge(ctx context.Context, db *gorm.DB, communityID, chargeID snowflake.ID) ([]Transaction, error)
	TransactionsByPayment(ctx context.Context, db *gorm.DB, communityID, paymentID snowflake.ID) ([]Transaction, error)

	ChargeClosingBalances(ctx context.Context, db *gorm.DB, communityID, chargeID snowflake.ID) ([]int64, error)
	PaymentClosingBalances(ctx context.Context, db *gorm.DB, communityID, paymentID snowflake.ID) ([]int64, error)
}
