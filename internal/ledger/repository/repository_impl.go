package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/quorumhq/quorum/internal/ledger/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertCharge(ctx context.Context, db *gorm.DB, charge *domain.Charge) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO billing_charges (id, community_id, target_kind, target_id, name, amount, charge_date, due_date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		charge.ID,
		charge.CommunityID,
		charge.Target.Kind,
		charge.Target.ID,
		charge.Name,
		charge.Amount,
		charge.ChargeDate,
		charge.DueDate,
		charge.CreatedAt,
	).Error
}

func (r *repo) FindChargeByID(ctx context.Context, db *gorm.DB, communityID, id snowflake.ID, forUpdate bool) (*domain.Charge, error) {
	query := `SELECT id, community_id, target_kind, target_id, name, amount, charge_date, due_date, created_at
		 FROM billing_charges WHERE community_id = ? AND id = ?`
	if forUpdate && db.Dialector.Name() != "sqlite" {
		query += " FOR UPDATE NOWAIT"
	}

	var charge domain.Charge
	err := db.WithContext(ctx).Raw(query, communityID, id).Scan(&charge).Error
	if err != nil {
		return nil, err
	}
	if charge.ID == 0 {
		return nil, nil
	}
	return &charge, nil
}

func (r *repo) ListCharges(ctx context.Context, db *gorm.DB, communityID snowflake.ID, filter domain.ListChargesFilter) ([]*domain.Charge, error) {
	var charges []*domain.Charge
	stmt := db.WithContext(ctx).
		Model(&domain.Charge{}).
		Where("community_id = ?", communityID)
	if filter.TargetKind != "" {
		stmt = stmt.Where("target_kind = ?", filter.TargetKind)
	}
	if filter.TargetID != 0 {
		stmt = stmt.Where("target_id = ?", filter.TargetID)
	}
	if filter.DueBefore != nil {
		stmt = stmt.Where("due_date < ?", *filter.DueBefore)
	}
	err := stmt.
		Order("charge_date desc, id desc").
		Find(&charges).Error
	if err != nil {
		return nil, err
	}
	return charges, nil
}

func (r *repo) DeleteCharge(ctx context.Context, db *gorm.DB, communityID, id snowflake.ID) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`DELETE FROM billing_charges WHERE community_id = ? AND id = ?`,
		communityID,
		id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) InsertPayment(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO billing_payments (id, community_id, payer_id, amount, payment_date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.CommunityID,
		payment.PayerID,
		payment.Amount,
		payment.PaymentDate,
		payment.CreatedAt,
	).Error
}

func (r *repo) FindPaymentByID(ctx context.Context, db *gorm.DB, communityID, id snowflake.ID, forUpdate bool) (*domain.Payment, error) {
	query := `SELECT id, community_id, payer_id, amount, payment_date, created_at
		 FROM billing_payments WHERE community_id = ? AND id = ?`
	if forUpdate && db.Dialector.Name() != "sqlite" {
		query += " FOR UPDATE NOWAIT"
	}

	var payment domain.Payment
	err := db.WithContext(ctx).Raw(query, communityID, id).Scan(&payment).Error
	if err != nil {
		return nil, err
	}
	if payment.ID == 0 {
		return nil, nil
	}
	return &payment, nil
}

func (r *repo) ListPayments(ctx context.Context, db *gorm.DB, communityID snowflake.ID, filter domain.ListPaymentsFilter) ([]*domain.Payment, error) {
	var payments []*domain.Payment
	stmt := db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("community_id = ?", communityID)
	if filter.PayerID != 0 {
		stmt = stmt.Where("payer_id = ?", filter.PayerID)
	}
	err := stmt.
		Order("payment_date desc, id desc").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repo) DeletePayment(ctx context.Context, db *gorm.DB, communityID, id snowflake.ID) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`DELETE FROM billing_payments WHERE community_id = ? AND id = ?`,
		communityID,
		id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) InsertTransaction(ctx context.Context, db *gorm.DB, txn *domain.Transaction) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO billing_transactions (
			community_id, payment_id, charge_id, transaction_amount,
			charge_opening_balance, charge_closing_balance,
			payment_opening_balance, payment_closing_balance, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.CommunityID,
		txn.PaymentID,
		txn.ChargeID,
		txn.Amount,
		txn.ChargeOpeningBalance,
		txn.ChargeClosingBalance,
		txn.PaymentOpeningBalance,
		txn.PaymentClosingBalance,
		txn.CreatedAt,
	).Error
}

func (r *repo) FindTransaction(ctx context.Context, db *gorm.DB, communityID, paymentID, chargeID snowflake.ID) (*domain.Transaction, error) {
	var txn domain.Transaction
	err := db.WithContext(ctx).Raw(
		`SELECT community_id, payment_id, charge_id, transaction_amount,
		        charge_opening_balance, charge_closing_balance,
		        payment_opening_balance, payment_closing_balance, created_at
		 FROM billing_transactions
		 WHERE community_id = ? AND payment_id = ? AND charge_id = ?`,
		communityID,
		paymentID,
		chargeID,
	).Scan(&txn).Error
	if err != nil {
		return nil, err
	}
	if txn.PaymentID == 0 {
		return nil, nil
	}
	return &txn, nil
}

func (r *repo) TransactionsByCharge(ctx context.Context, db *gorm.DB, communityID, chargeID snowflake.ID) ([]domain.Transaction, error) {
	var txns []domain.Transaction
	err := db.WithContext(ctx).Raw(
		`SELECT community_id, payment_id, charge_id, transaction_amount,
		        charge_opening_balance, charge_closing_balance,
		        payment_opening_balance, payment_closing_balance, created_at
		 FROM billing_transactions
		 WHERE community_id = ? AND charge_id = ?
		 ORDER BY created_at, payment_id`,
		communityID,
		chargeID,
	).Scan(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *repo) TransactionsByPayment(ctx context.Context, db *gorm.DB, communityID, paymentID snowflake.ID) ([]domain.Transaction, error) {
	var txns []domain.Transaction
	err := db.WithContext(ctx).Raw(
		`SELECT community_id, payment_id, charge_id, transaction_amount,
		        charge_opening_balance, charge_closing_balance,
		        payment_opening_balance, payment_closing_balance, created_at
		 FROM billing_transactions
		 WHERE community_id = ? AND payment_id = ?
		 ORDER BY created_at, charge_id`,
		communityID,
		paymentID,
	).Scan(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *repo) ChargeClosingBalances(ctx context.Context, db *gorm.DB, communityID, chargeID snowflake.ID) ([]int64, error) {
	var closings []int64
	err := db.WithContext(ctx).Raw(
		`SELECT charge_closing_balance
		 FROM billing_transactions
		 WHERE community_id = ? AND charge_id = ?`,
		communityID,
		chargeID,
	).Scan(&closings).Error
	if err != nil {
		return nil, err
	}
	return closings, nil
}

func (r *repo) PaymentClosingBalances(ctx context.Context, db *gorm.DB, communityID, paymentID snowflake.ID) ([]int64, error) {
	var closings []int64
	err := db.WithContext(ctx).Raw(
		`SELECT payment_closing_balance
		 FROM billing_transactions
		 WHERE community_id = ? AND payment_id = ?`,
		communityID,
		paymentID,
	).Scan(&closings).Error
	if err != nil {
		return nil, err
	}
	return closings, nil
}
