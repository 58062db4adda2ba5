package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/quorumhq/quorum/internal/recurring/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, template *domain.RecurringCharge) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO billing_recurring_charges (
			id, community_id, target_kind, target_id, name, amount,
			frequency, frequency_skip, time_to_pay_days, next_charge_date, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		template.ID,
		template.CommunityID,
		template.Target.Kind,
		template.Target.ID,
		template.Name,
		template.Amount,
		template.Frequency,
		template.FrequencySkip,
		template.TimeToPayDays,
		template.NextChargeDate,
		template.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, communityID, id snowflake.ID, forUpdate bool) (*domain.RecurringCharge, error) {
	query := `SELECT id, community_id, target_kind, target_id, name, amount,
		        frequency, frequency_skip, time_to_pay_days, next_charge_date, created_at
		 FROM billing_recurring_charges WHERE community_id = ? AND id = ?`
	if forUpdate && db.Dialector.Name() != "sqlite" {
		query += " FOR UPDATE NOWAIT"
	}

	var template domain.RecurringCharge
	err := db.WithContext(ctx).Raw(query, communityID, id).Scan(&template).Error
	if err != nil {
		return nil, err
	}
	if template.ID == 0 {
		return nil, nil
	}
	return &template, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, communityID snowflake.ID) ([]*domain.RecurringCharge, error) {
	var templates []*domain.RecurringCharge
	err := db.WithContext(ctx).
		Model(&domain.RecurringCharge{}).
		Where("community_id = ?", communityID).
		Order("next_charge_date, id").
		Find(&templates).Error
	if err != nil {
		return nil, err
	}
	return templates, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, communityID, id snowflake.ID) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`DELETE FROM billing_recurring_charges WHERE community_id = ? AND id = ?`,
		communityID,
		id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) AdvanceNextChargeDate(ctx context.Context, db *gorm.DB, communityID, id snowflake.ID, prev, next time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE billing_recurring_charges
		 SET next_charge_date = ?
		 WHERE community_id = ? AND id = ? AND next_charge_date = ?`,
		next,
		communityID,
		id,
		prev,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) DueTemplates(ctx context.Context, db *gorm.DB, asOf time.Time, limit int) ([]domain.DueTemplate, error) {
	query := `SELECT id, community_id
		 FROM billing_recurring_charges
		 WHERE next_charge_date <= ?
		 ORDER BY next_charge_date, id
		 LIMIT ?`
	if db.Dialector.Name() != "sqlite" {
		query += " FOR UPDATE SKIP LOCKED"
	}

	var due []domain.DueTemplate
	err := db.WithContext(ctx).Raw(query, asOf, limit).Scan(&due).Error
	if err != nil {
		return nil, err
	}
	return due, nil
}
