package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// DueTemplate is a claim on a template whose next charge date has arrived.
type DueTemplate struct {
	ID          snowflake.ID
	CommunityID snowflake.ID
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, template *RecurringCharge) error
	FindByID(ctx context.Context, db *gorm.DB, communityID, id snowflake.ID, forUpdate bool) (*RecurringCharge, error)
	List(ctx context.Context, db *gorm.DB, communityID snowflake.ID) ([]*RecurringCharge, error)
	Delete(ctx context.Context, db *gorm.DB, communityID, id snowflake.ID) (bool, error)

	// AdvanceNextChargeDate moves the template forward only when it still sits
	// at prev, so a concurrent materialization surfaces as zero rows.
	AdvanceNextChargeDate(ctx context.Context, db *gorm.DB, communityID, id snowflake.ID, prev, next time.Time) (bool, error)

	// DueTemplates claims templates due as of asOf, skipping rows other
	// workers hold locked.
	DueTemplates(ctx context.Context, db *gorm.DB, asOf time.Time, limit int) ([]DueTemplate, error)
}
