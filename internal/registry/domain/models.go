package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
)

// Community is the tenancy boundary; every ledger entity is scoped to one.
type Community struct {
	ID        snowflake.ID   `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"type:text;not null" json:"name"`
	Tags      pq.StringArray `gorm:"type:text[]" json:"tags,omitempty"`
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Community) TableName() string { return "communities" }

type Residence struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	CommunityID snowflake.ID `gorm:"not null;index" json:"community_id"`
	UnitNo      string       `gorm:"type:text;not null" json:"unit_no"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Residence) TableName() string { return "residences" }

type Occupant struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	CommunityID snowflake.ID  `gorm:"not null;index" json:"community_id"`
	ResidenceID *snowflake.ID `gorm:"index" json:"residence_id,omitempty"`
	Name        string        `gorm:"type:text;not null" json:"name"`
	CreatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Occupant) TableName() string { return "occupants" }
