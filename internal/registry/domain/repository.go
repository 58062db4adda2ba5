package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertCommunity(ctx context.Context, db *gorm.DB, community *Community) error
	FindCommunityByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Community, error)

	InsertResidence(ctx context.Context, db *gorm.DB, residence *Residence) error
	ListResidences(ctx context.Context, db *gorm.DB, communityID snowflake.ID) ([]*Residence, error)
	ResidenceExists(ctx context.Context, db *gorm.DB, communityID, id snowflake.ID) (bool, error)

	InsertOccupant(ctx context.Context, db *gorm.DB, occupant *Occupant) error
	ListOccupants(ctx context.Context, db *gorm.DB, communityID snowflake.ID) ([]*Occupant, error)
	OccupantExists(ctx context.Context, db *gorm.DB, communityID, id snowflake.ID) (bool, error)
}
