package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/quorumhq/quorum/internal/registry/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertCommunity(ctx context.Context, db *gorm.DB, community *domain.Community) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO communities (id, name, tags, created_at) VALUES (?, ?, ?, ?)`,
		community.ID,
		community.Name,
		community.Tags,
		community.CreatedAt,
	).Error
}

func (r *repo) FindCommunityByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Community, error) {
	var community domain.Community
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, tags, created_at FROM communities WHERE id = ?`,
		id,
	).Scan(&community).Error
	if err != nil {
		return nil, err
	}
	if community.ID == 0 {
		return nil, nil
	}
	return &community, nil
}

func (r *repo) InsertResidence(ctx context.Context, db *gorm.DB, residence *domain.Residence) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO residences (id, community_id, unit_no, created_at) VALUES (?, ?, ?, ?)`,
		residence.ID,
		residence.CommunityID,
		residence.UnitNo,
		residence.CreatedAt,
	).Error
}

func (r *repo) ListResidences(ctx context.Context, db *gorm.DB, communityID snowflake.ID) ([]*domain.Residence, error) {
	var residences []*domain.Residence
	err := db.WithContext(ctx).
		Model(&domain.Residence{}).
		Where("community_id = ?", communityID).
		Order("unit_no, id").
		Find(&residences).Error
	if err != nil {
		return nil, err
	}
	return residences, nil
}

func (r *repo) ResidenceExists(ctx context.Context, db *gorm.DB, communityID, id snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM residences WHERE community_id = ? AND id = ?`,
		communityID,
		id,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) InsertOccupant(ctx context.Context, db *gorm.DB, occupant *domain.Occupant) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO occupants (id, community_id, residence_id, name, created_at) VALUES (?, ?, ?, ?, ?)`,
		occupant.ID,
		occupant.CommunityID,
		occupant.ResidenceID,
		occupant.Name,
		occupant.CreatedAt,
	).Error
}

func (r *repo) ListOccupants(ctx context.Context, db *gorm.DB, communityID snowflake.ID) ([]*domain.Occupant, error) {
	var occupants []*domain.Occupant
	err := db.WithContext(ctx).
		Model(&domain.Occupant{}).
		Where("community_id = ?", communityID).
		Order("name, id").
		Find(&occupants).Error
	if err != nil {
		return nil, err
	}
	return occupants, nil
}

func (r *repo) OccupantExists(ctx context.Context, db *gorm.DB, communityID, id snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM occupants WHERE community_id = ? AND id = ?`,
		communityID,
		id,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
