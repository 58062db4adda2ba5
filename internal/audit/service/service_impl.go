package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/quorumhq/quorum/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
	}
}

func (s *Service) AuditLog(ctx context.Context, communityID *snowflake.ID, actorType string, actorID *string, action, targetType string, targetID *string, metadata map[string]any) error {
	actorType = strings.TrimSpace(actorType)
	if actorType == "" {
		actorType = domain.ActorTypeSystem
	}

	record := domain.AuditLog{
		ID:          s.genID.Generate(),
		CommunityID: communityID,
		ActorType:   actorType,
		ActorID:     actorID,
		Action:      action,
		TargetType:  targetType,
		TargetID:    targetID,
		Metadata:    datatypes.JSONMap(metadata),
		CreatedAt:   time.Now().UTC(),
	}
	if record.Metadata == nil {
		record.Metadata = datatypes.JSONMap{}
	}

	err := s.db.WithContext(ctx).Exec(
		`INSERT INTO audit_logs (id, community_id, actor_type, actor_id, action, target_type, target_id, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.CommunityID,
		record.ActorType,
		record.ActorID,
		record.Action,
		record.TargetType,
		record.TargetID,
		record.Metadata,
		record.CreatedAt,
	).Error
	if err != nil {
		// Audit is best-effort; a failed write must never fail the mutation.
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
	return err
}
