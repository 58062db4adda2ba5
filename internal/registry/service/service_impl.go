package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
	"github.com/quorumhq/quorum/internal/communityctx"
	"github.com/quorumhq/quorum/internal/registry/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("registry.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) CreateCommunity(ctx context.Context, req domain.CreateCommunityRequest) (domain.Community, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Community{}, domain.ErrInvalidName
	}

	tags := make([]string, 0, len(req.Tags))
	for _, tag := range req.Tags {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			tags = append(tags, tag)
		}
	}

	community := domain.Community{
		ID:        s.genID.Generate(),
		Name:      name,
		Tags:      pq.StringArray(tags),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.InsertCommunity(ctx, s.db, &community); err != nil {
		return domain.Community{}, err
	}
	return community, nil
}

func (s *Service) GetCommunity(ctx context.Context, id snowflake.ID) (domain.Community, error) {
	if id == 0 {
		return domain.Community{}, domain.ErrInvalidCommunity
	}
	community, err := s.repo.FindCommunityByID(ctx, s.db, id)
	if err != nil {
		return domain.Community{}, err
	}
	if community == nil {
		return domain.Community{}, domain.ErrNotFound
	}
	return *community, nil
}

func (s *Service) CreateResidence(ctx context.Context, req domain.CreateResidenceRequest) (domain.Residence, error) {
	communityID, ok := communityctx.CommunityIDFromContext(ctx)
	if !ok || communityID == 0 {
		return domain.Residence{}, domain.ErrInvalidCommunity
	}

	unitNo := strings.TrimSpace(req.UnitNo)
	if unitNo == "" {
		return domain.Residence{}, domain.ErrInvalidUnitNo
	}

	community, err := s.repo.FindCommunityByID(ctx, s.db, communityID)
	if err != nil {
		return domain.Residence{}, err
	}
	if community == nil {
		return domain.Residence{}, domain.ErrNotFound
	}

	residence := domain.Residence{
		ID:          s.genID.Generate(),
		CommunityID: communityID,
		UnitNo:      unitNo,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.InsertResidence(ctx, s.db, &residence); err != nil {
		return domain.Residence{}, err
	}
	return residence, nil
}

func (s *Service) ListResidences(ctx context.Context) ([]domain.Residence, error) {
	communityID, ok := communityctx.CommunityIDFromContext(ctx)
	if !ok || communityID == 0 {
		return nil, domain.ErrInvalidCommunity
	}

	items, err := s.repo.ListResidences(ctx, s.db, communityID)
	if err != nil {
		return nil, err
	}
	residences := make([]domain.Residence, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		residences = append(residences, *item)
	}
	return residences, nil
}

func (s *Service) CreateOccupant(ctx context.Context, req domain.CreateOccupantRequest) (domain.Occupant, error) {
	communityID, ok := communityctx.CommunityIDFromContext(ctx)
	if !ok || communityID == 0 {
		return domain.Occupant{}, domain.ErrInvalidCommunity
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Occupant{}, domain.ErrInvalidName
	}

	community, err := s.repo.FindCommunityByID(ctx, s.db, communityID)
	if err != nil {
		return domain.Occupant{}, err
	}
	if community == nil {
		return domain.Occupant{}, domain.ErrNotFound
	}

	if req.ResidenceID != nil {
		exists, err := s.repo.ResidenceExists(ctx, s.db, communityID, *req.ResidenceID)
		if err != nil {
			return domain.Occupant{}, err
		}
		if !exists {
			return domain.Occupant{}, domain.ErrNotFound
		}
	}

	occupant := domain.Occupant{
		ID:          s.genID.Generate(),
		CommunityID: communityID,
		ResidenceID: req.ResidenceID,
		Name:        name,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.InsertOccupant(ctx, s.db, &occupant); err != nil {
		return domain.Occupant{}, err
	}
	return occupant, nil
}

func (s *Service) ListOccupants(ctx context.Context) ([]domain.Occupant, error) {
	communityID, ok := communityctx.CommunityIDFromContext(ctx)
	if !ok || communityID == 0 {
		return nil, domain.ErrInvalidCommunity
	}

	items, err := s.repo.ListOccupants(ctx, s.db, communityID)
	if err != nil {
		return nil, err
	}
	occupants := make([]domain.Occupant, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		occupants = append(occupants, *item)
	}
	return occupants, nil
}
