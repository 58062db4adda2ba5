package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type CreateCommunityRequest struct {
	Name string
	Tags []string
}

type CreateResidenceRequest struct {
	UnitNo string
}

type CreateOccupantRequest struct {
	Name        string
	ResidenceID *snowflake.ID
}

type Service interface {
	CreateCommunity(ctx context.Context, req CreateCommunityRequest) (Community, error)
	GetCommunity(ctx context.Context, id snowflake.ID) (Community, error)

	CreateResidence(ctx context.Context, req CreateResidenceRequest) (Residence, error)
	ListResidences(ctx context.Context) ([]Residence, error)

	CreateOccupant(ctx context.Context, req CreateOccupantRequest) (Occupant, error)
	ListOccupants(ctx context.Context) ([]Occupant, error)
}

var (
	ErrInvalidCommunity = errors.New("invalid_community")
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidUnitNo    = errors.New("invalid_unit_no")
	ErrNotFound         = errors.New("not_found")
)
