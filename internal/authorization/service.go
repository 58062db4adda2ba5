package authorization

import (
	"context"
	"errors"
)

type Service interface {
	// Authorize checks whether actor may perform action on object within the
	// community. Actors are "system" or "user:<id>".
	Authorize(ctx context.Context, actor string, communityID string, object string, action string) error
}

var (
	ErrInvalidActor     = errors.New("invalid_actor")
	ErrInvalidCommunity = errors.New("invalid_community")
	ErrInvalidObject    = errors.New("invalid_object")
	ErrInvalidAction    = errors.New("invalid_action")
	ErrForbidden        = errors.New("forbidden")
)
