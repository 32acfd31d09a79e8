package authorization

import (
	"context"
	"errors"
)

// Service answers "may this actor perform this action on this object".
// Roles come from the acting user on the context; internal callers without an
// actor run as system.
type Service interface {
	Authorize(ctx context.Context, object, action string) error
}

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
)
