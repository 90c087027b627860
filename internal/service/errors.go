package service

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

// Sentinel errors surfaced to callers of the mutating operations.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// noRows reports whether err bottoms out in a missing-row lookup.
func noRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
