package notification

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist for the calling user.
var ErrNotFound = errors.New("notification not found")

// DefaultListLimit and MaxListLimit bound a single page of List.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Store persists in-app notification records. Every read and mutation is
// scoped to the owning user.
type Store interface {
	Create(ctx context.Context, rec *Record) error
	// List returns the newest records first. A zero before returns the first
	// page; otherwise only records created strictly before it are returned.
	List(ctx context.Context, userID string, limit int, before time.Time) ([]Record, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, userID, id string) error
}

// ClampLimit maps a requested page size onto [1, MaxListLimit].
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
