package waitlist

import (
	"context"
	"time"
)

// Repository is the persistence contract for waitlist entries.
// Implementations must be safe for concurrent use and must enforce email
// uniqueness themselves; the service pre-check is only a fast path.
type Repository interface {
	// Create inserts e and assigns e.Position from the commit order.
	// Returns ErrDuplicateEmail on a uniqueness violation.
	Create(ctx context.Context, e *Entry) error

	// GetByID returns ErrEntryNotFound when no entry has the id.
	GetByID(ctx context.Context, id string) (*Entry, error)

	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// List returns one page ordered newest first plus the total match count.
	List(ctx context.Context, f ListFilter) ([]*Entry, int64, error)

	CountByStatus(ctx context.Context) (map[Status]int64, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int64, error)
	CreatedTimesSince(ctx context.Context, since time.Time) ([]time.Time, error)

	// UpdateStatus applies u in a single statement. InvitedAt and JoinedAt
	// are only written when currently unset.
	// Returns ErrEntryNotFound when no entry has the id.
	UpdateStatus(ctx context.Context, id string, u StatusUpdate) error

	// Ping checks that the backing storage is reachable.
	Ping(ctx context.Context) error
}

// ListFilter selects a page of entries.
type ListFilter struct {
	Status Status // empty means any
	Search string // case-insensitive email substring
	Offset int
	Limit  int
}

// StatusUpdate is a resolved mutation handed to the repository.
type StatusUpdate struct {
	Status *Status
	Notes  *string
	At     time.Time
}
