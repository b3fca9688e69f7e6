// Package memory implements a volatile in-process persistence driver.
// It is used in dev mode and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MahdiBaghbani/waitlist-go/internal/components/waitlist"
	"github.com/MahdiBaghbani/waitlist-go/internal/platform/store"
)

func init() {
	store.Register("memory", NewDriver)
}

type record struct {
	seq   int64
	entry waitlist.Entry
}

// Driver keeps entries in maps guarded by a single RWMutex.
// The email index under the write lock is the uniqueness constraint.
type Driver struct {
	mu      sync.RWMutex
	byID    map[string]*record
	byEmail map[string]*record
	seq     int64
	closed  bool
}

// NewDriver creates a new memory driver instance.
func NewDriver(_ *store.DriverConfig) (store.Driver, error) {
	return New(), nil
}

// New returns an initialized memory driver.
func New() *Driver {
	return &Driver{
		byID:    make(map[string]*record),
		byEmail: make(map[string]*record),
	}
}

// Name returns the driver name.
func (d *Driver) Name() string { return "memory" }

// Init is a no-op.
func (d *Driver) Init(context.Context) error { return nil }

// Close marks the driver closed.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Create inserts the entry and assigns the next position.
func (d *Driver) Create(_ context.Context, e *waitlist.Entry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}
	if _, ok := d.byEmail[e.Email]; ok {
		return waitlist.ErrDuplicateEmail
	}

	d.seq++
	e.Position = int64(len(d.byID)) + 1
	rec := &record{seq: d.seq, entry: cloneEntry(e)}
	d.byID[e.ID] = rec
	d.byEmail[e.Email] = rec
	return nil
}

// GetByID retrieves an entry by id.
func (d *Driver) GetByID(_ context.Context, id string) (*waitlist.Entry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}
	rec, ok := d.byID[id]
	if !ok {
		return nil, waitlist.ErrEntryNotFound
	}
	out := cloneEntry(&rec.entry)
	return &out, nil
}

// ExistsByEmail reports whether the normalized email is registered.
func (d *Driver) ExistsByEmail(_ context.Context, email string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return false, store.ErrClosed
	}
	_, ok := d.byEmail[email]
	return ok, nil
}

// List returns a page of entries ordered by creation time, newest first.
func (d *Driver) List(_ context.Context, f waitlist.ListFilter) ([]*waitlist.Entry, int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, 0, store.ErrClosed
	}

	search := strings.ToLower(f.Search)
	matched := make([]*record, 0, len(d.byID))
	for _, rec := range d.byID {
		if f.Status != "" && rec.entry.Status != f.Status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(rec.entry.Email), search) {
			continue
		}
		matched = append(matched, rec)
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.entry.CreatedAt.Equal(b.entry.CreatedAt) {
			return a.entry.CreatedAt.After(b.entry.CreatedAt)
		}
		return a.seq > b.seq
	})

	total := int64(len(matched))
	start := min(max(f.Offset, 0), len(matched))
	end := len(matched)
	if f.Limit > 0 {
		end = min(start+f.Limit, len(matched))
	}

	entries := make([]*waitlist.Entry, 0, end-start)
	for _, rec := range matched[start:end] {
		e := cloneEntry(&rec.entry)
		entries = append(entries, &e)
	}
	return entries, total, nil
}

// CountByStatus returns the number of entries per status.
func (d *Driver) CountByStatus(_ context.Context) (map[waitlist.Status]int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}
	counts := make(map[waitlist.Status]int64)
	for _, rec := range d.byID {
		counts[rec.entry.Status]++
	}
	return counts, nil
}

// CountCreatedSince counts entries created at or after since.
func (d *Driver) CountCreatedSince(_ context.Context, since time.Time) (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return 0, store.ErrClosed
	}
	var n int64
	for _, rec := range d.byID {
		if !rec.entry.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// CreatedTimesSince returns creation times at or after since, ascending.
func (d *Driver) CreatedTimesSince(_ context.Context, since time.Time) ([]time.Time, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}
	var times []time.Time
	for _, rec := range d.byID {
		if !rec.entry.CreatedAt.Before(since) {
			times = append(times, rec.entry.CreatedAt)
		}
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	return times, nil
}

// UpdateStatus applies the update atomically under the write lock.
func (d *Driver) UpdateStatus(_ context.Context, id string, u waitlist.StatusUpdate) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}
	rec, ok := d.byID[id]
	if !ok {
		return waitlist.ErrEntryNotFound
	}

	at := u.At.UTC()
	e := &rec.entry
	e.UpdatedAt = at
	if u.Status != nil {
		e.Status = *u.Status
		switch *u.Status {
		case waitlist.StatusInvited:
			if e.InvitedAt == nil {
				e.InvitedAt = &at
			}
		case waitlist.StatusActive:
			if e.JoinedAt == nil {
				e.JoinedAt = &at
			}
		}
	}
	if u.Notes != nil {
		e.Notes = *u.Notes
	}
	return nil
}

// Ping fails once the driver is closed.
func (d *Driver) Ping(context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return store.ErrClosed
	}
	return nil
}

// cloneEntry copies e so callers cannot mutate stored state.
func cloneEntry(e *waitlist.Entry) waitlist.Entry {
	out := *e
	if e.InvitedAt != nil {
		t := *e.InvitedAt
		out.InvitedAt = &t
	}
	if e.JoinedAt != nil {
		t := *e.JoinedAt
		out.JoinedAt = &t
	}
	if e.Metadata.UTM != nil {
		utm := *e.Metadata.UTM
		out.Metadata.UTM = &utm
	}
	if e.Metadata.Extra != nil {
		out.Metadata.Extra = make(map[string]any, len(e.Metadata.Extra))
		for k, v := range e.Metadata.Extra {
			out.Metadata.Extra[k] = v
		}
	}
	return out
}

var _ store.Driver = (*Driver)(nil)
