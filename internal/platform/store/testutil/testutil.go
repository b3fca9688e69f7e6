// Package testutil provides the shared conformance suite for store drivers.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/MahdiBaghbani/waitlist-go/internal/components/waitlist"
	"github.com/MahdiBaghbani/waitlist-go/internal/platform/store"
)

// ConfigFunc returns a driver config pointing at fresh, empty storage.
type ConfigFunc func(t *testing.T) *store.DriverConfig

// base is a fixed reference time for deterministic ordering.
var base = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// NewEntry builds a pending entry for email created at the given time.
func NewEntry(email string, createdAt time.Time) *waitlist.Entry {
	return &waitlist.Entry{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Email:     email,
		Source:    waitlist.SourceWaitlist,
		Status:    waitlist.StatusPending,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
		Metadata: waitlist.Metadata{
			IPAddress: "203.0.113.7",
			UserAgent: "test-agent/1.0",
			Referrer:  "https://example.com/launch",
			UTM:       &waitlist.UTM{Source: "newsletter", Campaign: "spring"},
			Extra:     map[string]any{"screen": "1920x1080"},
		},
	}
}

// OpenDriver creates and initializes a driver, closing it on test cleanup.
func OpenDriver(t *testing.T, cfg *store.DriverConfig) store.Driver {
	t.Helper()

	driver, err := store.New(cfg)
	if err != nil {
		t.Fatalf("failed to create %s driver: %v", cfg.Driver, err)
	}
	if err := driver.Init(context.Background()); err != nil {
		t.Fatalf("failed to init %s driver: %v", cfg.Driver, err)
	}
	t.Cleanup(func() { driver.Close() })
	return driver
}

// RunDriverTests runs the standard test suite against a driver.
// Every subtest gets its own storage from newConfig.
func RunDriverTests(t *testing.T, driverName string, newConfig ConfigFunc) {
	open := func(t *testing.T) store.Driver {
		d := OpenDriver(t, newConfig(t))
		if d.Name() != driverName {
			t.Errorf("expected driver name %q, got %q", driverName, d.Name())
		}
		return d
	}

	t.Run("CreateAssignsPositions", func(t *testing.T) { testCreateAssignsPositions(t, open(t)) })
	t.Run("DuplicateEmail", func(t *testing.T) { testDuplicateEmail(t, open(t)) })
	t.Run("ConcurrentDuplicate", func(t *testing.T) { testConcurrentDuplicate(t, open(t)) })
	t.Run("ConcurrentPositions", func(t *testing.T) { testConcurrentPositions(t, open(t)) })
	t.Run("GetByIDNotFound", func(t *testing.T) { testGetByIDNotFound(t, open(t)) })
	t.Run("ListPagination", func(t *testing.T) { testListPagination(t, open(t)) })
	t.Run("ListFilterAndSearch", func(t *testing.T) { testListFilterAndSearch(t, open(t)) })
	t.Run("UpdateStatusTimestampsOnce", func(t *testing.T) { testUpdateStatusTimestampsOnce(t, open(t)) })
	t.Run("UpdateStatusNotFound", func(t *testing.T) { testUpdateStatusNotFound(t, open(t)) })
	t.Run("Aggregates", func(t *testing.T) { testAggregates(t, open(t)) })
	t.Run("Ping", func(t *testing.T) { testPing(t, open(t)) })
}

func mustCreate(t *testing.T, d store.Driver, e *waitlist.Entry) {
	t.Helper()
	if err := d.Create(context.Background(), e); err != nil {
		t.Fatalf("Create(%s) failed: %v", e.Email, err)
	}
}

func testCreateAssignsPositions(t *testing.T, d store.Driver) {
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		e := NewEntry(fmt.Sprintf("user%d@example.com", i), base.Add(time.Duration(i)*time.Minute))
		mustCreate(t, d, e)
		if e.Position != int64(i) {
			t.Errorf("entry %d: expected position %d, got %d", i, i, e.Position)
		}
	}

	want := NewEntry("roundtrip@example.com", base)
	mustCreate(t, d, want)

	got, err := d.GetByID(ctx, want.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Email != want.Email || got.Position != 4 || got.Status != waitlist.StatusPending {
		t.Errorf("unexpected entry: %+v", got)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("expected createdAt %v, got %v", want.CreatedAt, got.CreatedAt)
	}
	if got.Metadata.IPAddress != "203.0.113.7" || got.Metadata.UTM == nil || got.Metadata.UTM.Campaign != "spring" {
		t.Errorf("metadata not preserved: %+v", got.Metadata)
	}
	if got.Metadata.Extra["screen"] != "1920x1080" {
		t.Errorf("metadata extra not preserved: %v", got.Metadata.Extra)
	}
	if got.InvitedAt != nil || got.JoinedAt != nil {
		t.Error("new entry should have no invitedAt/joinedAt")
	}
}

func testDuplicateEmail(t *testing.T, d store.Driver) {
	ctx := context.Background()

	mustCreate(t, d, NewEntry("dup@example.com", base))

	err := d.Create(ctx, NewEntry("dup@example.com", base.Add(time.Second)))
	if !errors.Is(err, waitlist.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	exists, err := d.ExistsByEmail(ctx, "dup@example.com")
	if err != nil || !exists {
		t.Errorf("ExistsByEmail = %v, %v; want true", exists, err)
	}
	exists, err = d.ExistsByEmail(ctx, "other@example.com")
	if err != nil || exists {
		t.Errorf("ExistsByEmail(other) = %v, %v; want false", exists, err)
	}

	// The failed insert must not consume a position.
	next := NewEntry("next@example.com", base.Add(2*time.Second))
	mustCreate(t, d, next)
	if next.Position != 2 {
		t.Errorf("expected position 2 after rejected duplicate, got %d", next.Position)
	}
}

func testConcurrentDuplicate(t *testing.T, d store.Driver) {
	const attempts = 20
	ctx := context.Background()

	var (
		mu         sync.Mutex
		successes  int
		duplicates int
		others     []error
	)

	var wg conc.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Go(func() {
			err := d.Create(ctx, NewEntry("race@example.com", base))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, waitlist.ErrDuplicateEmail):
				duplicates++
			default:
				others = append(others, err)
			}
		})
	}
	wg.Wait()

	if len(others) > 0 {
		t.Fatalf("unexpected errors: %v", others)
	}
	if successes != 1 || duplicates != attempts-1 {
		t.Errorf("expected 1 success and %d duplicates, got %d and %d", attempts-1, successes, duplicates)
	}

	counts, err := d.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus failed: %v", err)
	}
	if counts[waitlist.StatusPending] != 1 {
		t.Errorf("expected exactly one stored entry, got %d", counts[waitlist.StatusPending])
	}
}

func testConcurrentPositions(t *testing.T, d store.Driver) {
	const n = 25
	ctx := context.Background()

	var (
		mu        sync.Mutex
		positions []int64
		errs      []error
	)

	var wg conc.WaitGroup
	for i := 0; i < n; i++ {
		e := NewEntry(fmt.Sprintf("p%02d@example.com", i), base.Add(time.Duration(i)*time.Second))
		wg.Go(func() {
			err := d.Create(ctx, e)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			positions = append(positions, e.Position)
		})
	}
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })
	for i, p := range positions {
		if p != int64(i+1) {
			t.Fatalf("positions are not exactly 1..%d: %v", n, positions)
		}
	}
}

func testGetByIDNotFound(t *testing.T, d store.Driver) {
	_, err := d.GetByID(context.Background(), "does-not-exist")
	if !errors.Is(err, waitlist.ErrEntryNotFound) {
		t.Errorf("expected ErrEntryNotFound, got %v", err)
	}
}

func testListPagination(t *testing.T, d store.Driver) {
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		mustCreate(t, d, NewEntry(fmt.Sprintf("user%d@example.com", i), base.Add(time.Duration(i)*time.Hour)))
	}

	page1, total, err := d.List(ctx, waitlist.ListFilter{Offset: 0, Limit: 2})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 5 {
		t.Errorf("expected total 5, got %d", total)
	}
	if len(page1) != 2 || page1[0].Email != "user5@example.com" || page1[1].Email != "user4@example.com" {
		t.Errorf("page 1 should hold the two newest entries, got %v", emails(page1))
	}

	page3, _, err := d.List(ctx, waitlist.ListFilter{Offset: 4, Limit: 2})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(page3) != 1 || page3[0].Email != "user1@example.com" {
		t.Errorf("page 3 should hold the oldest entry, got %v", emails(page3))
	}

	beyond, total, err := d.List(ctx, waitlist.ListFilter{Offset: 10, Limit: 2})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(beyond) != 0 || total != 5 {
		t.Errorf("expected empty page with total 5, got %d entries, total %d", len(beyond), total)
	}

	far, total, err := d.List(ctx, waitlist.ListFilter{Offset: math.MaxInt, Limit: 2})
	if err != nil {
		t.Fatalf("List with maximal offset failed: %v", err)
	}
	if len(far) != 0 || total != 5 {
		t.Errorf("expected empty page with total 5 at maximal offset, got %v, total %d", emails(far), total)
	}

	negative, _, err := d.List(ctx, waitlist.ListFilter{Offset: -4, Limit: 2})
	if err != nil {
		t.Fatalf("List with negative offset failed: %v", err)
	}
	if len(negative) != 2 || negative[0].Email != "user5@example.com" {
		t.Errorf("negative offset should read as zero, got %v", emails(negative))
	}
}

func testListFilterAndSearch(t *testing.T, d store.Driver) {
	ctx := context.Background()

	alice := NewEntry("alice@example.com", base)
	bob := NewEntry("bob@sample.org", base.Add(time.Minute))
	carol := NewEntry("carol_x@example.com", base.Add(2*time.Minute))
	for _, e := range []*waitlist.Entry{alice, bob, carol} {
		mustCreate(t, d, e)
	}

	invited := waitlist.StatusInvited
	if err := d.UpdateStatus(ctx, bob.ID, waitlist.StatusUpdate{Status: &invited, At: base.Add(time.Hour)}); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	tests := []struct {
		name   string
		filter waitlist.ListFilter
		want   []string
	}{
		{"status", waitlist.ListFilter{Status: waitlist.StatusInvited, Limit: 10}, []string{"bob@sample.org"}},
		{"search", waitlist.ListFilter{Search: "example", Limit: 10}, []string{"carol_x@example.com", "alice@example.com"}},
		{"search is case-insensitive", waitlist.ListFilter{Search: "alice", Limit: 10}, []string{"alice@example.com"}},
		{"underscore is literal", waitlist.ListFilter{Search: "l_x", Limit: 10}, []string{"carol_x@example.com"}},
		{"percent is literal", waitlist.ListFilter{Search: "%", Limit: 10}, nil},
		{"status and search", waitlist.ListFilter{Status: waitlist.StatusPending, Search: "sample", Limit: 10}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := d.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if total != int64(len(tt.want)) {
				t.Errorf("expected total %d, got %d", len(tt.want), total)
			}
			gotEmails := emails(got)
			if len(gotEmails) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, gotEmails)
			}
			for i := range tt.want {
				if gotEmails[i] != tt.want[i] {
					t.Errorf("expected %v, got %v", tt.want, gotEmails)
				}
			}
		})
	}
}

func testUpdateStatusTimestampsOnce(t *testing.T, d store.Driver) {
	ctx := context.Background()

	e := NewEntry("stamp@example.com", base)
	mustCreate(t, d, e)

	invited := waitlist.StatusInvited
	active := waitlist.StatusActive
	first := base.Add(time.Hour)
	second := base.Add(2 * time.Hour)

	if err := d.UpdateStatus(ctx, e.ID, waitlist.StatusUpdate{Status: &invited, At: first}); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	if err := d.UpdateStatus(ctx, e.ID, waitlist.StatusUpdate{Status: &invited, At: second}); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	got, err := d.GetByID(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.InvitedAt == nil || !got.InvitedAt.Equal(first) {
		t.Errorf("expected invitedAt %v, got %v", first, got.InvitedAt)
	}
	if !got.UpdatedAt.Equal(second) {
		t.Errorf("expected updatedAt %v, got %v", second, got.UpdatedAt)
	}
	if got.JoinedAt != nil {
		t.Error("joinedAt should be unset before activation")
	}

	notes := "vip"
	if err := d.UpdateStatus(ctx, e.ID, waitlist.StatusUpdate{Status: &active, Notes: &notes, At: second}); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	empty := ""
	if err := d.UpdateStatus(ctx, e.ID, waitlist.StatusUpdate{Notes: &empty, At: second.Add(time.Hour)}); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	got, err = d.GetByID(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != waitlist.StatusActive {
		t.Errorf("expected status active, got %s", got.Status)
	}
	if got.JoinedAt == nil || !got.JoinedAt.Equal(second) {
		t.Errorf("expected joinedAt %v, got %v", second, got.JoinedAt)
	}
	if got.InvitedAt == nil || !got.InvitedAt.Equal(first) {
		t.Errorf("invitedAt changed: %v", got.InvitedAt)
	}
	if got.Notes != "" {
		t.Errorf("expected notes cleared, got %q", got.Notes)
	}
	if got.Position != 1 {
		t.Errorf("position changed by update: %d", got.Position)
	}
}

func testUpdateStatusNotFound(t *testing.T, d store.Driver) {
	ctx := context.Background()
	active := waitlist.StatusActive

	err := d.UpdateStatus(ctx, "missing-id", waitlist.StatusUpdate{Status: &active, At: base})
	if !errors.Is(err, waitlist.ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}

	counts, err := d.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus failed: %v", err)
	}
	if len(counts) != 0 {
		t.Errorf("update of missing id must not create entries, got %v", counts)
	}
}

func testAggregates(t *testing.T, d store.Driver) {
	ctx := context.Background()

	old := NewEntry("old@example.com", base.Add(-10*24*time.Hour))
	recent1 := NewEntry("r1@example.com", base.Add(-2*24*time.Hour))
	recent2 := NewEntry("r2@example.com", base.Add(-time.Hour))
	for _, e := range []*waitlist.Entry{old, recent1, recent2} {
		mustCreate(t, d, e)
	}

	declined := waitlist.StatusDeclined
	if err := d.UpdateStatus(ctx, old.ID, waitlist.StatusUpdate{Status: &declined, At: base}); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	counts, err := d.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus failed: %v", err)
	}
	if counts[waitlist.StatusPending] != 2 || counts[waitlist.StatusDeclined] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}

	since := base.Add(-7 * 24 * time.Hour)
	n, err := d.CountCreatedSince(ctx, since)
	if err != nil {
		t.Fatalf("CountCreatedSince failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 entries in window, got %d", n)
	}

	times, err := d.CreatedTimesSince(ctx, since)
	if err != nil {
		t.Fatalf("CreatedTimesSince failed: %v", err)
	}
	if len(times) != 2 || !times[0].Equal(recent1.CreatedAt) || !times[1].Equal(recent2.CreatedAt) {
		t.Errorf("unexpected creation times: %v", times)
	}
}

func testPing(t *testing.T, d store.Driver) {
	if err := d.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func emails(entries []*waitlist.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Email)
	}
	return out
}
