package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MahdiBaghbani/waitlist-go/internal/platform/store"
	"github.com/MahdiBaghbani/waitlist-go/internal/platform/store/memory"
	"github.com/MahdiBaghbani/waitlist-go/internal/platform/store/testutil"
)

func TestMemoryDriver(t *testing.T) {
	testutil.RunDriverTests(t, "memory", func(*testing.T) *store.DriverConfig {
		return &store.DriverConfig{Driver: "memory"}
	})
}

func TestMemoryDriver_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	d := memory.New()

	e := testutil.NewEntry("copy@example.com", time.Now().UTC())
	if err := d.Create(ctx, e); err != nil {
		t.Fatal(err)
	}
	e.Metadata.Extra["screen"] = "mutated"

	got, err := d.GetByID(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Metadata.Extra["screen"] != "1920x1080" {
		t.Errorf("stored metadata mutated through caller: %v", got.Metadata.Extra)
	}

	got.Notes = "changed"
	again, _ := d.GetByID(ctx, e.ID)
	if again.Notes != "" {
		t.Error("stored entry mutated through returned value")
	}
}

func TestMemoryDriver_Closed(t *testing.T) {
	d := memory.New()
	_ = d.Close()

	if err := d.Ping(context.Background()); !errors.Is(err, store.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := d.Create(context.Background(), testutil.NewEntry("x@example.com", time.Now())); !errors.Is(err, store.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
