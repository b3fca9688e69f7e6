package deps

import (
	"testing"

	"github.com/MahdiBaghbani/waitlist-go/internal/components/waitlist"
	"github.com/MahdiBaghbani/waitlist-go/internal/platform/store/memory"
)

func TestValidate(t *testing.T) {
	var nilDeps *Deps
	if err := nilDeps.Validate(); err == nil {
		t.Error("expected error for nil deps")
	}
	if err := (&Deps{}).Validate(); err == nil {
		t.Error("expected error when waitlist service is missing")
	}

	d := &Deps{Waitlist: waitlist.NewService(memory.New(), waitlist.Options{})}
	if err := d.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
