package guards

import (
	"strings"
	"testing"
)

// TestWaitlistComponentIsStorageAgnostic enforces that the waitlist domain
// package depends only on its Repository and cache.Cache interfaces.
// The dependency direction must be store -> waitlist, never the reverse.
func TestWaitlistComponentIsStorageAgnostic(t *testing.T) {
	forbiddenImports := []string{
		`"gorm.io/`,
		`"github.com/valkey-io/`,
		`"github.com/MahdiBaghbani/waitlist-go/internal/platform/store`,
		`"github.com/MahdiBaghbani/waitlist-go/internal/platform/cache/`,
		`"github.com/MahdiBaghbani/waitlist-go/internal/services/`,
	}

	repoRoot := findRepoRoot(t)
	var violations []string

	walkSources(t, repoRoot, []string{"internal/components/waitlist"}, func(rel, content string) {
		for i, line := range strings.Split(content, "\n") {
			trimmed := strings.TrimSpace(line)
			for _, imp := range forbiddenImports {
				if strings.Contains(trimmed, imp) {
					violations = append(violations, rel+":"+itoa(i+1)+": "+trimmed)
				}
			}
		}
	})

	if len(violations) > 0 {
		t.Fatalf("waitlist component imports storage or service packages:\n%s",
			strings.Join(violations, "\n"))
	}
}

// TestPlatformDoesNotImportServices keeps platform packages reusable:
// services are composed in main, never reached from below.
func TestPlatformDoesNotImportServices(t *testing.T) {
	forbidden := `"github.com/MahdiBaghbani/waitlist-go/internal/services/`

	repoRoot := findRepoRoot(t)
	var violations []string

	walkSources(t, repoRoot, []string{"internal/platform", "internal/components", "internal/frameworks"}, func(rel, content string) {
		if strings.Contains(content, forbidden) {
			violations = append(violations, rel)
		}
	})

	if len(violations) > 0 {
		t.Fatalf("lower layers import services packages:\n%s", strings.Join(violations, "\n"))
	}
}
