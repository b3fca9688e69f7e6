// Package loader registers persistence drivers via blank imports.
//
// Usage in main.go:
//
//	import _ "github.com/MahdiBaghbani/waitlist-go/internal/platform/store/loader"
package loader

import (
	_ "github.com/MahdiBaghbani/waitlist-go/internal/platform/store/memory"
	_ "github.com/MahdiBaghbani/waitlist-go/internal/platform/store/sqlite"
)
