package cookiebroom

import (
	"context"
	"strings"
)

// Dialect is the schema family of a cookie store. The executor dispatches
// on it for the table and host column names; there are exactly two shapes.
type Dialect int

const (
	// DialectChromium is the Chrome-family schema (table "cookies").
	DialectChromium Dialect = iota
	// DialectFirefox is the Mozilla schema (table "moz_cookies").
	DialectFirefox
)

func (d Dialect) String() string {
	if d == DialectFirefox {
		return "firefox"
	}
	return "chromium"
}

// Table returns the cookie table name for the dialect.
func (d Dialect) Table() string {
	if d == DialectFirefox {
		return "moz_cookies"
	}
	return "cookies"
}

// HostColumn returns the host-key column name for the dialect.
func (d Dialect) HostColumn() string {
	if d == DialectFirefox {
		return "host"
	}
	return "host_key"
}

// DetectDialect probes the file's sqlite_master for a known cookie table.
// An unreadable or unrecognizable file falls back to a path-name heuristic
// so a best-effort attempt can still be reported as a clean failure
// instead of crashing.
func DetectDialect(ctx context.Context, path string) Dialect {
	if !fileExists(path) {
		return dialectFromPath(path)
	}

	db, err := openReadOnly(path)
	if err != nil {
		return dialectFromPath(path)
	}
	defer func() { _ = db.Close() }()

	var name string
	err = db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type='table' AND name IN ('cookies', 'moz_cookies')`,
	).Scan(&name)
	if err != nil {
		return dialectFromPath(path)
	}
	if name == "moz_cookies" {
		return DialectFirefox
	}
	return DialectChromium
}

func dialectFromPath(path string) Dialect {
	p := strings.ToLower(path)
	if strings.Contains(p, "firefox") || strings.Contains(p, "mozilla") {
		return DialectFirefox
	}
	return DialectChromium
}
