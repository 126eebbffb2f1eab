package cookiebroom

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-ini/ini"
)

// firefoxDiscoverStores finds the cookie database of every profile named
// in profiles.ini. The profile directory name is the profile identifier.
// A missing IsRelative key means the path is relative, matching Firefox.
func firefoxDiscoverStores() []Store {
	root := firefoxRoot()
	if root == "" {
		return nil
	}
	cfg, err := ini.Load(filepath.Join(root, "profiles.ini"))
	if err != nil {
		return nil
	}

	// profiles.ini can repeat a directory across sections after upgrades.
	seen := make(map[string]bool)
	var out []Store
	for _, secName := range cfg.SectionStrings() {
		if !strings.HasPrefix(secName, "Profile") {
			continue
		}
		sec := cfg.Section(secName)
		pathStr := filepath.FromSlash(sec.Key("Path").String())
		if pathStr == "" {
			continue
		}
		if sec.Key("IsRelative").MustInt(1) == 1 {
			pathStr = filepath.Join(root, pathStr)
		}
		dbPath := filepath.Join(pathStr, "cookies.sqlite")
		if seen[dbPath] || !fileExists(dbPath) {
			continue
		}
		seen[dbPath] = true
		out = append(out, Store{
			Browser:    "Firefox",
			Profile:    filepath.Base(pathStr),
			Path:       dbPath,
			Dialect:    DialectFirefox,
			Executable: "firefox",
		})
	}
	return out
}

// readFirefoxStore reads every cookie row in the store from a snapshot.
func readFirefoxStore(ctx context.Context, st Store) ([]CookieRecord, error) {
	db, cleanup, err := openSnapshotReadOnly(ctx, st.Path)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	rows, err := db.QueryContext(ctx,
		`SELECT host, name, value, path, expiry, isSecure, isHttpOnly FROM moz_cookies ORDER BY host, name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []CookieRecord
	for rows.Next() {
		var (
			host     string
			name     string
			value    string
			path     string
			expiry   sql.NullInt64
			secure   sql.NullInt64
			httpOnly sql.NullInt64
		)
		if err := rows.Scan(&host, &name, &value, &path, &expiry, &secure, &httpOnly); err != nil {
			return nil, err
		}
		if host == "" {
			continue
		}

		// Firefox stores Unix seconds; zero means a session cookie.
		var expiresAt *time.Time
		if expiry.Valid && expiry.Int64 > 0 {
			t := time.Unix(expiry.Int64, 0).UTC()
			expiresAt = &t
		}
		if path == "" {
			path = "/"
		}

		out = append(out, CookieRecord{
			Domain:   normalizeDomain(host),
			HostKey:  host,
			Name:     name,
			Value:    value,
			Path:     path,
			Secure:   secure.Valid && secure.Int64 == 1,
			HTTPOnly: httpOnly.Valid && httpOnly.Int64 == 1,
			Expires:  expiresAt,
			Store:    st,
		})
	}
	return out, rows.Err()
}
