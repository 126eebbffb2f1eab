package cookiebroom

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// chromiumVendor describes one Chromium-family browser well enough to find
// its cookie stores and its Safe Storage secret.
type chromiumVendor struct {
	name       string // display name, e.g. "Chrome"
	executable string // canonical process name, e.g. "chrome"

	safeStorageService string
	safeStorageAccount string
}

var chromiumVendors = []chromiumVendor{
	{name: "Chrome", executable: "chrome", safeStorageService: "Chrome Safe Storage", safeStorageAccount: "Chrome"},
	{name: "Chromium", executable: "chromium", safeStorageService: "Chromium Safe Storage", safeStorageAccount: "Chromium"},
	{name: "Edge", executable: "msedge", safeStorageService: "Microsoft Edge Safe Storage", safeStorageAccount: "Microsoft Edge"},
	{name: "Brave", executable: "brave", safeStorageService: "Brave Safe Storage", safeStorageAccount: "Brave"},
	{name: "Opera", executable: "opera", safeStorageService: "Opera Safe Storage", safeStorageAccount: "Opera"},
	{name: "Vivaldi", executable: "vivaldi", safeStorageService: "Vivaldi Safe Storage", safeStorageAccount: "Vivaldi"},
}

// decryptFunc decrypts one encrypted cookie value. ok is false when the
// value cannot be recovered with the available key material.
type decryptFunc func(encrypted []byte, metaVersion int64) ([]byte, bool)

// chromiumNonProfileDirs are user-data subdirectories that are never user
// profiles, even when they carry a cookie database of their own.
var chromiumNonProfileDirs = map[string]bool{
	"System Profile":    true,
	"Guest Profile":     true,
	"Crashpad":          true,
	"Safe Browsing":     true,
	"ShaderCache":       true,
	"GrShaderCache":     true,
	"GraphiteDawnCache": true,
	"BrowserMetrics":    true,
	"Snapshots":         true,
}

func chromiumUserDataDir(v chromiumVendor) string {
	for _, dir := range chromiumUserDataDirCandidates(v) {
		if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
			return dir
		}
	}
	return ""
}

// chromiumDiscoverStores finds the vendor's cookie databases. A profile is
// any user-data subdirectory holding a cookie database; the directory name
// is the profile identifier. Opera keeps its single profile at the
// user-data root, which surfaces as "Default".
func chromiumDiscoverStores(v chromiumVendor) ([]Store, []string) {
	userData := chromiumUserDataDir(v)
	if userData == "" {
		return nil, nil
	}
	localState := filepath.Join(userData, "Local State")
	if !fileExists(localState) {
		localState = ""
	}

	seen := make(map[string]bool)
	var out []Store
	add := func(profile, dbPath string) {
		if seen[dbPath] {
			return
		}
		seen[dbPath] = true
		out = append(out, Store{
			Browser:    v.name,
			Profile:    profile,
			Path:       dbPath,
			Dialect:    DialectChromium,
			Executable: v.executable,
			LocalState: localState,
		})
	}

	if db := chromiumCookieDB(userData); db != "" {
		add("Default", db)
	}

	entries, err := os.ReadDir(userData)
	if err != nil {
		return out, []string{fmt.Sprintf("cookiebroom: cannot list %s user data: %v", v.name, err)}
	}
	for _, e := range entries {
		if !e.IsDir() || chromiumNonProfileDirs[e.Name()] {
			continue
		}
		if db := chromiumCookieDB(filepath.Join(userData, e.Name())); db != "" {
			add(e.Name(), db)
		}
	}
	return out, nil
}

// chromiumCookieDB locates the cookie database under a profile directory.
// Modern Chromium writes Network/Cookies; older profiles keep Cookies at
// the profile root.
func chromiumCookieDB(profileDir string) string {
	candidates := []string{
		filepath.Join(profileDir, "Network", "Cookies"),
		filepath.Join(profileDir, "Cookies"),
	}
	for _, p := range candidates {
		if fileExists(p) {
			return p
		}
	}
	return ""
}

// readChromiumStore reads every cookie row in the store from a snapshot.
// Rows with empty or undecryptable values are kept; deletion planning
// counts rows, not values.
func readChromiumStore(ctx context.Context, st Store, decrypt decryptFunc) ([]CookieRecord, error) {
	db, cleanup, err := openSnapshotReadOnly(ctx, st.Path)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	metaVersion := chromiumMetaVersion(ctx, db)

	rows, err := db.QueryContext(ctx,
		`SELECT host_key, name, path, value, encrypted_value, expires_utc, is_secure, is_httponly FROM cookies ORDER BY host_key, name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []CookieRecord
	for rows.Next() {
		var (
			hostKey  string
			name     string
			path     string
			value    string
			enc      []byte
			expires  sql.NullInt64
			secure   sql.NullInt64
			httpOnly sql.NullInt64
		)
		if err := rows.Scan(&hostKey, &name, &path, &value, &enc, &expires, &secure, &httpOnly); err != nil {
			return nil, err
		}
		if hostKey == "" {
			continue
		}

		if value == "" && len(enc) > 0 && decrypt != nil {
			if plain, ok := decrypt(enc, metaVersion); ok {
				if decoded, ok := decodeCookieValue(plain); ok {
					value = decoded
				}
			}
		}

		var expiresAt *time.Time
		if expires.Valid {
			if t, ok := chromiumExpiresToTime(expires.Int64); ok {
				expiresAt = &t
			}
		}
		if path == "" {
			path = "/"
		}

		out = append(out, CookieRecord{
			Domain:   normalizeDomain(hostKey),
			HostKey:  hostKey,
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

func chromiumMetaVersion(ctx context.Context, db *sql.DB) int64 {
	var value string
	if err := db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'version'`).Scan(&value); err != nil {
		return 0
	}
	v, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// chromiumExpiresToTime converts expires_utc, microseconds since
// 1601-01-01 UTC, to wall time. Zero means a session cookie.
func chromiumExpiresToTime(expiresUTC int64) (time.Time, bool) {
	const unixEpochDiffMicros = int64(11644473600000000)
	unixMicros := expiresUTC - unixEpochDiffMicros
	if unixMicros <= 0 {
		return time.Time{}, false
	}
	return time.Unix(0, unixMicros*1000).UTC(), true
}
