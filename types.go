package cookiebroom

import "time"

// Store identifies one browser profile's cookie database.
type Store struct {
	// Browser is the display name, e.g. "Chrome" or "Firefox".
	Browser string
	// Profile is the profile identifier, e.g. "Default" or "Profile 1".
	Profile string
	// Path is the cookie database file.
	Path string
	// Dialect is the schema family of the database.
	Dialect Dialect
	// Executable is the canonical lowercase name of the owning browser
	// process, e.g. "chrome". Used by the process gate.
	Executable string
	// LocalState is the vendor's Local State file (Chromium family only);
	// needed for value decryption on Windows.
	LocalState string
}

// CookieRecord is one cookie as read from a store.
type CookieRecord struct {
	// Domain is the normalized owning domain: lowercased, no leading dot.
	Domain string
	// HostKey is the exact host string the store uses, which may carry a
	// leading dot meaning "this domain and all subdomains".
	HostKey string

	Name     string
	Value    string
	Path     string
	Secure   bool
	HTTPOnly bool
	Expires  *time.Time

	Store Store
}

// Options configures a scan.
type Options struct {
	// Browsers restricts the scan to the named browsers (display names,
	// case-insensitive). Empty means all supported browsers.
	Browsers []string

	// Profile restricts the scan to one profile name. Empty means all.
	Profile string

	IncludeExpired bool

	// DecryptValues decrypts Chromium cookie values where a key is
	// available. Never required for deletion; display only.
	DecryptValues bool

	// Timeout bounds OS helper calls (keychain/keyring).
	Timeout time.Duration
}

// ScanResult is returned by Scan.
type ScanResult struct {
	Records  []CookieRecord
	Stores   []Store
	Warnings []string
}
