package cookiebroom

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const defaultScanTimeout = 3 * time.Second

// DiscoverStores locates every cookie store matching the options. Failures
// to enumerate a single vendor are reported as warnings; a browser that is
// not installed is simply absent.
func DiscoverStores(ctx context.Context, opts Options) ([]Store, []string) {
	var stores []Store
	var warnings []string

	for _, v := range chromiumVendors {
		if ctx.Err() != nil {
			break
		}
		if !browserSelected(opts.Browsers, v.name, v.executable) {
			continue
		}
		st, w := chromiumDiscoverStores(v)
		warnings = append(warnings, w...)
		stores = append(stores, st...)
	}
	if ctx.Err() == nil && browserSelected(opts.Browsers, "Firefox", "firefox") {
		stores = append(stores, firefoxDiscoverStores()...)
	}

	if opts.Profile != "" {
		var kept []Store
		for _, st := range stores {
			if strings.EqualFold(st.Profile, opts.Profile) {
				kept = append(kept, st)
			}
		}
		stores = kept
	}
	return stores, warnings
}

// Scan discovers cookie stores and reads every record in them. Per-store
// read failures become warnings; only cancellation aborts the scan.
//
// Records keep one entry per database row, including rows with empty or
// undecryptable values, so downstream counts agree with the stores. The
// IncludeExpired option only trims the returned listing.
func Scan(ctx context.Context, opts Options) (*ScanResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultScanTimeout
	}

	stores, warnings := DiscoverStores(ctx, opts)
	res := &ScanResult{Stores: stores, Warnings: warnings}

	var decryptors map[string]decryptFunc
	if opts.DecryptValues {
		decryptors = make(map[string]decryptFunc)
		byVendor := make(map[string][]Store)
		for _, st := range stores {
			if st.Dialect == DialectChromium {
				byVendor[st.Executable] = append(byVendor[st.Executable], st)
			}
		}
		for _, v := range chromiumVendors {
			vendorStores := byVendor[v.executable]
			if len(vendorStores) == 0 {
				continue
			}
			d, w := safeStorageDecryptor(v, vendorStores, timeout)
			res.Warnings = append(res.Warnings, w...)
			if d != nil {
				decryptors[v.executable] = d
			}
		}
	}

	now := time.Now()
	for _, st := range stores {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var (
			records []CookieRecord
			err     error
		)
		if st.Dialect == DialectFirefox {
			records, err = readFirefoxStore(ctx, st)
		} else {
			records, err = readChromiumStore(ctx, st, decryptors[st.Executable])
		}
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("cookiebroom: cannot read %s %s store: %v", st.Browser, st.Profile, err))
			continue
		}

		for _, r := range records {
			if !opts.IncludeExpired && r.Expires != nil && r.Expires.Before(now) {
				continue
			}
			res.Records = append(res.Records, r)
		}
	}
	return res, nil
}

func browserSelected(filter []string, name, executable string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if strings.EqualFold(f, name) || strings.EqualFold(f, executable) {
			return true
		}
	}
	return false
}

// SelectDomains keeps the records owned by one of the requested domains or
// any of their subdomains. Requested values are normalized the same way
// record domains are.
func SelectDomains(records []CookieRecord, domains []string) []CookieRecord {
	wanted := make([]string, 0, len(domains))
	for _, d := range domains {
		if n := normalizeDomain(d); n != "" {
			wanted = append(wanted, n)
		}
	}
	if len(wanted) == 0 {
		return nil
	}

	var out []CookieRecord
	for _, r := range records {
		for _, d := range wanted {
			if r.Domain == d || strings.HasSuffix(r.Domain, "."+d) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// FilterWhitelisted drops records whose domain the whitelist protects and
// reports how many were protected.
func FilterWhitelisted(records []CookieRecord, w *Whitelist) (kept []CookieRecord, protected int) {
	if w == nil || w.Len() == 0 {
		return records, 0
	}
	for _, r := range records {
		if w.Matches(r.Domain) {
			protected++
			continue
		}
		kept = append(kept, r)
	}
	return kept, protected
}
