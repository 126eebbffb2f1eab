package cookiebroom

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// SuffixTable answers "is this domain a public suffix?". It is built once,
// shared read-only, and passed into every Whitelist that needs the guard.
// Rebuild by constructing a new table.
//
// Three rule classes from the Public Suffix List format:
//
//	example.com     plain rule
//	*.example.com   wildcard: any single label + ".example.com" is a suffix
//	!foo.example.com exception: NOT a suffix despite a covering wildcard
type SuffixTable struct {
	rules      map[string]struct{}
	wildcards  map[string]struct{}
	exceptions map[string]struct{}
}

// ParseSuffixes reads Public Suffix List data. Blank lines and // comments
// are skipped. Rules are stored lowercased.
func ParseSuffixes(r io.Reader) (*SuffixTable, error) {
	t := &SuffixTable{
		rules:      make(map[string]struct{}),
		wildcards:  make(map[string]struct{}),
		exceptions: make(map[string]struct{}),
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		// The list carries trailing annotations on some lines.
		if i := strings.IndexAny(line, " \t"); i >= 0 {
			line = line[:i]
		}
		line = strings.ToLower(line)

		switch {
		case strings.HasPrefix(line, "*."):
			t.wildcards[line[2:]] = struct{}{}
		case strings.HasPrefix(line, "!"):
			t.exceptions[line[1:]] = struct{}{}
		default:
			t.rules[line] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

// LoadSuffixes parses a Public Suffix List file. Callers that want the
// built-in fallback on a missing or unreadable file should use
// DefaultSuffixes when this returns an error.
func LoadSuffixes(path string) (*SuffixTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ParseSuffixes(f)
}

// IsPublicSuffix reports whether domain is a public suffix. Exception rules
// win over plain and wildcard rules.
func (t *SuffixTable) IsPublicSuffix(domain string) bool {
	d := normalizeDomain(domain)
	if d == "" {
		return false
	}
	if _, ok := t.exceptions[d]; ok {
		return false
	}
	if _, ok := t.rules[d]; ok {
		return true
	}
	if i := strings.IndexByte(d, '.'); i > 0 {
		if _, ok := t.wildcards[d[i+1:]]; ok {
			return true
		}
	}
	return false
}

// Len returns the total number of rules in the table.
func (t *SuffixTable) Len() int {
	return len(t.rules) + len(t.wildcards) + len(t.exceptions)
}

// DefaultSuffixes returns the built-in table used when no Public Suffix
// List file is available. It covers the TLDs and shared hosting suffixes
// most likely to show up in a whitelist by mistake.
func DefaultSuffixes() *SuffixTable {
	t := &SuffixTable{
		rules:      make(map[string]struct{}, len(fallbackSuffixes)),
		wildcards:  make(map[string]struct{}),
		exceptions: make(map[string]struct{}),
	}
	for _, s := range fallbackSuffixes {
		t.rules[s] = struct{}{}
	}
	return t
}

var fallbackSuffixes = []string{
	// Generic TLDs.
	"com", "net", "org", "edu", "gov", "mil", "int", "info", "biz",
	// Country code TLDs.
	"uk", "de", "fr", "jp", "cn", "au", "ca", "ru", "br", "in", "us",
	"es", "it", "nl", "be", "ch", "at", "pl", "se", "no", "dk", "fi",
	"pt", "ie", "nz", "za", "mx", "ar", "cl", "kr", "tw", "hk", "sg",
	// Common second-level registrations.
	"co.uk", "org.uk", "ac.uk", "gov.uk", "me.uk", "ltd.uk", "plc.uk",
	"com.au", "net.au", "org.au", "edu.au", "gov.au", "asn.au",
	"co.jp", "ne.jp", "or.jp", "ac.jp", "go.jp", "ed.jp",
	"com.br", "net.br", "org.br", "gov.br", "edu.br",
	"co.in", "net.in", "org.in", "gov.in", "ac.in",
	"co.nz", "net.nz", "org.nz", "govt.nz", "ac.nz",
	"co.za", "net.za", "org.za", "gov.za", "ac.za",
	"com.mx", "net.mx", "org.mx", "gob.mx", "edu.mx",
	"com.ar", "net.ar", "org.ar", "gob.ar", "edu.ar",
	"co.kr", "ne.kr", "or.kr", "go.kr", "ac.kr",
	"com.tw", "net.tw", "org.tw", "gov.tw", "edu.tw",
	"com.hk", "net.hk", "org.hk", "gov.hk", "edu.hk",
	"com.sg", "net.sg", "org.sg", "gov.sg", "edu.sg",
	"co.de", "com.de", "org.de",
	"co.at", "or.at", "ac.at",
	// Newer generic TLDs.
	"io", "co", "app", "dev", "ai", "me", "tv", "cc", "ws", "ly", "to",
	"eu", "asia", "mobi", "tel", "travel", "jobs", "museum", "coop",
	// Hosting platforms that hand out subdomains to unrelated parties.
	"github.io", "gitlab.io", "herokuapp.com", "netlify.app", "vercel.app",
	"azurewebsites.net", "cloudfront.net", "amazonaws.com",
	"blogspot.com", "wordpress.com", "tumblr.com",
}
