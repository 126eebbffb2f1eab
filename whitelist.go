package cookiebroom

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ErrPublicSuffix is returned by Whitelist.Add for a domain: entry whose
// value is itself a public suffix.
var ErrPublicSuffix = errors.New("cookiebroom: domain: whitelist value is a public suffix")

// MatchKind is the whitelist entry class.
type MatchKind int

const (
	// MatchDomain protects a domain and everything beneath it.
	MatchDomain MatchKind = iota
	// MatchExact protects one literal host only.
	MatchExact
	// MatchIP protects one literal IPv4 address.
	MatchIP
)

func (k MatchKind) String() string {
	switch k {
	case MatchDomain:
		return "domain"
	case MatchExact:
		return "exact"
	case MatchIP:
		return "ip"
	}
	return "unknown"
}

// WhitelistEntry is one parsed whitelist rule. Entries are immutable and
// compared by value.
type WhitelistEntry struct {
	Kind   MatchKind
	Value  string // normalized
	Raw    string // original text as given
	Labels int    // dot-separated label count (0 for ip entries)
}

var (
	ipv4Pattern = regexp.MustCompile(
		`^(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}` +
			`(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)$`)
	domainLabelPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)
)

// normalizeDomain lowercases, trims whitespace and strips every leading dot.
func normalizeDomain(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for strings.HasPrefix(s, ".") {
		s = s[1:]
	}
	return s
}

// Whitelist holds protection rules and answers domain lookups. Lookup is
// split across three structures: an exact set, an IP set, and a domain map
// keyed by the bare domain. Subdomain matches are resolved at query time by
// walking the label hierarchy, not by pre-expanding entries.
type Whitelist struct {
	suffixes *SuffixTable

	exact   map[string]WhitelistEntry
	ips     map[string]WhitelistEntry
	domains map[string]WhitelistEntry
	entries []WhitelistEntry
}

// NewWhitelist returns an empty whitelist validating against the given
// suffix table.
func NewWhitelist(suffixes *SuffixTable) *Whitelist {
	if suffixes == nil {
		suffixes = DefaultSuffixes()
	}
	return &Whitelist{
		suffixes: suffixes,
		exact:    make(map[string]WhitelistEntry),
		ips:      make(map[string]WhitelistEntry),
		domains:  make(map[string]WhitelistEntry),
	}
}

// parseEntry splits a raw rule into kind and normalized value without
// validating the value.
func parseEntry(raw string) (MatchKind, string, bool) {
	s := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(s, "domain:"):
		return MatchDomain, normalizeDomain(s[len("domain:"):]), true
	case strings.HasPrefix(s, "exact:"):
		return MatchExact, normalizeDomain(s[len("exact:"):]), true
	case strings.HasPrefix(s, "ip:"):
		return MatchIP, normalizeDomain(s[len("ip:"):]), true
	}
	return 0, "", false
}

// Add validates raw and inserts it. On error nothing is mutated.
//
// Validation rules:
//   - the entry must carry a domain:, exact: or ip: prefix with a non-empty
//     value after normalization;
//   - ip: values must be strict dotted-quad IPv4;
//   - domain:/exact: values must be dot-joined labels of [a-z0-9] with
//     internal hyphens, each 1-63 characters;
//   - domain: values that are themselves a public suffix are rejected (a
//     blanket grant on "com" or "co.uk" would disable deletion almost
//     entirely). exact: values are exempt; they protect a single host.
func (w *Whitelist) Add(raw string) error {
	kind, value, ok := parseEntry(raw)
	if !ok {
		return fmt.Errorf("whitelist entry %q: must start with one of: domain:, exact:, ip:", raw)
	}
	if value == "" {
		return fmt.Errorf("whitelist entry %q: value after %q is empty", raw, kind.String()+":")
	}

	labels := 0
	switch kind {
	case MatchIP:
		if !ipv4Pattern.MatchString(value) {
			return fmt.Errorf("whitelist entry %q: invalid IPv4 address %q", raw, value)
		}
	default:
		parts := strings.Split(value, ".")
		for _, label := range parts {
			if label == "" {
				return fmt.Errorf("whitelist entry %q: empty label in %q", raw, value)
			}
			if len(label) > 63 {
				return fmt.Errorf("whitelist entry %q: label %q longer than 63 characters", raw, label)
			}
			if !domainLabelPattern.MatchString(label) {
				return fmt.Errorf("whitelist entry %q: invalid label %q", raw, label)
			}
		}
		labels = len(parts)

		if kind == MatchDomain && w.suffixes.IsPublicSuffix(value) {
			return fmt.Errorf("%w: %q is too broad to protect", ErrPublicSuffix, value)
		}
	}

	e := WhitelistEntry{Kind: kind, Value: value, Raw: strings.TrimSpace(raw), Labels: labels}
	switch kind {
	case MatchExact:
		w.exact[value] = e
	case MatchIP:
		w.ips[value] = e
	default:
		w.domains[value] = e
	}
	// Re-adding an existing rule replaces its stored raw text instead of
	// duplicating the entry.
	for i, prev := range w.entries {
		if prev.Kind == kind && prev.Value == value {
			w.entries[i] = e
			return nil
		}
	}
	w.entries = append(w.entries, e)
	return nil
}

// Remove deletes the entry matching raw's kind and normalized value.
// Returns false if no such entry exists. Removing an entry returns every
// domain it protected to its prior protection state.
func (w *Whitelist) Remove(raw string) bool {
	kind, value, ok := parseEntry(raw)
	if !ok {
		return false
	}

	removed := false
	switch kind {
	case MatchExact:
		if _, ok := w.exact[value]; ok {
			delete(w.exact, value)
			removed = true
		}
	case MatchIP:
		if _, ok := w.ips[value]; ok {
			delete(w.ips, value)
			removed = true
		}
	default:
		if _, ok := w.domains[value]; ok {
			delete(w.domains, value)
			removed = true
		}
	}
	if !removed {
		return false
	}

	kept := w.entries[:0]
	for _, e := range w.entries {
		if e.Kind == kind && e.Value == value {
			continue
		}
		kept = append(kept, e)
	}
	w.entries = kept
	return true
}

// Matches reports whether domain is protected.
//
// Priority per candidate: exact set first, then the IP set for IPv4
// literals, then the domain map walking label suffixes from most specific
// to least (a.b.c, b.c, c). First match wins; the three kinds are disjoint
// in intent so no further tie-break is needed.
func (w *Whitelist) Matches(domain string) bool {
	d := normalizeDomain(domain)
	if d == "" {
		return false
	}

	if _, ok := w.exact[d]; ok {
		return true
	}
	if ipv4Pattern.MatchString(d) {
		if _, ok := w.ips[d]; ok {
			return true
		}
	}
	parts := strings.Split(d, ".")
	for i := range parts {
		if _, ok := w.domains[strings.Join(parts[i:], ".")]; ok {
			return true
		}
	}
	return false
}

// Entries returns the original rule strings in insertion order.
func (w *Whitelist) Entries() []string {
	out := make([]string, len(w.entries))
	for i, e := range w.entries {
		out[i] = e.Raw
	}
	return out
}

// Len returns the number of rules.
func (w *Whitelist) Len() int { return len(w.entries) }

// SortedEntries returns the parsed entries ordered by kind then value,
// for stable display.
func (w *Whitelist) SortedEntries() []WhitelistEntry {
	out := make([]WhitelistEntry, len(w.entries))
	copy(out, w.entries)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Value < out[j].Value
	})
	return out
}
