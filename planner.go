package cookiebroom

import (
	"fmt"
	"sort"
)

// Planner turns scanned cookie records into delete plans.
type Planner struct {
	// BackupRoot is the directory backups land under; every operation's
	// backup destination is computed beneath it.
	BackupRoot string
}

// BuildPlan groups records by (browser, profile, database file) and within
// each group by raw host key, emitting one DeleteTarget per distinct key.
//
// All operations share the plan's creation timestamp in their backup
// destinations, so one clean action produces one backup set. Operation and
// target order is deterministic. Pure data transformation: the only failure
// is malformed input, and no group is ever silently dropped.
func (pl *Planner) BuildPlan(records []CookieRecord, dryRun bool) (*DeletePlan, error) {
	plan := NewDeletePlan(dryRun)
	if len(records) == 0 {
		return plan, nil
	}

	type storeKey struct {
		browser, profile, path string
	}
	groups := make(map[storeKey][]CookieRecord)
	for i, r := range records {
		if r.HostKey == "" {
			return nil, fmt.Errorf("cookie record %d (%s/%s): empty host key", i, r.Store.Browser, r.Name)
		}
		if r.Store.Path == "" {
			return nil, fmt.Errorf("cookie record %d (%s): no store path", i, r.HostKey)
		}
		k := storeKey{r.Store.Browser, r.Store.Profile, r.Store.Path}
		groups[k] = append(groups[k], r)
	}

	keys := make([]storeKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].browser != keys[j].browser {
			return keys[i].browser < keys[j].browser
		}
		if keys[i].profile != keys[j].profile {
			return keys[i].profile < keys[j].profile
		}
		return keys[i].path < keys[j].path
	})

	for _, k := range keys {
		group := groups[k]

		counts := make(map[string]int)
		for _, r := range group {
			counts[r.HostKey]++
		}
		hostKeys := make([]string, 0, len(counts))
		for hk := range counts {
			hostKeys = append(hostKeys, hk)
		}
		sort.Strings(hostKeys)

		targets := make([]DeleteTarget, 0, len(hostKeys))
		for _, hk := range hostKeys {
			targets = append(targets, DeleteTarget{
				NormalizedDomain: normalizeDomain(hk),
				MatchPattern:     matchPatternFor(hk),
				Count:            counts[hk],
			})
		}

		exe := group[0].Store.Executable
		if exe == "" {
			exe = ExecutableForPath(k.path)
		}

		plan.AddOperation(DeleteOperation{
			Browser:    k.browser,
			Profile:    k.profile,
			DBPath:     k.path,
			BackupPath: backupPathFor(pl.BackupRoot, k.path, k.browser, k.profile, plan.Timestamp),
			Executable: exe,
			Targets:    targets,
		})
	}
	return plan, nil
}

// matchPatternFor maps a raw host key to its SQL LIKE pattern. A leading
// dot means "domain and all subdomains" and becomes a % wildcard; a
// dot-less key matches exactly one host and stays literal.
func matchPatternFor(hostKey string) string {
	if len(hostKey) > 0 && hostKey[0] == '.' {
		return "%" + hostKey
	}
	return hostKey
}
