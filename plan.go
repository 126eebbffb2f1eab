package cookiebroom

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
)

// DeleteTarget is one host-key group within an operation.
//
// MatchPattern is derived from the raw host key as stored: a leading-dot
// key yields a "%"-prefixed wildcard pattern covering the domain and all
// subdomains, a dot-less key yields the literal host. The two forms must
// never collapse into a generic substring pattern.
type DeleteTarget struct {
	NormalizedDomain string `json:"normalized_domain"`
	MatchPattern     string `json:"match_pattern"`
	Count            int    `json:"count"`
}

// DeleteOperation covers one (browser, profile, database file) triple.
type DeleteOperation struct {
	Browser    string         `json:"browser"`
	Profile    string         `json:"profile"`
	DBPath     string         `json:"db_path"`
	BackupPath string         `json:"backup_path"`
	Executable string         `json:"browser_executable"`
	Targets    []DeleteTarget `json:"targets"`
}

// targetTotal sums the expected delete counts of all targets.
func (op *DeleteOperation) targetTotal() int {
	n := 0
	for _, t := range op.Targets {
		n += t.Count
	}
	return n
}

// DeletePlan is one user-initiated clean action. Plans are single-use: a
// failed or retried attempt gets a fresh plan, never a re-run of an old one.
type DeletePlan struct {
	PlanID     string
	Timestamp  time.Time
	DryRun     bool
	Operations []DeleteOperation

	TotalCookiesToDelete int
	AffectedProfiles     int
}

// NewDeletePlan returns an empty plan with a generated ID and the current
// UTC time.
func NewDeletePlan(dryRun bool) *DeletePlan {
	return &DeletePlan{
		PlanID:    uuid.NewString(),
		Timestamp: time.Now().UTC(),
		DryRun:    dryRun,
	}
}

// AddOperation appends op and updates the running totals. It is the only
// mutation a plan sees after construction.
func (p *DeletePlan) AddOperation(op DeleteOperation) {
	p.Operations = append(p.Operations, op)
	p.TotalCookiesToDelete += op.targetTotal()
	p.AffectedProfiles = len(p.Operations)
}

// Executables returns the sorted set of browser executables referenced by
// the plan's operations.
func (p *DeletePlan) Executables() []string {
	seen := make(map[string]struct{}, len(p.Operations))
	for _, op := range p.Operations {
		if op.Executable != "" {
			seen[op.Executable] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for exe := range seen {
		out = append(out, exe)
	}
	sort.Strings(out)
	return out
}

// Paths returns the database paths of all operations, in plan order.
func (p *DeletePlan) Paths() []string {
	out := make([]string, len(p.Operations))
	for i, op := range p.Operations {
		out[i] = op.DBPath
	}
	return out
}

type planSummary struct {
	TotalCookiesToDelete int `json:"total_cookies_to_delete"`
	AffectedProfiles     int `json:"affected_profiles"`
}

type planJSON struct {
	PlanID     string            `json:"plan_id"`
	Timestamp  time.Time         `json:"timestamp"`
	DryRun     bool              `json:"dry_run"`
	Operations []DeleteOperation `json:"operations"`
	Summary    planSummary       `json:"summary"`
}

// MarshalJSON emits the audit/export shape with the totals nested under
// "summary".
func (p *DeletePlan) MarshalJSON() ([]byte, error) {
	ops := p.Operations
	if ops == nil {
		ops = []DeleteOperation{}
	}
	return json.Marshal(planJSON{
		PlanID:     p.PlanID,
		Timestamp:  p.Timestamp,
		DryRun:     p.DryRun,
		Operations: ops,
		Summary: planSummary{
			TotalCookiesToDelete: p.TotalCookiesToDelete,
			AffectedProfiles:     p.AffectedProfiles,
		},
	})
}

// UnmarshalJSON accepts the shape produced by MarshalJSON.
func (p *DeletePlan) UnmarshalJSON(data []byte) error {
	var raw planJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.PlanID = raw.PlanID
	p.Timestamp = raw.Timestamp
	p.DryRun = raw.DryRun
	p.Operations = raw.Operations
	p.TotalCookiesToDelete = raw.Summary.TotalCookiesToDelete
	p.AffectedProfiles = raw.Summary.AffectedProfiles
	return nil
}
