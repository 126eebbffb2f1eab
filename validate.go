package cookiebroom

import (
	"context"
	"fmt"
)

// Validation issue codes.
const (
	CodeEmptyPlan        = "EMPTY_PLAN"
	CodeDBNotFound       = "DB_NOT_FOUND"
	CodeNoTargets        = "NO_TARGETS"
	CodeInvalidCount     = "INVALID_COUNT"
	CodeWhitelistOverlap = "WHITELIST_OVERLAP"
	CodeStaleCount       = "STALE_COUNT"
	CodeRecountFailed    = "RECOUNT_FAILED"
)

// ValidationIssue is one finding from plan validation. Op and Target are
// indexes into the plan, -1 when the issue is not tied to one.
type ValidationIssue struct {
	Code    string
	Message string
	Op      int
	Target  int
}

// ValidationResult aggregates findings. Errors block execution; warnings
// are informational.
type ValidationResult struct {
	Errors   []ValidationIssue
	Warnings []ValidationIssue
}

// Valid reports whether the plan may be executed.
func (r *ValidationResult) Valid() bool { return len(r.Errors) == 0 }

func (r *ValidationResult) addError(code, msg string, op, target int) {
	r.Errors = append(r.Errors, ValidationIssue{Code: code, Message: msg, Op: op, Target: target})
}

func (r *ValidationResult) addWarning(code, msg string, op, target int) {
	r.Warnings = append(r.Warnings, ValidationIssue{Code: code, Message: msg, Op: op, Target: target})
}

// ValidateOptions controls the optional live checks.
type ValidateOptions struct {
	// RecountStores re-counts every target against a disposable snapshot
	// copy of its store (never the live file) and flags drift between
	// planned and actual counts. Protects against executing a stale plan.
	RecountStores bool
}

// Validator runs static and optional live checks over a built plan before
// it may reach the executor.
type Validator struct {
	// Whitelist is re-checked per target; a hit here means an earlier
	// filter failed and the plan must not run.
	Whitelist *Whitelist
}

// Validate checks plan. An empty plan is valid with a warning; there is
// nothing to protect against. A missing store file fails its operation and
// skips that operation's target checks.
func (v *Validator) Validate(ctx context.Context, plan *DeletePlan, opts ValidateOptions) ValidationResult {
	var res ValidationResult

	if len(plan.Operations) == 0 {
		res.addWarning(CodeEmptyPlan, "plan has no operations to execute", -1, -1)
		return res
	}

	for i := range plan.Operations {
		op := &plan.Operations[i]

		if !fileExists(op.DBPath) {
			res.addError(CodeDBNotFound, fmt.Sprintf("database not found: %s", op.DBPath), i, -1)
			continue
		}
		if len(op.Targets) == 0 {
			res.addWarning(CodeNoTargets, fmt.Sprintf("operation %s/%s has no targets", op.Browser, op.Profile), i, -1)
			continue
		}

		for j, target := range op.Targets {
			if target.Count <= 0 {
				res.addError(CodeInvalidCount,
					fmt.Sprintf("target %s: count must be positive, have %d", target.NormalizedDomain, target.Count), i, j)
			}
			if v.Whitelist != nil && v.Whitelist.Matches(target.NormalizedDomain) {
				res.addError(CodeWhitelistOverlap,
					fmt.Sprintf("target %s is whitelisted and must not be deleted", target.NormalizedDomain), i, j)
			}
		}

		if opts.RecountStores {
			v.recount(ctx, op, i, &res)
		}
	}
	return res
}

func (v *Validator) recount(ctx context.Context, op *DeleteOperation, i int, res *ValidationResult) {
	db, closeSnap, err := openSnapshotReadOnly(ctx, op.DBPath)
	if err != nil {
		res.addWarning(CodeRecountFailed, fmt.Sprintf("cannot recount %s: %v", op.DBPath, err), i, -1)
		return
	}
	defer closeSnap()

	dialect := DetectDialect(ctx, op.DBPath)
	for j, target := range op.Targets {
		n, err := countMatches(ctx, db, dialect, target.MatchPattern)
		if err != nil {
			res.addWarning(CodeRecountFailed,
				fmt.Sprintf("cannot recount %s in %s: %v", target.NormalizedDomain, op.DBPath, err), i, j)
			continue
		}
		if n != target.Count {
			res.addError(CodeStaleCount,
				fmt.Sprintf("target %s: plan expects %d rows, store has %d", target.NormalizedDomain, target.Count, n), i, j)
		}
	}
}
