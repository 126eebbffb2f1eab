package cookiebroom

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ProcessGateError aborts a whole plan before any operation runs: at least
// one browser referenced by the plan still has a live process. A partial
// clean behind a running browser's back is never acceptable.
type ProcessGateError struct {
	Blocking []string
}

func (e *ProcessGateError) Error() string {
	return "browsers still running: " + strings.Join(e.Blocking, ", ")
}

// DeleteResult is the outcome of one plan operation.
type DeleteResult struct {
	Browser      string `json:"browser"`
	Profile      string `json:"profile"`
	DBPath       string `json:"db_path"`
	Deleted      int    `json:"deleted"`
	WouldDelete  int    `json:"would_delete,omitempty"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
	BackupPath   string `json:"backup_path,omitempty"`
	Restored     bool   `json:"restored,omitempty"`
	RestoreError string `json:"restore_error,omitempty"`
}

// DeleteReport aggregates the per-operation results of one executed plan.
type DeleteReport struct {
	PlanID           string         `json:"plan_id"`
	DryRun           bool           `json:"dry_run"`
	Results          []DeleteResult `json:"results"`
	TotalDeleted     int            `json:"total_deleted"`
	TotalWouldDelete int            `json:"total_would_delete,omitempty"`
	TotalFailed      int            `json:"total_failed"`
}

// Success reports whether every operation succeeded.
func (r *DeleteReport) Success() bool { return r.TotalFailed == 0 }

// Executor runs delete plans under a fixed protocol: process gate for the
// whole plan, then per operation a lock check, a backup (skipped in dry
// run), and an immediate-mode transaction. A failed transaction rolls back
// and restores from the backup just taken.
type Executor struct {
	Locks   *LockResolver
	Backups *BackupManager

	// BusyTimeout bounds how long the write transaction waits on an
	// external lock before failing. Zero means 5s.
	BusyTimeout time.Duration

	Logger *slog.Logger
}

func (e *Executor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *Executor) locks() *LockResolver {
	if e.Locks != nil {
		return e.Locks
	}
	return &LockResolver{}
}

func (e *Executor) busyTimeout() time.Duration {
	if e.BusyTimeout > 0 {
		return e.BusyTimeout
	}
	return 5 * time.Second
}

// Execute runs plan and reports per-operation outcomes. A non-empty
// intersection of running browsers and the plan's executables returns a
// *ProcessGateError with no store touched. After the gate, failures are
// per-operation and land in the report, never in the returned error.
// Cancellation is honored between operations only; remaining operations
// are reported as failed without being attempted.
func (e *Executor) Execute(ctx context.Context, plan *DeletePlan) (*DeleteReport, error) {
	if plan == nil {
		return nil, errors.New("nil plan")
	}
	report := &DeleteReport{PlanID: plan.PlanID, DryRun: plan.DryRun}
	if len(plan.Operations) == 0 {
		return report, nil
	}

	if gateErr := e.gate(ctx, plan); gateErr != nil {
		e.logger().Warn("execution blocked by running browsers", "browsers", gateErr.Blocking)
		return nil, gateErr
	}
	if !plan.DryRun && e.Backups == nil {
		return nil, errors.New("backup manager required for live deletion")
	}

	for i := range plan.Operations {
		op := &plan.Operations[i]
		if ctx.Err() != nil {
			report.Results = append(report.Results, DeleteResult{
				Browser: op.Browser,
				Profile: op.Profile,
				DBPath:  op.DBPath,
				Error:   "canceled before execution",
			})
			report.TotalFailed++
			continue
		}
		res := e.executeOperation(ctx, op, plan.DryRun, plan.Timestamp)
		report.Results = append(report.Results, res)
		report.TotalDeleted += res.Deleted
		report.TotalWouldDelete += res.WouldDelete
		if !res.Success {
			report.TotalFailed++
		}
	}
	return report, nil
}

// gate intersects the plan's executables with running browsers.
func (e *Executor) gate(ctx context.Context, plan *DeletePlan) *ProcessGateError {
	planned := plan.Executables()
	if len(planned) == 0 {
		return nil
	}
	running := e.locks().RunningBrowsers(ctx)
	isRunning := make(map[string]bool, len(running))
	for _, exe := range running {
		isRunning[exe] = true
	}
	var blocking []string
	for _, exe := range planned {
		if isRunning[exe] {
			blocking = append(blocking, exe)
		}
	}
	if len(blocking) > 0 {
		return &ProcessGateError{Blocking: blocking}
	}
	return nil
}

func (e *Executor) executeOperation(ctx context.Context, op *DeleteOperation, dryRun bool, stamp time.Time) DeleteResult {
	res := DeleteResult{Browser: op.Browser, Profile: op.Profile, DBPath: op.DBPath}

	lock := e.locks().CheckLock(ctx, op.DBPath)
	if lock.Locked {
		msg := "store locked"
		if len(lock.Blocking) > 0 {
			msg += " by: " + strings.Join(lock.Blocking, ", ")
		}
		res.Error = msg
		e.logger().Warn("store locked", "db", op.DBPath, "blocking", lock.Blocking)
		return res
	}

	dialect := DetectDialect(ctx, op.DBPath)

	if dryRun {
		res.WouldDelete = e.dryRunCount(ctx, op, dialect)
		res.Success = true
		e.logger().Info("dry run counted", "browser", op.Browser, "profile", op.Profile, "would_delete", res.WouldDelete)
		return res
	}

	backupPath, err := e.Backups.CreateBackup(op.DBPath, op.Browser, op.Profile, stamp)
	if err != nil {
		res.Error = err.Error()
		e.logger().Warn("backup failed, store untouched", "db", op.DBPath, "err", err)
		return res
	}
	res.BackupPath = backupPath

	deleted, err := e.transact(ctx, op, dialect)
	if err != nil {
		res.Error = err.Error()
		if restoreErr := e.Backups.RestoreBackup(backupPath, op.DBPath); restoreErr != nil {
			res.RestoreError = restoreErr.Error()
			e.logger().Error("restore failed after rollback", "db", op.DBPath, "err", restoreErr)
		} else {
			res.Restored = true
			e.logger().Warn("transaction failed, store restored", "db", op.DBPath, "err", err)
		}
		return res
	}

	res.Deleted = deleted
	res.Success = true
	e.logger().Info("operation complete", "browser", op.Browser, "profile", op.Profile, "deleted", deleted)
	return res
}

// dryRunCount counts would-be deletions against a disposable snapshot. If
// the snapshot cannot be taken or a count fails, the planned counts stand
// in.
func (e *Executor) dryRunCount(ctx context.Context, op *DeleteOperation, d Dialect) int {
	db, closeSnap, err := openSnapshotReadOnly(ctx, op.DBPath)
	if err != nil {
		e.logger().Warn("dry-run snapshot unavailable, using planned counts", "db", op.DBPath, "err", err)
		return op.targetTotal()
	}
	defer closeSnap()

	total := 0
	for _, target := range op.Targets {
		n, err := countMatches(ctx, db, d, target.MatchPattern)
		if err != nil {
			total += target.Count
			continue
		}
		total += n
	}
	return total
}

// transact deletes all targets of one operation in a single immediate
// transaction on the live file. Any failure rolls the store back. The
// connection is fully closed by the time transact returns, so a caller
// may restore over the file immediately.
func (e *Executor) transact(ctx context.Context, op *DeleteOperation, d Dialect) (int, error) {
	// No cancellation once the transaction starts; it runs to commit or
	// rollback.
	txCtx := context.WithoutCancel(ctx)

	db, err := openReadWrite(op.DBPath, e.busyTimeout())
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", op.DBPath, err)
	}
	defer func() { _ = db.Close() }()

	conn, err := db.Conn(txCtx)
	if err != nil {
		return 0, fmt.Errorf("connect %s: %w", op.DBPath, err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.ExecContext(txCtx, "BEGIN IMMEDIATE"); err != nil {
		return 0, fmt.Errorf("begin immediate: %w", err)
	}

	deleted := 0
	stmt := deleteStatement(d)
	for _, target := range op.Targets {
		execRes, err := conn.ExecContext(txCtx, stmt, target.MatchPattern)
		if err != nil {
			_, _ = conn.ExecContext(txCtx, "ROLLBACK")
			return 0, fmt.Errorf("delete %s: %w", target.NormalizedDomain, err)
		}
		n, err := execRes.RowsAffected()
		if err != nil {
			_, _ = conn.ExecContext(txCtx, "ROLLBACK")
			return 0, fmt.Errorf("rows affected for %s: %w", target.NormalizedDomain, err)
		}
		deleted += int(n)
	}

	if _, err := conn.ExecContext(txCtx, "COMMIT"); err != nil {
		_, _ = conn.ExecContext(txCtx, "ROLLBACK")
		return 0, fmt.Errorf("commit: %w", err)
	}
	return deleted, nil
}
