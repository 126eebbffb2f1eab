package cookiebroom

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func quietTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func quietExecutor(backupRoot string) *Executor {
	logger := quietTestLogger()
	var backups *BackupManager
	if backupRoot != "" {
		backups = &BackupManager{Root: backupRoot, Logger: logger}
	}
	return &Executor{Backups: backups, Logger: logger}
}

func adsChromeOp(dbPath string) DeleteOperation {
	return DeleteOperation{
		Browser:    "Chrome",
		Profile:    "Default",
		DBPath:     dbPath,
		Executable: "chrome",
		Targets: []DeleteTarget{
			{NormalizedDomain: "ads.net", MatchPattern: "%.ads.net", Count: 2},
			{NormalizedDomain: "ads.net", MatchPattern: "ads.net", Count: 1},
		},
	}
}

func TestExecuteDeletesTargets(t *testing.T) {
	fakeProcesses(t, processInfo{pid: 1, name: "systemd"})
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "Cookies")
	createChromiumStore(t, dbPath, ".ads.net", ".ads.net", "ads.net", ".google.com")

	plan := NewDeletePlan(false)
	plan.AddOperation(adsChromeOp(dbPath))

	ex := quietExecutor(filepath.Join(dir, "backups"))
	report, err := ex.Execute(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Success() {
		t.Fatalf("report = %+v", report)
	}
	if report.TotalDeleted != 3 {
		t.Errorf("TotalDeleted = %d, want 3", report.TotalDeleted)
	}

	res := report.Results[0]
	if res.Deleted != 3 || !res.Success || res.Error != "" {
		t.Errorf("result = %+v", res)
	}
	if got := countStoreRows(t, dbPath, DialectChromium); got != 1 {
		t.Errorf("store rows after delete = %d, want 1", got)
	}

	// The backup holds the pre-delete state.
	want := ex.Backups.BackupPath(dbPath, "Chrome", "Default", plan.Timestamp)
	if res.BackupPath != want {
		t.Errorf("BackupPath = %q, want %q", res.BackupPath, want)
	}
	if got := countStoreRows(t, res.BackupPath, DialectChromium); got != 4 {
		t.Errorf("backup rows = %d, want 4", got)
	}
}

func TestExecutePatternSparesSubstringHosts(t *testing.T) {
	fakeProcesses(t, processInfo{pid: 1, name: "systemd"})
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "Cookies")
	createChromiumStore(t, dbPath, ".ample.com", "ample.com", ".trample.com", "trample.com")

	plan := NewDeletePlan(false)
	plan.AddOperation(DeleteOperation{
		Browser:    "Chrome",
		Profile:    "Default",
		DBPath:     dbPath,
		Executable: "chrome",
		Targets: []DeleteTarget{
			{NormalizedDomain: "ample.com", MatchPattern: "%.ample.com", Count: 1},
			{NormalizedDomain: "ample.com", MatchPattern: "ample.com", Count: 1},
		},
	})

	report, err := quietExecutor(filepath.Join(dir, "backups")).Execute(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Success() || report.TotalDeleted != 2 {
		t.Fatalf("report = %+v", report)
	}
	// trample.com merely contains "ample.com"; the leading dot in the
	// pattern keeps it out of reach.
	if got := countStoreRows(t, dbPath, DialectChromium); got != 2 {
		t.Errorf("store rows = %d, want the 2 trample.com rows untouched", got)
	}
}

func TestExecuteFirefoxDialect(t *testing.T) {
	fakeProcesses(t, processInfo{pid: 1, name: "systemd"})
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "firefox", "cookies.sqlite")
	createFirefoxStore(t, dbPath, ".tracker.io", "tracker.io", "keep.example")

	plan := NewDeletePlan(false)
	plan.AddOperation(DeleteOperation{
		Browser:    "Firefox",
		Profile:    "default-release",
		DBPath:     dbPath,
		Executable: "firefox",
		Targets: []DeleteTarget{
			{NormalizedDomain: "tracker.io", MatchPattern: "%.tracker.io", Count: 1},
			{NormalizedDomain: "tracker.io", MatchPattern: "tracker.io", Count: 1},
		},
	})

	report, err := quietExecutor(filepath.Join(dir, "backups")).Execute(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Success() || report.TotalDeleted != 2 {
		t.Fatalf("report = %+v", report)
	}
	if got := countStoreRows(t, dbPath, DialectFirefox); got != 1 {
		t.Errorf("store rows = %d, want 1", got)
	}
}

func TestExecuteDryRun(t *testing.T) {
	fakeProcesses(t, processInfo{pid: 1, name: "systemd"})
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "Cookies")
	createChromiumStore(t, dbPath, ".ads.net", ".ads.net", "ads.net")

	plan := NewDeletePlan(true)
	op := adsChromeOp(dbPath)
	// Stale planned counts: the dry run must recount from the store.
	op.Targets[0].Count = 99
	op.Targets[1].Count = 99
	plan.AddOperation(op)

	backupRoot := filepath.Join(dir, "backups")
	report, err := quietExecutor(backupRoot).Execute(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Success() {
		t.Fatalf("report = %+v", report)
	}
	if report.TotalDeleted != 0 {
		t.Errorf("dry run TotalDeleted = %d, want 0", report.TotalDeleted)
	}
	if report.TotalWouldDelete != 3 {
		t.Errorf("TotalWouldDelete = %d, want 3", report.TotalWouldDelete)
	}
	if report.Results[0].BackupPath != "" {
		t.Error("dry run must not create a backup")
	}
	if _, err := os.Stat(backupRoot); !os.IsNotExist(err) {
		t.Error("dry run must not touch the backup root")
	}
	if got := countStoreRows(t, dbPath, DialectChromium); got != 3 {
		t.Errorf("store rows = %d, want 3 untouched", got)
	}
}

func TestExecuteProcessGate(t *testing.T) {
	fakeProcesses(t,
		processInfo{pid: 1, name: "systemd"},
		processInfo{pid: 2, name: "Google Chrome"},
	)
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "Cookies")
	createChromiumStore(t, dbPath, ".ads.net")

	for _, dryRun := range []bool{false, true} {
		plan := NewDeletePlan(dryRun)
		plan.AddOperation(adsChromeOp(dbPath))

		report, err := quietExecutor(filepath.Join(dir, "backups")).Execute(context.Background(), plan)
		if report != nil {
			t.Errorf("dryRun=%v: gate failure must not produce a report", dryRun)
		}
		var gateErr *ProcessGateError
		if !errors.As(err, &gateErr) {
			t.Fatalf("dryRun=%v: err = %v, want ProcessGateError", dryRun, err)
		}
		if !reflect.DeepEqual(gateErr.Blocking, []string{"chrome"}) {
			t.Errorf("Blocking = %v, want [chrome]", gateErr.Blocking)
		}
	}
	if got := countStoreRows(t, dbPath, DialectChromium); got != 1 {
		t.Errorf("gated store rows = %d, want 1 untouched", got)
	}
}

func TestExecuteUnrelatedBrowserDoesNotGate(t *testing.T) {
	fakeProcesses(t, processInfo{pid: 2, name: "firefox"})
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "Cookies")
	createChromiumStore(t, dbPath, ".ads.net", ".ads.net", "ads.net")

	plan := NewDeletePlan(false)
	plan.AddOperation(adsChromeOp(dbPath))

	report, err := quietExecutor(filepath.Join(dir, "backups")).Execute(context.Background(), plan)
	if err != nil {
		t.Fatalf("a running browser outside the plan must not gate: %v", err)
	}
	if !report.Success() {
		t.Fatalf("report = %+v", report)
	}
}

func TestExecuteTransactionFailureRestores(t *testing.T) {
	fakeProcesses(t, processInfo{pid: 1, name: "systemd"})
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "Cookies")
	createChromiumStore(t, dbPath, ".ads.net", ".ads.net", "keep.me")

	// Park a write transaction on the store so the executor's BEGIN
	// IMMEDIATE times out.
	holder, err := sql.Open("sqlite", "file:"+filepath.ToSlash(dbPath))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = holder.Close() }()
	ctx := context.Background()
	conn, err := holder.Conn(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = conn.Close() }()
	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		t.Fatal(err)
	}
	defer func() { _, _ = conn.ExecContext(ctx, "ROLLBACK") }()

	ex := quietExecutor(filepath.Join(dir, "backups"))
	ex.BusyTimeout = 100 * time.Millisecond

	plan := NewDeletePlan(false)
	plan.AddOperation(adsChromeOp(dbPath))

	report, err := ex.Execute(ctx, plan)
	if err != nil {
		t.Fatal(err)
	}
	if report.Success() || report.TotalFailed != 1 {
		t.Fatalf("execution must fail while another writer holds the store, report = %+v", report)
	}

	res := report.Results[0]
	if res.Success || res.Deleted != 0 {
		t.Errorf("result = %+v", res)
	}
	if res.Error == "" || !strings.Contains(res.Error, "begin immediate") {
		t.Errorf("Error = %q, want begin immediate failure", res.Error)
	}
	if !res.Restored || res.RestoreError != "" {
		t.Errorf("restore outcome = restored=%v restoreErr=%q", res.Restored, res.RestoreError)
	}
	if res.BackupPath == "" || !fileExists(res.BackupPath) {
		t.Errorf("backup must exist, have %q", res.BackupPath)
	}
	if got := countStoreRows(t, dbPath, DialectChromium); got != 3 {
		t.Errorf("store rows = %d, want 3 after restore", got)
	}
}

func TestExecuteBackupFailureSkipsDelete(t *testing.T) {
	fakeProcesses(t, processInfo{pid: 1, name: "systemd"})
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "Cookies")
	createChromiumStore(t, dbPath, ".ads.net", ".ads.net", "ads.net")

	// A plain file where the backup root should be: every mkdir under it
	// fails, so no backup can be created.
	badRoot := filepath.Join(dir, "backups")
	if err := os.WriteFile(badRoot, []byte("not a dir"), 0o600); err != nil {
		t.Fatal(err)
	}

	plan := NewDeletePlan(false)
	plan.AddOperation(adsChromeOp(dbPath))

	report, err := quietExecutor(badRoot).Execute(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	res := report.Results[0]
	if res.Success || res.Error == "" || res.BackupPath != "" {
		t.Errorf("result = %+v", res)
	}
	if got := countStoreRows(t, dbPath, DialectChromium); got != 3 {
		t.Errorf("store rows = %d, want 3 untouched after backup failure", got)
	}
}

func TestExecuteCanceledBeforeOperations(t *testing.T) {
	fakeProcesses(t, processInfo{pid: 1, name: "systemd"})
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "Cookies")
	createChromiumStore(t, dbPath, ".ads.net")

	plan := NewDeletePlan(false)
	plan.AddOperation(adsChromeOp(dbPath))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := quietExecutor(filepath.Join(dir, "backups")).Execute(ctx, plan)
	if err != nil {
		t.Fatal(err)
	}
	if report.Success() {
		t.Fatal("canceled run must not report success")
	}
	res := report.Results[0]
	if res.Error != "canceled before execution" || res.BackupPath != "" {
		t.Errorf("result = %+v", res)
	}
	if got := countStoreRows(t, dbPath, DialectChromium); got != 1 {
		t.Errorf("store rows = %d, want 1 untouched", got)
	}
}

func TestExecuteEmptyAndNilPlan(t *testing.T) {
	ex := quietExecutor("")

	report, err := ex.Execute(context.Background(), NewDeletePlan(false))
	if err != nil {
		t.Fatal(err)
	}
	if !report.Success() || len(report.Results) != 0 {
		t.Errorf("empty plan report = %+v", report)
	}

	if _, err := ex.Execute(context.Background(), nil); err == nil {
		t.Error("nil plan must be refused")
	}
}

func TestExecuteLiveRunNeedsBackupManager(t *testing.T) {
	fakeProcesses(t, processInfo{pid: 1, name: "systemd"})
	dbPath := filepath.Join(t.TempDir(), "Cookies")
	createChromiumStore(t, dbPath, ".ads.net")

	plan := NewDeletePlan(false)
	plan.AddOperation(adsChromeOp(dbPath))

	if _, err := quietExecutor("").Execute(context.Background(), plan); err == nil {
		t.Fatal("live deletion without a backup manager must be refused")
	}
	if got := countStoreRows(t, dbPath, DialectChromium); got != 1 {
		t.Errorf("store rows = %d, want 1 untouched", got)
	}
}
