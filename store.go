package cookiebroom

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go).
)

// openSnapshotReadOnly copies the store plus its -wal/-shm sidecars into a
// fresh temp dir and opens the copy read-only. Counting against a snapshot
// never touches the live file. The returned func closes the handle and
// removes the copy.
func openSnapshotReadOnly(ctx context.Context, path string) (*sql.DB, func(), error) {
	dir, err := os.MkdirTemp("", "cookiebroom-")
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	target := filepath.Join(dir, filepath.Base(path))
	if err := copyFile(path, target); err != nil {
		cleanup()
		return nil, nil, err
	}
	// Recent writes may live in the sidecars when WAL mode is on.
	_ = copyFileIfExists(path+"-wal", target+"-wal")
	_ = copyFileIfExists(path+"-shm", target+"-shm")

	db, err := openReadOnly(target)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		cleanup()
		return nil, nil, err
	}
	return db, func() { _ = db.Close(); cleanup() }, nil
}

func openReadOnly(path string) (*sql.DB, error) {
	return sql.Open("sqlite", "file:"+filepath.ToSlash(path)+"?mode=ro")
}

// openReadWrite opens the live store for mutation. The busy timeout bounds
// how long a held external write lock can stall us before it surfaces as a
// reported failure.
func openReadWrite(path string, busyTimeout time.Duration) (*sql.DB, error) {
	ms := busyTimeout.Milliseconds()
	if ms <= 0 {
		ms = 5000
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", filepath.ToSlash(path), ms)
	return sql.Open("sqlite", dsn)
}

func countMatches(ctx context.Context, db *sql.DB, d Dialect, pattern string) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s LIKE ?", d.Table(), d.HostColumn())
	var n int
	if err := db.QueryRowContext(ctx, query, pattern).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func deleteStatement(d Dialect) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s LIKE ?", d.Table(), d.HostColumn())
}
