package cookiebroom

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrNegativeRetention is returned by CleanupOldBackups for a retention
// below zero.
var ErrNegativeRetention = errors.New("cookiebroom: backup retention must be zero or more days")

const backupStampLayout = "20060102_150405"

var backupSideSuffixes = [...]string{"-wal", "-shm"}

// backupPathFor computes the deterministic destination for a store backup:
// {root}/{browser}/{profile}/{filename}.{stamp}.bak. The planner and the
// backup manager share it, so a plan's recorded destination is exactly
// where the backup lands.
func backupPathFor(root, src, browser, profile string, stamp time.Time) string {
	name := filepath.Base(src) + "." + stamp.UTC().Format(backupStampLayout) + ".bak"
	return filepath.Join(root, pathComponent(browser), pathComponent(profile), name)
}

// pathComponent makes a browser or profile name safe as a directory name.
// Spaces stay; only separators are replaced.
func pathComponent(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.NewReplacer("/", "_", `\`, "_").Replace(s)
}

// BackupMetadata is the sidecar written next to every backup. Timestamp is
// the stamp string embedded in the file name; CreatedAt is the wall-clock
// write time.
type BackupMetadata struct {
	OriginalDBPath string    `json:"original_db_path"`
	Browser        string    `json:"browser"`
	Profile        string    `json:"profile"`
	Timestamp      string    `json:"timestamp"`
	CreatedAt      time.Time `json:"created_at"`
}

// BackupManager copies cookie stores aside before deletion and restores
// them when a transaction goes wrong.
type BackupManager struct {
	Root   string
	Logger *slog.Logger
}

func (m *BackupManager) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

// BackupPath reports where CreateBackup would place the backup.
func (m *BackupManager) BackupPath(src, browser, profile string, stamp time.Time) string {
	return backupPathFor(m.Root, src, browser, profile, stamp)
}

// CreateBackup copies src and any live -wal/-shm sidecars under the backup
// root and writes the metadata sidecar. It returns the backup path.
func (m *BackupManager) CreateBackup(src, browser, profile string, stamp time.Time) (string, error) {
	if !fileExists(src) {
		return "", fmt.Errorf("backup source missing: %s", src)
	}
	dst := backupPathFor(m.Root, src, browser, profile, stamp)
	if err := copyFile(src, dst); err != nil {
		return "", fmt.Errorf("backup %s: %w", src, err)
	}
	for _, suffix := range backupSideSuffixes {
		if err := copyFileIfExists(src+suffix, dst+suffix); err != nil {
			return "", fmt.Errorf("backup %s%s: %w", src, suffix, err)
		}
	}

	meta := BackupMetadata{
		OriginalDBPath: src,
		Browser:        browser,
		Profile:        profile,
		Timestamp:      stamp.UTC().Format(backupStampLayout),
		CreatedAt:      time.Now().UTC(),
	}
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(dst+".meta", raw, 0o600); err != nil {
		return "", fmt.Errorf("backup metadata: %w", err)
	}

	m.logger().Info("backup created", "src", src, "backup", dst)
	return dst, nil
}

// RestoreBackup copies a backup over dst. Side files present in the backup
// come back with it; stale -wal/-shm files at dst that were not part of
// the backup are removed, since they would no longer match the main file.
func (m *BackupManager) RestoreBackup(backupPath, dst string) error {
	if !fileExists(backupPath) {
		return fmt.Errorf("backup missing: %s", backupPath)
	}
	if err := copyFile(backupPath, dst); err != nil {
		return fmt.Errorf("restore %s: %w", dst, err)
	}
	for _, suffix := range backupSideSuffixes {
		if fileExists(backupPath + suffix) {
			if err := copyFile(backupPath+suffix, dst+suffix); err != nil {
				return fmt.Errorf("restore %s%s: %w", dst, suffix, err)
			}
			continue
		}
		if err := removeIfExists(dst + suffix); err != nil {
			return fmt.Errorf("remove stale %s%s: %w", dst, suffix, err)
		}
	}
	m.logger().Info("backup restored", "backup", backupPath, "dst", dst)
	return nil
}

// Metadata reads the sidecar for a backup.
func (m *BackupManager) Metadata(backupPath string) (BackupMetadata, error) {
	var meta BackupMetadata
	raw, err := os.ReadFile(backupPath + ".meta")
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return meta, fmt.Errorf("backup metadata %s: %w", backupPath+".meta", err)
	}
	return meta, nil
}

// OriginalPath reports which live store a backup belongs to.
func (m *BackupManager) OriginalPath(backupPath string) (string, error) {
	meta, err := m.Metadata(backupPath)
	if err != nil {
		return "", err
	}
	if meta.OriginalDBPath == "" {
		return "", fmt.Errorf("backup metadata %s: no original path", backupPath+".meta")
	}
	return meta.OriginalDBPath, nil
}

// ListBackups returns backup files newest first. Empty browser or profile
// widens the search to every directory at that level.
func (m *BackupManager) ListBackups(browser, profile string) ([]string, error) {
	b, p := "*", "*"
	if browser != "" {
		b = pathComponent(browser)
	}
	if profile != "" {
		p = pathComponent(profile)
	}
	paths, err := filepath.Glob(filepath.Join(m.Root, b, p, "*.bak"))
	if err != nil {
		return nil, err
	}
	sort.Slice(paths, func(i, j int) bool {
		si, sj := stampOf(paths[i]), stampOf(paths[j])
		if si != sj {
			return si > sj
		}
		return paths[i] < paths[j]
	})
	return paths, nil
}

// LatestBackup returns the newest backup for the browser/profile filter,
// if any exists.
func (m *BackupManager) LatestBackup(browser, profile string) (string, bool) {
	paths, err := m.ListBackups(browser, profile)
	if err != nil || len(paths) == 0 {
		return "", false
	}
	return paths[0], true
}

// stampOf extracts the timestamp token from a backup file name. Stamps
// sort lexicographically in chronological order.
func stampOf(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), ".bak")
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}

// CleanupOldBackups removes backup files older than retentionDays by
// modification time, then prunes directories left empty. It returns how
// many files were removed. Negative retention is refused; zero means
// everything goes.
func (m *BackupManager) CleanupOldBackups(retentionDays int) (int, error) {
	if retentionDays < 0 {
		return 0, fmt.Errorf("%w, have %d", ErrNegativeRetention, retentionDays)
	}
	if _, err := os.Stat(m.Root); err != nil {
		return 0, nil
	}
	cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour)

	removed := 0
	var dirs []string
	err := filepath.WalkDir(m.Root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != m.Root {
				dirs = append(dirs, path)
			}
			return nil
		}
		if !strings.Contains(d.Name(), ".bak") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err == nil {
				removed++
			}
		}
		return nil
	})
	if err != nil {
		return removed, err
	}

	// Deepest first, so an emptied profile dir can take its browser dir
	// with it. Remove refuses non-empty directories.
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, dir := range dirs {
		_ = os.Remove(dir)
	}

	if removed > 0 {
		m.logger().Info("old backups removed", "count", removed, "retention_days", retentionDays)
	}
	return removed, nil
}
