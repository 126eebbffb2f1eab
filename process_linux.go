//go:build linux

package cookiebroom

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// listSystemProcesses walks /proc. comm truncates names at 15 bytes, so a
// maybe-truncated name falls back to the cmdline argv[0] base name.
func listSystemProcesses(_ context.Context) ([]processInfo, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, err
	}
	procs := make([]processInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		comm, err := os.ReadFile(filepath.Join("/proc", entry.Name(), "comm"))
		if err != nil {
			continue
		}
		name := strings.TrimSpace(string(comm))
		if len(name) == 15 {
			if base := cmdlineBase(entry.Name()); base != "" {
				name = base
			}
		}
		procs = append(procs, processInfo{pid: pid, name: name})
	}
	return procs, nil
}

func cmdlineBase(pidDir string) string {
	raw, err := os.ReadFile(filepath.Join("/proc", pidDir, "cmdline"))
	if err != nil || len(raw) == 0 {
		return ""
	}
	argv0, _, _ := strings.Cut(string(raw), "\x00")
	if argv0 == "" {
		return ""
	}
	return filepath.Base(argv0)
}
