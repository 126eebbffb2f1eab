//go:build darwin

package cookiebroom

import (
	"bufio"
	"context"
	"path/filepath"
	"strconv"
	"strings"
)

func listSystemProcesses(ctx context.Context) ([]processInfo, error) {
	stdout, err := execCapture(ctx, "ps", "-axo", "pid=,comm=")
	if err != nil {
		return nil, err
	}
	var procs []processInfo
	sc := bufio.NewScanner(strings.NewReader(stdout))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		pidField, comm, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		pid, err := strconv.Atoi(pidField)
		if err != nil {
			continue
		}
		// comm is the executable path and may itself contain spaces.
		procs = append(procs, processInfo{pid: pid, name: filepath.Base(strings.TrimSpace(comm))})
	}
	return procs, sc.Err()
}
