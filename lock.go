package cookiebroom

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// terminateWait bounds how long Terminate polls for a process to exit when
// the caller's context carries no deadline.
const terminateWait = 10 * time.Second

type processInfo struct {
	pid  int
	name string
}

// listProcesses is swapped out in tests.
var listProcesses = listSystemProcesses

// executableAliases maps normalized process names to the canonical
// executable names used throughout plans and reports. Lookup happens after
// lowercasing and stripping a trailing ".exe".
var executableAliases = map[string]string{
	"chrome":               "chrome",
	"google chrome":        "chrome",
	"google-chrome":        "chrome",
	"google-chrome-stable": "chrome",
	"chromium":             "chromium",
	"chromium-browser":     "chromium",
	"chromium-browse":      "chromium", // /proc comm truncates at 15 bytes
	"msedge":               "msedge",
	"microsoft edge":       "msedge",
	"microsoft-edge":       "msedge",
	"brave":                "brave",
	"brave browser":        "brave",
	"brave-browser":        "brave",
	"opera":                "opera",
	"vivaldi":              "vivaldi",
	"vivaldi-bin":          "vivaldi",
	"firefox":              "firefox",
	"firefox-bin":          "firefox",
	"firefox-esr":          "firefox",
}

// pathExecutables maps store path fragments to canonical executables.
// Ordered: more specific fragments first.
var pathExecutables = []struct {
	fragment string
	exe      string
}{
	{"google/chrome", "chrome"},
	{"google-chrome", "chrome"},
	{"chromium", "chromium"},
	{"microsoft/edge", "msedge"},
	{"microsoft edge", "msedge"},
	{"microsoft-edge", "msedge"},
	{"bravesoftware", "brave"},
	{"brave-browser", "brave"},
	{"operasoftware", "opera"},
	{"opera", "opera"},
	{"vivaldi", "vivaldi"},
	{"mozilla", "firefox"},
	{"firefox", "firefox"},
}

// ExecutableForPath guesses which browser owns a cookie store from its
// path. Returns "" when no known fragment matches.
func ExecutableForPath(path string) string {
	p := strings.ToLower(filepath.ToSlash(path))
	for _, entry := range pathExecutables {
		if strings.Contains(p, entry.fragment) {
			return entry.exe
		}
	}
	return ""
}

func canonicalExecutable(processName string) (string, bool) {
	n := strings.ToLower(strings.TrimSpace(processName))
	n = strings.TrimSuffix(n, ".exe")
	exe, ok := executableAliases[n]
	return exe, ok
}

// LockReport is the outcome of probing one store file for an exclusive
// lock held by another process.
type LockReport struct {
	Path     string
	Locked   bool
	Blocking []string
	Detail   string
}

// LockResolver answers whether cookie stores are held open by running
// browsers, and by which ones. The zero value is ready to use.
type LockResolver struct{}

// CheckLock probes path with a non-blocking exclusive open. A missing
// file, permission trouble, or any other probe failure reads as not
// locked; only a refused lock signals contention.
func (r *LockResolver) CheckLock(ctx context.Context, path string) LockReport {
	rep := LockReport{Path: path}

	locked, err := probeExclusive(path)
	if err != nil {
		rep.Detail = err.Error()
		return rep
	}
	if !locked {
		return rep
	}

	rep.Locked = true
	rep.Blocking = r.blockingFor(ctx, path)
	return rep
}

// CheckAll probes every path and reports each.
func (r *LockResolver) CheckAll(ctx context.Context, paths []string) []LockReport {
	out := make([]LockReport, len(paths))
	for i, p := range paths {
		out[i] = r.CheckLock(ctx, p)
	}
	return out
}

// blockingFor names the likely lock holders: the path's own browser when
// it is running, otherwise every running browser.
func (r *LockResolver) blockingFor(ctx context.Context, path string) []string {
	running := r.RunningBrowsers(ctx)
	exe := ExecutableForPath(path)
	if exe == "" {
		return running
	}
	for _, e := range running {
		if e == exe {
			return []string{exe}
		}
	}
	return running
}

// RunningBrowsers returns the sorted canonical names of browsers with at
// least one live process. Enumeration failure reads as nothing running.
func (r *LockResolver) RunningBrowsers(ctx context.Context) []string {
	procs, err := listProcesses(ctx)
	if err != nil {
		return nil
	}
	seen := make(map[string]struct{})
	for _, p := range procs {
		if exe, ok := canonicalExecutable(p.name); ok {
			seen[exe] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for exe := range seen {
		out = append(out, exe)
	}
	sort.Strings(out)
	return out
}

// PreflightCheck maps each running browser to the planned store paths it
// may block. Paths with no recognizable owner count against every running
// browser.
func (r *LockResolver) PreflightCheck(ctx context.Context, paths []string) map[string][]string {
	running := r.RunningBrowsers(ctx)
	if len(running) == 0 {
		return nil
	}
	isRunning := make(map[string]bool, len(running))
	for _, exe := range running {
		isRunning[exe] = true
	}

	out := make(map[string][]string)
	for _, path := range paths {
		exe := ExecutableForPath(path)
		switch {
		case exe == "":
			for _, e := range running {
				out[e] = append(out[e], path)
			}
		case isRunning[exe]:
			out[exe] = append(out[exe], path)
		}
	}
	return out
}

// ProcessIDs returns the pids whose process name resolves to exe.
func (r *LockResolver) ProcessIDs(ctx context.Context, exe string) []int {
	procs, err := listProcesses(ctx)
	if err != nil {
		return nil
	}
	var out []int
	for _, p := range procs {
		if got, ok := canonicalExecutable(p.name); ok && got == exe {
			out = append(out, p.pid)
		}
	}
	return out
}

// Terminate requests a graceful exit from every process of exe and polls
// until they are gone or the deadline passes. It never force-kills; a
// browser that stays up is simply still blocking.
func (r *LockResolver) Terminate(ctx context.Context, exe string) bool {
	pids := r.ProcessIDs(ctx, exe)
	if len(pids) == 0 {
		return true
	}
	for _, pid := range pids {
		_ = terminateProcess(ctx, pid)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, terminateWait)
		defer cancel()
	}
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if len(r.ProcessIDs(ctx, exe)) == 0 {
				return true
			}
		}
	}
}
