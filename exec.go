package cookiebroom

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

var execCommandContext = exec.CommandContext

// execCapture runs an OS helper (security, secret-tool, ps, taskkill) and
// returns its stdout. On failure the first stderr line is folded into the
// error; for these tools it is usually the only part worth reporting.
func execCapture(ctx context.Context, name string, args ...string) (string, error) {
	cmd := execCommandContext(ctx, name, args...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	if err := cmd.Run(); err != nil {
		if line := firstLine(errBuf.String()); line != "" {
			return outBuf.String(), fmt.Errorf("%s: %w: %s", name, err, line)
		}
		return outBuf.String(), fmt.Errorf("%s: %w", name, err)
	}
	return outBuf.String(), nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
