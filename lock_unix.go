//go:build unix

package cookiebroom

import (
	"context"
	"os"
	"syscall"
)

// probeExclusive opens path and attempts a non-blocking exclusive flock.
// A refused lock means another process holds the store.
func probeExclusive(path string) (bool, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return false, err
	}
	defer func() { _ = f.Close() }()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		if err == syscall.EWOULDBLOCK {
			return true, nil
		}
		return false, err
	}
	_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	return false, nil
}

func terminateProcess(_ context.Context, pid int) error {
	return syscall.Kill(pid, syscall.SIGTERM)
}
