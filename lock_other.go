//go:build !unix && !windows

package cookiebroom

import (
	"context"
	"errors"
)

var errNoLockSupport = errors.New("lock probing unsupported on this platform")

func probeExclusive(string) (bool, error) {
	return false, errNoLockSupport
}

func terminateProcess(context.Context, int) error {
	return errNoLockSupport
}
