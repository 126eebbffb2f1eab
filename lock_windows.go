//go:build windows

package cookiebroom

import (
	"context"
	"errors"
	"strconv"

	"golang.org/x/sys/windows"
)

// probeExclusive opens path with a zero share mode. A sharing violation
// means another process has the store open.
func probeExclusive(path string) (bool, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return false, err
	}
	h, err := windows.CreateFile(p,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		0, nil, windows.OPEN_EXISTING, windows.FILE_ATTRIBUTE_NORMAL, 0)
	if err != nil {
		if errors.Is(err, windows.ERROR_SHARING_VIOLATION) {
			return true, nil
		}
		return false, err
	}
	_ = windows.CloseHandle(h)
	return false, nil
}

// taskkill without /F requests a graceful exit.
func terminateProcess(ctx context.Context, pid int) error {
	_, err := execCapture(ctx, "taskkill", "/PID", strconv.Itoa(pid))
	return err
}
