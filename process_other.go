//go:build !linux && !darwin && !windows

package cookiebroom

import (
	"context"
	"errors"
)

func listSystemProcesses(context.Context) ([]processInfo, error) {
	return nil, errors.New("process enumeration unsupported on this platform")
}
