//go:build linux

package cookiebroom

import (
	"os"
	"path/filepath"
)

func firefoxRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".mozilla", "firefox")
}
