//go:build darwin

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
	return filepath.Join(home, "Library", "Application Support", "Firefox")
}
