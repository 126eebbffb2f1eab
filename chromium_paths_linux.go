//go:build linux

package cookiebroom

import (
	"os"
	"path/filepath"
)

// chromiumUserDataDirCandidates lists possible user-data roots for the
// vendor's stable channel, most common install layout first.
func chromiumUserDataDirCandidates(v chromiumVendor) []string {
	base := xdgConfigHome()
	if base == "" {
		return nil
	}

	switch v.executable {
	case "chrome":
		return []string{filepath.Join(base, "google-chrome")}
	case "chromium":
		return []string{filepath.Join(base, "chromium")}
	case "msedge":
		return []string{filepath.Join(base, "microsoft-edge")}
	case "brave":
		return []string{
			filepath.Join(base, "BraveSoftware", "Brave-Browser"),
			filepath.Join(base, "brave-browser"),
		}
	case "opera":
		return []string{filepath.Join(base, "opera")}
	case "vivaldi":
		return []string{filepath.Join(base, "vivaldi")}
	default:
		return nil
	}
}

func xdgConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config")
}
