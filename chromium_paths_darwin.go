//go:build darwin

package cookiebroom

import (
	"os"
	"path/filepath"
)

// chromiumUserDataDirCandidates lists possible user-data roots for the
// vendor's stable channel, most common install layout first.
func chromiumUserDataDirCandidates(v chromiumVendor) []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	base := filepath.Join(home, "Library", "Application Support")

	switch v.executable {
	case "chrome":
		return []string{filepath.Join(base, "Google", "Chrome")}
	case "chromium":
		return []string{filepath.Join(base, "Chromium")}
	case "msedge":
		return []string{filepath.Join(base, "Microsoft Edge")}
	case "brave":
		return []string{filepath.Join(base, "BraveSoftware", "Brave-Browser")}
	case "opera":
		// Opera uses an app bundle identifier directory.
		return []string{filepath.Join(base, "com.operasoftware.Opera")}
	case "vivaldi":
		return []string{filepath.Join(base, "Vivaldi")}
	default:
		return nil
	}
}
