//go:build windows

package cookiebroom

import (
	"os"
	"path/filepath"
)

// chromiumUserDataDirCandidates lists possible user-data roots for the
// vendor's stable channel. Opera is the odd one out: it lives in roaming
// AppData and keeps its profile at the user-data root.
func chromiumUserDataDirCandidates(v chromiumVendor) []string {
	if v.executable == "opera" {
		roam := os.Getenv("APPDATA")
		if roam == "" {
			return nil
		}
		return []string{filepath.Join(roam, "Opera Software", "Opera Stable")}
	}

	local := os.Getenv("LOCALAPPDATA")
	if local == "" {
		return nil
	}
	switch v.executable {
	case "chrome":
		return []string{filepath.Join(local, "Google", "Chrome", "User Data")}
	case "chromium":
		return []string{filepath.Join(local, "Chromium", "User Data")}
	case "msedge":
		return []string{filepath.Join(local, "Microsoft", "Edge", "User Data")}
	case "brave":
		return []string{filepath.Join(local, "BraveSoftware", "Brave-Browser", "User Data")}
	case "vivaldi":
		return []string{filepath.Join(local, "Vivaldi", "User Data")}
	default:
		return nil
	}
}
