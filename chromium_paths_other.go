//go:build !linux && !darwin && !windows

package cookiebroom

func chromiumUserDataDirCandidates(_ chromiumVendor) []string { return nil }
