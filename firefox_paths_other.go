//go:build !linux && !darwin && !windows

package cookiebroom

func firefoxRoot() string { return "" }
