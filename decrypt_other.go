//go:build !linux && !darwin && !windows

package cookiebroom

import "time"

func safeStorageDecryptor(_ chromiumVendor, _ []Store, _ time.Duration) (decryptFunc, []string) {
	return nil, []string{"cookiebroom: cookie value decryption unsupported on this OS"}
}
