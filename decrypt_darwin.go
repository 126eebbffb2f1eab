//go:build darwin

package cookiebroom

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// safeStorageDecryptor builds a value decryptor for the vendor. Chromium on
// macOS derives its AES-CBC key from the Safe Storage password in the
// login keychain.
func safeStorageDecryptor(v chromiumVendor, _ []Store, timeout time.Duration) (decryptFunc, []string) {
	password, err := macosReadKeychainPassword(timeout, v.safeStorageService, v.safeStorageAccount)
	if err != nil {
		return nil, []string{fmt.Sprintf("cookiebroom: macOS keychain read failed (%s): %v", v.safeStorageService, err)}
	}
	password = strings.TrimSpace(password)
	if password == "" {
		return nil, []string{fmt.Sprintf("cookiebroom: macOS keychain returned an empty %s password", v.safeStorageService)}
	}

	key := deriveAESCBCKey(password, aesCBCIterationsMacOS)
	return func(encrypted []byte, metaVersion int64) ([]byte, bool) {
		plain, err := decryptAESCBC(encrypted, key, metaVersion, true)
		return plain, err == nil
	}, nil
}

func macosReadKeychainPassword(timeout time.Duration, service string, account string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	stdout, err := execCapture(ctx, "security", "find-generic-password", "-w", "-a", account, "-s", service)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(stdout), nil
}
