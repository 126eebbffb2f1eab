//go:build linux

package cookiebroom

import (
	"testing"
	"time"
)

func TestSafeStorageDecryptorEnvOverride(t *testing.T) {
	t.Setenv("COOKIEBROOM_CHROME_SAFE_STORAGE_PASSWORD", "pw")

	decrypt, warnings := safeStorageDecryptor(chromeVendor(t), nil, time.Second)
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if decrypt == nil {
		t.Fatal("expected a decryptor")
	}

	v11Key := deriveAESCBCKey("pw", aesCBCIterationsLinux)
	enc := encryptAESCBCForTest(t, "v11", v11Key, []byte("secret"))
	got, ok := decrypt(enc, 0)
	if !ok || string(got) != "secret" {
		t.Fatalf("v11 decrypt: ok=%v got %q", ok, got)
	}

	// v10 always uses the hardcoded "peanuts" password.
	v10Key := deriveAESCBCKey("peanuts", aesCBCIterationsLinux)
	enc = encryptAESCBCForTest(t, "v10", v10Key, []byte("ten"))
	got, ok = decrypt(enc, 0)
	if !ok || string(got) != "ten" {
		t.Fatalf("v10 decrypt: ok=%v got %q", ok, got)
	}

	if _, ok := decrypt([]byte("xx"), 0); ok {
		t.Fatal("short input should not decrypt")
	}
	if _, ok := decrypt([]byte("v99-something-else"), 0); ok {
		t.Fatal("unknown prefix should not decrypt")
	}
}

func TestLinuxSafeStoragePasswordBasicBackend(t *testing.T) {
	t.Setenv("COOKIEBROOM_CHROME_SAFE_STORAGE_PASSWORD", "")
	t.Setenv("COOKIEBROOM_LINUX_KEYRING", "basic")

	password, warnings := linuxSafeStoragePassword(chromeVendor(t), time.Second)
	if password != "" || len(warnings) != 0 {
		t.Fatalf("basic backend: password %q warnings %v", password, warnings)
	}
}

func TestEnvKeySafeStoragePassword(t *testing.T) {
	if got := envKeySafeStoragePassword(chromiumVendor{name: "Edge"}); got != "COOKIEBROOM_EDGE_SAFE_STORAGE_PASSWORD" {
		t.Fatalf("unexpected env key %q", got)
	}
}

func TestChooseLinuxKeyringBackend(t *testing.T) {
	t.Setenv("KDE_FULL_SESSION", "")

	t.Setenv("XDG_CURRENT_DESKTOP", "ubuntu:GNOME")
	if got := chooseLinuxKeyringBackend(); got != linuxKeyringGnome {
		t.Fatalf("want gnome got %q", got)
	}

	t.Setenv("XDG_CURRENT_DESKTOP", "KDE")
	if got := chooseLinuxKeyringBackend(); got != linuxKeyringKWallet {
		t.Fatalf("want kwallet got %q", got)
	}

	t.Setenv("XDG_CURRENT_DESKTOP", "")
	t.Setenv("KDE_FULL_SESSION", "true")
	if got := chooseLinuxKeyringBackend(); got != linuxKeyringKWallet {
		t.Fatalf("want kwallet got %q", got)
	}
}
