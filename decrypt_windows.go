//go:build windows

package cookiebroom

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var dpapiPrefix = [...]byte{
	1, 0, 0, 0, 208, 140, 157, 223, 1, 21, 209, 17, 140, 122, 0, 192, 79, 194, 151, 235,
} // 0x01000000D08C9DDF0115D1118C7A00C04FC297EB

// safeStorageDecryptor builds a value decryptor for the vendor. Chromium on
// Windows wraps an AES-256-GCM master key with DPAPI in Local State;
// pre-v80 values are raw DPAPI blobs. App-bound v20 values are not
// recoverable from outside the browser.
func safeStorageDecryptor(v chromiumVendor, stores []Store, _ time.Duration) (decryptFunc, []string) {
	statePath := ""
	for _, st := range stores {
		if st.LocalState != "" {
			statePath = st.LocalState
			break
		}
	}
	if statePath == "" {
		return nil, []string{fmt.Sprintf("cookiebroom: %s Local State path unavailable", v.name)}
	}

	key, err := windowsMasterKey(statePath)
	if err != nil {
		return nil, []string{fmt.Sprintf("cookiebroom: %s master key read failed: %v", v.name, err)}
	}

	return func(encrypted []byte, metaVersion int64) ([]byte, bool) {
		if len(encrypted) < 3 {
			return nil, false
		}

		if bytes.HasPrefix(encrypted, dpapiPrefix[:]) {
			plain, err := dpapiUnprotect(encrypted)
			if err != nil {
				return nil, false
			}
			return stripHashPrefix(plain, metaVersion), true
		}

		if string(encrypted[:3]) == "v20" {
			return nil, false
		}

		plain, err := decryptAES256GCM(encrypted, key, metaVersion)
		if err != nil {
			return nil, false
		}
		return plain, true
	}, nil
}

func windowsMasterKey(statePath string) ([]byte, error) {
	stateBytes, err := os.ReadFile(statePath)
	if err != nil {
		return nil, err
	}

	var localState struct {
		OSCrypt struct {
			EncryptedKey string `json:"encrypted_key"`
		} `json:"os_crypt"`
	}
	if err := json.Unmarshal(stateBytes, &localState); err != nil {
		return nil, err
	}
	encB64 := strings.TrimSpace(localState.OSCrypt.EncryptedKey)
	if encB64 == "" {
		return nil, errors.New("local state missing os_crypt.encrypted_key")
	}
	enc, err := base64.StdEncoding.DecodeString(encB64)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(enc, []byte("DPAPI")) {
		return nil, errors.New("encrypted_key missing DPAPI prefix")
	}
	enc = enc[len("DPAPI"):]
	key, err := dpapiUnprotect(enc)
	if err != nil {
		return nil, err
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("master key not 32 bytes (got %d)", len(key))
	}
	return key, nil
}

func dpapiUnprotect(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("empty dpapi input")
	}

	var outBlob dataBlob
	if err := cryptUnprotectData(newBlob(data), &outBlob); err != nil {
		return nil, err
	}
	defer func() {
		_, _ = windows.LocalFree(windows.Handle(unsafe.Pointer(outBlob.pbData))) //nolint:gosec // Windows API requires this.
	}()
	return outBlob.bytes(), nil
}

type dataBlob struct {
	cbData uint32
	pbData *byte
}

func newBlob(d []byte) *dataBlob {
	if len(d) == 0 {
		return &dataBlob{}
	}
	return &dataBlob{pbData: &d[0], cbData: uint32(len(d))}
}

func (b *dataBlob) bytes() []byte {
	if b == nil || b.cbData == 0 || b.pbData == nil {
		return nil
	}
	out := make([]byte, b.cbData)
	copy(out, (*[1 << 30]byte)(unsafe.Pointer(b.pbData))[:b.cbData:b.cbData])
	return out
}

func cryptUnprotectData(in *dataBlob, out *dataBlob) error {
	// windows.CryptUnprotectData wrapper in x/sys is awkward for raw blobs; call proc directly.
	dll := windows.NewLazySystemDLL("Crypt32.dll")
	proc := dll.NewProc("CryptUnprotectData")
	const cryptprotectUIForbidden = 0x1
	r, _, e := proc.Call(
		uintptr(unsafe.Pointer(in)),
		0,
		0,
		0,
		0,
		cryptprotectUIForbidden,
		uintptr(unsafe.Pointer(out)),
	)
	if r == 0 {
		return e
	}
	return nil
}
