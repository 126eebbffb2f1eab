package cookiebroom

import (
	"crypto/aes"
	"crypto/cipher"
	"database/sql"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	_ "modernc.org/sqlite"
)

func openTestSQLite(t *testing.T, path string) *sql.DB {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	db, err := sql.Open("sqlite", "file:"+filepath.ToSlash(path)+"?mode=rwc")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// createChromiumStore writes a Chrome-shaped cookie database with one row
// per host key. Duplicate keys insert extra rows.
func createChromiumStore(t *testing.T, path string, hostKeys ...string) {
	t.Helper()
	db := openTestSQLite(t, path)
	mustExec(t, db, `CREATE TABLE meta(key LONGVARCHAR NOT NULL UNIQUE PRIMARY KEY, value LONGVARCHAR)`)
	mustExec(t, db, `INSERT INTO meta(key,value) VALUES('version','20')`)
	mustExec(t, db, `CREATE TABLE cookies(
		host_key TEXT NOT NULL,
		name TEXT NOT NULL,
		value TEXT NOT NULL DEFAULT '',
		encrypted_value BLOB DEFAULT '',
		path TEXT NOT NULL DEFAULT '/',
		expires_utc INTEGER NOT NULL DEFAULT 0,
		is_secure INTEGER NOT NULL DEFAULT 0,
		is_httponly INTEGER NOT NULL DEFAULT 0,
		samesite INTEGER NOT NULL DEFAULT 0)`)
	for i, hk := range hostKeys {
		mustExec(t, db, `INSERT INTO cookies(host_key,name,value) VALUES(?,?,?)`,
			hk, "c"+strconv.Itoa(i), "v")
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}
}

// createFirefoxStore writes a Mozilla-shaped cookie database with one row
// per host.
func createFirefoxStore(t *testing.T, path string, hosts ...string) {
	t.Helper()
	db := openTestSQLite(t, path)
	mustExec(t, db, `CREATE TABLE moz_cookies(
		id INTEGER PRIMARY KEY,
		host TEXT, name TEXT, value TEXT, path TEXT,
		expiry INTEGER, isSecure INTEGER, isHttpOnly INTEGER)`)
	for i, h := range hosts {
		mustExec(t, db, `INSERT INTO moz_cookies(host,name,value,path,expiry,isSecure,isHttpOnly) VALUES(?,?,?,?,?,?,?)`,
			h, "c"+strconv.Itoa(i), "v", "/", 0, 0, 0)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}
}

func mustExec(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

func countStoreRows(t *testing.T, path string, d Dialect) int {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+filepath.ToSlash(path)+"?mode=ro")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + d.Table()).Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n
}

func pkcs7PadForTest(t *testing.T, b []byte) []byte {
	t.Helper()
	paddingLen := aes.BlockSize - (len(b) % aes.BlockSize)
	if paddingLen == 0 {
		paddingLen = aes.BlockSize
	}
	out := make([]byte, 0, len(b)+paddingLen)
	out = append(out, b...)
	for i := 0; i < paddingLen; i++ {
		out = append(out, byte(paddingLen))
	}
	return out
}

func encryptAESCBCForTest(t *testing.T, prefix string, key, plaintext []byte) []byte {
	t.Helper()
	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatal(err)
	}
	padded := pkcs7PadForTest(t, plaintext)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, []byte(aesCBCIV)).CryptBlocks(ciphertext, padded)
	return append([]byte(prefix), ciphertext...)
}

func encryptAESGCMForTest(t *testing.T, prefix string, key, nonce, plaintext []byte) []byte {
	t.Helper()
	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatal(err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		t.Fatal(err)
	}
	sealed := aesgcm.Seal(nil, nonce, plaintext, nil)
	out := make([]byte, 0, len(prefix)+len(nonce)+len(sealed))
	out = append(out, []byte(prefix)...)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out
}
