package cookiebroom

import (
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadConfigCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !reflect.DeepEqual(cfg.Whitelist, defaultWhitelist) {
		t.Errorf("whitelist = %v, want defaults %v", cfg.Whitelist, defaultWhitelist)
	}
	if cfg.Backup.RetentionDays != 7 {
		t.Errorf("retention = %d, want 7", cfg.Backup.RetentionDays)
	}
	if want := filepath.Join(filepath.Dir(path), "backups"); cfg.Backup.Root != want {
		t.Errorf("backup root = %q, want %q", cfg.Backup.Root, want)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log level = %q, want info", cfg.Log.Level)
	}
	if cfg.Path() != path {
		t.Errorf("Path() = %q, want %q", cfg.Path(), path)
	}

	// First load writes the defaults back so the user has a file to edit.
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
}

func TestConfigSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	cfg.Whitelist = append(cfg.Whitelist, "domain:example.org")
	cfg.Backup.RetentionDays = 14
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	again, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reflect.DeepEqual(again.Whitelist, cfg.Whitelist) {
		t.Errorf("whitelist after reload = %v, want %v", again.Whitelist, cfg.Whitelist)
	}
	if again.Backup.RetentionDays != 14 {
		t.Errorf("retention after reload = %d, want 14", again.Backup.RetentionDays)
	}
}

func TestLoadConfigReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `whitelist:
  - domain:mybank.com
  - exact:sso.corp.net
backup:
  root: /var/backups/cookies
  retention_days: 3
suffix_file: /etc/public_suffix_list.dat
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	want := []string{"domain:mybank.com", "exact:sso.corp.net"}
	if !reflect.DeepEqual(cfg.Whitelist, want) {
		t.Errorf("whitelist = %v, want %v", cfg.Whitelist, want)
	}
	if cfg.Backup.Root != "/var/backups/cookies" {
		t.Errorf("backup root = %q", cfg.Backup.Root)
	}
	if cfg.Backup.RetentionDays != 3 {
		t.Errorf("retention = %d, want 3", cfg.Backup.RetentionDays)
	}
	if cfg.SuffixFile != "/etc/public_suffix_list.dat" {
		t.Errorf("suffix file = %q", cfg.SuffixFile)
	}
	if cfg.LogLevel() != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want debug", cfg.LogLevel())
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("backup:\n  retention_days: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("COOKIEBROOM_BACKUP_RETENTION_DAYS", "30")
	t.Setenv("COOKIEBROOM_LOG_LEVEL", "error")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Backup.RetentionDays != 30 {
		t.Errorf("retention = %d, want env override 30", cfg.Backup.RetentionDays)
	}
	if cfg.LogLevel() != slog.LevelError {
		t.Errorf("LogLevel = %v, want error", cfg.LogLevel())
	}
}

func TestLoadConfigRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("whitelist: [unclosed\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("LoadConfig accepted malformed YAML")
	}
}

func TestConfigBuildWhitelist(t *testing.T) {
	cfg := &Config{Whitelist: []string{"domain:google.com", "ip:192.168.1.1"}}

	w, err := cfg.BuildWhitelist(DefaultSuffixes())
	if err != nil {
		t.Fatalf("BuildWhitelist: %v", err)
	}
	if !w.Matches("mail.google.com") {
		t.Error("mail.google.com not protected")
	}
	if !w.Matches("192.168.1.1") {
		t.Error("192.168.1.1 not protected")
	}

	cfg.Whitelist = append(cfg.Whitelist, "domain:co.uk")
	if _, err := cfg.BuildWhitelist(DefaultSuffixes()); err == nil {
		t.Fatal("public-suffix entry accepted from config")
	}
}

func TestConfigSuffixes(t *testing.T) {
	cfg := &Config{}
	table, warn := cfg.Suffixes()
	if warn != "" {
		t.Errorf("unexpected warning without suffix file: %q", warn)
	}
	if !table.IsPublicSuffix("co.uk") {
		t.Error("built-in table missing co.uk")
	}

	cfg.SuffixFile = filepath.Join(t.TempDir(), "missing.dat")
	table, warn = cfg.Suffixes()
	if warn == "" {
		t.Error("no warning for unreadable suffix file")
	}
	if !table.IsPublicSuffix("com") {
		t.Error("fallback table missing com")
	}

	real := filepath.Join(t.TempDir(), "suffixes.dat")
	if err := os.WriteFile(real, []byte("// test list\nzz\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.SuffixFile = real
	table, warn = cfg.Suffixes()
	if warn != "" {
		t.Errorf("unexpected warning: %q", warn)
	}
	if !table.IsPublicSuffix("zz") {
		t.Error("loaded table missing zz")
	}
}

func TestConfigLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		cfg := &Config{Log: LogConfig{Level: tt.in}}
		if got := cfg.LogLevel(); got != tt.want {
			t.Errorf("LogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
