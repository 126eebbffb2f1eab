package cookiebroom

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// defaultWhitelist seeds a fresh config with the accounts people lose the
// most by wiping: sign-on providers, plus the usual router address.
var defaultWhitelist = []string{
	"domain:google.com",
	"domain:live.com",
	"domain:microsoft.com",
	"domain:amazon.com",
	"domain:github.com",
	"ip:192.168.1.1",
}

// Config is the persisted application configuration.
type Config struct {
	Whitelist  []string     `mapstructure:"whitelist"`
	Backup     BackupConfig `mapstructure:"backup"`
	SuffixFile string       `mapstructure:"suffix_file"`
	Log        LogConfig    `mapstructure:"log"`

	path string
}

// BackupConfig controls where backups land and how long they live.
type BackupConfig struct {
	Root          string `mapstructure:"root"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DefaultConfigPath returns the per-user config file location,
// config.yaml under the cookiebroom directory in os.UserConfigDir.
func DefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "cookiebroom", "config.yaml"), nil
}

func defaultBackupRoot(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "backups")
}

// LoadConfig reads the config file at path, or the default location when
// path is empty. A missing file is not an error: defaults are returned and
// written back so the first run leaves a file the user can edit. Every key
// can be overridden through the environment with the COOKIEBROOM prefix
// (for example COOKIEBROOM_BACKUP_RETENTION_DAYS).
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("whitelist", defaultWhitelist)
	v.SetDefault("backup.root", defaultBackupRoot(path))
	v.SetDefault("backup.retention_days", 7)
	v.SetDefault("suffix_file", "")
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix("COOKIEBROOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	created := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		created = true
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.path = path

	if created {
		if err := cfg.Save(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Path returns where the config was loaded from and will be saved to.
func (c *Config) Path() string { return c.path }

// Save writes the config back to its file, creating directories as needed.
func (c *Config) Save() error {
	if c.path == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return err
		}
		c.path = p
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(c.path)
	v.SetConfigType("yaml")
	v.Set("whitelist", c.Whitelist)
	v.Set("backup.root", c.Backup.Root)
	v.Set("backup.retention_days", c.Backup.RetentionDays)
	v.Set("suffix_file", c.SuffixFile)
	v.Set("log.level", c.Log.Level)
	if err := v.WriteConfigAs(c.path); err != nil {
		return fmt.Errorf("write config %s: %w", c.path, err)
	}
	return nil
}

// Suffixes loads the public-suffix table named by the config. The built-in
// table is the fallback when no file is configured or it cannot be read;
// the returned warning is non-empty in the unreadable case.
func (c *Config) Suffixes() (*SuffixTable, string) {
	if c.SuffixFile == "" {
		return DefaultSuffixes(), ""
	}
	t, err := LoadSuffixes(c.SuffixFile)
	if err != nil {
		return DefaultSuffixes(), fmt.Sprintf("cannot read suffix file %s, using built-in table: %v", c.SuffixFile, err)
	}
	return t, ""
}

// BuildWhitelist turns the configured entries into a Whitelist. Any entry
// the whitelist rejects fails the build; a hand-edited bad entry should
// stop a clean run, not silently lose protection.
func (c *Config) BuildWhitelist(suffixes *SuffixTable) (*Whitelist, error) {
	w := NewWhitelist(suffixes)
	for _, raw := range c.Whitelist {
		if err := w.Add(raw); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// LogLevel maps the configured level name to a slog level. Unknown names
// fall back to Info.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
