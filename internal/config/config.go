package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	APIBind string `toml:"api_bind"`
}

// Source contains configuration for the remote work source.
type Source struct {
	BaseURL          string `toml:"base_url"`
	UserAgent        string `toml:"user_agent"`
	RequestTimeout   int    `toml:"request_timeout"`
	RetryAttempts    int    `toml:"retry_attempts"`
	PageWorkers      int    `toml:"page_workers"`
	CoverURLTemplate string `toml:"cover_url_template"`
}

// PDF contains configuration for artifact assembly.
type PDF struct {
	DirName        string `toml:"dir_name"`
	MaxTitleLength int    `toml:"max_title_length"`
	DeletePages    bool   `toml:"delete_pages"`
}

// Favorites contains configuration for the favorites record.
type Favorites struct {
	FileName string `toml:"file_name"`
}

// History contains configuration for the acquisition history database.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Staging contains configuration for stale per-work directory cleanup.
type Staging struct {
	StaleAfterHours int `toml:"stale_after_hours"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Acquisition    bool   `toml:"acquisition"`
	Lookup         bool   `toml:"lookup"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for folio.
//
// Configuration sections by subsystem:
//   - Paths: data directory (the base for pages, artifacts and favorites), logs, API bind
//   - Source: remote work source endpoint, timeouts, retries and page concurrency
//   - PDF: artifact directory name, title length cap, page cleanup
//   - Favorites: favorites record file name
//   - History: acquisition history database
//   - Staging: stale per-work directory cleanup
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Source        Source        `toml:"source"`
	PDF           PDF           `toml:"pdf"`
	Favorites     Favorites     `toml:"favorites"`
	History       History       `toml:"history"`
	Staging       Staging       `toml:"staging"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("folio.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data, artifact and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.PDFDir(), c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// PDFDir returns the directory holding assembled artifacts.
func (c *Config) PDFDir() string {
	return filepath.Join(c.Paths.DataDir, c.PDF.DirName)
}

// FavoritesPath returns the absolute path of the favorites record.
func (c *Config) FavoritesPath() string {
	return filepath.Join(c.Paths.DataDir, c.Favorites.FileName)
}

// HistoryPath returns the history database path, defaulting to history.db in
// the data directory.
func (c *Config) HistoryPath() string {
	if strings.TrimSpace(c.History.Path) != "" {
		return c.History.Path
	}
	return filepath.Join(c.Paths.DataDir, "history.db")
}

// LockPath returns the daemon single-instance lock path.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "folio.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
