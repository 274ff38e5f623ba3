package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSource(); err != nil {
		return err
	}
	if err := c.validatePDF(); err != nil {
		return err
	}
	if err := c.validateFavorites(); err != nil {
		return err
	}
	if err := ensurePositiveMap(map[string]int{
		"source.request_timeout":        c.Source.RequestTimeout,
		"source.retry_attempts":         c.Source.RetryAttempts,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateSource() error {
	if c.Source.BaseURL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("source.base_url is required. Set %s env var or edit %s (create with 'folio config init')", envSourceBaseURL, defaultPath)
	}
	parsed, err := url.Parse(c.Source.BaseURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("source.base_url %q must be an absolute http(s) URL", c.Source.BaseURL)
	}
	if c.Source.PageWorkers > maxSourcePageWorkers {
		return fmt.Errorf("source.page_workers must be between 1 and %d", maxSourcePageWorkers)
	}
	if tpl := c.Source.CoverURLTemplate; tpl != "" && !strings.Contains(tpl, "{id}") {
		return errors.New("source.cover_url_template must contain the {id} placeholder")
	}
	return nil
}

func (c *Config) validatePDF() error {
	if c.PDF.MaxTitleLength < minPDFTitleLength || c.PDF.MaxTitleLength > maxPDFTitleLength {
		return fmt.Errorf("pdf.max_title_length must be between %d and %d", minPDFTitleLength, maxPDFTitleLength)
	}
	if !isPlainName(c.PDF.DirName) {
		return errors.New("pdf.dir_name must be a single directory name")
	}
	return nil
}

func (c *Config) validateFavorites() error {
	if !isPlainName(c.Favorites.FileName) {
		return errors.New("favorites.file_name must be a single file name")
	}
	return nil
}

func isPlainName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return filepath.Base(name) == name
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
