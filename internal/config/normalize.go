package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSource()
	c.normalizePDF()
	c.normalizeFavorites()
	if err := c.normalizeHistory(); err != nil {
		return err
	}
	if c.Staging.StaleAfterHours < 0 {
		c.Staging.StaleAfterHours = 0
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeSource() {
	c.Source.BaseURL = strings.TrimSpace(c.Source.BaseURL)
	if c.Source.BaseURL == "" {
		if value, ok := os.LookupEnv(envSourceBaseURL); ok {
			c.Source.BaseURL = strings.TrimSpace(value)
		}
	}
	c.Source.BaseURL = strings.TrimRight(c.Source.BaseURL, "/")
	c.Source.UserAgent = strings.TrimSpace(c.Source.UserAgent)
	if c.Source.UserAgent == "" {
		c.Source.UserAgent = defaultUserAgent
	}
	if c.Source.RequestTimeout <= 0 {
		c.Source.RequestTimeout = defaultSourceRequestTimeout
	}
	if c.Source.RetryAttempts <= 0 {
		c.Source.RetryAttempts = 1
	}
	if c.Source.PageWorkers <= 0 {
		c.Source.PageWorkers = defaultSourcePageWorkers
	}
	c.Source.CoverURLTemplate = strings.TrimSpace(c.Source.CoverURLTemplate)
}

func (c *Config) normalizePDF() {
	c.PDF.DirName = strings.TrimSpace(c.PDF.DirName)
	if c.PDF.DirName == "" {
		c.PDF.DirName = defaultPDFDirName
	}
	if c.PDF.MaxTitleLength <= 0 {
		c.PDF.MaxTitleLength = defaultPDFMaxTitleLength
	}
}

func (c *Config) normalizeFavorites() {
	c.Favorites.FileName = strings.TrimSpace(c.Favorites.FileName)
	if c.Favorites.FileName == "" {
		c.Favorites.FileName = defaultFavoritesFileName
	}
}

func (c *Config) normalizeHistory() error {
	c.History.Path = strings.TrimSpace(c.History.Path)
	if c.History.Path == "" {
		return nil
	}
	var err error
	if c.History.Path, err = expandPath(c.History.Path); err != nil {
		return fmt.Errorf("history.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv(envNtfyTopic); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
