package config

const (
	defaultConfigPath           = "~/.config/folio/config.toml"
	defaultDataDir              = "~/.local/share/folio"
	defaultLogDir               = "~/.local/share/folio/logs"
	defaultAPIBind              = "127.0.0.1:7488"
	defaultUserAgent            = "folio/dev"
	defaultSourceRequestTimeout = 30
	defaultSourceRetryAttempts  = 3
	defaultSourcePageWorkers    = 4
	defaultPDFDirName           = "pdf"
	defaultPDFMaxTitleLength    = 120
	defaultFavoritesFileName    = "favorites.json"
	defaultStagingStaleHours    = 168
	defaultNotifyRequestTimeout = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	maxSourcePageWorkers        = 32
	maxPDFTitleLength           = 200
	minPDFTitleLength           = 8
	envSourceBaseURL            = "FOLIO_SOURCE_URL"
	envNtfyTopic                = "FOLIO_NTFY_TOPIC"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Source: Source{
			UserAgent:      defaultUserAgent,
			RequestTimeout: defaultSourceRequestTimeout,
			RetryAttempts:  defaultSourceRetryAttempts,
			PageWorkers:    defaultSourcePageWorkers,
		},
		PDF: PDF{
			DirName:        defaultPDFDirName,
			MaxTitleLength: defaultPDFMaxTitleLength,
			DeletePages:    true,
		},
		Favorites: Favorites{
			FileName: defaultFavoritesFileName,
		},
		History: History{
			Enabled: true,
		},
		Staging: Staging{
			StaleAfterHours: defaultStagingStaleHours,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Acquisition:    true,
			Lookup:         true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
