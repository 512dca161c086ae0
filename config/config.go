// Package config loads the stampbook configuration from TOML files and
// STAMPBOOK_* environment variables via viper.
package config

// Config represents the core stampbook configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Import   ImportConfig   `mapstructure:"import"`
	Google   GoogleConfig   `mapstructure:"google"`
	APNs     APNsConfig     `mapstructure:"apns"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ImportConfig configures the import pipeline
type ImportConfig struct {
	MaxEmails               int  `mapstructure:"max_emails"`                // Email scan cap for background jobs (default: 2000)
	MaxEvents               int  `mapstructure:"max_events"`                // Calendar event cap for background jobs (default: 5000)
	SyncMaxEmails           int  `mapstructure:"sync_max_emails"`           // Email cap for the synchronous scan endpoint (default: 500)
	SyncMaxEvents           int  `mapstructure:"sync_max_events"`           // Event cap for the synchronous scan endpoint (default: 1000)
	YearsBack               int  `mapstructure:"years_back"`                // Calendar lookback window in years (default: 10)
	ResultTTLHours          int  `mapstructure:"result_ttl_hours"`          // Retention of stored results (default: 24)
	ProgressIntervalSeconds int  `mapstructure:"progress_interval_seconds"` // Min seconds between progress writes (default: 2)
	UseNER                  bool `mapstructure:"use_ner"`                   // Enable the NER hook in the extractor (default: false)
}

// GoogleConfig configures the Google OAuth client used for Gmail and Calendar
type GoogleConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
}

// APNsConfig configures Apple push notifications.
// Leaving KeyID empty disables push delivery; jobs still complete.
type APNsConfig struct {
	KeyID          string `mapstructure:"key_id"`
	TeamID         string `mapstructure:"team_id"`
	BundleID       string `mapstructure:"bundle_id"`
	PrivateKeyPath string `mapstructure:"private_key_path"`
	Sandbox        bool   `mapstructure:"sandbox"`
}

// Configured reports whether APNs credentials are present
func (c APNsConfig) Configured() bool {
	return c.KeyID != "" && c.TeamID != "" && c.PrivateKeyPath != ""
}
