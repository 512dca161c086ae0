package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from the default sources: built-in defaults, an
// optional stampbook.toml found by walking up from the working directory,
// then STAMPBOOK_* environment variables (highest precedence).
func Load() (*Config, error) {
	v := viper.New()
	initViper(v)

	// Config file is optional; defaults plus env are a valid configuration
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config from %s: %w", configPath, err)
	}

	return &config, nil
}

// initViper wires defaults, env binding, and config file search paths
func initViper(v *viper.Viper) {
	v.SetConfigName("stampbook")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.stampbook")
	v.AddConfigPath("/etc/stampbook")

	v.SetEnvPrefix("STAMPBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	BindSensitiveEnvVars(v)

	SetDefaults(v)
}

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
		"https://127.0.0.1",
	})

	v.SetDefault("database.path", "stampbook.db")

	v.SetDefault("import.max_emails", 2000)
	v.SetDefault("import.max_events", 5000)
	v.SetDefault("import.sync_max_emails", 500)
	v.SetDefault("import.sync_max_events", 1000)
	v.SetDefault("import.years_back", 10)
	v.SetDefault("import.result_ttl_hours", 24)
	v.SetDefault("import.progress_interval_seconds", 2)
	v.SetDefault("import.use_ner", false)

	v.SetDefault("apns.sandbox", true)
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("google.client_id", "STAMPBOOK_GOOGLE_CLIENT_ID")
	v.BindEnv("google.client_secret", "STAMPBOOK_GOOGLE_CLIENT_SECRET")
	v.BindEnv("apns.key_id", "STAMPBOOK_APNS_KEY_ID")
	v.BindEnv("apns.team_id", "STAMPBOOK_APNS_TEAM_ID")
	v.BindEnv("apns.private_key_path", "STAMPBOOK_APNS_PRIVATE_KEY_PATH")
	v.BindEnv("database.path", "STAMPBOOK_DATABASE_PATH")
}
