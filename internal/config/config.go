package config

import "github.com/dmitrijs2005/praxisdoku/internal/vault"

// Config holds runtime settings for the PraxisDoku CLI.
type Config struct {
	DatabaseDSN string
	VaultKey    string
	ExportDir   string
	LogLevel    string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DatabaseDSN = "praxisdoku.db"
	c.VaultKey = vault.DefaultKey
	c.ExportDir = "exports"
	c.LogLevel = "info"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
