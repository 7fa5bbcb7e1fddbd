package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/praxisdoku/internal/flagx"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
type JsonConfig struct {
	DatabaseDSN string `json:"database_dsn"`
	VaultKey    string `json:"vault_key"`
	ExportDir   string `json:"export_dir"`
	LogLevel    string `json:"log_level"`
}

// parseJson overlays Config with non-empty values from the JSON file named
// by -c or -config. Without such a flag nothing happens. Read and unmarshal
// errors panic.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	overlay(&cfg.DatabaseDSN, jc.DatabaseDSN)
	overlay(&cfg.VaultKey, jc.VaultKey)
	overlay(&cfg.ExportDir, jc.ExportDir)
	overlay(&cfg.LogLevel, jc.LogLevel)
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
