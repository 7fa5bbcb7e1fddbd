// Package config loads runtime configuration for the PraxisDoku CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-d string   SQLite database file (":memory:" for a throwaway session)
//	-k string   storage key of the encrypted vault record
//	-e string   directory exported files are written to
//	-l string   log level: debug, info, warn or error
//
// # JSON schema
//
//	{
//	  "database_dsn": "praxisdoku.db",
//	  "vault_key": "praxisdoku_vault_v1",
//	  "export_dir": "exports",
//	  "log_level": "info"
//	}
//
// Keys missing from the file keep their default. The package does not read
// environment variables.
package config
