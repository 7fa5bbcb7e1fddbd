package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/praxisdoku/internal/flagx"
	"github.com/dmitrijs2005/praxisdoku/internal/logging"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   database file
//	-k string   vault record key
//	-e string   export directory
//	-l string   log level
//
// os.Args is filtered with flagx.FilterArgs first, so flags owned by other
// components are ignored. Invalid values panic.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-k", "-e", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "SQLite database file")
	fs.StringVar(&cfg.VaultKey, "k", cfg.VaultKey, "storage key of the vault record")
	fs.StringVar(&cfg.ExportDir, "e", cfg.ExportDir, "directory for exported files")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		panic(err)
	}
}
