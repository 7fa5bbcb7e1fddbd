package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/praxisdoku/internal/buildinfo"
	"github.com/dmitrijs2005/praxisdoku/internal/cli"
	"github.com/dmitrijs2005/praxisdoku/internal/config"
	"github.com/dmitrijs2005/praxisdoku/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()

	// already validated by config
	level, _ := logging.ParseLevel(cfg.LogLevel)
	logger := logging.NewTextLogger(os.Stderr, level)

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)

}
