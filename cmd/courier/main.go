package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"courier/internal/app"
	"courier/pkg/config"
	"courier/pkg/logger"
	"courier/pkg/shutdown"
)

// build metadata set via ldflags during release builds
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	_ = godotenv.Load(".env")

	addrVal, dbVal, cfgVal, setFlags := config.ParseCommandFlags()
	cfgPath := config.ResolveConfigPath(cfgVal, setFlags["config"])

	eff, err := config.LoadEffective(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Flags win over env over file for addr and db.
	if setFlags["addr"] {
		eff.Addr = addrVal
		eff.Source = "flags"
	}
	if setFlags["db"] || eff.DBPath == "" {
		eff.DBPath = dbVal
		if setFlags["db"] {
			eff.Source = "flags"
		}
	}

	logger.InitWithLevel(eff.Config.Logging.Level)

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	a, err := app.New(eff, version, commit, buildDate)
	if err != nil {
		shutdown.Abort("startup failed", err, eff.DBPath, 0)
	}

	logger.Info("server_starting", "addr", eff.Addr, "db", eff.DBPath, "source", eff.Source)
	if err := a.Run(ctx); err != nil {
		shutdown.Abort("server exited", err, eff.DBPath, 0)
	}
}
