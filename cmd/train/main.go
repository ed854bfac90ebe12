// Command train fits the used-vehicle price model on the files under
// files/input and writes the model and its metrics under files/.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/YuminosukeSato/vehicleprice/pkg/config"
	"github.com/YuminosukeSato/vehicleprice/pkg/log"
	"github.com/YuminosukeSato/vehicleprice/pricing"
)

func main() {
	cfg := config.Default()
	if err := log.SetupLogger(cfg.LogLevel); err != nil {
		log.LogError(err, "failed to set up logger")
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.LogError(err, "invalid configuration")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := pricing.Run(ctx, cfg)
	if err != nil {
		log.LogError(err, "training failed")
		stop()
		os.Exit(1)
	}
	log.GetLogger().Info("Model written",
		log.PathKey, cfg.ModelPath,
		log.RunIDKey, res.Artifact.RunID,
		log.R2ScoreKey, res.Test.R2)
}
