// Package cli holds the sdrbot subcommands.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	appconfig "github.com/lewisedginton/sdr_chatbot/internal/config"
	"github.com/lewisedginton/sdr_chatbot/internal/server"
	"github.com/lewisedginton/sdr_chatbot/pkg/logger"
)

// forceExitAfter bounds how long a graceful shutdown may take.
const forceExitAfter = 30 * time.Second

// getLogger retrieves the logger from the CLI context metadata
func getLogger(ctx *cli.Context) logger.Logger {
	if ctx.App.Metadata != nil {
		if log, ok := ctx.App.Metadata["logger"].(logger.Logger); ok {
			return log
		}
	}
	return logger.NewLogger(logger.Config{
		Level:   logger.InfoLevel,
		Output:  os.Stderr,
		Service: "sdrbot",
	})
}

func loadConfig(ctx *cli.Context) (*appconfig.AppConfig, error) {
	cfg, err := appconfig.Load(ctx.String("config-file"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// withServer loads the configuration, builds the bot and hands it to fn.
func withServer(ctx *cli.Context, fn func(context.Context, *server.Server) error) error {
	log := getLogger(ctx)
	cfg, err := loadConfig(ctx)
	if err != nil {
		log.Error("Failed to load configuration", logger.ErrorField(err))
		return err
	}
	cfg.LogConfig(log)

	s, err := server.New(ctx.Context, cfg, log)
	if err != nil {
		log.Error("Failed to create server", logger.ErrorField(err))
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Error("Failed to close server", logger.ErrorField(err))
		}
	}()
	return fn(ctx.Context, s)
}

// shutdownContext is cancelled on SIGINT or SIGTERM. A second wait of
// forceExitAfter ends the process if shutdown hangs.
func shutdownContext(parent context.Context, log logger.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info("Received shutdown signal", logger.StringField("signal", sig.String()))
			cancel()
			time.AfterFunc(forceExitAfter, func() {
				log.Warn("Force exiting due to timeout")
				os.Exit(1)
			})
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
