package cli

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/sdr_chatbot/pkg/logger"
)

// Version is set with -ldflags at build time.
var Version = "dev"

// NewApp assembles the sdrbot command tree.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "sdrbot",
		Usage:   "Persona-driven SDR chatbot for inbound leads",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "json",
				Usage:   "Log format (json, text)",
				EnvVars: []string{"LOG_FORMAT"},
			},
			&cli.StringFlag{
				Name:    "config-file",
				Usage:   "Path to a YAML configuration file",
				EnvVars: []string{"CONFIG_FILE"},
			},
		},
		Before: func(ctx *cli.Context) error {
			// Logs go to stderr so command output and the chat stay readable.
			log := logger.NewLogger(logger.Config{
				Level:   logger.ParseLevel(ctx.String("log-level")),
				Format:  ctx.String("log-format"),
				Service: "sdrbot",
				Output:  os.Stderr,
			})
			if ctx.App.Metadata == nil {
				ctx.App.Metadata = map[string]any{}
			}
			if _, ok := ctx.App.Metadata["logger"]; !ok {
				ctx.App.Metadata["logger"] = log
			}
			return nil
		},
		Commands: []*cli.Command{
			ChatCommand(),
			ServeCommand(),
			PollCommand(),
			UploadCommand(),
			StatsCommand(),
			PersonaCommand(),
			ConfigCommand(),
		},
	}
}
