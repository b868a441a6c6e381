package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/sdr_chatbot/internal/server"
	"github.com/lewisedginton/sdr_chatbot/pkg/logger"
)

// ServeCommand runs the HTTP API, the metrics listener and, when enabled,
// the CRM poller.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Run the HTTP API (and the CRM poller when CRM_ENABLED=true)",
		Action: func(ctx *cli.Context) error {
			return withServer(ctx, func(c context.Context, s *server.Server) error {
				log := getLogger(ctx)
				runCtx, stop := shutdownContext(c, log)
				defer stop()

				if err := s.Run(runCtx); err != nil {
					log.Error("Fatal server error occurred", logger.ErrorField(err))
					return fmt.Errorf("server error: %w", err)
				}
				log.Info("Server exited gracefully")
				return nil
			})
		},
	}
}

// PollCommand runs only the CRM poller.
func PollCommand() *cli.Command {
	return &cli.Command{
		Name:  "poll",
		Usage: "Answer unanswered CRM messages",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "once", Usage: "poll a single time and exit"},
		},
		Action: func(ctx *cli.Context) error {
			return withServer(ctx, func(c context.Context, s *server.Server) error {
				log := getLogger(ctx)
				conn, err := s.Connector()
				if err != nil {
					return err
				}

				if ctx.Bool("once") {
					res, err := conn.PollOnce(c)
					if err != nil {
						return fmt.Errorf("poll failed: %w", err)
					}
					fmt.Fprintf(ctx.App.Writer, "fetched %d, replied %d (%d fallback), failed %d\n", res.Fetched, res.Replied, res.Fallbacks, res.Failed)
					return nil
				}

				runCtx, stop := shutdownContext(c, log)
				defer stop()
				return conn.Start(runCtx)
			})
		},
	}
}
