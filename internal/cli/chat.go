package cli

import (
	"context"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/sdr_chatbot/internal/server"
	"github.com/lewisedginton/sdr_chatbot/internal/terminal"
)

// ChatCommand opens the interactive terminal.
func ChatCommand() *cli.Command {
	return &cli.Command{
		Name:    "chat",
		Aliases: []string{"c"},
		Usage:   "Talk to the bot from the terminal",
		Action: func(ctx *cli.Context) error {
			return withServer(ctx, func(c context.Context, s *server.Server) error {
				runCtx, stop := shutdownContext(c, getLogger(ctx))
				defer stop()

				repl, err := terminal.New(terminal.Config{
					Bot:      s.Bot(),
					Sessions: s.Sessions(),
					Persona:  s.Personas(),
					Stats:    s.Store(),
					Uploader: s.Uploader(),
					Status:   func() [][2]string { return statusRows(s) },
					In:       os.Stdin,
					Out:      ctx.App.Writer,
					Logger:   getLogger(ctx),
				})
				if err != nil {
					return err
				}
				return repl.Run(runCtx)
			})
		},
	}
}

func statusRows(s *server.Server) [][2]string {
	model := s.DrafterName()
	if model == "" {
		model = "nenhum (respostas aprendidas e modelos)"
	}
	cfg := s.Config()
	return [][2]string{
		{"modelo", model},
		{"banco", cfg.Database.Driver + " " + cfg.Database.Location()},
		{"arquivos", cfg.Storage.Backend + " " + cfg.Storage.Location()},
	}
}
