package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/sdr_chatbot/internal/ingest"
	"github.com/lewisedginton/sdr_chatbot/internal/persona"
	"github.com/lewisedginton/sdr_chatbot/internal/server"
)

// UploadCommand imports training logs and reference documents.
func UploadCommand() *cli.Command {
	return &cli.Command{
		Name:      "upload",
		Aliases:   []string{"u"},
		Usage:     "Import cliente/gabriel pairs or a reference document",
		ArgsUsage: "<file> [file...]",
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() == 0 {
				return cli.Exit("at least one file is required", 2)
			}
			return withServer(ctx, func(c context.Context, s *server.Server) error {
				var failed int
				for _, path := range ctx.Args().Slice() {
					res, err := s.Uploader().UploadFile(c, path)
					if err != nil {
						failed++
						fmt.Fprintf(ctx.App.ErrWriter, "%s: %v\n", path, err)
						continue
					}
					printUpload(ctx.App.Writer, res)
				}
				if failed > 0 {
					return cli.Exit(fmt.Sprintf("%d of %d files failed", failed, ctx.NArg()), 1)
				}
				return nil
			})
		},
	}
}

func printUpload(w io.Writer, res ingest.UploadResult) {
	switch res.Kind {
	case ingest.UploadTraining:
		r := res.Training
		fmt.Fprintf(w, "%s: %d pairs found, %d inserted, %d skipped\n", r.Filename, r.Found, r.Inserted, r.Skipped)
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	case ingest.UploadDocument:
		d := res.Document
		fmt.Fprintf(w, "%s: stored as %s document, %d words\n", d.Filename, d.FileType, d.WordCount)
	}
}

// StatsCommand prints what the store holds.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show conversation and document counts",
		Action: func(ctx *cli.Context) error {
			return withServer(ctx, func(c context.Context, s *server.Server) error {
				st, err := s.Store().Stats(c)
				if err != nil {
					return err
				}
				return writeJSON(ctx.App.Writer, st)
			})
		},
	}
}

// PersonaCommand shows or edits the stored persona.
func PersonaCommand() *cli.Command {
	return &cli.Command{
		Name:  "persona",
		Usage: "Persona operations",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the active persona",
				Action: func(ctx *cli.Context) error {
					return withServer(ctx, func(_ context.Context, s *server.Server) error {
						return writeJSON(ctx.App.Writer, s.Personas().Current())
					})
				},
			},
			{
				Name:      "set",
				Usage:     "Update persona keys",
				ArgsUsage: "key=value [key=value...]",
				Action:    personaSetAction,
			},
		},
	}
}

func personaSetAction(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return cli.Exit("at least one key=value is required", 2)
	}
	update := make(map[string]json.RawMessage, ctx.NArg())
	for _, arg := range ctx.Args().Slice() {
		key, value, err := persona.ParseAssignment(arg)
		if err != nil {
			return cli.Exit(err.Error(), 2)
		}
		update[key] = value
	}

	return withServer(ctx, func(c context.Context, s *server.Server) error {
		p, err := s.Personas().Update(c, update)
		if err != nil {
			return err
		}
		return writeJSON(ctx.App.Writer, p)
	})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
