package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"pytia/internal/logger"
	"pytia/internal/router"
)

func answerCmd() *cli.Command {
	var (
		inPath  string
		outPath string
		sorted  bool
	)

	return &cli.Command{
		Name:      "answer",
		Usage:     "Answer factual questions (batch or interactive)",
		ArgsUsage: "[question ...]",
		Flags: append(append(commonModelFlags(), loggingFlags()...),
			&cli.StringFlag{
				Name:        "in",
				Aliases:     []string{"i"},
				Usage:       "questions file, one per line (\"-\" = stdin)",
				Destination: &inPath,
			},
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "TSV output file (default stdout)",
				Destination: &outPath,
			},
			&cli.BoolFlag{
				Name:        "sorted",
				Usage:       "answer questions in lexicographic order instead of input order",
				Destination: &sorted,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg := LoadConfig()
			applyCommonConfig(c, cfg)
			log := newLogger()
			ctx = logger.WithContext(ctx, log)

			client, _, err := dialModel(ctx)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: dial model server: %v", err), 1)
			}

			opts := []router.Option{router.WithLogger(log.With("component", "router"))}
			if sorted {
				opts = append(opts, router.Sorted())
			}
			// The masked model's ids must match its own vocabulary, so the
			// router always tokenizes through the server.
			engine := router.New(client, client, opts...)

			if questions := c.Args().Slice(); len(questions) > 0 {
				return answerBatch(ctx, engine, questions, outPath)
			}
			if inPath == "" && stdinIsTTY() {
				return answerInteractive(ctx, engine)
			}

			in, err := openInput(inPath)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open questions: %v", err), 1)
			}
			defer func() { _ = in.Close() }()
			questions, err := readQuestions(in)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: read questions: %v", err), 1)
			}
			return answerBatch(ctx, engine, questions, outPath)
		},
	}
}

func answerBatch(ctx context.Context, engine *router.Engine, questions []string, outPath string) error {
	out, err := openOutput(outPath)
	if err != nil {
		return cli.Exit(fmt.Sprintf("error: open output: %v", err), 1)
	}
	defer func() { _ = out.Close() }()

	results := engine.AnswerAll(ctx, questions)
	if err := writeTSV(out, results); err != nil {
		return cli.Exit(fmt.Sprintf("error: write answers: %v", err), 1)
	}
	logger.FromContext(ctx).Debug("batch answered", "questions", len(questions))
	return nil
}

// answerInteractive answers one question per line until EOF. A failing turn
// is reported and the loop continues.
func answerInteractive(ctx context.Context, engine *router.Engine) error {
	for {
		line, err := readInteractiveLine("pytanie> ")
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return cli.Exit(fmt.Sprintf("error: read line: %v", err), 1)
		}
		if line == "" {
			continue
		}
		answer, err := engine.Answer(ctx, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "błąd: %v\n", err)
			continue
		}
		fmt.Println(answer)
	}
}
