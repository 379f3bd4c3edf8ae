package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"pytia/internal/lm"
	"pytia/internal/lm/remote"
	"pytia/internal/lm/tiktok"
	"pytia/internal/logger"
)

var (
	serverURL string
	timeout   time.Duration
	encoding  string
	logLevel  string
	logFormat string
	debug     bool
)

func commonModelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "server",
			Aliases:     []string{"s"},
			Usage:       "base URL of the model server",
			Value:       "http://127.0.0.1:8008",
			Destination: &serverURL,
		},
		&cli.DurationFlag{
			Name:        "timeout",
			Usage:       "model server request timeout",
			Value:       120 * time.Second,
			Destination: &timeout,
		},
		&cli.StringFlag{
			Name:        "encoding",
			Usage:       "tiktoken encoding for causal prompts (empty = server tokenizer)",
			Destination: &encoding,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

func newLogger() logger.Logger {
	level := logger.ParseLevel(logLevel)
	if debug {
		level = slog.LevelDebug
	}
	switch logFormat {
	case "json":
		return logger.JSON(os.Stderr, level)
	case "text":
		return logger.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	default:
		return logger.Pretty(os.Stderr, level)
	}
}

// dialModel connects to the model server. The server's own vocabulary is the
// default tokenizer; --encoding swaps in a tiktoken BPE for causal prompts.
func dialModel(ctx context.Context) (*remote.Client, lm.Tokenizer, error) {
	client, err := remote.Dial(ctx, serverURL, timeout)
	if err != nil {
		return nil, nil, err
	}
	var tok lm.Tokenizer = client
	if encoding != "" {
		t, err := tiktok.New(encoding)
		if err != nil {
			return nil, nil, err
		}
		tok = t
	}
	return client, tok, nil
}
