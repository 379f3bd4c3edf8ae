package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"pytia/internal/chat"
)

func chatCmd() *cli.Command {
	var (
		temp         float64
		topP         float64
		candidates   int64
		maxNewTokens int64
		maxTurns     int64
		seed         int64
	)

	return &cli.Command{
		Name:  "chat",
		Usage: "Chat interactively with the model",
		Flags: append(append(commonModelFlags(), loggingFlags()...),
			&cli.Float64Flag{
				Name:        "temp",
				Aliases:     []string{"temperature", "t"},
				Usage:       "sampling temperature",
				Value:       0.8,
				Destination: &temp,
			},
			&cli.Float64Flag{
				Name:        "top-p",
				Aliases:     []string{"top_p", "topp"},
				Usage:       "nucleus sampling parameter",
				Value:       0.85,
				Destination: &topP,
			},
			&cli.Int64Flag{
				Name:        "candidates",
				Aliases:     []string{"n"},
				Usage:       "replies sampled per turn before ranking",
				Value:       10,
				Destination: &candidates,
			},
			&cli.Int64Flag{
				Name:        "max-new-tokens",
				Usage:       "token budget per sampled reply",
				Value:       50,
				Destination: &maxNewTokens,
			},
			&cli.Int64Flag{
				Name:        "max-turns",
				Usage:       "history window in turns",
				Value:       14,
				Destination: &maxTurns,
			},
			&cli.Int64Flag{
				Name:        "seed",
				Usage:       "sampling RNG seed",
				Destination: &seed,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg := LoadConfig()
			applyCommonConfig(c, cfg)
			applySamplingConfig(c, cfg, &temp, nil, &topP, &maxNewTokens, &seed)
			log := newLogger()

			client, tok, err := dialModel(ctx)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: dial model server: %v", err), 1)
			}

			session := chat.NewSession(client, tok, chat.Config{
				Seed:         seed,
				MaxTurns:     int(maxTurns),
				Candidates:   int(candidates),
				MaxNewTokens: int(maxNewTokens),
				Temperature:  temp,
				TopP:         topP,
			}, log.With("component", "chat"))

			for {
				line, err := readInteractiveLine("USER> ")
				if err != nil {
					if err == io.EOF {
						return nil
					}
					return cli.Exit(fmt.Sprintf("error: read line: %v", err), 1)
				}
				if line == "" {
					continue
				}
				if line == "/quit" || line == "/exit" {
					return nil
				}
				reply, err := session.Reply(ctx, line)
				if err != nil {
					fmt.Fprintf(os.Stderr, "błąd: %v\n", err)
					continue
				}
				fmt.Printf("BOT > %s\n", reply)
			}
		},
	}
}
