package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"pytia/internal/generate"
)

func poemCmd() *cli.Command {
	var (
		prefix       string
		samples      int64
		temp         float64
		topK         int64
		topP         float64
		maxNewTokens int64
		seed         int64
	)

	return &cli.Command{
		Name:  "poem",
		Usage: "Generate alliterated lines (every word keeps the prefix letter)",
		Flags: append(append(commonModelFlags(), loggingFlags()...),
			&cli.StringFlag{
				Name:        "prefix",
				Aliases:     []string{"p"},
				Usage:       "line opener (default: the stock prefix list, one line each)",
				Destination: &prefix,
			},
			&cli.Int64Flag{
				Name:        "samples",
				Aliases:     []string{"n"},
				Usage:       "candidates sampled per line before ranking",
				Value:       5,
				Destination: &samples,
			},
			&cli.Float64Flag{
				Name:        "temp",
				Aliases:     []string{"temperature", "t"},
				Usage:       "sampling temperature",
				Value:       1.0,
				Destination: &temp,
			},
			&cli.Int64Flag{
				Name:        "top-k",
				Aliases:     []string{"top_k", "topk"},
				Usage:       "top-k sampling parameter",
				Value:       40,
				Destination: &topK,
			},
			&cli.Float64Flag{
				Name:        "top-p",
				Aliases:     []string{"top_p", "topp"},
				Usage:       "nucleus sampling parameter",
				Value:       0.9,
				Destination: &topP,
			},
			&cli.Int64Flag{
				Name:        "max-new-tokens",
				Usage:       "token budget per line",
				Value:       40,
				Destination: &maxNewTokens,
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
			applySamplingConfig(c, cfg, &temp, &topK, &topP, &maxNewTokens, &seed)
			log := newLogger()

			client, tok, err := dialModel(ctx)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: dial model server: %v", err), 1)
			}

			prefixes := generate.Prefixes
			if prefix != "" {
				prefixes = []string{prefix}
			}

			gcfg := generate.Config{
				Seed:         seed,
				Samples:      int(samples),
				Temperature:  temp,
				TopK:         int(topK),
				TopP:         topP,
				MaxNewTokens: int(maxNewTokens),
			}
			for _, p := range prefixes {
				line, err := generate.BestConstrained(ctx, client, tok, p, gcfg)
				if err != nil {
					log.Warn("line generation failed", "prefix", p, "error", err)
					continue
				}
				fmt.Println(line)
			}
			return nil
		},
	}
}
