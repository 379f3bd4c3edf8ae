package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"pytia/internal/api"
	"pytia/internal/chat"
	"pytia/internal/router"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the question answering and chat REST API",
		Flags: append(append(commonModelFlags(), loggingFlags()...),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg := LoadConfig()
			applyCommonConfig(c, cfg)
			applyServeConfig(c, cfg, &addr)
			log := newLogger()

			client, tok, err := dialModel(ctx)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: dial model server: %v", err), 1)
			}

			answers := router.New(client, client, router.WithLogger(log.With("component", "router")))
			chats := func() *chat.Session {
				return chat.NewSession(client, tok, chat.Config{}, log.With("component", "chat"))
			}
			server := api.NewServer(api.NewSessionStore(), answers, chats, log)

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
