package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/opentrusty/seedkeeper/internal/client"
	"github.com/opentrusty/seedkeeper/internal/fsutil"
	"github.com/opentrusty/seedkeeper/internal/observability/logger"
	"github.com/opentrusty/seedkeeper/internal/seed"
)

var sendSeedCommand = &cli.Command{
	Name:  "send-seed",
	Usage: "encrypt a seed to a running service and provision it",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "url",
			Value:   "http://localhost:8080",
			EnvVars: []string{"SEEDKEEPER_URL"},
			Usage:   "base URL of the service",
		},
		&cli.StringFlag{
			Name:  "seed",
			Usage: "64 hex character seed to send (default: a fresh random seed)",
		},
		&cli.StringFlag{
			Name:  "seed-out",
			Usage: "write the seed to this file (mode 0600)",
		},
		&cli.BoolFlag{
			Name:  "print-seed",
			Usage: "print the seed to stdout",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "print the request body instead of posting it",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Value: 30 * time.Second,
			Usage: "request timeout",
		},
	},
	Action: func(cCtx *cli.Context) error {
		cfg, err := loadConfig(cCtx)
		if err != nil {
			return err
		}
		setupCLILogger(cfg)
		ctx := cCtx.Context

		var secret seed.Secret
		if raw := cCtx.String("seed"); raw != "" {
			secret, err = seed.Parse(raw)
		} else {
			secret, err = seed.Generate()
		}
		if err != nil {
			return err
		}

		if out := cCtx.String("seed-out"); out != "" {
			if err := fsutil.WriteFileAtomic(out, []byte(secret.Hex()+"\n"), 0o600); err != nil {
				return err
			}
			slog.Info("seed written", logger.File(out))
		}
		if cCtx.Bool("print-seed") {
			fmt.Fprintln(cCtx.App.Writer, secret.Hex())
		}

		c := client.New(cCtx.String("url"), cCtx.Duration("timeout"))

		if cCtx.Bool("dry-run") {
			pub, err := c.PublicKey(ctx)
			if err != nil {
				return err
			}
			encrypted, err := seed.EncryptForTransport(pub, secret)
			if err != nil {
				return err
			}
			body, err := json.Marshal(map[string]string{"encrypted_seed": encrypted})
			if err != nil {
				return err
			}
			fmt.Fprintln(cCtx.App.Writer, string(body))
			return nil
		}

		if err := c.SendSeed(ctx, secret); err != nil {
			return err
		}
		slog.Info("seed provisioned", logger.String("url", cCtx.String("url")))
		return nil
	},
}
