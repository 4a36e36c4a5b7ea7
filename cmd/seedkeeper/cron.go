package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/opentrusty/seedkeeper/internal/cronjob"
	"github.com/opentrusty/seedkeeper/internal/otp"
	"github.com/opentrusty/seedkeeper/internal/seed"
)

var cronCommand = &cli.Command{
	Name:  "cron",
	Usage: "append the current code to the cron log",
	Flags: []cli.Flag{
		&cli.DurationFlag{
			Name:  "interval",
			Usage: "keep running and append every interval (default: CRON_INTERVAL, 0 runs once)",
		},
	},
	Action: func(cCtx *cli.Context) error {
		cfg, err := loadConfig(cCtx)
		if err != nil {
			return err
		}
		setupCLILogger(cfg)

		engine, err := otp.NewEngine(seed.NewFileStore(cfg.Storage.SeedPath()), otp.DefaultConfig())
		if err != nil {
			return err
		}
		job := cronjob.New(engine, cfg.Cron.Path())

		interval := cfg.Cron.Interval
		if cCtx.IsSet("interval") {
			interval = cCtx.Duration("interval")
		}
		if interval <= 0 {
			return job.RunOnce(cCtx.Context)
		}

		ctx, stop := signal.NotifyContext(cCtx.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()
		return job.Run(ctx, interval)
	},
}
