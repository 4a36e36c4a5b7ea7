package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/opentrusty/seedkeeper/internal/enroll"
	"github.com/opentrusty/seedkeeper/internal/otp"
	"github.com/opentrusty/seedkeeper/internal/seed"
)

var enrollCommand = &cli.Command{
	Name:  "enroll",
	Usage: "write an authenticator enrollment QR code for the provisioned seed",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "out",
			Value: "enroll.png",
			Usage: "PNG output file (mode 0600)",
		},
		&cli.StringFlag{
			Name:  "issuer",
			Value: "seedkeeper",
		},
		&cli.StringFlag{
			Name:  "account",
			Value: "operator",
		},
		&cli.IntFlag{
			Name:  "size",
			Value: 256,
			Usage: "image size in pixels",
		},
		&cli.BoolFlag{
			Name:  "print-uri",
			Usage: "also print the otpauth:// URI, which contains the secret",
		},
	},
	Action: func(cCtx *cli.Context) error {
		cfg, err := loadConfig(cCtx)
		if err != nil {
			return err
		}
		setupCLILogger(cfg)

		secret, err := seed.NewFileStore(cfg.Storage.SeedPath()).Load(cCtx.Context)
		if err != nil {
			return err
		}

		uri, err := enroll.WriteQRCode(cCtx.String("out"), secret, enroll.Params{
			Issuer:      cCtx.String("issuer"),
			AccountName: cCtx.String("account"),
			Config:      otp.DefaultConfig(),
		}, cCtx.Int("size"))
		if err != nil {
			return err
		}

		fmt.Fprintf(cCtx.App.Writer, "wrote %s\n", cCtx.String("out"))
		if cCtx.Bool("print-uri") {
			fmt.Fprintln(cCtx.App.Writer, uri)
		}
		return nil
	},
}
