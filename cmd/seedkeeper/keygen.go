package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/opentrusty/seedkeeper/internal/keystore"
)

var keygenCommand = &cli.Command{
	Name:  "keygen",
	Usage: "generate the service RSA key pair",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "bits",
			Usage: "modulus size (default: KEYS_BITS)",
		},
		&cli.BoolFlag{
			Name:  "force",
			Usage: "replace an existing key pair",
		},
	},
	Action: func(cCtx *cli.Context) error {
		cfg, err := loadConfig(cCtx)
		if err != nil {
			return err
		}
		setupCLILogger(cfg)

		bits := cfg.Storage.KeyBits
		if cCtx.IsSet("bits") {
			bits = cCtx.Int("bits")
		}

		ks, err := keystore.Create(keystore.Config{
			PrivateKeyPath: cfg.Storage.PrivateKeyPath(),
			PublicKeyPath:  cfg.Storage.PublicKeyPath(),
			Bits:           bits,
			Overwrite:      cCtx.Bool("force"),
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cCtx.App.Writer, "private key: %s\npublic key:  %s\nkey id:      %s\n",
			cfg.Storage.PrivateKeyPath(), cfg.Storage.PublicKeyPath(), ks.KeyID())
		return nil
	},
}
