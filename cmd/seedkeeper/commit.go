package main

import (
	"bufio"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/opentrusty/seedkeeper/internal/attest"
	"github.com/opentrusty/seedkeeper/internal/fsutil"
	"github.com/opentrusty/seedkeeper/internal/keystore"
)

var signCommitCommand = &cli.Command{
	Name:  "sign-commit",
	Usage: "sign a commit hash with the service key",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "hash",
			Required: true,
			Usage:    `40 hex character commit hash, or "-" to read it from stdin`,
		},
		&cli.StringFlag{
			Name:  "recipient-key",
			Usage: "PEM public key to encrypt the signature to",
		},
		&cli.StringFlag{
			Name:  "out",
			Value: "commit_sign.txt",
			Usage: "output file for the base64 signature",
		},
	},
	Action: func(cCtx *cli.Context) error {
		cfg, err := loadConfig(cCtx)
		if err != nil {
			return err
		}
		setupCLILogger(cfg)

		hash, err := readHash(cCtx.String("hash"), cCtx.App.Reader)
		if err != nil {
			return err
		}

		keys, err := keystore.LoadOrCreate(keystore.Config{
			PrivateKeyPath: cfg.Storage.PrivateKeyPath(),
			PublicKeyPath:  cfg.Storage.PublicKeyPath(),
		})
		if err != nil {
			return err
		}
		signer := attest.NewSigner(keys.PrivateKey())

		var out []byte
		if path := cCtx.String("recipient-key"); path != "" {
			recipientPEM, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read recipient key: %w", err)
			}
			_, out, err = signer.SignAndEncryptFor(hash, string(recipientPEM))
			if err != nil {
				return err
			}
		} else if out, err = signer.Sign(hash); err != nil {
			return err
		}

		// single line, no trailing newline
		encoded := base64.StdEncoding.EncodeToString(out)
		if err := fsutil.WriteFileAtomic(cCtx.String("out"), []byte(encoded), 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cCtx.App.Writer, "wrote %s\n", cCtx.String("out"))
		return nil
	},
}

var verifyCommitCommand = &cli.Command{
	Name:  "verify-commit",
	Usage: "verify a plain base64 commit signature",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "hash",
			Required: true,
			Usage:    `40 hex character commit hash, or "-" to read it from stdin`,
		},
		&cli.StringFlag{
			Name:  "signature-file",
			Value: "commit_sign.txt",
			Usage: "file holding the base64 signature",
		},
		&cli.StringFlag{
			Name:  "public-key",
			Usage: "PEM public key of the signer (default: the service public key)",
		},
	},
	Action: func(cCtx *cli.Context) error {
		cfg, err := loadConfig(cCtx)
		if err != nil {
			return err
		}
		setupCLILogger(cfg)

		hash, err := readHash(cCtx.String("hash"), cCtx.App.Reader)
		if err != nil {
			return err
		}

		keyPath := cCtx.String("public-key")
		if keyPath == "" {
			keyPath = cfg.Storage.PublicKeyPath()
		}
		pemBytes, err := os.ReadFile(keyPath)
		if err != nil {
			return fmt.Errorf("failed to read public key: %w", err)
		}
		pub, err := keystore.ParsePublicKeyPEM(pemBytes)
		if err != nil {
			return err
		}

		raw, err := os.ReadFile(cCtx.String("signature-file"))
		if err != nil {
			return fmt.Errorf("failed to read signature: %w", err)
		}
		sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
		if err != nil {
			return fmt.Errorf("signature is not base64: %w", err)
		}

		if err := attest.Verify(pub, hash, sig); err != nil {
			return err
		}
		fmt.Fprintln(cCtx.App.Writer, "signature OK")
		return nil
	},
}

func readHash(arg string, stdin io.Reader) (string, error) {
	if arg != "-" {
		return strings.TrimSpace(arg), nil
	}
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read hash from stdin: %w", err)
	}
	return strings.TrimSpace(line), nil
}
