// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/opentrusty/seedkeeper/internal/config"
	"github.com/opentrusty/seedkeeper/internal/observability/logger"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

var envFileFlag = &cli.StringSliceFlag{
	Name:  "env-file",
	Usage: "dotenv file(s) applied before reading the environment (default: ./.env if present)",
}

var logLevelFlag = &cli.StringFlag{
	Name:  "log-level",
	Usage: "override LOG_LEVEL (debug, info, warn, error)",
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "seedkeeper: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "seedkeeper",
		Usage:   "Provision a shared TOTP seed, serve codes and sign commits",
		Version: version,
		Flags:   []cli.Flag{envFileFlag, logLevelFlag},
		Commands: []*cli.Command{
			serveCommand,
			keygenCommand,
			sendSeedCommand,
			cronCommand,
			signCommitCommand,
			verifyCommitCommand,
			enrollCommand,
		},
	}
}

func loadConfig(cCtx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(cCtx.StringSlice(envFileFlag.Name)...)
	if err != nil {
		return nil, err
	}
	if level := cCtx.String(logLevelFlag.Name); level != "" {
		cfg.Observability.LogLevel = level
	}
	if cfg.Observability.ServiceVersion == "dev" {
		cfg.Observability.ServiceVersion = version
	}
	return cfg, nil
}

// setupCLILogger logs to stderr in text form so command output on stdout
// stays clean.
func setupCLILogger(cfg *config.Config) *slog.Logger {
	l := logger.New(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      "text",
		ServiceName: cfg.Observability.ServiceName,
		Output:      os.Stderr,
	})
	slog.SetDefault(l)
	return l
}
