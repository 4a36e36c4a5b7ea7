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

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Storage       StorageConfig
	Observability ObservabilityConfig
	RateLimit     RateLimitConfig
	Cron          CronConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port            string        `env:"PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	DrainDuration   time.Duration `env:"SERVER_DRAIN_DURATION" envDefault:"0s"`
	MaxBodyBytes    int64         `env:"SERVER_MAX_BODY_BYTES" envDefault:"1048576"`

	// AdminAddr is the listener for the drain controls.
	AdminAddr string `env:"SERVER_ADMIN_ADDR" envDefault:"127.0.0.1:8081"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// StorageConfig holds the location of the key pair and the seed.
type StorageConfig struct {
	DataDir        string `env:"DATA_DIR" envDefault:"/data"`
	PrivateKeyFile string `env:"PRIVATE_KEY_FILE" envDefault:"private.pem"`
	PublicKeyFile  string `env:"PUBLIC_KEY_FILE" envDefault:"public.pem"`
	SeedFile       string `env:"SEED_FILE" envDefault:"seed.txt"`
	AutoGenerate   bool   `env:"KEYS_AUTO_GENERATE" envDefault:"true"`
	KeyBits        int    `env:"KEYS_BITS" envDefault:"4096"`
}

func (s StorageConfig) PrivateKeyPath() string { return s.resolve(s.PrivateKeyFile) }
func (s StorageConfig) PublicKeyPath() string  { return s.resolve(s.PublicKeyFile) }
func (s StorageConfig) SeedPath() string       { return s.resolve(s.SeedFile) }

// absolute file names are used as is
func (s StorageConfig) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.DataDir, name)
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string  `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string  `env:"LOG_FORMAT" envDefault:"json"`
	LogInstanceID  bool    `env:"LOG_INSTANCE_ID" envDefault:"false"`
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	ServiceName    string  `env:"OTEL_SERVICE_NAME" envDefault:"seedkeeper"`
	ServiceVersion string  `env:"SERVICE_VERSION" envDefault:"dev"`
	SamplingRate   float64 `env:"OTEL_SAMPLING_RATE" envDefault:"1.0"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64 `env:"RATE_LIMIT_RPS" envDefault:"10"`
	Burst             int     `env:"RATE_LIMIT_BURST" envDefault:"20"`
	TrustProxy        bool    `env:"RATE_LIMIT_TRUST_PROXY" envDefault:"false"`
}

// CronConfig holds the code log writer configuration.
type CronConfig struct {
	Dir      string        `env:"CRON_DIR" envDefault:"/cron"`
	File     string        `env:"CRON_FILE" envDefault:"last_code.txt"`
	Interval time.Duration `env:"CRON_INTERVAL" envDefault:"0s"`
}

// Path returns the code log file.
func (c CronConfig) Path() string {
	if filepath.IsAbs(c.File) {
		return c.File
	}
	return filepath.Join(c.Dir, c.File)
}

// Load reads configuration from the environment. Dotenv files are applied
// first without overriding variables that are already set; with no files
// given an optional ./.env is read.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read .env: %w", err)
		}
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, fmt.Errorf("failed to read env file: %w", err)
	}

	return parse(env.Options{})
}

// LoadFrom reads configuration from environment only, ignoring the process
// environment.
func LoadFrom(environment map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environment})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("PORT is required"))
	}
	if c.Server.AdminAddr != "" && c.Server.AdminAddr == c.Server.Addr() {
		errs = append(errs, errors.New("SERVER_ADMIN_ADDR must differ from the public listener"))
	}
	if c.Storage.DataDir == "" {
		errs = append(errs, errors.New("DATA_DIR is required"))
	}
	if c.Storage.KeyBits < 2048 {
		errs = append(errs, fmt.Errorf("KEYS_BITS must be at least 2048, got %d", c.Storage.KeyBits))
	}
	if c.Storage.PrivateKeyPath() == c.Storage.SeedPath() || c.Storage.PublicKeyPath() == c.Storage.SeedPath() {
		errs = append(errs, errors.New("SEED_FILE must differ from the key files"))
	}
	switch c.Observability.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Observability.LogFormat))
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive"))
	}
	if c.Cron.Interval < 0 {
		errs = append(errs, errors.New("CRON_INTERVAL must not be negative"))
	}

	return errors.Join(errs...)
}
