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

// Package otp derives and verifies RFC 6238 time-based codes from the
// provisioned secret.
package otp

import (
	"context"
	"crypto/subtle"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/opentrusty/seedkeeper/internal/apperr"
	"github.com/opentrusty/seedkeeper/internal/seed"
)

// Config holds the TOTP parameters. It is passed to NewEngine and never
// changed afterwards.
type Config struct {
	Step      time.Duration
	Digits    int
	Algorithm Algorithm
	// Window is the number of steps accepted on either side of the current one.
	Window int
}

// DefaultConfig is the standard authenticator profile: 30s, 6 digits, SHA-1, ±1 step.
func DefaultConfig() Config {
	return Config{
		Step:      30 * time.Second,
		Digits:    6,
		Algorithm: SHA1,
		Window:    1,
	}
}

// Validate checks that the parameters are usable.
func (c Config) Validate() error {
	if c.Step < time.Second || c.Step%time.Second != 0 {
		return fmt.Errorf("step must be a whole number of seconds, got %s", c.Step)
	}
	if c.Digits < 6 || c.Digits > 8 {
		return fmt.Errorf("digits must be between 6 and 8, got %d", c.Digits)
	}
	if _, err := c.Algorithm.hash(); err != nil {
		return err
	}
	if c.Window < 0 {
		return fmt.Errorf("window must not be negative, got %d", c.Window)
	}
	return nil
}

// Code is a generated one-time code and the seconds left before it rotates.
type Code struct {
	Value    string
	ValidFor int
}

// Engine generates and verifies codes for the secret held in a seed.Store.
type Engine struct {
	store       seed.Store
	cfg         Config
	now         func() time.Time
	codePattern *regexp.Regexp
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine reading the secret from store.
func NewEngine(store seed.Store, cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid otp configuration: %w", err)
	}

	e := &Engine{
		store:       store,
		cfg:         cfg,
		now:         time.Now,
		codePattern: regexp.MustCompile(fmt.Sprintf(`^[0-9]{%d}$`, cfg.Digits)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the engine parameters.
func (e *Engine) Config() Config {
	return e.cfg
}

// Generate returns the code for the current step.
func (e *Engine) Generate(ctx context.Context) (Code, error) {
	secret, err := e.store.Load(ctx)
	if err != nil {
		return Code{}, err
	}

	now := e.now().Unix()
	step := int64(e.cfg.Step / time.Second)

	value, err := e.codeFor(secret, uint64(now/step))
	if err != nil {
		return Code{}, err
	}

	return Code{
		Value:    value,
		ValidFor: int(step - now%step),
	}, nil
}

// Verify reports whether code matches any step inside the window around the
// current one. A well-formed but wrong code is not an error.
func (e *Engine) Verify(ctx context.Context, code string) (bool, error) {
	code = strings.TrimSpace(code)
	if !e.codePattern.MatchString(code) {
		return false, apperr.ErrInvalidCodeFormat
	}

	secret, err := e.store.Load(ctx)
	if err != nil {
		return false, err
	}

	step := int64(e.cfg.Step / time.Second)
	current := e.now().Unix() / step

	matched := 0
	for i := -int64(e.cfg.Window); i <= int64(e.cfg.Window); i++ {
		counter := current + i
		if counter < 0 {
			continue
		}
		candidate, err := e.codeFor(secret, uint64(counter))
		if err != nil {
			return false, err
		}
		// no early exit
		matched |= subtle.ConstantTimeCompare([]byte(candidate), []byte(code))
	}
	return matched == 1, nil
}

// CodeAt derives the code for secret at t without touching the store.
func (e *Engine) CodeAt(secret seed.Secret, t time.Time) (string, error) {
	step := int64(e.cfg.Step / time.Second)
	return e.codeFor(secret, uint64(t.Unix()/step))
}

// codeFor converts the hex secret to its base32 authenticator form and
// decodes that into the HMAC key.
func (e *Engine) codeFor(secret seed.Secret, counter uint64) (string, error) {
	key, err := seed.DecodeBase32(secret.Base32())
	if err != nil || len(key) == 0 {
		return "", apperr.ErrSeedMissing
	}
	return HOTP(key, counter, e.cfg.Digits, e.cfg.Algorithm)
}
