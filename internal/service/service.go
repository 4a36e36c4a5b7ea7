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

// Package service exposes the operations offered to callers: public key
// distribution, seed provisioning, code generation and verification, and
// commit signing.
package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/opentrusty/seedkeeper/internal/apperr"
	"github.com/opentrusty/seedkeeper/internal/attest"
	"github.com/opentrusty/seedkeeper/internal/keystore"
	"github.com/opentrusty/seedkeeper/internal/observability/logger"
	"github.com/opentrusty/seedkeeper/internal/observability/metrics"
	"github.com/opentrusty/seedkeeper/internal/otp"
	"github.com/opentrusty/seedkeeper/internal/seed"
)

// ProvisionResult is returned by a successful ProvisionSeed.
type ProvisionResult struct {
	Status string `json:"status"`
}

// CodeResult is the current code and its remaining lifetime in seconds.
type CodeResult struct {
	Code     string `json:"code"`
	ValidFor int    `json:"valid_for"`
}

type VerifyResult struct {
	Valid bool `json:"valid"`
}

// SignResult carries base64 (standard alphabet) signatures.
type SignResult struct {
	Signature          string `json:"signature"`
	EncryptedSignature string `json:"encrypted_signature,omitempty"`
}

// Service wires the key store, provisioner, OTP engine and signer together.
type Service struct {
	keys        *keystore.KeyStore
	store       seed.Store
	provisioner *seed.Provisioner
	engine      *otp.Engine
	signer      *attest.Signer
	tracer      trace.Tracer
	instruments *metrics.Instruments
	clock       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

func WithInstruments(i *metrics.Instruments) Option {
	return func(s *Service) { s.instruments = i }
}

// WithClock replaces the clock used for code generation.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.clock = now }
}

// New creates the service. TOTP parameters are fixed to otp.DefaultConfig.
func New(keys *keystore.KeyStore, store seed.Store, opts ...Option) (*Service, error) {
	if keys == nil {
		return nil, apperr.ErrKeyMissing
	}

	s := &Service{
		keys:        keys,
		store:       store,
		provisioner: seed.NewProvisioner(keys.PrivateKey(), store),
		signer:      attest.NewSigner(keys.PrivateKey()),
		tracer:      noop.NewTracerProvider().Tracer(""),
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	engine, err := otp.NewEngine(store, otp.DefaultConfig(), otp.WithClock(s.clock))
	if err != nil {
		return nil, fmt.Errorf("failed to create otp engine: %w", err)
	}
	s.engine = engine

	return s, nil
}

// GetPublicKey returns the PEM encoded public key.
func (s *Service) GetPublicKey(_ context.Context) string {
	return string(s.keys.PublicKeyPEM())
}

// KeyID returns the identifier of the service key pair.
func (s *Service) KeyID() string {
	return s.keys.KeyID()
}

// ProvisionSeed installs the seed carried by encryptedB64.
func (s *Service) ProvisionSeed(ctx context.Context, encryptedB64 string) (res ProvisionResult, err error) {
	ctx, done := s.begin(ctx, metrics.OpProvision)
	defer func() { done(err) }()

	if _, err = s.provisioner.Provision(ctx, encryptedB64); err != nil {
		return ProvisionResult{}, err
	}

	slog.InfoContext(ctx, "seed provisioned", logger.Component("service"), logger.Operation(metrics.OpProvision))
	return ProvisionResult{Status: "ok"}, nil
}

// GenerateCode returns the current code.
func (s *Service) GenerateCode(ctx context.Context) (res CodeResult, err error) {
	ctx, done := s.begin(ctx, metrics.OpGenerate)
	defer func() { done(err) }()

	code, err := s.engine.Generate(ctx)
	if err != nil {
		return CodeResult{}, err
	}
	return CodeResult{Code: code.Value, ValidFor: code.ValidFor}, nil
}

// VerifyCode checks code against the drift window.
func (s *Service) VerifyCode(ctx context.Context, code string) (res VerifyResult, err error) {
	ctx, done := s.begin(ctx, metrics.OpVerify)
	defer func() { done(err) }()

	ok, err := s.engine.Verify(ctx, code)
	if err != nil {
		return VerifyResult{}, err
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.Bool("otp.valid", ok))
	return VerifyResult{Valid: ok}, nil
}

// SignCommit signs hash and, when recipientPEM is not empty, also returns
// the signature encrypted to that key.
func (s *Service) SignCommit(ctx context.Context, hash, recipientPEM string) (res SignResult, err error) {
	ctx, done := s.begin(ctx, metrics.OpSign)
	defer func() { done(err) }()

	if recipientPEM == "" {
		sig, err := s.signer.Sign(hash)
		if err != nil {
			return SignResult{}, err
		}
		return SignResult{Signature: base64.StdEncoding.EncodeToString(sig)}, nil
	}

	sig, enc, err := s.signer.SignAndEncryptFor(hash, recipientPEM)
	if err != nil {
		return SignResult{}, err
	}
	return SignResult{
		Signature:          base64.StdEncoding.EncodeToString(sig),
		EncryptedSignature: base64.StdEncoding.EncodeToString(enc),
	}, nil
}

// begin opens a span for op; the returned func closes it and records the
// outcome.
func (s *Service) begin(ctx context.Context, op string) (context.Context, func(error)) {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, "seedkeeper."+op)

	return ctx, func(err error) {
		result := "ok"
		if err != nil {
			code := apperr.CodeOf(err)
			result = string(code)
			span.SetStatus(codes.Error, result)

			if code == apperr.CodeInternal {
				span.RecordError(err)
				slog.ErrorContext(ctx, "operation failed",
					logger.Component("service"),
					logger.Operation(op),
					logger.Error(err),
				)
			} else {
				slog.WarnContext(ctx, "operation rejected",
					logger.Component("service"),
					logger.Operation(op),
					logger.ErrorCode(result),
				)
			}
		}
		span.SetAttributes(attribute.String("result", result))
		s.instruments.Record(ctx, op, result, started)
		span.End()
	}
}
