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

// Package client talks to a running seedkeeper over HTTP. It is used by the
// send-seed and verify commands.
package client

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opentrusty/seedkeeper/internal/apperr"
	"github.com/opentrusty/seedkeeper/internal/keystore"
	"github.com/opentrusty/seedkeeper/internal/observability/logger"
	"github.com/opentrusty/seedkeeper/internal/seed"
	"github.com/opentrusty/seedkeeper/internal/service"
)

const maxResponseBytes = 1 << 20

// APIError is a non-2xx response. It matches the apperr sentinel named by
// its code, so callers can use errors.Is(err, apperr.ErrSeedMissing).
type APIError struct {
	StatusCode  int
	Code        apperr.Code
	Description string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("seedkeeper returned %d", e.StatusCode)
	}
	return fmt.Sprintf("seedkeeper returned %d: %s (%s)", e.StatusCode, e.Code, e.Description)
}

func (e *APIError) Is(target error) bool {
	if e.Code == "" || e.Code == apperr.CodeInternal {
		return false
	}
	return apperr.CodeOf(target) == e.Code
}

// Client is a seedkeeper HTTP client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for baseURL (e.g. "http://localhost:8080"). The
// request timeout defaults to 30 seconds.
func New(baseURL string, timeout ...time.Duration) *Client {
	clientTimeout := 30 * time.Second
	if len(timeout) > 0 {
		clientTimeout = timeout[0]
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: clientTimeout,
		},
	}
}

// PublicKey fetches and parses the service public key.
func (c *Client) PublicKey(ctx context.Context) (*rsa.PublicKey, error) {
	resp, err := c.do(ctx, http.MethodGet, "/public-key", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read public key: %w", err)
	}
	pub, err := keystore.ParsePublicKeyPEM(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return pub, nil
}

// SendSeed fetches the service key, encrypts secret to it and provisions it.
func (c *Client) SendSeed(ctx context.Context, secret seed.Secret) error {
	pub, err := c.PublicKey(ctx)
	if err != nil {
		return err
	}
	encrypted, err := seed.EncryptForTransport(pub, secret)
	if err != nil {
		return fmt.Errorf("failed to encrypt seed: %w", err)
	}
	return c.Provision(ctx, encrypted)
}

// Provision posts an already encrypted, base64 encoded seed.
func (c *Client) Provision(ctx context.Context, encryptedB64 string) error {
	var res service.ProvisionResult
	if err := c.postJSON(ctx, "/decrypt-seed", map[string]string{"encrypted_seed": encryptedB64}, &res); err != nil {
		return err
	}
	if res.Status != "ok" {
		return fmt.Errorf("unexpected provision status %q", res.Status)
	}
	return nil
}

// GenerateCode fetches the current code.
func (c *Client) GenerateCode(ctx context.Context) (service.CodeResult, error) {
	var res service.CodeResult
	resp, err := c.do(ctx, http.MethodGet, "/generate-2fa", nil)
	if err != nil {
		return res, err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&res); err != nil {
		return res, fmt.Errorf("failed to parse code response: %w", err)
	}
	return res, nil
}

// VerifyCode asks the service whether code is currently valid.
func (c *Client) VerifyCode(ctx context.Context, code string) (bool, error) {
	var res service.VerifyResult
	if err := c.postJSON(ctx, "/verify-2fa", map[string]string{"code": code}, &res); err != nil {
		return false, err
	}
	return res.Valid, nil
}

// SignCommit asks the service to sign hash, optionally encrypting the
// signature to recipientPEM.
func (c *Client) SignCommit(ctx context.Context, hash, recipientPEM string) (service.SignResult, error) {
	var res service.SignResult
	req := map[string]string{"commit_hash": hash}
	if recipientPEM != "" {
		req["recipient_public_key"] = recipientPEM
	}
	err := c.postJSON(ctx, "/sign-commit", req, &res)
	return res, err
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	reqJSON, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, path, reqJSON)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", path, err)
	}
	return nil
}

// do sends the request and converts non-2xx responses into *APIError. The
// caller closes the body on success.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-Id", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s request failed: %w", method, path, err)
	}
	slog.DebugContext(ctx, "seedkeeper response",
		logger.Component("client"),
		logger.RequestID(requestID),
		logger.Method(method),
		logger.Path(path),
		logger.StatusCode(resp.StatusCode),
	)

	if resp.StatusCode/100 == 2 {
		return resp, nil
	}
	defer resp.Body.Close()

	apiErr := &APIError{StatusCode: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	var wire apperr.Error
	if json.Unmarshal(raw, &wire) == nil {
		apiErr.Code = wire.Code
		apiErr.Description = wire.Description
	}
	return nil, apiErr
}
