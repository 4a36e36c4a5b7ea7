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

// Package keystore owns the service RSA key pair.
//
// The pair is loaded (or generated) once at startup and never mutated
// afterwards. Regeneration is an explicit operation (Create) and is never
// triggered implicitly by a load.
package keystore

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/opentrusty/seedkeeper/internal/apperr"
	"github.com/opentrusty/seedkeeper/internal/fsutil"
	"github.com/opentrusty/seedkeeper/internal/observability/logger"
)

const (
	// DefaultBits is the modulus size used for new key pairs.
	DefaultBits = 4096
	// MinBits is the smallest modulus accepted for generation.
	MinBits = 2048

	privateKeyMode = 0o600
	publicKeyMode  = 0o644
)

// ErrKeyExists is returned by Create when a private key is already present
// and Overwrite is not set.
var ErrKeyExists = errors.New("private key already exists")

// Config holds key file locations and generation settings.
type Config struct {
	PrivateKeyPath string
	PublicKeyPath  string
	Bits           int
	AutoGenerate   bool
	Overwrite      bool
}

// KeyStore holds an immutable RSA key pair.
type KeyStore struct {
	private   *rsa.PrivateKey
	publicPEM []byte
	kid       string
}

// LoadOrCreate loads the key pair from disk. When no private key exists it
// generates one if cfg.AutoGenerate is set and fails with apperr.ErrKeyMissing
// otherwise.
func LoadOrCreate(cfg Config) (*KeyStore, error) {
	exists, err := fsutil.Exists(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat private key: %w", err)
	}
	if !exists {
		if !cfg.AutoGenerate {
			return nil, fmt.Errorf("%s: %w", cfg.PrivateKeyPath, apperr.ErrKeyMissing)
		}
		slog.Info("no key pair found, generating",
			logger.Component("keystore"),
			logger.File(cfg.PrivateKeyPath),
		)
		return Create(cfg)
	}

	priv, err := readPrivateKey(cfg.PrivateKeyPath)
	if err != nil {
		return nil, err
	}
	ks, err := newKeyStore(priv)
	if err != nil {
		return nil, err
	}

	pubExists, err := fsutil.Exists(cfg.PublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat public key: %w", err)
	}
	if !pubExists {
		if err := fsutil.WriteFileAtomic(cfg.PublicKeyPath, ks.publicPEM, publicKeyMode); err != nil {
			return nil, fmt.Errorf("failed to write public key: %w", err)
		}
		return ks, nil
	}

	pub, err := readPublicKey(cfg.PublicKeyPath)
	if err != nil {
		return nil, err
	}
	if !pub.Equal(&priv.PublicKey) {
		return nil, fmt.Errorf("public key %s does not match private key", cfg.PublicKeyPath)
	}

	slog.Info("key pair loaded",
		logger.Component("keystore"),
		logger.KeyID(ks.kid),
		logger.KeyBits(priv.N.BitLen()),
	)
	return ks, nil
}

// Create generates a new key pair and persists it: PKCS8 private key with
// owner-only permissions and SPKI public key.
func Create(cfg Config) (*KeyStore, error) {
	bits := cfg.Bits
	if bits == 0 {
		bits = DefaultBits
	}
	if bits < MinBits {
		return nil, fmt.Errorf("key size %d below minimum %d", bits, MinBits)
	}

	if !cfg.Overwrite {
		exists, err := fsutil.Exists(cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to stat private key: %w", err)
		}
		if exists {
			return nil, fmt.Errorf("%s: %w", cfg.PrivateKeyPath, ErrKeyExists)
		}
	}

	// rsa.GenerateKey always uses e=65537
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	ks, err := newKeyStore(priv)
	if err != nil {
		return nil, err
	}

	privPEM, err := encodePrivateKey(priv)
	if err != nil {
		return nil, err
	}
	if err := fsutil.WriteFileAtomic(cfg.PrivateKeyPath, privPEM, privateKeyMode); err != nil {
		return nil, fmt.Errorf("failed to write private key: %w", err)
	}
	if err := fsutil.WriteFileAtomic(cfg.PublicKeyPath, ks.publicPEM, publicKeyMode); err != nil {
		return nil, fmt.Errorf("failed to write public key: %w", err)
	}

	slog.Info("key pair generated",
		logger.Component("keystore"),
		logger.KeyID(ks.kid),
		logger.KeyBits(bits),
	)
	return ks, nil
}

// FromPrivateKey wraps an in-memory key. Nothing is persisted.
func FromPrivateKey(priv *rsa.PrivateKey) (*KeyStore, error) {
	if priv == nil {
		return nil, apperr.ErrKeyMissing
	}
	return newKeyStore(priv)
}

func newKeyStore(priv *rsa.PrivateKey) (*KeyStore, error) {
	pubPEM, err := EncodePublicKey(&priv.PublicKey)
	if err != nil {
		return nil, err
	}

	// Stable key id: SHA-256 thumbprint of the modulus
	sum := sha256.Sum256(priv.PublicKey.N.Bytes())

	return &KeyStore{
		private:   priv,
		publicPEM: pubPEM,
		kid:       base64.RawURLEncoding.EncodeToString(sum[:16]),
	}, nil
}

// PublicKeyPEM returns the SPKI PEM encoding of the public key.
func (ks *KeyStore) PublicKeyPEM() []byte {
	return bytes.Clone(ks.publicPEM)
}

func (ks *KeyStore) PrivateKey() *rsa.PrivateKey {
	return ks.private
}

func (ks *KeyStore) PublicKey() *rsa.PublicKey {
	return &ks.private.PublicKey
}

// KeyID returns a short, stable identifier for the key pair.
func (ks *KeyStore) KeyID() string {
	return ks.kid
}
