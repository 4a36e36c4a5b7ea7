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

package seed

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/opentrusty/seedkeeper/internal/apperr"
)

// OAEPOptions is the padding used for seed transport: OAEP with SHA-256 as
// both the label hash and the MGF1 hash, empty label.
var OAEPOptions = &rsa.OAEPOptions{Hash: crypto.SHA256, MGFHash: crypto.SHA256}

// Provisioner decrypts inbound seeds and installs them in a Store.
type Provisioner struct {
	key   crypto.Decrypter
	store Store
}

// NewProvisioner creates a provisioner decrypting with key.
func NewProvisioner(key crypto.Decrypter, store Store) *Provisioner {
	return &Provisioner{
		key:   key,
		store: store,
	}
}

// Provision decodes, decrypts, validates and persists an encrypted seed.
//
// Decryption failures are reported as apperr.ErrDecryptionFailed with no
// further detail so callers cannot distinguish padding from key errors.
func (p *Provisioner) Provision(ctx context.Context, encryptedB64 string) (Secret, error) {
	encryptedB64 = strings.TrimSpace(encryptedB64)
	if encryptedB64 == "" {
		return "", fmt.Errorf("empty seed: %w", apperr.ErrMalformedInput)
	}

	ciphertext, err := base64.StdEncoding.Strict().DecodeString(encryptedB64)
	if err != nil {
		return "", fmt.Errorf("seed is not base64: %w", apperr.ErrMalformedInput)
	}

	plaintext, err := p.key.Decrypt(rand.Reader, ciphertext, OAEPOptions)
	if err != nil {
		return "", apperr.ErrDecryptionFailed
	}

	secret, err := Normalize(plaintext)
	clear(plaintext)
	if err != nil {
		return "", err
	}

	if err := p.store.Save(ctx, secret); err != nil {
		return "", err
	}
	return secret, nil
}

// EncryptForTransport is the client half of the protocol: it OAEP-encrypts
// the hex form of secret to pub and returns standard base64.
func EncryptForTransport(pub *rsa.PublicKey, secret Secret) (string, error) {
	ciphertext, err := rsa.EncryptOAEP(crypto.SHA256.New(), rand.Reader, pub, []byte(secret.Hex()), nil)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt seed: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Generate returns a fresh random Secret.
func Generate() (Secret, error) {
	buf := make([]byte, SecretLen/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return Secret(fmt.Sprintf("%x", buf)), nil
}
