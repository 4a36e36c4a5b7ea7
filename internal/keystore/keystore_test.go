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

package keystore

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/opentrusty/seedkeeper/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		PrivateKeyPath: filepath.Join(dir, "private.pem"),
		PublicKeyPath:  filepath.Join(dir, "public.pem"),
		Bits:           2048,
	}
}

// TestPurpose: Validates that a missing key pair is fatal when auto-generation is disabled.
// Scope: Unit Test
// Security: The service must not silently mint a new identity when operators expect a fixed one.
// Expected: LoadOrCreate fails with ErrKeyMissing and writes nothing.
// Test Case ID: KEY-01
func TestLoadOrCreate_MissingWithoutAutoGenerate(t *testing.T) {
	cfg := testConfig(t)

	ks, err := LoadOrCreate(cfg)

	assert.Nil(t, ks)
	assert.ErrorIs(t, err, apperr.ErrKeyMissing)
	_, statErr := os.Stat(cfg.PrivateKeyPath)
	assert.True(t, os.IsNotExist(statErr))
}

// TestPurpose: Validates key generation output formats and file permissions.
// Scope: Unit Test
// Security: Private key must be owner-readable only.
// Expected: PKCS8 private key with mode 0600, SPKI public key with mode 0644, e=65537.
// Test Case ID: KEY-02
func TestCreate_WritesPKCS8AndSPKI(t *testing.T) {
	cfg := testConfig(t)

	ks, err := Create(cfg)
	require.NoError(t, err)

	privInfo, err := os.Stat(cfg.PrivateKeyPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), privInfo.Mode().Perm())

	pubInfo, err := os.Stat(cfg.PublicKeyPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), pubInfo.Mode().Perm())

	privPEM, err := os.ReadFile(cfg.PrivateKeyPath)
	require.NoError(t, err)
	block, _ := pem.Decode(privPEM)
	require.NotNil(t, block)
	assert.Equal(t, "PRIVATE KEY", block.Type)
	_, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	require.NoError(t, err)

	pubPEM, err := os.ReadFile(cfg.PublicKeyPath)
	require.NoError(t, err)
	assert.Equal(t, ks.PublicKeyPEM(), pubPEM)
	block, _ = pem.Decode(pubPEM)
	require.NotNil(t, block)
	assert.Equal(t, "PUBLIC KEY", block.Type)

	assert.Equal(t, 65537, ks.PublicKey().E)
	assert.Equal(t, 2048, ks.PrivateKey().N.BitLen())
	assert.NotEmpty(t, ks.KeyID())
}

func TestCreate_RefusesOverwrite(t *testing.T) {
	cfg := testConfig(t)
	_, err := Create(cfg)
	require.NoError(t, err)

	_, err = Create(cfg)
	assert.ErrorIs(t, err, ErrKeyExists)

	cfg.Overwrite = true
	_, err = Create(cfg)
	assert.NoError(t, err)
}

func TestCreate_RejectsSmallKeys(t *testing.T) {
	cfg := testConfig(t)
	cfg.Bits = 1024

	_, err := Create(cfg)
	assert.Error(t, err)
}

func TestLoadOrCreate_ReloadsSameKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.AutoGenerate = true

	first, err := LoadOrCreate(cfg)
	require.NoError(t, err)

	second, err := LoadOrCreate(cfg)
	require.NoError(t, err)

	assert.True(t, first.PrivateKey().Equal(second.PrivateKey()))
	assert.Equal(t, first.KeyID(), second.KeyID())
}

func TestLoadOrCreate_RewritesMissingPublicKey(t *testing.T) {
	cfg := testConfig(t)
	created, err := Create(cfg)
	require.NoError(t, err)
	require.NoError(t, os.Remove(cfg.PublicKeyPath))

	loaded, err := LoadOrCreate(cfg)
	require.NoError(t, err)

	pubPEM, err := os.ReadFile(cfg.PublicKeyPath)
	require.NoError(t, err)
	assert.Equal(t, created.PublicKeyPEM(), pubPEM)
	assert.Equal(t, created.KeyID(), loaded.KeyID())
}

// TestPurpose: Validates that a public key file belonging to another pair is rejected.
// Scope: Unit Test
// Security: Prevents distributing a public key whose ciphertexts the service cannot decrypt.
// Expected: LoadOrCreate returns an error.
// Test Case ID: KEY-03
func TestLoadOrCreate_MismatchedPublicKey(t *testing.T) {
	cfg := testConfig(t)
	_, err := Create(cfg)
	require.NoError(t, err)

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	otherPEM, err := EncodePublicKey(&other.PublicKey)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(cfg.PublicKeyPath, otherPEM, 0o644))

	_, err = LoadOrCreate(cfg)
	assert.Error(t, err)
}

func TestLoadOrCreate_AcceptsPKCS1PrivateKey(t *testing.T) {
	cfg := testConfig(t)
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pkcs1 := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})
	require.NoError(t, os.WriteFile(cfg.PrivateKeyPath, pkcs1, 0o600))

	ks, err := LoadOrCreate(cfg)
	require.NoError(t, err)
	assert.True(t, priv.Equal(ks.PrivateKey()))
}

func TestParsePublicKeyPEM(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	spki, err := EncodePublicKey(&priv.PublicKey)
	require.NoError(t, err)
	pkcs1 := pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: x509.MarshalPKCS1PublicKey(&priv.PublicKey)})

	tests := []struct {
		name    string
		input   []byte
		wantErr bool
	}{
		{"spki", spki, false},
		{"pkcs1", pkcs1, false},
		{"not pem", []byte("hello"), true},
		{"wrong type", pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{1}}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub, err := ParsePublicKeyPEM(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, pub.Equal(&priv.PublicKey))
		})
	}
}
