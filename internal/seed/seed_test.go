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
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/opentrusty/seedkeeper/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const zeroSecret = "0000000000000000000000000000000000000000000000000000000000000000"

func newTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func encrypt(t *testing.T, pub *rsa.PublicKey, plaintext string) string {
	t.Helper()
	ct, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, []byte(plaintext), nil)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(ct)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		plaintext []byte
		want      Secret
		wantErr   bool
	}{
		{"canonical", []byte(zeroSecret), Secret(zeroSecret), false},
		{"surrounding whitespace", []byte("  " + zeroSecret + "\r\n"), Secret(zeroSecret), false},
		{"uppercase", []byte(strings.Repeat("A", 64)), "", true},
		{"too short", []byte(zeroSecret[:63]), "", true},
		{"too long", []byte(zeroSecret + "0"), "", true},
		{"non hex", []byte(strings.Repeat("g", 64)), "", true},
		{"inner space", []byte(zeroSecret[:32] + " " + zeroSecret[33:]), "", true},
		{"not utf-8", append([]byte{0xff, 0xfe}, zeroSecret[2:]...), "", true},
		{"empty", nil, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.plaintext)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperr.ErrInvalidSeedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSecret_Encodings(t *testing.T) {
	s := Secret(zeroSecret)

	assert.Len(t, s.Bytes(), 32)
	assert.Equal(t, strings.Repeat("A", 52), s.Base32())

	decoded, err := DecodeBase32(strings.ToLower(s.Base32()) + "====")
	require.NoError(t, err)
	assert.Equal(t, s.Bytes(), decoded)

	other := Secret("a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90")
	assert.Equal(t, "UGZMHVHF6YDRQKJ2JNOG27UPSCQ3FQ6U4X3AOGBJHJFVY3L6R6IA", other.Base32())
}

// TestPurpose: Validates that a Secret never renders its value through fmt or slog.
// Scope: Unit Test
// Security: Shared secret must not reach logs or error strings.
// Expected: String and LogValue are redacted; Hex returns the value.
// Test Case ID: SEED-06
func TestSecret_Redacted(t *testing.T) {
	s := Secret(zeroSecret)

	assert.Equal(t, "[redacted]", fmt.Sprint(s))
	assert.Equal(t, "[redacted]", s.LogValue().String())
	assert.Equal(t, zeroSecret, s.Hex())
}

// TestPurpose: Validates the provisioning round-trip for a random 32-byte seed.
// Scope: Unit Test
// Expected: The stored secret equals the hex form that was encrypted.
// Test Case ID: SEED-01
func TestProvision_RoundTrip(t *testing.T) {
	key := newTestKey(t)
	store := NewMemoryStore()
	p := NewProvisioner(key, store)

	want, err := Generate()
	require.NoError(t, err)

	b64, err := EncryptForTransport(&key.PublicKey, want)
	require.NoError(t, err)

	got, err := p.Provision(context.Background(), b64)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, stored)
}

// TestPurpose: Validates the error taxonomy for each provisioning failure mode.
// Scope: Unit Test
// Security: Decryption failures are reported coarsely; nothing is stored on failure.
// Expected: MalformedInput, DecryptionFailed and InvalidSeedFormat as appropriate.
// Test Case ID: SEED-02
func TestProvision_Errors(t *testing.T) {
	key := newTestKey(t)
	otherKey := newTestKey(t)

	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty", "", apperr.ErrMalformedInput},
		{"whitespace only", "  \n", apperr.ErrMalformedInput},
		{"not base64", "not*base64!", apperr.ErrMalformedInput},
		{"bad padding", "YWJj=", apperr.ErrMalformedInput},
		{"garbage ciphertext", base64.StdEncoding.EncodeToString([]byte("short")), apperr.ErrDecryptionFailed},
		{"wrong key", encrypt(t, &otherKey.PublicKey, zeroSecret), apperr.ErrDecryptionFailed},
		{"plaintext not hex", encrypt(t, &key.PublicKey, "hello world"), apperr.ErrInvalidSeedFormat},
		{"plaintext uppercase", encrypt(t, &key.PublicKey, strings.ToUpper("ab"+zeroSecret[2:])), apperr.ErrInvalidSeedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			p := NewProvisioner(key, store)

			_, err := p.Provision(context.Background(), tt.input)
			assert.ErrorIs(t, err, tt.want)

			_, loadErr := store.Load(context.Background())
			assert.ErrorIs(t, loadErr, apperr.ErrSeedMissing, "nothing may be stored on failure")
		})
	}
}

func TestProvision_TrimsDecryptedWhitespace(t *testing.T) {
	key := newTestKey(t)
	store := NewMemoryStore()
	p := NewProvisioner(key, store)

	got, err := p.Provision(context.Background(), "\n"+encrypt(t, &key.PublicKey, zeroSecret+"\n")+" ")
	require.NoError(t, err)
	assert.Equal(t, Secret(zeroSecret), got)
}

func TestProvision_LastWriteWins(t *testing.T) {
	key := newTestKey(t)
	store := NewFileStore(filepath.Join(t.TempDir(), "seed.txt"))
	p := NewProvisioner(key, store)

	first, err := Generate()
	require.NoError(t, err)
	second, err := Generate()
	require.NoError(t, err)

	for _, s := range []Secret{first, second} {
		b64, err := EncryptForTransport(&key.PublicKey, s)
		require.NoError(t, err)
		_, err = p.Provision(context.Background(), b64)
		require.NoError(t, err)
	}

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestFileStore_MissingAndMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.txt")
	store := NewFileStore(path)

	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, apperr.ErrSeedMissing)

	require.NoError(t, os.WriteFile(path, []byte("not-a-seed\n"), 0o600))
	_, err = store.Load(context.Background())
	assert.ErrorIs(t, err, apperr.ErrSeedMissing)

	err = store.Save(context.Background(), Secret("nope"))
	assert.ErrorIs(t, err, apperr.ErrInvalidSeedFormat)
}

func TestFileStore_PersistsOwnerOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "seed.txt")
	store := NewFileStore(path)

	require.NoError(t, store.Save(context.Background(), Secret(zeroSecret)))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, zeroSecret+"\n", string(data))
	assert.Equal(t, path, store.Path())
}

// TestPurpose: Validates that concurrent writers and readers never observe a torn secret.
// Scope: Unit Test
// Expected: Every successful read is one of the written secrets in full.
// Test Case ID: SEED-05
func TestFileStore_ConcurrentReadWrite(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "seed.txt"))
	ctx := context.Background()

	secrets := make(map[Secret]bool)
	for i := 0; i < 8; i++ {
		s, err := Generate()
		require.NoError(t, err)
		secrets[s] = true
	}
	require.NoError(t, store.Save(ctx, Secret(zeroSecret)))
	secrets[Secret(zeroSecret)] = true

	var wg sync.WaitGroup
	for s := range secrets {
		wg.Add(1)
		go func(s Secret) {
			defer wg.Done()
			assert.NoError(t, store.Save(ctx, s))
		}(s)
	}

	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := store.Load(ctx)
			if err != nil {
				errs <- err
				return
			}
			if !secrets[got] {
				errs <- fmt.Errorf("observed unknown secret")
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
