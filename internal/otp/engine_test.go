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

package otp_test

import (
	"context"
	"testing"
	"time"

	"github.com/opentrusty/seedkeeper/internal/apperr"
	"github.com/opentrusty/seedkeeper/internal/otp"
	"github.com/opentrusty/seedkeeper/internal/seed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const zeroSecret = seed.Secret("0000000000000000000000000000000000000000000000000000000000000000")

// 2023-11-14T22:13:20Z, counter 56666666, 20s into the step
var fixedNow = time.Unix(1700000000, 0)

func newEngine(t *testing.T, secret seed.Secret, now time.Time) *otp.Engine {
	t.Helper()
	store := seed.NewMemoryStore()
	if secret != "" {
		require.NoError(t, store.Save(context.Background(), secret))
	}
	engine, err := otp.NewEngine(store, otp.DefaultConfig(), otp.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	return engine
}

func TestHOTP_RFC4226Vectors(t *testing.T) {
	t.Parallel()

	key := []byte("12345678901234567890")
	want := []string{"755224", "287082", "359152"}

	for counter, expected := range want {
		got, err := otp.HOTP(key, uint64(counter), 6, otp.SHA1)
		require.NoError(t, err)
		assert.Equal(t, expected, got, "counter %d", counter)
	}
}

func TestHOTP_RFC6238Vectors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		key  []byte
		unix int64
		alg  otp.Algorithm
		want string
	}{
		{"sha1 t=59", []byte("12345678901234567890"), 59, otp.SHA1, "94287082"},
		{"sha1 t=1111111109", []byte("12345678901234567890"), 1111111109, otp.SHA1, "07081804"},
		{"sha256 t=59", []byte("12345678901234567890123456789012"), 59, otp.SHA256, "46119246"},
		{"sha512 t=59", []byte("1234567890123456789012345678901234567890123456789012345678901234"), 59, otp.SHA512, "90693936"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := otp.HOTP(tt.key, uint64(tt.unix/30), 8, tt.alg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestPurpose: Pins the code derived from the all-zero secret at a fixed instant.
// Scope: Unit Test
// Expected: 501315 with 10 seconds remaining in the step.
// Test Case ID: OTP-01
func TestGenerate_RegressionFixture(t *testing.T) {
	t.Parallel()
	engine := newEngine(t, zeroSecret, fixedNow)

	code, err := engine.Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "501315", code.Value)
	assert.Equal(t, 10, code.ValidFor)
}

func TestGenerate_ValidForRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		unix int64
		want int
	}{
		{1700000010, 30}, // step boundary
		{1700000011, 29},
		{1700000039, 1},
		{1700000000, 10},
	}

	for _, tt := range tests {
		engine := newEngine(t, zeroSecret, time.Unix(tt.unix, 0))
		code, err := engine.Generate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, tt.want, code.ValidFor, "unix %d", tt.unix)
		assert.Len(t, code.Value, 6)
	}
}

func TestGenerate_SeedMissing(t *testing.T) {
	t.Parallel()
	engine := newEngine(t, "", fixedNow)

	_, err := engine.Generate(context.Background())
	assert.ErrorIs(t, err, apperr.ErrSeedMissing)

	_, err = engine.Verify(context.Background(), "123456")
	assert.ErrorIs(t, err, apperr.ErrSeedMissing)
}

func TestVerify_AcceptsJustGenerated(t *testing.T) {
	t.Parallel()
	secret, err := seed.Generate()
	require.NoError(t, err)
	engine := newEngine(t, secret, time.Now())

	code, err := engine.Generate(context.Background())
	require.NoError(t, err)

	ok, err := engine.Verify(context.Background(), code.Value)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = engine.Verify(context.Background(), " "+code.Value+"\n")
	require.NoError(t, err)
	assert.True(t, ok, "surrounding whitespace is trimmed")
}

// TestPurpose: Validates the ±1 step drift window.
// Scope: Unit Test
// Security: Codes older or newer than one step must be rejected to bound replay.
// Expected: Codes from ±30s verify; codes from ±61s do not.
// Test Case ID: OTP-03
func TestVerify_DriftWindow(t *testing.T) {
	t.Parallel()
	engine := newEngine(t, zeroSecret, fixedNow)

	tests := []struct {
		name   string
		offset time.Duration
		code   string
		valid  bool
	}{
		{"current", 0, "501315", true},
		{"30s past", -30 * time.Second, "308504", true},
		{"30s future", 30 * time.Second, "647021", true},
		{"61s past", -61 * time.Second, "830805", false},
		{"61s future", 61 * time.Second, "782076", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generated, err := engine.CodeAt(zeroSecret, fixedNow.Add(tt.offset))
			require.NoError(t, err)
			assert.Equal(t, tt.code, generated)

			ok, err := engine.Verify(context.Background(), generated)
			require.NoError(t, err)
			assert.Equal(t, tt.valid, ok)
		})
	}
}

func TestVerify_WrongCodeIsNotAnError(t *testing.T) {
	t.Parallel()
	engine := newEngine(t, zeroSecret, fixedNow)

	ok, err := engine.Verify(context.Background(), "000000")
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestPurpose: Validates rejection of malformed codes before any secret is read.
// Scope: Unit Test
// Expected: InvalidCodeFormat for short, alphabetic, empty and over-long input.
// Test Case ID: OTP-04
func TestVerify_InvalidCodeFormat(t *testing.T) {
	t.Parallel()
	engine := newEngine(t, zeroSecret, fixedNow)

	for _, input := range []string{"12345", "abcdef", "", "1234567", "12 456", "١٢٣٤٥٦"} {
		ok, err := engine.Verify(context.Background(), input)
		assert.ErrorIs(t, err, apperr.ErrInvalidCodeFormat, "input %q", input)
		assert.False(t, ok)
	}
}

func TestVerify_InvalidFormatWinsOverSeedMissing(t *testing.T) {
	t.Parallel()
	engine := newEngine(t, "", fixedNow)

	_, err := engine.Verify(context.Background(), "abc")
	assert.ErrorIs(t, err, apperr.ErrInvalidCodeFormat)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, otp.DefaultConfig().Validate())

	bad := []otp.Config{
		{Step: 0, Digits: 6, Algorithm: otp.SHA1},
		{Step: 1500 * time.Millisecond, Digits: 6, Algorithm: otp.SHA1},
		{Step: 30 * time.Second, Digits: 4, Algorithm: otp.SHA1},
		{Step: 30 * time.Second, Digits: 6, Algorithm: "MD5"},
		{Step: 30 * time.Second, Digits: 6, Algorithm: otp.SHA1, Window: -1},
	}
	for _, cfg := range bad {
		_, err := otp.NewEngine(seed.NewMemoryStore(), cfg)
		assert.Error(t, err, "%+v", cfg)
	}
}
