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
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/opentrusty/seedkeeper/internal/apperr"
)

// SecretLen is the length of the canonical hex form.
const SecretLen = 64

var secretPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// Secret is the canonical shared secret: 64 lowercase hex characters
// encoding 32 bytes. Only the hex form is ever persisted.
type Secret string

// Parse validates s as a canonical secret. Surrounding whitespace is not
// accepted here; see Normalize.
func Parse(s string) (Secret, error) {
	if !secretPattern.MatchString(s) {
		return "", apperr.ErrInvalidSeedFormat
	}
	return Secret(s), nil
}

// Normalize turns decrypted plaintext into a Secret: it must be UTF-8 and,
// once trimmed, exactly 64 lowercase hex characters.
func Normalize(plaintext []byte) (Secret, error) {
	if !utf8.Valid(plaintext) {
		return "", fmt.Errorf("plaintext is not utf-8: %w", apperr.ErrInvalidSeedFormat)
	}
	return Parse(strings.TrimSpace(string(plaintext)))
}

// Hex returns the canonical representation.
func (s Secret) Hex() string {
	return string(s)
}

// Bytes returns the 32 raw secret bytes.
func (s Secret) Bytes() []byte {
	b, err := hex.DecodeString(string(s))
	if err != nil {
		return nil
	}
	return b
}

// Base32 returns the unpadded upper-case base32 form expected by TOTP
// authenticators.
func (s Secret) Base32() string {
	return b32.EncodeToString(s.Bytes())
}

// DecodeBase32 is the inverse of Secret.Base32. Input is upper-cased and
// trailing padding is tolerated.
func DecodeBase32(key string) ([]byte, error) {
	key = strings.TrimRight(strings.ToUpper(strings.TrimSpace(key)), "=")
	return b32.DecodeString(key)
}

// String keeps the secret out of formatted output.
func (s Secret) String() string {
	return "[redacted]"
}

// LogValue keeps the secret out of structured logs.
func (s Secret) LogValue() slog.Value {
	return slog.StringValue("[redacted]")
}
