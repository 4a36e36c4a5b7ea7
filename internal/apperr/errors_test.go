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

package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestPurpose: Validates that wrapped sentinels map to their stable codes and that unknown errors
// collapse to internal_error.
// Scope: Unit Test
// Security: Callers only ever see the coarse category, never the wrapped detail.
// Expected: Each sentinel maps to its own code; descriptions do not contain wrapped text.
// Test Case ID: ERR-01
func TestCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		want Code
	}{
		{fmt.Errorf("base64: %w", ErrMalformedInput), CodeMalformedInput},
		{fmt.Errorf("oaep: %w", ErrDecryptionFailed), CodeDecryptionFailed},
		{fmt.Errorf("validate: %w", ErrInvalidSeedFormat), CodeInvalidSeedFormat},
		{fmt.Errorf("load: %w", ErrSeedMissing), CodeSeedMissing},
		{ErrInvalidCodeFormat, CodeInvalidCodeFormat},
		{ErrInvalidHash, CodeInvalidHash},
		{fmt.Errorf("recipient: %w", ErrEncryptionFailed), CodeEncryptionFailed},
		{ErrKeyMissing, CodeKeyMissing},
		{errors.New("disk on fire"), CodeInternal},
		{nil, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestFrom_DoesNotLeakDetail(t *testing.T) {
	err := fmt.Errorf("crypto/rsa: decryption error at block 3: %w", ErrDecryptionFailed)

	wire := From(err)

	assert.Equal(t, CodeDecryptionFailed, wire.Code)
	assert.NotContains(t, wire.Description, "block 3")
	assert.Equal(t, "internal error", Describe(CodeInternal))
}
