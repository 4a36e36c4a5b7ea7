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

// Package apperr defines the error taxonomy shared by the core packages.
//
// Core code wraps one of the sentinels below with fmt.Errorf("...: %w", ...)
// and the transport layer maps it back to a stable code with CodeOf.
package apperr

import (
	"errors"
	"fmt"
)

// Code is a stable, caller-facing error identifier.
type Code string

const (
	CodeMalformedInput    Code = "malformed_input"
	CodeDecryptionFailed  Code = "decryption_failed"
	CodeInvalidSeedFormat Code = "invalid_seed_format"
	CodeSeedMissing       Code = "seed_missing"
	CodeInvalidCodeFormat Code = "invalid_code_format"
	CodeInvalidHash       Code = "invalid_hash"
	CodeEncryptionFailed  Code = "encryption_failed"
	CodeKeyMissing        Code = "key_missing"
	CodeInternal          Code = "internal_error"
)

var (
	ErrMalformedInput    = errors.New("malformed input")
	ErrDecryptionFailed  = errors.New("decryption failed")
	ErrInvalidSeedFormat = errors.New("invalid seed format")
	ErrSeedMissing       = errors.New("seed missing")
	ErrInvalidCodeFormat = errors.New("invalid code format")
	ErrInvalidHash       = errors.New("invalid commit hash")
	ErrEncryptionFailed  = errors.New("encryption failed")
	ErrKeyMissing        = errors.New("key pair missing")
)

var codes = []struct {
	err  error
	code Code
	desc string
}{
	{ErrMalformedInput, CodeMalformedInput, "input is not valid base64 or is missing"},
	{ErrDecryptionFailed, CodeDecryptionFailed, "seed could not be decrypted"},
	{ErrInvalidSeedFormat, CodeInvalidSeedFormat, "seed must be 64 lowercase hex characters"},
	{ErrSeedMissing, CodeSeedMissing, "Seed not decrypted yet"},
	{ErrInvalidCodeFormat, CodeInvalidCodeFormat, "code must be 6 digits"},
	{ErrInvalidHash, CodeInvalidHash, "commit hash must be 40 lowercase hex characters"},
	{ErrEncryptionFailed, CodeEncryptionFailed, "signature could not be encrypted for the recipient key"},
	{ErrKeyMissing, CodeKeyMissing, "service key pair is not available"},
}

// CodeOf returns the stable code for err, or CodeInternal when err does not
// wrap one of the package sentinels.
func CodeOf(err error) Code {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// Describe returns a fixed, caller-safe message for code. The message never
// carries details from the wrapped error.
func Describe(code Code) string {
	for _, c := range codes {
		if c.code == code {
			return c.desc
		}
	}
	return "internal error"
}

// Error is the wire representation of a failed operation.
type Error struct {
	Code        Code   `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("seedkeeper error: %s (%s)", e.Code, e.Description)
}

// From builds the wire representation for err.
func From(err error) *Error {
	code := CodeOf(err)
	return &Error{Code: code, Description: Describe(code)}
}
