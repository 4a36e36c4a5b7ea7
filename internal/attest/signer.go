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

// Package attest signs commit hashes with the service key.
//
// Wire contract: the signature is RSASSA-PSS with SHA-256, MGF1-SHA-256 and
// the maximum salt length, computed over the ASCII bytes of the 40-character
// lowercase hex commit hash (not over the decoded 20 bytes). The optional
// encrypted form is RSA-OAEP with SHA-256 of the raw signature bytes.
package attest

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
	"regexp"

	"github.com/opentrusty/seedkeeper/internal/apperr"
	"github.com/opentrusty/seedkeeper/internal/keystore"
)

var hashPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

var pssSign = &rsa.PSSOptions{
	SaltLength: rsa.PSSSaltLengthAuto, // maximum salt when signing
	Hash:       crypto.SHA256,
}

var pssVerify = &rsa.PSSOptions{
	SaltLength: rsa.PSSSaltLengthAuto, // detect on verify
	Hash:       crypto.SHA256,
}

// Signer produces commit attestations.
type Signer struct {
	key *rsa.PrivateKey
}

func NewSigner(key *rsa.PrivateKey) *Signer {
	return &Signer{key: key}
}

// ValidateHash checks the pinned commit hash format.
func ValidateHash(hash string) error {
	if !hashPattern.MatchString(hash) {
		return apperr.ErrInvalidHash
	}
	return nil
}

// Sign returns the PSS signature of hash.
func (s *Signer) Sign(hash string) ([]byte, error) {
	if err := ValidateHash(hash); err != nil {
		return nil, err
	}

	digest := sha256.Sum256([]byte(hash))
	sig, err := rsa.SignPSS(rand.Reader, s.key, crypto.SHA256, digest[:], pssSign)
	if err != nil {
		return nil, fmt.Errorf("failed to sign commit hash: %w", err)
	}
	return sig, nil
}

// SignAndEncryptFor signs hash and encrypts the signature to the RSA public
// key in recipientPEM. Every failure after the hash check is reported as
// apperr.ErrEncryptionFailed.
func (s *Signer) SignAndEncryptFor(hash, recipientPEM string) (sig, encrypted []byte, err error) {
	if err := ValidateHash(hash); err != nil {
		return nil, nil, err
	}
	// recipient is parsed before the private key is used
	recipient, err := keystore.ParsePublicKeyPEM([]byte(recipientPEM))
	if err != nil {
		return nil, nil, fmt.Errorf("recipient key: %w", apperr.ErrEncryptionFailed)
	}

	sig, err = s.Sign(hash)
	if err != nil {
		return nil, nil, err
	}

	encrypted, err = EncryptFor(recipient, sig)
	if err != nil {
		return nil, nil, err
	}
	return sig, encrypted, nil
}

// MaxOAEPPlaintext is the largest message OAEP-SHA256 can carry under pub.
func MaxOAEPPlaintext(pub *rsa.PublicKey) int {
	return pub.Size() - 2*sha256.Size - 2
}

// EncryptFor OAEP-SHA256 encrypts data to pub after checking it fits.
func EncryptFor(pub *rsa.PublicKey, data []byte) ([]byte, error) {
	if limit := MaxOAEPPlaintext(pub); len(data) > limit {
		return nil, fmt.Errorf("%d bytes exceed recipient capacity of %d: %w", len(data), limit, apperr.ErrEncryptionFailed)
	}

	out, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, data, nil)
	if err != nil {
		return nil, fmt.Errorf("oaep: %w", apperr.ErrEncryptionFailed)
	}
	return out, nil
}

// Verify checks sig over hash against pub using the same representation as Sign.
func Verify(pub *rsa.PublicKey, hash string, sig []byte) error {
	if err := ValidateHash(hash); err != nil {
		return err
	}
	digest := sha256.Sum256([]byte(hash))
	return rsa.VerifyPSS(pub, crypto.SHA256, digest[:], sig, pssVerify)
}
