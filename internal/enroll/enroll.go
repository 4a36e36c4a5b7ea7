// Package enroll produces otpauth:// URIs and QR codes so an authenticator
// app can be enrolled with the provisioned secret.
package enroll

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	skipqrcode "github.com/skip2/go-qrcode"

	"github.com/opentrusty/seedkeeper/internal/fsutil"
	"github.com/opentrusty/seedkeeper/internal/otp"
	"github.com/opentrusty/seedkeeper/internal/seed"
)

var (
	ErrEmptyLabel = errors.New("issuer and account name are required")
	ErrQRCode     = errors.New("failed to generate QR code")
)

const defaultSize = 256

// Params describe the enrollment.
type Params struct {
	Issuer      string
	AccountName string
	Config      otp.Config
}

// URI builds the Key Uri Format string for secret.
func URI(secret seed.Secret, p Params) (string, error) {
	if strings.TrimSpace(p.Issuer) == "" || strings.TrimSpace(p.AccountName) == "" {
		return "", ErrEmptyLabel
	}
	if err := p.Config.Validate(); err != nil {
		return "", err
	}

	label := fmt.Sprintf("%s:%s",
		url.PathEscape(p.Issuer),
		url.PathEscape(p.AccountName),
	)

	query := url.Values{}
	query.Set("secret", secret.Base32())
	query.Set("issuer", p.Issuer)
	query.Set("algorithm", string(p.Config.Algorithm))
	query.Set("digits", fmt.Sprintf("%d", p.Config.Digits))
	query.Set("period", fmt.Sprintf("%d", int(p.Config.Step.Seconds())))

	return fmt.Sprintf("otpauth://totp/%s?%s", label, query.Encode()), nil
}

// QRCode renders content as a PNG.
func QRCode(content string, size int) ([]byte, error) {
	if size <= 0 {
		size = defaultSize
	}
	png, err := skipqrcode.Encode(content, skipqrcode.Medium, size)
	if err != nil {
		return nil, errors.Join(ErrQRCode, err)
	}
	return png, nil
}

// WriteQRCode writes the enrollment QR code to path, readable only by the
// owner since it encodes the secret.
func WriteQRCode(path string, secret seed.Secret, p Params, size int) (string, error) {
	uri, err := URI(secret, p)
	if err != nil {
		return "", err
	}
	png, err := QRCode(uri, size)
	if err != nil {
		return "", err
	}
	if err := fsutil.WriteFileAtomic(path, png, 0o600); err != nil {
		return "", err
	}
	return uri, nil
}
