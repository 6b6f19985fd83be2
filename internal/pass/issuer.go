// Package pass issues visit session tokens and renders them as scannable
// QR codes for badges and passes.
package pass

import (
	"errors"
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/visitdesk/visitdesk/pkg/crypto"
)

const (
	defaultTokenBytes = 32
	defaultQRSize     = 256
)

// Option customises the issuer.
type Option func(*Issuer)

// WithTokenSize adjusts the random token length in bytes.
func WithTokenSize(size int) Option {
	return func(i *Issuer) {
		if size > 0 {
			i.tokenBytes = size
		}
	}
}

// WithQRSize controls the pixel size of generated QR codes.
func WithQRSize(size int) Option {
	return func(i *Issuer) {
		if size > 0 {
			i.qrSize = size
		}
	}
}

// Issuer produces opaque, non-guessable session tokens and their QR
// renderings. The QR payload is the token alone: no visit metadata is
// embedded, so editing visit details never invalidates a printed badge.
type Issuer struct {
	tokenBytes int
	qrSize     int
}

// NewIssuer constructs a token issuer.
func NewIssuer(opts ...Option) *Issuer {
	issuer := &Issuer{
		tokenBytes: defaultTokenBytes,
		qrSize:     defaultQRSize,
	}
	for _, opt := range opts {
		opt(issuer)
	}
	return issuer
}

// Issue returns a fresh random token.
func (i *Issuer) Issue() (string, error) {
	token, err := crypto.GenerateToken(i.tokenBytes)
	if err != nil {
		return "", fmt.Errorf("pass: issue token: %w", err)
	}
	return token, nil
}

// QRCode renders the token as a PNG image.
func (i *Issuer) QRCode(token string) ([]byte, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("pass: token is required")
	}

	png, err := qrcode.Encode(token, qrcode.Medium, i.qrSize)
	if err != nil {
		return nil, fmt.Errorf("pass: encode qr: %w", err)
	}
	return png, nil
}
