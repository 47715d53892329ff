// Package capture grabs screen pixels and encodes them for the chat endpoint.
package capture

import (
	"context"
	"encoding/base64"
	"image"

	"github.com/gabriel-vasile/mimetype"
)

// Screenshot is one capture result. It is never mutated after creation.
type Screenshot struct {
	Image image.Image
	PNG   []byte
}

// Base64 returns the encoded payload without a data-URI prefix.
func (s *Screenshot) Base64() string {
	return base64.StdEncoding.EncodeToString(s.PNG)
}

// MIME sniffs the encoded payload; PNG is what Screen produces.
func (s *Screenshot) MIME() string {
	if len(s.PNG) == 0 {
		return "image/png"
	}
	m := mimetype.Detect(s.PNG)
	if !m.Is("image/png") && !m.Is("image/jpeg") && !m.Is("image/webp") && !m.Is("image/gif") {
		return "image/png"
	}
	return m.String()
}

// Provider produces screenshots. Implementations keep no cross-call state
// that affects output beyond the live screen content.
type Provider interface {
	Capture(ctx context.Context, region *Region) (*Screenshot, error)
	Close() error
}

// CaptureBase64 captures and returns the base64 PNG payload.
func CaptureBase64(ctx context.Context, p Provider, region *Region) (string, error) {
	shot, err := p.Capture(ctx, region)
	if err != nil {
		return "", err
	}
	return shot.Base64(), nil
}
