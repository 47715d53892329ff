// Package ocr turns screen rasters into plain text for text-mode requests.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"
	"time"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog/log"

	"github.com/local/screenassist/internal/errs"
)

// DefaultLanguages are the tesseract language packs loaded when none are
// configured: English and Vietnamese.
var DefaultLanguages = []string{"eng", "vie"}

// Extractor converts images into plain text.
type Extractor interface {
	Extract(ctx context.Context, img image.Image) (string, error)
	ExtractFromBytes(ctx context.Context, encoded []byte) (string, error)
}

// engine is the subset of *gosseract.Client we use.
type engine interface {
	SetLanguage(langs ...string) error
	SetImageFromBytes(data []byte) error
	Text() (string, error)
	Close() error
}

// Tesseract is an Extractor backed by gosseract. The tesseract client is
// created on first use; the init result, including failure, is memoized.
type Tesseract struct {
	languages []string
	newEngine func() engine

	once    sync.Once
	eng     engine
	initErr error

	// gosseract clients are not safe for concurrent use.
	mu     sync.Mutex
	closed bool
}

// NewTesseract returns an extractor for languages (DefaultLanguages when
// empty). No tesseract state is loaded until the first call.
func NewTesseract(languages []string) *Tesseract {
	if len(languages) == 0 {
		languages = DefaultLanguages
	}
	return &Tesseract{
		languages: append([]string(nil), languages...),
		newEngine: func() engine { return gosseract.NewClient() },
	}
}

// AvailableLanguages lists the language packs installed for tesseract.
func AvailableLanguages() ([]string, error) { return gosseract.GetAvailableLanguages() }

// Languages returns the configured language set.
func (t *Tesseract) Languages() []string { return append([]string(nil), t.languages...) }

var errClosed = errors.New("extractor closed")

func (t *Tesseract) init() error {
	t.once.Do(func() {
		t.mu.Lock()
		closed := t.closed
		t.mu.Unlock()
		if closed {
			t.initErr = errs.New(errs.Extraction, "init", errClosed)
			return
		}

		start := time.Now()
		eng := t.newEngine()
		if err := eng.SetLanguage(t.languages...); err != nil {
			_ = eng.Close()
			t.initErr = errs.New(errs.Extraction, "init", fmt.Errorf("load languages %s: %w", strings.Join(t.languages, "+"), err))
			return
		}

		t.mu.Lock()
		defer t.mu.Unlock()
		// Close may have run while the engine was loading.
		if t.closed {
			_ = eng.Close()
			t.initErr = errs.New(errs.Extraction, "init", errClosed)
			return
		}
		t.eng = eng
		log.Info().Strs("languages", t.languages).Dur("took", time.Since(start)).Msg("ocr engine initialized")
	})
	return t.initErr
}

// Extract encodes img as PNG and runs OCR on it.
func (t *Tesseract) Extract(ctx context.Context, img image.Image) (string, error) {
	if img == nil {
		return "", errs.New(errs.Extraction, "extract", errors.New("nil image"))
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", errs.New(errs.Extraction, "encode", err)
	}
	return t.ExtractFromBytes(ctx, buf.Bytes())
}

// ExtractFromBytes runs OCR on an encoded image (PNG, JPEG, ...).
func (t *Tesseract) ExtractFromBytes(ctx context.Context, encoded []byte) (string, error) {
	if len(encoded) == 0 {
		return "", errs.New(errs.Extraction, "extract", errors.New("empty image payload"))
	}
	if err := ctx.Err(); err != nil {
		return "", errs.New(errs.Extraction, "extract", err)
	}
	if err := t.init(); err != nil {
		return "", err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return "", errs.New(errs.Extraction, "extract", errClosed)
	}
	if err := t.eng.SetImageFromBytes(encoded); err != nil {
		return "", errs.New(errs.Extraction, "set image", err)
	}
	text, err := t.eng.Text()
	if err != nil {
		return "", errs.New(errs.Extraction, "recognize", err)
	}
	return strings.TrimSpace(text), nil
}

// Close releases the tesseract client if it was ever created.
func (t *Tesseract) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.eng != nil {
		return t.eng.Close()
	}
	return nil
}
