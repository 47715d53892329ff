package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"sync/atomic"
	"time"

	"github.com/kbinani/screenshot"
	"github.com/rs/zerolog/log"
	xdraw "golang.org/x/image/draw"

	"github.com/local/screenassist/internal/errs"
)

// ErrClosed is returned by Capture after Close.
var ErrClosed = errors.New("capture device closed")

// Options configures Screen.
type Options struct {
	// Display is the index passed to screenshot.GetDisplayBounds when no
	// region is given. 0 is the primary display.
	Display int
	// MaxDimension downscales captures whose longest side exceeds it.
	// Zero disables scaling.
	MaxDimension int
}

// Screen captures the live desktop via kbinani/screenshot.
type Screen struct {
	opts   Options
	closed atomic.Bool

	// seams for tests
	grab   func(image.Rectangle) (*image.RGBA, error)
	bounds func(int) image.Rectangle
	count  func() int
}

// NewScreen returns a Screen provider.
func NewScreen(opts Options) *Screen {
	return &Screen{
		opts:   opts,
		grab:   screenshot.CaptureRect,
		bounds: screenshot.GetDisplayBounds,
		count:  screenshot.NumActiveDisplays,
	}
}

// Capture grabs region (or the configured display when nil) and encodes it
// as PNG.
func (s *Screen) Capture(ctx context.Context, region *Region) (*Screenshot, error) {
	if s.closed.Load() {
		return nil, errs.New(errs.Capture, "capture", ErrClosed)
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.New(errs.Capture, "capture", err)
	}

	rect, err := s.target(region)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	img, err := s.grab(rect)
	if err != nil {
		return nil, errs.New(errs.Capture, "grab", err)
	}

	var out image.Image = img
	if s.opts.MaxDimension > 0 {
		out = downscale(img, s.opts.MaxDimension)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, errs.New(errs.Capture, "encode", err)
	}

	log.Debug().
		Str("rect", rect.String()).
		Int("width", out.Bounds().Dx()).
		Int("height", out.Bounds().Dy()).
		Int("bytes", buf.Len()).
		Dur("took", time.Since(start)).
		Msg("screen captured")

	return &Screenshot{Image: out, PNG: buf.Bytes()}, nil
}

func (s *Screen) target(region *Region) (image.Rectangle, error) {
	if region != nil {
		if region.Width <= 0 || region.Height <= 0 {
			return image.Rectangle{}, errs.Newf(errs.Capture, "region", "invalid region %s", region)
		}
		return region.Rect(), nil
	}
	n := s.count()
	if n <= 0 {
		return image.Rectangle{}, errs.Newf(errs.Capture, "display", "no active displays")
	}
	if s.opts.Display < 0 || s.opts.Display >= n {
		return image.Rectangle{}, errs.Newf(errs.Capture, "display", "display %d out of range (have %d)", s.opts.Display, n)
	}
	return s.bounds(s.opts.Display), nil
}

// Close releases the device. Later captures fail with ErrClosed.
func (s *Screen) Close() error {
	s.closed.Store(true)
	return nil
}

// downscale keeps the aspect ratio and fits the longest side into limit.
func downscale(src image.Image, limit int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= limit && h <= limit {
		return src
	}
	if w >= h {
		h = h * limit / w
		w = limit
	} else {
		w = w * limit / h
		h = limit
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}

// NumDisplays reports how many displays can be captured.
func NumDisplays() int { return screenshot.NumActiveDisplays() }
