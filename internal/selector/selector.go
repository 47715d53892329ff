// Package selector picks a capture region from two mouse positions. The
// region hotkey is pressed once at each corner.
package selector

import (
	"image"
	"sync"

	"github.com/go-vgo/robotgo"
	"github.com/rs/zerolog/log"

	"github.com/local/screenassist/internal/capture"
)

// MinSide is the smallest accepted width or height, exclusive.
const MinSide = 5

// Selector is a two-step corner picker. It is safe for concurrent use.
type Selector struct {
	mu     sync.Mutex
	anchor *image.Point
	locate func() (int, int)
	emit   func(*capture.Region)
}

// New returns a selector that reports finished regions to emit.
func New(emit func(*capture.Region)) *Selector {
	return &Selector{locate: robotgo.Location, emit: emit}
}

// Pending reports whether a first corner is marked.
func (s *Selector) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.anchor != nil
}

// Mark records the mouse position. The first call sets a corner; the second
// closes the rectangle and emits it when both sides exceed MinSide. A
// rectangle that is too small is discarded.
func (s *Selector) Mark() {
	x, y := s.locate()

	s.mu.Lock()
	if s.anchor == nil {
		s.anchor = &image.Point{X: x, Y: y}
		s.mu.Unlock()
		log.Info().Int("x", x).Int("y", y).Msg("region corner marked; move to the opposite corner and press again")
		return
	}
	rect := image.Rectangle{Min: *s.anchor, Max: image.Point{X: x, Y: y}}.Canon()
	s.anchor = nil
	s.mu.Unlock()

	if rect.Dx() <= MinSide || rect.Dy() <= MinSide {
		log.Warn().Int("width", rect.Dx()).Int("height", rect.Dy()).Msg("region too small; selection discarded")
		return
	}
	r := &capture.Region{X: rect.Min.X, Y: rect.Min.Y, Width: rect.Dx(), Height: rect.Dy()}
	log.Info().Str("region", r.String()).Msg("region selected")
	if s.emit != nil {
		s.emit(r)
	}
}

// Cancel drops a pending first corner.
func (s *Selector) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.anchor != nil {
		s.anchor = nil
		log.Info().Msg("region selection cancelled")
	}
}
