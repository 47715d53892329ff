package capture

import (
	"fmt"
	"image"
	"strconv"
	"strings"
)

// Region is a rectangle in screen pixels. A nil *Region means the primary
// display.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NewRegion validates the dimensions and returns an immutable region.
func NewRegion(x, y, width, height int) (*Region, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("region %dx%d: width and height must be positive", width, height)
	}
	return &Region{X: x, Y: y, Width: width, Height: height}, nil
}

// ParseRegion parses the "x,y,width,height" form used by CAPTURE_REGION.
// Empty input returns (nil, nil).
func ParseRegion(s string) (*Region, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("region %q: want x,y,width,height", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("region %q: %w", s, err)
		}
		v[i] = n
	}
	return NewRegion(v[0], v[1], v[2], v[3])
}

// Rect converts the region to an image rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

func (r Region) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", r.X, r.Y, r.Width, r.Height)
}
