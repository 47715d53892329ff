// Package errs defines the failure taxonomy shared by the capture, OCR, AI and
// pipeline layers. Every per-trigger failure reaching the presentation sink is
// one of these kinds.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure.
type Kind int

const (
	Unknown Kind = iota
	// Configuration is fatal at construction time and never surfaces mid-run.
	Configuration
	Capture
	Extraction
	Transport
	Remote
	Protocol
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration"
	case Capture:
		return "capture"
	case Extraction:
		return "extraction"
	case Transport:
		return "transport"
	case Remote:
		return "remote"
	case Protocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Status and Body are only set for Remote and
// Protocol errors coming back from the chat endpoint.
type Error struct {
	Kind   Kind
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	b.WriteString(" error")
	if e.Op != "" {
		b.WriteString(" (")
		b.WriteString(e.Op)
		b.WriteString(")")
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, ": HTTP %d", e.Status)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error wrapping err.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf is New with a formatted cause.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message renders err for the user, appending the response body for
// endpoint failures so bug reports carry the diagnostic payload.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	var prefix string
	switch e.Kind {
	case Capture:
		prefix = "Screen capture failed"
	case Extraction:
		prefix = "Text extraction failed"
	case Transport:
		prefix = "Could not reach the AI endpoint"
	case Remote:
		prefix = "The AI endpoint returned an error"
	case Protocol:
		prefix = "Unexpected API response format"
	case Configuration:
		prefix = "Configuration error"
	default:
		return err.Error()
	}
	var b strings.Builder
	b.WriteString(prefix)
	if e.Op != "" {
		fmt.Fprintf(&b, " (%s)", e.Op)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, ": HTTP %d", e.Status)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Body != "" {
		b.WriteString("\n\nResponse body:\n")
		b.WriteString(e.Body)
	}
	return b.String()
}
