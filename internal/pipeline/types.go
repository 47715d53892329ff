package pipeline

import (
	"context"

	"github.com/local/screenassist/internal/ai"
	"github.com/local/screenassist/internal/capture"
)

// State is the pipeline's run state. Runs move Idle -> Capturing ->
// AwaitingAnswer -> Idle; a failed capture goes straight back to Idle.
type State int32

const (
	Idle State = iota
	Capturing
	AwaitingAnswer
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	case AwaitingAnswer:
		return "awaiting_answer"
	default:
		return "unknown"
	}
}

// Mode selects what is sent for a trigger.
type Mode int

const (
	// ModeAuto sends the image when the model is vision-capable, OCR text
	// otherwise.
	ModeAuto Mode = iota
	ModeVision
	// ModeText forces OCR text even for vision models.
	ModeText
)

func (m Mode) String() string {
	switch m {
	case ModeVision:
		return "vision"
	case ModeText:
		return "text"
	default:
		return "auto"
	}
}

// ParseMode maps "", "auto", "vision" and "text".
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "", "auto":
		return ModeAuto, true
	case "vision", "image":
		return ModeVision, true
	case "text", "ocr":
		return ModeText, true
	}
	return ModeAuto, false
}

// Trigger requests one run. Region overrides the active region for this run
// only.
type Trigger struct {
	Mode   Mode
	Region *capture.Region
}

// Sink is the presentation surface. Methods are called from the worker
// goroutine, so implementations must be safe for concurrent use.
type Sink interface {
	Visible() bool
	Hide()
	Show()
	ShowLoading()
	ShowResult(text string)
	ShowError(message string)
}

// Completer is the AI call the pipeline depends on; *ai.Client satisfies it.
// Mode selection does not consult the model; see Options.TextOnly.
type Completer interface {
	Complete(ctx context.Context, messages []ai.Message) ai.Result
}
