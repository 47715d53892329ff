package ai

import (
	"encoding/json"
	"strings"
)

// Role of a chat turn.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Part is one typed element of a multi-part user message.
type Part struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL carries an inline data reference, never a remote URL.
type ImageURL struct {
	URL string `json:"url"`
}

// TextPart returns a text part.
func TextPart(text string) Part { return Part{Type: "text", Text: text} }

// ImagePart returns an image part embedding b64 as a data URI.
func ImagePart(mime, b64 string) Part {
	return Part{Type: "image_url", ImageURL: &ImageURL{URL: "data:" + mime + ";base64," + b64}}
}

// Message is one chat turn. Content is either Text or Parts; when Parts is
// non-nil it wins.
type Message struct {
	Role  Role
	Text  string
	Parts []Part
}

type wireMessage struct {
	Role    Role `json:"role"`
	Content any  `json:"content"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	w := wireMessage{Role: m.Role, Content: m.Text}
	if m.Parts != nil {
		w.Content = m.Parts
	}
	return json.Marshal(w)
}

// ChatRequest is the body POSTed to /chat/completions.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatResponse struct {
	Choices *[]struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Result is the outcome of one call: Answer on success, Err otherwise.
// Err is always an *errs.Error.
type Result struct {
	Answer string
	Err    error
}

// OK reports whether the call succeeded.
func (r Result) OK() bool { return r.Err == nil }

// VisionCapable reports whether model is known to accept image parts.
func VisionCapable(model string) bool {
	m := strings.ToLower(model)
	if i := strings.LastIndex(m, "/"); i >= 0 {
		m = m[i+1:]
	}
	for _, p := range []string{"gpt-4o", "gpt-4.1", "gpt-5", "claude", "gemini", "phi-4-multimodal", "pixtral"} {
		if strings.HasPrefix(m, p) {
			return true
		}
	}
	return strings.Contains(m, "vision") || strings.Contains(m, "-vl")
}
