package ai

import (
	"github.com/local/screenassist/internal/capture"
)

const (
	systemPromptVision = "You are an AI assistant. The user sends a screenshot containing questions. " +
		"Read, analyze, and answer each question accurately and concisely."
	systemPromptText = "You are an AI assistant. The user provides extracted text from their screen. " +
		"Analyze and provide accurate answers."

	// DefaultVisionInstruction accompanies the image when none is given.
	DefaultVisionInstruction = "Please read and answer all questions in this image."
	// DefaultTextInstruction follows the extracted text when none is given.
	DefaultTextInstruction = "Please answer the questions above."
)

// BuildVision returns a system message followed by a user message holding
// the screenshot as an inline data URI and then the instruction.
// A nil screenshot is a programming error.
func BuildVision(shot *capture.Screenshot, instruction string) []Message {
	if shot == nil || len(shot.PNG) == 0 {
		panic("ai: BuildVision called without a screenshot payload")
	}
	if instruction == "" {
		instruction = DefaultVisionInstruction
	}
	return []Message{
		{Role: RoleSystem, Text: systemPromptVision},
		{Role: RoleUser, Parts: []Part{
			ImagePart(shot.MIME(), shot.Base64()),
			TextPart(instruction),
		}},
	}
}

// BuildText returns a system message followed by a single text user message
// embedding the OCR output verbatim.
func BuildText(extracted, instruction string) []Message {
	if instruction == "" {
		instruction = DefaultTextInstruction
	}
	return []Message{
		{Role: RoleSystem, Text: systemPromptText},
		{Role: RoleUser, Text: "Screen content:\n\n" + extracted + "\n\n" + instruction},
	}
}
