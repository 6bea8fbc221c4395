package core

import (
	"context"
	"image"
)

// AIProvider generates a completion for an ordered prompt.
type AIProvider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
	Model() string
}

// Capturer grabs the raw pixels of the monitored chat region.
type Capturer interface {
	CaptureRegion(ctx context.Context) (image.Image, error)
}

// Recognizer is the OCR engine. It returns lines top to bottom.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) ([]OCRLine, error)
}

// Input simulates the user typing into the chat client.
type Input interface {
	Click(ctx context.Context, pt image.Point) error
	TypeText(ctx context.Context, text string) error
	PressKey(ctx context.Context, key string) error
}
