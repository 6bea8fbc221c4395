package desktop

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
)

// DefaultCaptureCommand grabs the named window with ImageMagick.
var DefaultCaptureCommand = []string{"import", "-window", WindowPlaceholder, "png:-"}

// Capturer runs a command that writes one PNG frame to stdout.
type Capturer struct {
	command []string
	run     runner
}

func NewCapturer(command []string, window string) *Capturer {
	if len(command) == 0 {
		command = DefaultCaptureCommand
	}
	return &Capturer{command: expand(command, window), run: execRun}
}

func (c *Capturer) CaptureRegion(ctx context.Context) (image.Image, error) {
	out, err := c.run(ctx, nil, c.command[0], c.command[1:]...)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New("capture command produced no output")
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("decode capture: %w", err)
	}
	return img, nil
}
