package desktop

import (
	"context"
	"fmt"
	"image"
	"strconv"

	"github.com/sandevgo/replybot/pkg/log"
)

// Xdotool types into the chat client through the xdotool CLI.
type Xdotool struct {
	window string
	// per-keystroke delay in milliseconds
	typeDelay int
	run       runner
}

func NewXdotool(window string) *Xdotool {
	return &Xdotool{window: window, typeDelay: 30, run: execRun}
}

func (x *Xdotool) xdotool(ctx context.Context, args ...string) error {
	_, err := x.run(ctx, nil, "xdotool", args...)
	return err
}

// Click raises the chat window, when one is named, and clicks at pt.
func (x *Xdotool) Click(ctx context.Context, pt image.Point) error {
	if x.window != "" {
		if err := x.xdotool(ctx, "search", "--name", x.window, "windowactivate", "--sync"); err != nil {
			return fmt.Errorf("activate %q: %w", x.window, err)
		}
	}
	return x.xdotool(ctx, "mousemove", strconv.Itoa(pt.X), strconv.Itoa(pt.Y), "click", "1")
}

func (x *Xdotool) TypeText(ctx context.Context, text string) error {
	return x.xdotool(ctx, "type", "--delay", strconv.Itoa(x.typeDelay), "--", text)
}

func (x *Xdotool) PressKey(ctx context.Context, key string) error {
	return x.xdotool(ctx, "key", key)
}

// DryRun logs the input it would have sent.
type DryRun struct{}

func (DryRun) Click(ctx context.Context, pt image.Point) error {
	log.FromCtx(ctx).Info().Int("x", pt.X).Int("y", pt.Y).Msg("dry run: click")
	return nil
}

func (DryRun) TypeText(ctx context.Context, text string) error {
	log.FromCtx(ctx).Info().Str("text", text).Msg("dry run: type")
	return nil
}

func (DryRun) PressKey(ctx context.Context, key string) error {
	log.FromCtx(ctx).Info().Str("key", key).Msg("dry run: key")
	return nil
}
