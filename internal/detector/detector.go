package detector

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sandevgo/replybot/internal/core"
	"github.com/sandevgo/replybot/pkg/log"
)

const UnknownSender = "unknown"

type Config struct {
	// DiffThreshold is the changed-pixel fraction above which a frame counts
	// as changed.
	DiffThreshold   float64
	MinConfidence   float64
	MarkerDetection bool
	MessageRegion   Region
	TitleRegion     Region
}

func DefaultConfig() Config {
	return Config{
		DiffThreshold:   0.01,
		MinConfidence:   60,
		MarkerDetection: true,
		MessageRegion:   MessageRegion,
		TitleRegion:     TitleRegion,
	}
}

type lastDetection struct {
	sender, text string
}

// Detector turns raw captures into message detections. Capture and OCR
// errors never escape as panics: Detect reports "no message" together with
// the cause and counts the failure streak.
type Detector struct {
	capturer core.Capturer
	ocr      core.Recognizer
	cfg      Config
	now      func() time.Time

	mu       sync.Mutex
	prev     core.Frame
	last     lastDetection
	failures int
}

func New(capturer core.Capturer, ocr core.Recognizer, cfg Config) *Detector {
	return &Detector{
		capturer: capturer,
		ocr:      ocr,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Capture grabs one frame of the monitored region.
func (d *Detector) Capture(ctx context.Context) (core.Frame, error) {
	img, err := d.capturer.CaptureRegion(ctx)
	if err != nil {
		return core.Frame{}, fmt.Errorf("%w: capture: %w", core.ErrDetection, err)
	}
	frame := core.Frame{Image: img, CapturedAt: d.now()}
	if frame.Empty() {
		return core.Frame{}, fmt.Errorf("%w: capture returned an empty image", core.ErrDetection)
	}
	return frame, nil
}

// HasNewMessage compares two frames. With marker detection on, a missing
// unread marker is authoritative; a marker on an unchanged frame is not new.
func (d *Detector) HasNewMessage(prev, cur core.Frame) bool {
	if cur.Empty() {
		return false
	}
	if d.cfg.MarkerDetection && !HasUnreadMarker(cur.Image) {
		return false
	}
	if prev.Empty() {
		return true
	}
	return FrameDiff(prev.Image, cur.Image) > d.cfg.DiffThreshold
}

// ExtractText OCRs the message area and returns normalised text, or "" when
// nothing passed the confidence filter.
func (d *Detector) ExtractText(ctx context.Context, frame core.Frame) (string, error) {
	lines, err := d.ocr.Recognize(ctx, Crop(frame.Image, d.cfg.MessageRegion))
	if err != nil {
		return "", fmt.Errorf("%w: ocr message: %w", core.ErrDetection, err)
	}
	return NormalizeLines(lines, d.cfg.MinConfidence), nil
}

// ActiveChatIdentity reads the conversation title.
func (d *Detector) ActiveChatIdentity(ctx context.Context, frame core.Frame) (string, error) {
	lines, err := d.ocr.Recognize(ctx, Crop(frame.Image, d.cfg.TitleRegion))
	if err != nil {
		return "", fmt.Errorf("%w: ocr title: %w", core.ErrDetection, err)
	}
	text := NormalizeLines(lines, d.cfg.MinConfidence)
	if first, _, _ := strings.Cut(text, "\n"); first != "" {
		return first, nil
	}
	return UnknownSender, nil
}

// Detect runs one capture pass. The returned error is informational: the
// detection is always usable and Found is false whenever err is non-nil.
func (d *Detector) Detect(ctx context.Context) (core.Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	logger := log.FromCtx(ctx)

	frame, err := d.Capture(ctx)
	if err != nil {
		d.failures++
		return core.Detection{}, err
	}

	prev := d.prev
	d.prev = frame

	if !d.HasNewMessage(prev, frame) {
		d.failures = 0
		return core.Detection{Frame: frame}, nil
	}

	// A failed OCR pass keeps the last good frame so the message is seen
	// again once OCR recovers.
	text, err := d.ExtractText(ctx, frame)
	if err != nil {
		d.prev = prev
		d.failures++
		return core.Detection{Frame: frame}, err
	}
	if text == "" {
		d.failures = 0
		logger.Debug().Msg("frame changed but no text passed OCR filtering")
		return core.Detection{Frame: frame}, nil
	}

	sender, err := d.ActiveChatIdentity(ctx, frame)
	if err != nil {
		d.prev = prev
		d.failures++
		return core.Detection{Frame: frame}, err
	}
	d.failures = 0

	if d.last.sender == sender && d.last.text == text {
		logger.Debug().Str("sender", sender).Msg("same message as last detection, skipping")
		return core.Detection{Frame: frame}, nil
	}
	d.last = lastDetection{sender: sender, text: text}

	return core.Detection{
		Found:  true,
		Sender: sender,
		Text:   text,
		Frame:  frame,
	}, nil
}

// Failures is the current streak of failed passes.
func (d *Detector) Failures() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.failures
}
