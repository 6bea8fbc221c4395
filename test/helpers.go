package test

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sandevgo/replybot/internal/core"
	"github.com/sandevgo/replybot/internal/storage/sqlite"
)

var (
	white = color.RGBA{255, 255, 255, 255}
	red   = color.RGBA{230, 30, 30, 255}
	black = color.RGBA{0, 0, 0, 255}
)

// NewStore opens a migrated store in a temp dir. WAL needs a real file.
func NewStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(context.Background(), sqlite.Options{
		Path:           filepath.Join(t.TempDir(), "replybot.db"),
		PoolSize:       3,
		AcquireTimeout: 2 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// ChatFrame draws a 200x100 chat window with an unread badge. Different
// variants change the message area so consecutive frames differ.
func ChatFrame(variant int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	draw.Draw(img, img.Bounds(), &image.Uniform{white}, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(2, 40, 12, 50), &image.Uniform{red}, image.Point{}, draw.Src)
	x := 60 + (variant%4)*10
	draw.Draw(img, image.Rect(x, 60, x+40, 80), &image.Uniform{black}, image.Point{}, draw.Src)
	return img
}

// Screen is a scripted capture and OCR pair. The title crop is told apart
// from the message crop by its height.
type Screen struct {
	mu      sync.Mutex
	frame   image.Image
	title   string
	message string
}

func (s *Screen) Show(frame image.Image, title, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame, s.title, s.message = frame, title, message
}

func (s *Screen) CaptureRegion(context.Context) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return nil, fmt.Errorf("window not found")
	}
	return s.frame, nil
}

func (s *Screen) Recognize(_ context.Context, img image.Image) ([]core.OCRLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text := s.message
	if img.Bounds().Dy() <= 10 {
		text = s.title
	}
	if text == "" {
		return nil, nil
	}
	return []core.OCRLine{{Text: text, Confidence: 92}}, nil
}

// Keyboard records what would have been typed.
type Keyboard struct {
	mu    sync.Mutex
	typed []string
}

func (k *Keyboard) Click(context.Context, image.Point) error { return nil }

func (k *Keyboard) TypeText(_ context.Context, text string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.typed = append(k.typed, text)
	return nil
}

func (k *Keyboard) PressKey(context.Context, string) error { return nil }

func (k *Keyboard) Typed() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]string(nil), k.typed...)
}

// ChatServer is an OpenAI-compatible endpoint answering with Reply, or with
// Status when it is non-zero.
type ChatServer struct {
	*httptest.Server
	Reply  atomic.Value
	Status atomic.Int32
	Calls  atomic.Int32
}

func NewChatServer(t *testing.T, reply string) *ChatServer {
	t.Helper()
	cs := &ChatServer{}
	cs.Reply.Store(reply)
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cs.Calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if code := cs.Status.Load(); code != 0 {
			w.WriteHeader(int(code))
			_, _ = fmt.Fprintf(w, `{"error":{"message":"status %d","type":"server_error"}}`, code)
			return
		}
		_, _ = fmt.Fprintf(w, `{"id":"c1","object":"chat.completion","created":1,"model":"m",
			"choices":[{"index":0,"message":{"role":"assistant","content":%q},"finish_reason":"stop"}]}`,
			cs.Reply.Load().(string))
	}))
	t.Cleanup(cs.Close)
	return cs
}
