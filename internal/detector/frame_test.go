package detector

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	white = color.RGBA{255, 255, 255, 255}
	red   = color.RGBA{230, 30, 30, 255}
	black = color.RGBA{0, 0, 0, 255}
)

func canvas(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{white}, image.Point{}, draw.Src)
	return img
}

func fill(img *image.RGBA, r image.Rectangle, c color.Color) *image.RGBA {
	draw.Draw(img, r, &image.Uniform{c}, image.Point{}, draw.Src)
	return img
}

func TestFrameDiff(t *testing.T) {
	base := canvas(100, 100)

	tests := []struct {
		name string
		b    image.Image
		want float64
	}{
		{"identical", canvas(100, 100), 0},
		{"quarter changed", fill(canvas(100, 100), image.Rect(0, 0, 50, 50), black), 0.25},
		{"noise under tolerance", fill(canvas(100, 100), image.Rect(0, 0, 100, 100), color.RGBA{240, 240, 240, 255}), 0},
		{"size mismatch", canvas(50, 100), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, FrameDiff(base, tt.b), 1e-9)
		})
	}
}

func TestHasUnreadMarker(t *testing.T) {
	tests := []struct {
		name string
		img  image.Image
		want bool
	}{
		{"blank", canvas(100, 100), false},
		{"badge", fill(canvas(100, 100), image.Rect(10, 10, 20, 20), red), true},
		{"speck too small", fill(canvas(100, 100), image.Rect(10, 10, 13, 13), red), false},
		{"red banner too large", fill(canvas(100, 100), image.Rect(0, 0, 100, 30), red), false},
		{"dark square is not red", fill(canvas(100, 100), image.Rect(10, 10, 20, 20), black), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasUnreadMarker(tt.img))
		})
	}
}

func TestRegionRectAndCrop(t *testing.T) {
	img := canvas(200, 100)

	assert.Equal(t, image.Rect(60, 60, 190, 90), MessageRegion.Rect(img.Bounds()))
	assert.Equal(t, image.Rect(20, 0, 100, 10), TitleRegion.Rect(img.Bounds()))

	sub := Crop(img, TitleRegion)
	assert.Equal(t, 80, sub.Bounds().Dx())
	assert.Equal(t, 10, sub.Bounds().Dy())

	// images without SubImage are copied
	gray := image.NewGray16(image.Rect(0, 0, 200, 100))
	assert.Equal(t, image.Rect(0, 0, 130, 30), Crop(noSub{gray}, MessageRegion).Bounds())
}

type noSub struct{ image.Image }
