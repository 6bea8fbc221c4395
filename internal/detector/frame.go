package detector

import (
	"image"
	"image/color"
	"image/draw"
)

// Region is a crop rectangle expressed as fractions of the frame size.
type Region struct {
	Left, Top, Right, Bottom float64
}

var (
	// MessageRegion covers the latest bubbles of the open conversation.
	MessageRegion = Region{Left: 0.3, Top: 0.6, Right: 0.95, Bottom: 0.9}
	// TitleRegion covers the conversation title, i.e. the sender name.
	TitleRegion = Region{Left: 0.1, Top: 0, Right: 0.5, Bottom: 0.1}
)

// Rect resolves r against bounds.
func (r Region) Rect(bounds image.Rectangle) image.Rectangle {
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	return image.Rect(
		bounds.Min.X+int(r.Left*w),
		bounds.Min.Y+int(r.Top*h),
		bounds.Min.X+int(r.Right*w),
		bounds.Min.Y+int(r.Bottom*h),
	).Intersect(bounds)
}

// Crop returns the part of img inside r, sharing pixels when the image
// supports SubImage.
func Crop(img image.Image, r Region) image.Image {
	rect := r.Rect(img.Bounds())
	if sub, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(rect)
	}
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)
	return dst
}

// channelTolerance absorbs compression noise between two captures.
const channelTolerance = 24

// FrameDiff returns the fraction of pixels that differ between a and b.
// Frames of different size are fully different.
func FrameDiff(a, b image.Image) float64 {
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		return 1
	}
	total := ab.Dx() * ab.Dy()
	if total == 0 {
		return 0
	}

	changed := 0
	for y := 0; y < ab.Dy(); y++ {
		for x := 0; x < ab.Dx(); x++ {
			ca := color.RGBAModel.Convert(a.At(ab.Min.X+x, ab.Min.Y+y)).(color.RGBA)
			cb := color.RGBAModel.Convert(b.At(bb.Min.X+x, bb.Min.Y+y)).(color.RGBA)
			if absDiff(ca.R, cb.R) > channelTolerance ||
				absDiff(ca.G, cb.G) > channelTolerance ||
				absDiff(ca.B, cb.B) > channelTolerance {
				changed++
			}
		}
	}
	return float64(changed) / float64(total)
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

// Unread badges are small saturated red dots.
const (
	markerMinArea = 50
	markerMaxArea = 500
)

// HasUnreadMarker reports whether img contains a red blob sized like an
// unread badge.
func HasUnreadMarker(img image.Image) bool {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return false
	}

	mask := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			mask[y*w+x] = isMarkerRed(img.At(b.Min.X+x, b.Min.Y+y))
		}
	}

	seen := make([]bool, w*h)
	stack := make([]int, 0, markerMaxArea)
	for i := range mask {
		if !mask[i] || seen[i] {
			continue
		}

		area := 0
		seen[i] = true
		stack = append(stack[:0], i)
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			area++

			px, py := p%w, p/w
			for _, n := range [4][2]int{{px - 1, py}, {px + 1, py}, {px, py - 1}, {px, py + 1}} {
				if n[0] < 0 || n[0] >= w || n[1] < 0 || n[1] >= h {
					continue
				}
				q := n[1]*w + n[0]
				if mask[q] && !seen[q] {
					seen[q] = true
					stack = append(stack, q)
				}
			}
		}

		if area >= markerMinArea && area <= markerMaxArea {
			return true
		}
	}
	return false
}

// isMarkerRed approximates the HSV band hue<10 or hue>170 with high
// saturation and value.
func isMarkerRed(c color.Color) bool {
	rgba := color.RGBAModel.Convert(c).(color.RGBA)
	r, g, b := int(rgba.R), int(rgba.G), int(rgba.B)
	return r >= 150 && r-g >= 90 && r-b >= 90
}
