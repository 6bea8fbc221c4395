package detector

import (
	"strings"
	"unicode"

	"github.com/sandevgo/replybot/internal/core"
)

// NormalizeLines keeps lines at or above minConfidence, collapses runs of
// whitespace and drops the spaces OCR engines insert between CJK glyphs.
func NormalizeLines(lines []core.OCRLine, minConfidence float64) string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l.Confidence < minConfidence {
			continue
		}
		if s := normalizeLine(l.Text); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "\n")
}

func normalizeLine(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, f := range fields {
		if i > 0 && !(endsWithCJK(fields[i-1]) && startsWithCJK(f)) {
			sb.WriteByte(' ')
		}
		sb.WriteString(f)
	}
	return sb.String()
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) ||
		(r >= 0x3000 && r <= 0x303F) || (r >= 0xFF00 && r <= 0xFFEF)
}

func startsWithCJK(s string) bool {
	for _, r := range s {
		return isCJK(r)
	}
	return false
}

func endsWithCJK(s string) bool {
	rs := []rune(s)
	return len(rs) > 0 && isCJK(rs[len(rs)-1])
}
