package desktop

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strconv"
	"strings"

	"github.com/sandevgo/replybot/internal/core"
)

// DefaultOCRCommand reads a PNG on stdin and prints word-level TSV.
var DefaultOCRCommand = []string{"tesseract", "stdin", "stdout", "-l", "chi_sim+eng", "--psm", "6", "tsv"}

// tesseract TSV columns.
const (
	colLevel = iota
	colPage
	colBlock
	colPar
	colLine
	colWord
	colLeft
	colTop
	colWidth
	colHeight
	colConf
	colText
	tsvColumns
)

const wordLevel = "5"

// Tesseract recognises text by piping frames through the tesseract CLI.
type Tesseract struct {
	command []string
	run     runner
}

func NewTesseract(command []string) *Tesseract {
	if len(command) == 0 {
		command = DefaultOCRCommand
	}
	return &Tesseract{command: command, run: execRun}
}

func (t *Tesseract) Recognize(ctx context.Context, img image.Image) ([]core.OCRLine, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	out, err := t.run(ctx, buf.Bytes(), t.command[0], t.command[1:]...)
	if err != nil {
		return nil, err
	}
	return ParseTSV(out)
}

type lineKey struct{ page, block, par, line string }

type lineAcc struct {
	words   []string
	confSum float64
	confN   int
}

// ParseTSV groups tesseract's word rows into lines, top to bottom, with the
// mean confidence of the words that carry one.
func ParseTSV(data []byte) ([]core.OCRLine, error) {
	var (
		order []lineKey
		lines = map[lineKey]*lineAcc{}
	)

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	header := true
	for sc.Scan() {
		row := sc.Text()
		if header {
			header = false
			if strings.HasPrefix(row, "level") {
				continue
			}
		}
		cols := strings.Split(row, "\t")
		if len(cols) < tsvColumns || cols[colLevel] != wordLevel {
			continue
		}
		text := strings.TrimSpace(cols[colText])
		if text == "" {
			continue
		}

		key := lineKey{cols[colPage], cols[colBlock], cols[colPar], cols[colLine]}
		acc, ok := lines[key]
		if !ok {
			acc = &lineAcc{}
			lines[key] = acc
			order = append(order, key)
		}
		acc.words = append(acc.words, text)

		conf, err := strconv.ParseFloat(cols[colConf], 64)
		if err != nil {
			return nil, fmt.Errorf("tsv confidence %q: %w", cols[colConf], err)
		}
		if conf >= 0 {
			acc.confSum += conf
			acc.confN++
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read tsv: %w", err)
	}

	out := make([]core.OCRLine, 0, len(order))
	for _, key := range order {
		acc := lines[key]
		var conf float64
		if acc.confN > 0 {
			conf = acc.confSum / float64(acc.confN)
		}
		out = append(out, core.OCRLine{Text: strings.Join(acc.words, " "), Confidence: conf})
	}
	return out, nil
}
