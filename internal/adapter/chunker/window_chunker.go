package chunker

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/justineyoo1/PDFResearchAssistant/internal/domain"
)

// Unit is the measure chunk size and overlap are expressed in.
type Unit string

const (
	UnitChar  Unit = "char"
	UnitToken Unit = "token"
)

// ParseUnit resolves a configured unit name.
func ParseUnit(name string) (Unit, error) {
	switch Unit(strings.ToLower(name)) {
	case "", UnitChar:
		return UnitChar, nil
	case UnitToken:
		return UnitToken, nil
	default:
		return "", domain.NewError(domain.KindChunkerConfig, "parse unit", fmt.Errorf("unknown chunk unit %q", name))
	}
}

// WindowChunker cuts text into fixed-size windows that advance by size-overlap units.
// In char mode a window end may move back up to tolerance characters to land on whitespace.
// In token mode units are whitespace-delimited words, so ends always fall between words.
type WindowChunker struct {
	size      int
	overlap   int
	unit      Unit
	tolerance int
}

// NewWindowChunker validates the window parameters.
func NewWindowChunker(size, overlap int, unit Unit, tolerance int) (*WindowChunker, error) {
	if size <= 0 {
		return nil, domain.NewError(domain.KindChunkerConfig, "new chunker", fmt.Errorf("chunk size must be positive, got %d", size))
	}
	if overlap < 0 || overlap >= size {
		return nil, domain.NewError(domain.KindChunkerConfig, "new chunker", fmt.Errorf("overlap must be in [0, %d), got %d", size, overlap))
	}
	if tolerance < 0 {
		tolerance = 0
	}
	if unit == "" {
		unit = UnitChar
	}
	return &WindowChunker{
		size:      size,
		overlap:   overlap,
		unit:      unit,
		tolerance: tolerance,
	}, nil
}

// Chunk returns the byte spans of each window in order. Empty text yields none.
func (c *WindowChunker) Chunk(text string) []domain.Span {
	bounds := c.unitBounds(text)
	n := len(bounds) - 1
	if n <= 0 {
		return nil
	}

	var spans []domain.Span
	start := 0
	for {
		end := start + c.size
		if end >= n {
			spans = append(spans, domain.Span{Start: bounds[start], End: bounds[n]})
			return spans
		}
		if c.unit == UnitChar {
			end = c.snapToWhitespace(text, bounds, start, end)
		}
		spans = append(spans, domain.Span{Start: bounds[start], End: bounds[end]})
		start = end - c.overlap
	}
}

// unitBounds returns the byte offset of every unit start followed by len(text).
func (c *WindowChunker) unitBounds(text string) []int {
	if text == "" {
		return nil
	}
	bounds := make([]int, 0, len(text)+1)

	if c.unit == UnitToken {
		bounds = append(bounds, 0)
		prevSpace, seenWord := true, false
		for i, r := range text {
			space := unicode.IsSpace(r)
			if !space && prevSpace {
				if seenWord {
					bounds = append(bounds, i)
				}
				seenWord = true
			}
			prevSpace = space
		}
		return append(bounds, len(text))
	}

	for i := range text {
		bounds = append(bounds, i)
	}
	return append(bounds, len(text))
}

// snapToWhitespace moves end back to the nearest unit boundary touching whitespace.
// It never moves below start+overlap+1, so the next window still advances.
func (c *WindowChunker) snapToWhitespace(text string, bounds []int, start, end int) int {
	floor := end - c.tolerance
	if min := start + c.overlap + 1; floor < min {
		floor = min
	}
	for j := end; j >= floor; j-- {
		if isSpaceAt(text, bounds[j]) || isSpaceAt(text, bounds[j-1]) {
			return j
		}
	}
	return end
}

func isSpaceAt(text string, offset int) bool {
	if offset >= len(text) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(text[offset:])
	return unicode.IsSpace(r)
}
