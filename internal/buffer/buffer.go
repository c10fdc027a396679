// Package buffer implements the versioned text buffer backing an open
// document, together with the line index used for position/offset
// translation. Positions follow the LSP convention: zero-based line and
// character, character counted in UTF-16 code units.
package buffer

import (
	"errors"
	"fmt"
	"sort"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Predefined errors returned by buffer operations.
var (
	ErrOutOfRange  = errors.New("buffer: position out of range")
	ErrInvalidSpan = errors.New("buffer: span end before start")
)

// Buffer holds the text of one document, its version and the line index.
// The line index is consistent with the text at every method boundary.
type Buffer struct {
	text    string
	version int32
	lines   []int // byte offset of the first character of each line; lines[0] == 0
}

// New creates a Buffer with the given initial text and version.
func New(text string, version int32) *Buffer {
	b := &Buffer{text: text, version: version}
	b.lines = scanLines(text, 0, nil)
	return b
}

// Text returns the full buffer content.
func (b *Buffer) Text() string {
	return b.text
}

// Version returns the current document version.
func (b *Buffer) Version() int32 {
	return b.version
}

// SetVersion updates the version counter. The change applicator calls this
// exactly once per batch.
func (b *Buffer) SetVersion(version int32) {
	b.version = version
}

// LineCount returns the number of lines in the buffer. An empty buffer has
// one (empty) line.
func (b *Buffer) LineCount() int {
	return len(b.lines)
}

// Line returns the content of the given line without its terminator.
func (b *Buffer) Line(line int) (string, error) {
	if line < 0 || line >= len(b.lines) {
		return "", fmt.Errorf("%w: line %d of %d", ErrOutOfRange, line, len(b.lines))
	}
	return b.text[b.lines[line]:b.lineEnd(line)], nil
}

// OffsetAt converts an LSP position into a byte offset. A line beyond the
// buffer fails with ErrOutOfRange; a character beyond the end of its line is
// clamped to the line length, which the protocol tolerates for trailing
// positions.
func (b *Buffer) OffsetAt(pos protocol.Position) (int, error) {
	line := int(pos.Line)
	if line < 0 || line >= len(b.lines) {
		return 0, fmt.Errorf("%w: line %d of %d", ErrOutOfRange, line, len(b.lines))
	}
	start := b.lines[line]
	return start + utf16ToByteOffset(b.text[start:b.lineEnd(line)], pos.Character), nil
}

// PositionAt converts a byte offset into an LSP position. Offsets outside
// the buffer are clamped to its bounds.
func (b *Buffer) PositionAt(offset int) protocol.Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(b.text) {
		offset = len(b.text)
	}
	// Greatest line start <= offset.
	line := sort.Search(len(b.lines), func(i int) bool {
		return b.lines[i] > offset
	}) - 1
	return protocol.Position{
		Line:      protocol.UInteger(line),
		Character: utf16Len(b.text[b.lines[line]:offset]),
	}
}

// TextIn returns the buffer content covered by the given span.
func (b *Buffer) TextIn(span protocol.Range) (string, error) {
	if spanInverted(span) {
		return "", fmt.Errorf("%w: %v", ErrInvalidSpan, span)
	}
	start, err := b.OffsetAt(span.Start)
	if err != nil {
		return "", err
	}
	end, err := b.OffsetAt(span.End)
	if err != nil {
		return "", err
	}
	return b.text[start:end], nil
}

// Replace splices newText into the buffer over the given span. Only the line
// index entries from the span's start line onward are recomputed; lines
// strictly before it are untouched. No partial mutation happens on error.
func (b *Buffer) Replace(span protocol.Range, newText string) error {
	if spanInverted(span) {
		return fmt.Errorf("%w: %v", ErrInvalidSpan, span)
	}
	start, err := b.OffsetAt(span.Start)
	if err != nil {
		return err
	}
	end, err := b.OffsetAt(span.End)
	if err != nil {
		return err
	}

	b.text = b.text[:start] + newText + b.text[end:]

	// Keep index entries for lines before the edit, rescan the tail.
	firstLine := int(span.Start.Line)
	kept := b.lines[:firstLine+1]
	b.lines = scanLines(b.text, b.lines[firstLine], kept)
	return nil
}

// SetText replaces the whole buffer content and rebuilds the line index.
func (b *Buffer) SetText(text string) {
	b.text = text
	b.lines = scanLines(text, 0, nil)
}

// lineEnd returns the byte offset just past the content of the given line,
// excluding its newline.
func (b *Buffer) lineEnd(line int) int {
	if line+1 < len(b.lines) {
		return b.lines[line+1] - 1
	}
	return len(b.text)
}

func spanInverted(span protocol.Range) bool {
	if span.End.Line != span.Start.Line {
		return span.End.Line < span.Start.Line
	}
	return span.End.Character < span.Start.Character
}
