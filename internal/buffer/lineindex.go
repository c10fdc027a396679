package buffer

import (
	"strings"
	"unicode/utf8"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// scanLines appends to dst the offsets of all line starts in text from
// offset from onward. dst must already contain the starts of all lines
// before from (or be nil when scanning from the beginning, in which case the
// mandatory first entry 0 is added here).
func scanLines(text string, from int, dst []int) []int {
	if len(dst) == 0 {
		dst = append(dst, 0)
		from = 0
	}
	for i := from; ; {
		nl := strings.IndexByte(text[i:], '\n')
		if nl < 0 {
			return dst
		}
		i += nl + 1
		dst = append(dst, i)
	}
}

// utf16ToByteOffset converts a character offset in UTF-16 code units into a
// byte offset within line. Characters beyond the end of the line clamp to
// its byte length.
func utf16ToByteOffset(line string, character protocol.UInteger) int {
	var units protocol.UInteger
	var bytes int
	for _, r := range line {
		step := protocol.UInteger(1)
		if r > 0xFFFF {
			step = 2
		}
		if units+step > character {
			break
		}
		units += step
		bytes += utf8.RuneLen(r)
	}
	return bytes
}

// utf16Len counts the UTF-16 code units of s.
func utf16Len(s string) protocol.UInteger {
	var units protocol.UInteger
	for _, r := range s {
		if r > 0xFFFF {
			units += 2
		} else {
			units++
		}
	}
	return units
}

// UTF16Len exposes the code-unit count for callers building protocol ranges
// from raw line content.
func UTF16Len(s string) protocol.UInteger {
	return utf16Len(s)
}

// UTF16ByteOffset exposes the character-to-byte conversion for callers
// working on a single line of raw content.
func UTF16ByteOffset(line string, character protocol.UInteger) int {
	return utf16ToByteOffset(line, character)
}
