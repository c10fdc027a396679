package analysis

import (
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// positionToPoint converts an LSP position (UTF-16 characters) into a
// tree-sitter point (byte columns) within source. Out-of-range lines and
// characters clamp to the buffer.
func positionToPoint(source []byte, pos protocol.Position) sitter.Point {
	lines := strings.Split(string(source), "\n")
	line := int(pos.Line)
	if line >= len(lines) {
		line = len(lines) - 1
	}
	var units protocol.UInteger
	var bytes int
	for _, r := range lines[line] {
		step := protocol.UInteger(1)
		if r > 0xFFFF {
			step = 2
		}
		if units+step > pos.Character {
			break
		}
		units += step
		bytes += utf8.RuneLen(r)
	}
	return sitter.Point{Row: uint32(line), Column: uint32(bytes)}
}

// pointToPosition converts a tree-sitter point into an LSP position.
func pointToPosition(source []byte, pt sitter.Point) protocol.Position {
	lines := strings.Split(string(source), "\n")
	row := int(pt.Row)
	if row >= len(lines) {
		row = len(lines) - 1
	}
	line := lines[row]
	col := int(pt.Column)
	if col > len(line) {
		col = len(line)
	}
	var units protocol.UInteger
	for _, r := range line[:col] {
		if r > 0xFFFF {
			units += 2
		} else {
			units++
		}
	}
	return protocol.Position{Line: uint32(row), Character: units}
}

func nodeRange(source []byte, n *sitter.Node) protocol.Range {
	return protocol.Range{
		Start: pointToPosition(source, n.StartPoint()),
		End:   pointToPosition(source, n.EndPoint()),
	}
}
