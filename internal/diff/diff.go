// Package diff computes a minimal sequence of range edits transforming one
// text into another, using global alignment over lines. It is used to turn
// externally produced full text (a formatter result, an on-disk reload) into
// the small incremental edits editors expect, instead of a whole-document
// replace.
package diff

import (
	"fmt"
	"strings"

	"github.com/simonjwright/ada-language-server/internal/buffer"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// ErrInvalidSpan is returned when a compared sub-range crosses outside the
// supplied text. Aliased from buffer so callers handle one taxonomy.
var ErrInvalidSpan = buffer.ErrInvalidSpan

type op byte

const (
	opEqual op = iota
	opReplace
	opInsert
	opDelete
)

// Reconcile aligns old against new line by line and returns the minimal
// ordered list of edits, expressed in old-text coordinates, that transforms
// old into new. Reconciling a text against itself yields no edits.
func Reconcile(oldText, newText string) []protocol.TextEdit {
	if oldText == newText {
		return nil
	}
	oldLines := strings.Split(oldText, "\n")
	newLines := strings.Split(newText, "\n")
	return emitEdits(oldLines, newLines, align(oldLines, newLines), 0)
}

// ReconcileRange aligns only the given line ranges of old and new. Emitted
// spans are re-based to absolute old-text coordinates. Spans crossing the
// bounds of either text fail with ErrInvalidSpan.
func ReconcileRange(
	oldText, newText string,
	oldSpan, newSpan protocol.Range,
) ([]protocol.TextEdit, error) {
	oldLines := strings.Split(oldText, "\n")
	newLines := strings.Split(newText, "\n")

	oldFrom, oldTo, err := clipLines(oldSpan, len(oldLines))
	if err != nil {
		return nil, err
	}
	newFrom, newTo, err := clipLines(newSpan, len(newLines))
	if err != nil {
		return nil, err
	}

	oldRegion := oldLines[oldFrom:oldTo]
	newRegion := newLines[newFrom:newTo]
	return emitEdits(oldRegion, newRegion, align(oldRegion, newRegion), oldFrom), nil
}

// clipLines validates a span against the line count and returns the
// half-open line range it covers. A span ending at character 0 of a line
// does not include that line unless the span would otherwise be empty.
func clipLines(span protocol.Range, lineCount int) (int, int, error) {
	from := int(span.Start.Line)
	to := int(span.End.Line) + 1
	if span.End.Character == 0 && to-1 > from {
		to--
	}
	if from < 0 || to < from || to > lineCount {
		return 0, 0, fmt.Errorf("%w: lines %d..%d of %d", ErrInvalidSpan, from, to, lineCount)
	}
	return from, to, nil
}

// align runs Needleman-Wunsch over the two line slices: substitution costs 0
// for identical lines and 1 otherwise, insertion and deletion cost 1 per
// line. Returns the backtracked operation sequence from the start of the
// region. Cost ties prefer substitution over a delete+insert pair, then the
// earliest-starting path.
func align(oldLines, newLines []string) []op {
	n, m := len(oldLines), len(newLines)

	// cost[i][j] = minimal cost aligning oldLines[:i] with newLines[:j].
	cost := make([][]int, n+1)
	for i := range cost {
		cost[i] = make([]int, m+1)
		cost[i][0] = i
	}
	for j := 0; j <= m; j++ {
		cost[0][j] = j
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			sub := cost[i-1][j-1]
			if oldLines[i-1] != newLines[j-1] {
				sub++
			}
			del := cost[i-1][j] + 1
			ins := cost[i][j-1] + 1
			best := sub
			if del < best {
				best = del
			}
			if ins < best {
				best = ins
			}
			cost[i][j] = best
		}
	}

	// Backtrack from (n, m), preferring the diagonal on ties so equal-cost
	// delete+insert pairs collapse into one substitution, then deletion so
	// edits start as early as possible in the old text.
	ops := make([]op, 0, n+m)
	i, j := n, m
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && cost[i][j] == cost[i-1][j-1]+subCost(oldLines[i-1], newLines[j-1]):
			if oldLines[i-1] == newLines[j-1] {
				ops = append(ops, opEqual)
			} else {
				ops = append(ops, opReplace)
			}
			i--
			j--
		case i > 0 && cost[i][j] == cost[i-1][j]+1:
			ops = append(ops, opDelete)
			i--
		default:
			ops = append(ops, opInsert)
			j--
		}
	}
	// Reverse into region order.
	for a, b := 0, len(ops)-1; a < b; a, b = a+1, b-1 {
		ops[a], ops[b] = ops[b], ops[a]
	}
	return ops
}

func subCost(a, b string) int {
	if a == b {
		return 0
	}
	return 1
}

// emitEdits walks the operation sequence and merges each contiguous run of
// non-equal operations into a single TextEdit against the old text.
// baseLine re-bases emitted spans when a sub-range was aligned.
func emitEdits(oldLines, newLines []string, ops []op, baseLine int) []protocol.TextEdit {
	var edits []protocol.TextEdit
	oi, ni := 0, 0
	for k := 0; k < len(ops); {
		if ops[k] == opEqual {
			oi++
			ni++
			k++
			continue
		}
		// Extend the run over all adjacent non-equal operations.
		oldFrom, newFrom := oi, ni
		for k < len(ops) && ops[k] != opEqual {
			switch ops[k] {
			case opReplace:
				oi++
				ni++
			case opDelete:
				oi++
			case opInsert:
				ni++
			}
			k++
		}
		edits = append(edits, runEdit(oldLines, newLines, oldFrom, oi, newFrom, ni, baseLine))
	}
	return edits
}

// runEdit converts one run of changed lines into a TextEdit. Replacements
// cover the content of the old lines; pure insertions and deletions use
// line-start spans, falling back to newline-including spans at the end of
// the text where no following line start exists.
func runEdit(oldLines, newLines []string, oldFrom, oldTo, newFrom, newTo, baseLine int) protocol.TextEdit {
	replacement := strings.Join(newLines[newFrom:newTo], "\n")

	if oldTo > oldFrom && newTo > newFrom {
		// Replacement run: span the old lines' content.
		last := oldTo - 1
		return protocol.TextEdit{
			Range: protocol.Range{
				Start: pos(baseLine+oldFrom, 0),
				End:   pos(baseLine+last, int(buffer.UTF16Len(oldLines[last]))),
			},
			NewText: replacement,
		}
	}

	if oldTo == oldFrom {
		// Pure insertion.
		if oldFrom < len(oldLines) {
			return protocol.TextEdit{
				Range:   protocol.Range{Start: pos(baseLine+oldFrom, 0), End: pos(baseLine+oldFrom, 0)},
				NewText: replacement + "\n",
			}
		}
		// Appending past the final line: attach after its content.
		last := len(oldLines) - 1
		p := pos(baseLine+last, int(buffer.UTF16Len(oldLines[last])))
		return protocol.TextEdit{
			Range:   protocol.Range{Start: p, End: p},
			NewText: "\n" + replacement,
		}
	}

	// Pure deletion.
	if oldTo < len(oldLines) {
		return protocol.TextEdit{
			Range:   protocol.Range{Start: pos(baseLine+oldFrom, 0), End: pos(baseLine+oldTo, 0)},
			NewText: "",
		}
	}
	// Deleting through the final line: consume the preceding newline instead.
	start := pos(baseLine+oldFrom, 0)
	if oldFrom > 0 {
		start = pos(baseLine+oldFrom-1, int(buffer.UTF16Len(oldLines[oldFrom-1])))
	}
	last := oldTo - 1
	return protocol.TextEdit{
		Range:   protocol.Range{Start: start, End: pos(baseLine+last, int(buffer.UTF16Len(oldLines[last])))},
		NewText: "",
	}
}

func pos(line, character int) protocol.Position {
	return protocol.Position{
		Line:      protocol.UInteger(line),
		Character: protocol.UInteger(character),
	}
}
