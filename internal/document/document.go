// Package document aggregates the text buffer, symbol cache and analysis
// queries of one open source file. A Document serializes every operation
// behind one mutex: mutation never runs concurrently with queries, and no
// caller observes the buffer mid-edit.
package document

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/simonjwright/ada-language-server/internal/analysis"
	"github.com/simonjwright/ada-language-server/internal/buffer"
	"github.com/simonjwright/ada-language-server/internal/diff"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// UnitGraph is the document's narrow view of the workspace import graph.
type UnitGraph interface {
	Importers(unit string) []string
}

// Document is the in-memory model of one open file.
type Document struct {
	uri string

	mu      sync.Mutex
	buf     *buffer.Buffer
	symbols []SymbolEntry // nil when invalidated; rebuilt lazily
}

// New creates a Document for uri with the given initial text and version.
// The protocol supplies version 1 for freshly opened files.
func New(uri, text string, version int32) *Document {
	return &Document{uri: uri, buf: buffer.New(text, version)}
}

// URI returns the document's identity. Immutable after construction.
func (d *Document) URI() string {
	return d.uri
}

// Text returns the current buffer content.
func (d *Document) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf.Text()
}

// Version returns the current document version.
func (d *Document) Version() int32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf.Version()
}

// OffsetAt exposes position translation for collaborators working in byte
// offsets.
func (d *Document) OffsetAt(pos protocol.Position) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf.OffsetAt(pos)
}

// PositionAt is the inverse of OffsetAt.
func (d *Document) PositionAt(offset int) protocol.Position {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf.PositionAt(offset)
}

// Errors reparses the current text and returns its syntax diagnostics,
// truncated to max entries in detection order when max is positive. Parse
// failure is returned, not swallowed: reporting it is this query's purpose.
func (d *Document) Errors(ctx context.Context, actx analysis.Context, max int) ([]protocol.Diagnostic, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := actx.Parse(ctx, []byte(d.buf.Text()))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", d.uri, err)
	}
	defer p.Close()

	found := actx.Diagnostics(p)
	if max > 0 && len(found) > max {
		found = found[:max]
	}
	out := make([]protocol.Diagnostic, 0, len(found))
	for _, f := range found {
		severity := f.Severity
		out = append(out, protocol.Diagnostic{
			Range:    f.Range,
			Severity: &severity,
			Message:  f.Message,
		})
	}
	return out, nil
}

// Symbols returns the document's defining symbols ordered by name.
func (d *Document) Symbols(ctx context.Context, actx analysis.Context) ([]SymbolEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.definingSymbols(ctx, actx)
}

// SymbolHierarchy nests the defining symbols by range containment and
// returns them as protocol document symbols.
func (d *Document) SymbolHierarchy(ctx context.Context, actx analysis.Context) ([]protocol.DocumentSymbol, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := actx.Parse(ctx, []byte(d.buf.Text()))
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return nestSymbols(actx.DefiningNames(p)), nil
}

// NodeAt returns the innermost syntax node covering pos. A degraded parse
// yields (Node{}, false, nil) rather than an error.
func (d *Document) NodeAt(ctx context.Context, actx analysis.Context, pos protocol.Position) (analysis.Node, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if int(pos.Line) >= d.buf.LineCount() {
		return analysis.Node{}, false, fmt.Errorf("%w: line %d", buffer.ErrOutOfRange, pos.Line)
	}
	p, err := actx.Parse(ctx, []byte(d.buf.Text()))
	if err != nil {
		return analysis.Node{}, false, nil
	}
	defer p.Close()
	n, ok := actx.NodeAt(p, pos)
	return n, ok, nil
}

// WordAt returns the identifier-like token spanning pos, or empty when the
// position is not on one. Pure buffer work, no collaborator involved.
func (d *Document) WordAt(pos protocol.Position) (string, protocol.Range, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	line, err := d.buf.Line(int(pos.Line))
	if err != nil {
		return "", protocol.Range{}, err
	}
	start, end := wordBounds(line, pos.Character)
	if start == end {
		return "", protocol.Range{}, nil
	}
	span := protocol.Range{
		Start: protocol.Position{Line: pos.Line, Character: buffer.UTF16Len(line[:start])},
		End:   protocol.Position{Line: pos.Line, Character: buffer.UTF16Len(line[:end])},
	}
	return line[start:end], span, nil
}

// CompletionsAt returns the defining symbols matching the identifier prefix
// under pos. Matching is case-insensitive, as Ada names are; the underlying
// cache order stays ordinal. Collaborator failure degrades to no items.
func (d *Document) CompletionsAt(ctx context.Context, actx analysis.Context, pos protocol.Position) ([]protocol.CompletionItem, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	line, err := d.buf.Line(int(pos.Line))
	if err != nil {
		return nil, err
	}
	start, _ := wordBounds(line, pos.Character)
	cursor := buffer.UTF16ByteOffset(line, pos.Character)
	if cursor < start {
		cursor = start
	}
	prefix := strings.ToLower(line[start:cursor])

	entries, err := d.definingSymbols(ctx, actx)
	if err != nil {
		return nil, nil
	}
	var items []protocol.CompletionItem
	for _, e := range entries {
		if prefix != "" && !strings.HasPrefix(strings.ToLower(e.Name), prefix) {
			continue
		}
		kind := completionKind(e.Token.Kind)
		items = append(items, protocol.CompletionItem{
			Label: e.Name,
			Kind:  &kind,
		})
	}
	return items, nil
}

// FoldingBlocks returns the document's foldable regions. Collaborator
// failure degrades to none.
func (d *Document) FoldingBlocks(ctx context.Context, actx analysis.Context) ([]protocol.FoldingRange, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := actx.Parse(ctx, []byte(d.buf.Text()))
	if err != nil {
		return nil, nil
	}
	defer p.Close()

	var out []protocol.FoldingRange
	for _, span := range actx.FoldingBlocks(p) {
		out = append(out, protocol.FoldingRange{
			StartLine: span.Start.Line,
			EndLine:   span.End.Line,
		})
	}
	return out, nil
}

// Formatting runs the formatter over the requested span (an empty span
// means the whole document) and reconciles its output against the current
// text into a minimal edit list. It reports false, with no edits, when the
// text cannot be parsed or formatted; "nothing to format" is success with
// zero edits.
func (d *Document) Formatting(ctx context.Context, actx analysis.Context, span protocol.Range, opts analysis.FormatOptions) (bool, []protocol.TextEdit) {
	d.mu.Lock()
	defer d.mu.Unlock()

	text := d.buf.Text()
	p, err := actx.Parse(ctx, []byte(text))
	if err != nil {
		return false, nil
	}
	defer p.Close()

	formatted, err := actx.Format(p, opts)
	if err != nil {
		return false, nil
	}

	if span.Start == span.End {
		return true, diff.Reconcile(text, formatted)
	}
	// The formatter is line-preserving, so the same span delimits the
	// region in both texts.
	edits, err := diff.ReconcileRange(text, formatted, span, span)
	if err != nil {
		return false, nil
	}
	return true, edits
}

// ImportedUnits reparses the document and returns the compilation units it
// with's, in document order.
func (d *Document) ImportedUnits(ctx context.Context, actx analysis.Context) ([]analysis.Token, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := actx.Parse(ctx, []byte(d.buf.Text()))
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return actx.WithClauses(p), nil
}

// ImportingUnits asks the workspace graph which units import the given one.
func (d *Document) ImportingUnits(g UnitGraph, unit string) []string {
	return g.Importers(unit)
}

// nestSymbols builds a containment hierarchy from flat tokens. Tokens come
// in document order; a token nested in the previous open range becomes its
// child.
func nestSymbols(tokens []analysis.Token) []protocol.DocumentSymbol {
	var roots []protocol.DocumentSymbol
	var stack []*protocol.DocumentSymbol

	for _, t := range tokens {
		sym := protocol.DocumentSymbol{
			Name:           t.Name,
			Kind:           t.Kind,
			Range:          t.Range,
			SelectionRange: t.Selection,
		}
		for len(stack) > 0 && !rangeContains(stack[len(stack)-1].Range, sym.Range) {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			roots = append(roots, sym)
			stack = append(stack, &roots[len(roots)-1])
			continue
		}
		parent := stack[len(stack)-1]
		parent.Children = append(parent.Children, sym)
		stack = append(stack, &parent.Children[len(parent.Children)-1])
	}
	return roots
}

func rangeContains(outer, inner protocol.Range) bool {
	return !posBefore(inner.Start, outer.Start) && !posBefore(outer.End, inner.End)
}

func posBefore(a, b protocol.Position) bool {
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Character < b.Character
}

// wordBounds returns the byte range of the identifier covering the UTF-16
// character position within line.
func wordBounds(line string, character protocol.UInteger) (int, int) {
	at := buffer.UTF16ByteOffset(line, character)
	start, end := at, at
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(line[:start])
		if !isIdentRune(r) {
			break
		}
		start -= size
	}
	for end < len(line) {
		r, size := utf8.DecodeRuneInString(line[end:])
		if !isIdentRune(r) {
			break
		}
		end += size
	}
	return start, end
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func completionKind(kind protocol.SymbolKind) protocol.CompletionItemKind {
	switch kind {
	case protocol.SymbolKindPackage:
		return protocol.CompletionItemKindModule
	case protocol.SymbolKindFunction:
		return protocol.CompletionItemKindFunction
	case protocol.SymbolKindMethod:
		return protocol.CompletionItemKindMethod
	case protocol.SymbolKindClass:
		return protocol.CompletionItemKindClass
	default:
		return protocol.CompletionItemKindVariable
	}
}
