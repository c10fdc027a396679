// Package analysis is the document model's view of the language analysis
// collaborator: parsing, defining-name enumeration, syntax diagnostics,
// folding and formatting over a document's current text. Documents never
// store a Context; callers pass one into each query.
package analysis

import (
	"context"
	"errors"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// ErrParse is returned when the collaborator cannot parse a text at all.
// Partial syntax errors are reported as Diagnostics instead.
var ErrParse = errors.New("analysis: parse failed")

// Token locates one occurrence of a name in a parse.
type Token struct {
	Name  string
	Kind  protocol.SymbolKind
	Range protocol.Range
	// Selection is the range of the name itself when Range covers a whole
	// declaration; equal to Range otherwise.
	Selection protocol.Range
}

// Diagnostic is one syntax finding over the parsed text, in document order.
type Diagnostic struct {
	Range    protocol.Range
	Severity protocol.DiagnosticSeverity
	Message  string
}

// Node describes the innermost syntax node covering a position.
type Node struct {
	Type  string
	Range protocol.Range
	Text  string
}

// FormatOptions control the formatter. They mirror the protocol's
// FormattingOptions subset this server honors.
type FormatOptions struct {
	TabSize      uint32
	InsertSpaces bool
}

// Parse is the handle produced by Context.Parse. Source is the exact text
// that was parsed; the syntax tree itself stays private to the
// implementation.
type Parse struct {
	Source []byte

	tree owner
}

// owner is whatever backs the parse; it only needs to release itself.
type owner interface {
	Close()
}

// Close releases the underlying tree, if any.
func (p *Parse) Close() {
	if p.tree != nil {
		p.tree.Close()
		p.tree = nil
	}
}

// Context is the analysis collaborator consumed by Document queries. All
// methods are read-only with respect to the handle.
type Context interface {
	// Parse parses text into a handle. It fails with ErrParse only when no
	// tree can be produced at all.
	Parse(ctx context.Context, text []byte) (*Parse, error)

	// DefiningNames enumerates the names a document defines, in document
	// order.
	DefiningNames(p *Parse) []Token

	// WithClauses enumerates the compilation units the document imports.
	WithClauses(p *Parse) []Token

	// NodeAt returns the innermost named node covering pos.
	NodeAt(p *Parse, pos protocol.Position) (Node, bool)

	// Diagnostics reports syntax findings in document order, untruncated;
	// the document applies the per-document cap.
	Diagnostics(p *Parse) []Diagnostic

	// FoldingBlocks returns the spans of foldable multi-line constructs.
	FoldingBlocks(p *Parse) []protocol.Range

	// Format returns a reformatted rendition of the parsed text, or an
	// error when the text is not well-formed enough to format.
	Format(p *Parse, opts FormatOptions) (string, error)
}
