package analysis

import (
	"context"
	"fmt"
	"strings"

	ada "github.com/alexaandru/go-sitter-forest/ada"
	sitter "github.com/smacker/go-tree-sitter"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

var lang = sitter.NewLanguage(ada.GetLanguage())

// Queries are the tree-sitter queries driving name, import and folding
// extraction. Defaults live in the config package so clients can override
// them through initializationOptions.
type Queries struct {
	DefiningNames string
	WithClauses   string
	Folding       string
}

// TreeSitter implements Context on top of a tree-sitter parse of the text.
type TreeSitter struct {
	queries Queries
	names   *sitter.Query
	withs   *sitter.Query
	folds   *sitter.Query
	pool    chan *sitter.Parser
}

// tsTree adapts a sitter tree to the Parse owner.
type tsTree struct {
	tree *sitter.Tree
}

func (t *tsTree) Close() {
	t.tree.Close()
}

// NewTreeSitter compiles the queries and fills a parser pool of the given
// size for one-shot parses.
func NewTreeSitter(queries Queries, poolSize int) (*TreeSitter, error) {
	ts := &TreeSitter{
		queries: queries,
		pool:    make(chan *sitter.Parser, poolSize),
	}
	var err error
	if ts.names, err = sitter.NewQuery([]byte(queries.DefiningNames), lang); err != nil {
		return nil, fmt.Errorf("failed to compile defining-names query: %w", err)
	}
	if ts.withs, err = sitter.NewQuery([]byte(queries.WithClauses), lang); err != nil {
		return nil, fmt.Errorf("failed to compile with-clauses query: %w", err)
	}
	if ts.folds, err = sitter.NewQuery([]byte(queries.Folding), lang); err != nil {
		return nil, fmt.Errorf("failed to compile folding query: %w", err)
	}
	for i := 0; i < poolSize; i++ {
		p := sitter.NewParser()
		p.SetLanguage(lang)
		ts.pool <- p
	}
	return ts, nil
}

// Parse parses text with a pooled parser.
func (ts *TreeSitter) Parse(ctx context.Context, text []byte) (*Parse, error) {
	p := <-ts.pool
	defer func() { ts.pool <- p }()

	tree, err := p.ParseCtx(ctx, nil, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if tree == nil {
		return nil, ErrParse
	}
	return &Parse{Source: text, tree: &tsTree{tree}}, nil
}

// DefiningNames runs the defining-names query; the capture name selects the
// symbol kind.
func (ts *TreeSitter) DefiningNames(p *Parse) []Token {
	var tokens []Token
	ts.capture(p, ts.names, func(capture string, n *sitter.Node) {
		tokens = append(tokens, Token{
			Name:      n.Content(p.Source),
			Kind:      kindForCapture(capture),
			Range:     nodeRange(p.Source, n),
			Selection: nodeRange(p.Source, n),
		})
	})
	return tokens
}

// WithClauses returns the unit names the document imports.
func (ts *TreeSitter) WithClauses(p *Parse) []Token {
	var tokens []Token
	ts.capture(p, ts.withs, func(capture string, n *sitter.Node) {
		tokens = append(tokens, Token{
			Name:      n.Content(p.Source),
			Kind:      protocol.SymbolKindModule,
			Range:     nodeRange(p.Source, n),
			Selection: nodeRange(p.Source, n),
		})
	})
	return tokens
}

// NodeAt returns the innermost named node covering pos.
func (ts *TreeSitter) NodeAt(p *Parse, pos protocol.Position) (Node, bool) {
	root := ts.root(p)
	if root == nil {
		return Node{}, false
	}
	pt := positionToPoint(p.Source, pos)
	n := root.NamedDescendantForPointRange(pt, pt)
	if n == nil {
		return Node{}, false
	}
	return Node{
		Type:  n.Type(),
		Range: nodeRange(p.Source, n),
		Text:  n.Content(p.Source),
	}, true
}

// Diagnostics walks the tree collecting ERROR and missing nodes in document
// order.
func (ts *TreeSitter) Diagnostics(p *Parse) []Diagnostic {
	root := ts.root(p)
	if root == nil {
		return nil
	}
	var out []Diagnostic
	collectSyntaxErrors(p.Source, root, &out)
	return out
}

// FoldingBlocks returns the spans of captured constructs covering more than
// one line.
func (ts *TreeSitter) FoldingBlocks(p *Parse) []protocol.Range {
	var spans []protocol.Range
	ts.capture(p, ts.folds, func(capture string, n *sitter.Node) {
		if n.EndPoint().Row > n.StartPoint().Row {
			spans = append(spans, nodeRange(p.Source, n))
		}
	})
	return spans
}

// Format normalizes whitespace over the parsed text: leading tabs expanded
// when the client wants spaces, trailing blanks stripped. Text whose parse
// contains syntax errors is refused.
func (ts *TreeSitter) Format(p *Parse, opts FormatOptions) (string, error) {
	root := ts.root(p)
	if root == nil || root.HasError() {
		return "", fmt.Errorf("%w: cannot format text with syntax errors", ErrParse)
	}
	return NormalizeWhitespace(string(p.Source), opts), nil
}

// NormalizeWhitespace is the formatter's text transformation, exposed for
// testing without a parse.
func NormalizeWhitespace(text string, opts FormatOptions) string {
	tab := "\t"
	if opts.InsertSpaces {
		size := int(opts.TabSize)
		if size == 0 {
			size = 3
		}
		tab = strings.Repeat(" ", size)
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if opts.InsertSpaces {
			trimmed := strings.TrimLeft(line, "\t")
			line = strings.Repeat(tab, len(line)-len(trimmed)) + trimmed
		}
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}

// capture runs a query over the parse and invokes fn per capture, with
// predicate filtering applied.
func (ts *TreeSitter) capture(p *Parse, q *sitter.Query, fn func(capture string, n *sitter.Node)) {
	root := ts.root(p)
	if root == nil {
		return
	}
	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, root)
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		m = qc.FilterPredicates(m, p.Source)
		for _, c := range m.Captures {
			fn(q.CaptureNameForId(c.Index), c.Node)
		}
	}
}

func (ts *TreeSitter) root(p *Parse) *sitter.Node {
	t, ok := p.tree.(*tsTree)
	if !ok || t == nil || t.tree == nil {
		return nil
	}
	return t.tree.RootNode()
}

// collectSyntaxErrors descends only into subtrees that actually contain
// errors, so a clean parse costs one check.
func collectSyntaxErrors(source []byte, n *sitter.Node, out *[]Diagnostic) {
	if !n.HasError() && !n.IsMissing() {
		return
	}
	switch {
	case n.Type() == "ERROR":
		*out = append(*out, Diagnostic{
			Range:    nodeRange(source, n),
			Severity: protocol.DiagnosticSeverityError,
			Message:  "Syntax error",
		})
		return
	case n.IsMissing():
		*out = append(*out, Diagnostic{
			Range:    nodeRange(source, n),
			Severity: protocol.DiagnosticSeverityError,
			Message:  fmt.Sprintf("Missing %s", n.Type()),
		})
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		collectSyntaxErrors(source, n.Child(i), out)
	}
}

func kindForCapture(capture string) protocol.SymbolKind {
	switch capture {
	case "package":
		return protocol.SymbolKindPackage
	case "function":
		return protocol.SymbolKindFunction
	case "procedure":
		return protocol.SymbolKindMethod
	case "type":
		return protocol.SymbolKindClass
	case "object":
		return protocol.SymbolKindVariable
	default:
		return protocol.SymbolKindVariable
	}
}
