package server

import (
	con "context"
	"fmt"

	"github.com/simonjwright/ada-language-server/internal/analysis"
	"github.com/simonjwright/ada-language-server/internal/document"
	"github.com/simonjwright/ada-language-server/internal/resolver"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func (s *Server) textDocumentDocumentSymbol(
	context *glsp.Context,
	params *protocol.DocumentSymbolParams,
) (any, error) {
	doc, outcome := s.docs.Get(params.TextDocument.URI, false)
	if outcome != document.Found {
		return nil, nil
	}
	symbols, err := doc.SymbolHierarchy(con.Background(), s.analysis)
	if err != nil {
		// Unparseable text: no structure to report.
		return nil, nil
	}
	return symbols, nil
}

func (s *Server) textDocumentCompletion(
	context *glsp.Context,
	params *protocol.CompletionParams,
) (any, error) {
	doc, outcome := s.docs.Get(params.TextDocument.URI, false)
	if outcome != document.Found {
		return nil, nil
	}
	return doc.CompletionsAt(con.Background(), s.analysis, params.Position)
}

func (s *Server) textDocumentFoldingRange(
	context *glsp.Context,
	params *protocol.FoldingRangeParams,
) ([]protocol.FoldingRange, error) {
	doc, outcome := s.docs.Get(params.TextDocument.URI, false)
	if outcome != document.Found {
		return nil, nil
	}
	return doc.FoldingBlocks(con.Background(), s.analysis)
}

func (s *Server) textDocumentFormatting(
	context *glsp.Context,
	params *protocol.DocumentFormattingParams,
) ([]protocol.TextEdit, error) {
	doc, outcome := s.docs.Get(params.TextDocument.URI, false)
	if outcome != document.Found {
		return nil, nil
	}
	ok, edits := doc.Formatting(con.Background(), s.analysis, protocol.Range{}, formatOptions(params.Options))
	if !ok {
		return nil, nil
	}
	return edits, nil
}

func (s *Server) textDocumentRangeFormatting(
	context *glsp.Context,
	params *protocol.DocumentRangeFormattingParams,
) ([]protocol.TextEdit, error) {
	doc, outcome := s.docs.Get(params.TextDocument.URI, false)
	if outcome != document.Found {
		return nil, nil
	}
	ok, edits := doc.Formatting(con.Background(), s.analysis, params.Range, formatOptions(params.Options))
	if !ok {
		return nil, nil
	}
	return edits, nil
}

func (s *Server) textDocumentHover(
	context *glsp.Context,
	params *protocol.HoverParams,
) (*protocol.Hover, error) {
	doc, outcome := s.docs.Get(params.TextDocument.URI, false)
	if outcome != document.Found {
		return nil, nil
	}
	node, ok, err := doc.NodeAt(con.Background(), s.analysis, params.Position)
	if err != nil || !ok {
		return nil, nil
	}
	word, span, _ := doc.WordAt(params.Position)
	if word == "" {
		span = node.Range
		word = node.Type
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: fmt.Sprintf("```ada\n%s\n```\n%s", word, node.Type),
		},
		Range: &span,
	}, nil
}

// textDocumentDefinition resolves a with clause under the cursor to the
// file of the imported unit.
func (s *Server) textDocumentDefinition(
	context *glsp.Context,
	params *protocol.DefinitionParams,
) (any, error) {
	doc, outcome := s.docs.Get(params.TextDocument.URI, false)
	if outcome != document.Found {
		return nil, nil
	}
	imports, err := doc.ImportedUnits(con.Background(), s.analysis)
	if err != nil {
		return nil, nil
	}
	for _, imp := range imports {
		if !rangeCovers(imp.Range, params.Position) {
			continue
		}
		if loc, ok := s.unitLocation(imp.Name); ok {
			return loc, nil
		}
		return nil, nil
	}
	return nil, nil
}

// textDocumentReferences reports the with clauses of every unit importing
// the one under edit.
func (s *Server) textDocumentReferences(
	context *glsp.Context,
	params *protocol.ReferenceParams,
) ([]protocol.Location, error) {
	unit, err := resolver.Resolve(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}

	var locations []protocol.Location
	for _, importer := range s.graph.Importers(unit.Name) {
		if loc, ok := s.unitLocation(importer); ok {
			locations = append(locations, loc)
		}
	}
	return locations, nil
}

func (s *Server) workspaceSymbol(
	context *glsp.Context,
	params *protocol.WorkspaceSymbolParams,
) ([]protocol.SymbolInformation, error) {
	const maxResults = 128

	var symbols []protocol.SymbolInformation
	for _, unit := range s.graph.Units() {
		if !isSubsequence(params.Query, unit) {
			continue
		}
		loc, ok := s.unitLocation(unit)
		if !ok {
			continue
		}
		symbols = append(symbols, protocol.SymbolInformation{
			Name:     unit,
			Kind:     protocol.SymbolKindModule,
			Location: loc,
		})
		if len(symbols) == maxResults {
			break
		}
	}
	return symbols, nil
}

// unitLocation finds the file a unit lives in, through the graph when the
// unit was indexed, falling back to the GNAT naming convention.
func (s *Server) unitLocation(unit string) (protocol.Location, bool) {
	zero := protocol.Range{}
	if info, ok := s.graph.Lookup(unit); ok && info.Path != "" {
		if resolved, err := resolver.Resolve(info.Path); err == nil {
			return protocol.Location{URI: resolved.URI, Range: zero}, true
		}
	}
	spec, _ := resolver.FileNames(unit)
	if resolved, err := resolver.Resolve(spec); err == nil {
		return protocol.Location{URI: resolved.URI, Range: zero}, true
	}
	return protocol.Location{}, false
}

func formatOptions(opts protocol.FormattingOptions) analysis.FormatOptions {
	var out analysis.FormatOptions
	if v, ok := opts[protocol.FormattingOptionTabSize].(float64); ok {
		out.TabSize = uint32(v)
	}
	if v, ok := opts[protocol.FormattingOptionInsertSpaces].(bool); ok {
		out.InsertSpaces = v
	}
	return out
}

func rangeCovers(r protocol.Range, pos protocol.Position) bool {
	after := r.Start.Line < pos.Line ||
		(r.Start.Line == pos.Line && r.Start.Character <= pos.Character)
	before := pos.Line < r.End.Line ||
		(pos.Line == r.End.Line && pos.Character <= r.End.Character)
	return after && before
}
