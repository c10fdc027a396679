package server

import (
	con "context"
	"fmt"
	"log"
	"time"

	"github.com/simonjwright/ada-language-server/internal/diff"
	"github.com/simonjwright/ada-language-server/internal/document"
	"github.com/simonjwright/ada-language-server/internal/resolver"
	"github.com/simonjwright/ada-language-server/internal/scheduler"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func (s *Server) textDocumentDidOpen(
	context *glsp.Context,
	params *protocol.DidOpenTextDocumentParams,
) error {
	doc := s.docs.Open(
		params.TextDocument.URI,
		params.TextDocument.Text,
		params.TextDocument.Version,
	)
	s.indexUnit(params.TextDocument.URI, []byte(params.TextDocument.Text), time.Now())
	s.publishDiagnostics(context, doc)
	return nil
}

func (s *Server) textDocumentDidChange(
	context *glsp.Context,
	params *protocol.DidChangeTextDocumentParams,
) error {
	uri := params.TextDocument.URI
	doc, outcome := s.docs.Get(uri, false)
	if outcome != document.Found {
		return fmt.Errorf("no document loaded for %s", uri)
	}

	err := doc.ApplyChanges(params.TextDocument.Version, params.ContentChanges)
	if err != nil {
		// Desynchronized or malformed batch: ask the client for a fresh
		// copy rather than guessing.
		log.Printf("Change batch for %s rejected: %v", uri, err)
		return err
	}

	s.indexUnit(uri, []byte(doc.Text()), time.Now())
	s.publishDiagnostics(context, doc)
	return nil
}

func (s *Server) textDocumentDidSave(
	context *glsp.Context,
	params *protocol.DidSaveTextDocumentParams,
) error {
	uri := params.TextDocument.URI
	doc, outcome := s.docs.Get(uri, false)
	if outcome != document.Found {
		return fmt.Errorf("no document loaded for %s", uri)
	}

	// When the client includes the saved text, reconcile against it: the
	// on-disk content wins, delivered as minimal edits instead of a full
	// replace.
	if params.Text != nil && *params.Text != doc.Text() {
		edits := diff.Reconcile(doc.Text(), *params.Text)
		// Edits address old-text coordinates; bottom-up application keeps
		// every remaining range valid.
		changes := make([]any, 0, len(edits))
		for i := len(edits) - 1; i >= 0; i-- {
			r := edits[i].Range
			changes = append(changes, protocol.TextDocumentContentChangeEvent{
				Range: &r,
				Text:  edits[i].NewText,
			})
		}
		if err := doc.ApplyChanges(0, changes); err != nil {
			return err
		}
	}

	s.indexUnit(uri, []byte(doc.Text()), time.Now())
	s.sched.Enqueue(scheduler.Task{
		Name:    "flush unit graph",
		Execute: func() error { return s.store.Flush(s.graph) },
	})
	s.publishDiagnostics(context, doc)
	return nil
}

func (s *Server) textDocumentDidClose(
	context *glsp.Context,
	params *protocol.DidCloseTextDocumentParams,
) error {
	s.docs.Close(params.TextDocument.URI)
	return nil
}

// indexUnit reparses a source file and refreshes its node in the unit
// graph.
func (s *Server) indexUnit(base string, text []byte, stamp time.Time) {
	unit, err := resolver.Resolve(base)
	if err != nil {
		return
	}
	p, err := s.analysis.Parse(con.Background(), text)
	if err != nil {
		log.Printf("Failed to parse %s: %v", unit.RelativePath, err)
		return
	}
	defer p.Close()

	var imports []string
	for _, t := range s.analysis.WithClauses(p) {
		imports = append(imports, t.Name)
	}
	s.graph.Upsert(unit.Name, unit.RelativePath, stamp, imports)
}

// publishDiagnostics pushes the document's current syntax findings,
// truncated to the configured cap.
func (s *Server) publishDiagnostics(context *glsp.Context, doc *document.Document) {
	diagnostics, err := doc.Errors(con.Background(), s.analysis, s.config.MaxDiagnostics)
	if err != nil {
		log.Printf("Failed to compute diagnostics for %s: %v", doc.URI(), err)
		return
	}
	if diagnostics == nil {
		diagnostics = []protocol.Diagnostic{}
	}
	context.Notify("textDocument/publishDiagnostics", protocol.PublishDiagnosticsParams{
		URI:         doc.URI(),
		Diagnostics: diagnostics,
	})
}
