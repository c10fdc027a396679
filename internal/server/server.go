// Package server wires the document model to the LSP wire protocol via
// glsp: one handler method per request, documents fetched through the
// provider registry and queried with the shared analysis context.
package server

import (
	"os"

	"github.com/simonjwright/ada-language-server/internal/analysis"
	"github.com/simonjwright/ada-language-server/internal/config"
	"github.com/simonjwright/ada-language-server/internal/document"
	"github.com/simonjwright/ada-language-server/internal/resolver"
	"github.com/simonjwright/ada-language-server/internal/scheduler"
	"github.com/simonjwright/ada-language-server/internal/units"

	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"
)

const serverName = "ada-language-server"

type Server struct {
	root     string
	handler  *protocol.Handler
	config   config.Config
	docs     *document.Store
	analysis *analysis.TreeSitter
	graph    *units.Graph
	store    *units.Store
	sched    *scheduler.Scheduler
}

// NewServer creates the glsp server with all handlers registered.
func NewServer() (*server.Server, error) {
	ls := &Server{
		graph: units.NewGraph(),
	}
	ls.docs = document.NewStore(func(uri string) (string, error) {
		unit, err := resolver.Resolve(uri)
		if err != nil {
			return "", err
		}
		data, err := os.ReadFile(unit.AbsolutePath)
		if err != nil {
			return "", err
		}
		return string(data), nil
	})

	ls.handler = &protocol.Handler{
		Initialize:                  ls.initialize,
		Initialized:                 ls.initialized,
		Shutdown:                    ls.shutdown,
		TextDocumentDidOpen:         ls.textDocumentDidOpen,
		TextDocumentDidChange:       ls.textDocumentDidChange,
		TextDocumentDidSave:         ls.textDocumentDidSave,
		TextDocumentDidClose:        ls.textDocumentDidClose,
		TextDocumentDocumentSymbol:  ls.textDocumentDocumentSymbol,
		TextDocumentCompletion:      ls.textDocumentCompletion,
		TextDocumentFoldingRange:    ls.textDocumentFoldingRange,
		TextDocumentFormatting:      ls.textDocumentFormatting,
		TextDocumentRangeFormatting: ls.textDocumentRangeFormatting,
		TextDocumentHover:           ls.textDocumentHover,
		TextDocumentDefinition:      ls.textDocumentDefinition,
		TextDocumentReferences:      ls.textDocumentReferences,
		WorkspaceSymbol:             ls.workspaceSymbol,
	}

	return server.NewServer(ls.handler, serverName, false), nil
}
