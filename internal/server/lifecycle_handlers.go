package server

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/url"
	"os"
	"path"
	"time"

	"github.com/simonjwright/ada-language-server/internal/analysis"
	"github.com/simonjwright/ada-language-server/internal/config"
	"github.com/simonjwright/ada-language-server/internal/resolver"
	"github.com/simonjwright/ada-language-server/internal/scanner"
	"github.com/simonjwright/ada-language-server/internal/scheduler"
	"github.com/simonjwright/ada-language-server/internal/units"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func (s *Server) initialize(
	context *glsp.Context,
	params *protocol.InitializeParams,
) (any, error) {
	cfg, err := config.Load(params.InitializationOptions)
	if err != nil {
		return nil, err
	}
	s.config = cfg

	// Root
	root, err := workspaceRoot(params)
	if err != nil {
		return nil, err
	}
	s.root = root
	resolver.Configure(root, cfg.FileExtensions)

	// Analysis context shared by all documents.
	s.analysis, err = analysis.NewTreeSitter(analysis.Queries{
		DefiningNames: cfg.DefiningNamesQuery,
		WithClauses:   cfg.WithClausesQuery,
		Folding:       cfg.FoldingQuery,
	}, cfg.ParserPoolSize)
	if err != nil {
		return nil, err
	}

	// Unit graph persistence keyed by workspace and config.
	stateBaseDir, err := getXDGStateHome(serverName)
	if err != nil {
		return nil, err
	}
	configJson, _ := json.Marshal(cfg)
	hash := sha256.New()
	hash.Write(configJson)
	configHash := hex.EncodeToString(hash.Sum(nil))
	stateDir := path.Join(stateBaseDir, url.PathEscape(root), configHash)
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	s.store, err = units.OpenStore(path.Join(stateDir, "units.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open unit store: %w", err)
	}
	if err := s.store.Load(s.graph); err != nil {
		log.Printf("Failed to restore unit graph: %v", err)
	}

	// Workspace indexing: skip units whose stored stamp postdates the file.
	skip := func(absolutepath string, info fs.FileInfo) bool {
		unit, err := resolver.Resolve(absolutepath)
		if err != nil {
			return true
		}
		return s.graph.Timestamp(unit.Name).After(info.ModTime())
	}
	now := time.Now()
	callback := func(absolutepath string, document []byte) {
		s.indexUnit(absolutepath, document, now)
	}
	go scanner.Scan(root, skip, callback)

	// Persist the graph periodically.
	s.sched = scheduler.New(16)
	s.sched.Run()
	s.sched.Periodic(5*time.Minute, scheduler.Task{
		Name:    "flush unit graph",
		Execute: func() error { return s.store.Flush(s.graph) },
	})

	syncKind := protocol.TextDocumentSyncKindIncremental

	capabilities := s.handler.CreateServerCapabilities()
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: &protocol.True,
		Change:    &syncKind,
		Save:      &protocol.SaveOptions{IncludeText: &protocol.True},
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
	}, nil
}

// workspaceRoot extracts the workspace root path from the initialize
// request. Clients may send rootUri null and name the workspace through
// workspaceFolders or the deprecated rootPath instead.
func workspaceRoot(params *protocol.InitializeParams) (string, error) {
	if params.RootURI != nil {
		u, err := url.Parse(*params.RootURI)
		if err != nil {
			return "", fmt.Errorf("failed to parse root uri: %w", err)
		}
		return u.Path, nil
	}
	if len(params.WorkspaceFolders) > 0 {
		u, err := url.Parse(string(params.WorkspaceFolders[0].URI))
		if err != nil {
			return "", fmt.Errorf("failed to parse workspace folder uri: %w", err)
		}
		return u.Path, nil
	}
	if params.RootPath != nil {
		return *params.RootPath, nil
	}
	return "", errors.New("initialize request names no workspace root")
}

func (s *Server) initialized(
	context *glsp.Context,
	params *protocol.InitializedParams,
) error {
	log.Println("Client initialized.")
	return nil
}

func (s *Server) shutdown(context *glsp.Context) error {
	if s.sched != nil {
		s.sched.Stop()
	}
	if s.store != nil {
		if err := s.store.Flush(s.graph); err != nil {
			log.Printf("Failed to flush unit graph: %v", err)
		}
		return s.store.Close()
	}
	return nil
}
