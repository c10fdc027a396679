package document

import (
	"sync"
)

// Outcome says how a Provider satisfied a lookup.
type Outcome int

const (
	// NotFound: no document open for the URI and force was false.
	NotFound Outcome = iota
	// Found: the live open document was returned; the provider owns it.
	Found
	// Created: a fresh document was constructed for an unopened URI. It is
	// owned by the caller and is not registered with the provider.
	Created
)

// Provider hands out the Document for a URI. With force, a provider may
// construct a transient one for a URI that is not open.
type Provider interface {
	Get(uri string, force bool) (*Document, Outcome)
}

// Store is the registry of open documents, the long-lived owner behind the
// textDocument lifecycle. Loading content for force-constructed documents
// is delegated so the registry stays free of filesystem concerns.
type Store struct {
	mu   sync.Mutex
	docs map[string]*Document
	load func(uri string) (string, error)
}

// NewStore creates a Store. load supplies the content for force-constructed
// documents; nil disables force construction.
func NewStore(load func(uri string) (string, error)) *Store {
	return &Store{
		docs: make(map[string]*Document),
		load: load,
	}
}

// Open registers a document for uri with the given content and version,
// replacing any previous registration.
func (s *Store) Open(uri, text string, version int32) *Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := New(uri, text, version)
	s.docs[uri] = doc
	return doc
}

// Get implements Provider.
func (s *Store) Get(uri string, force bool) (*Document, Outcome) {
	s.mu.Lock()
	if doc, ok := s.docs[uri]; ok {
		s.mu.Unlock()
		return doc, Found
	}
	s.mu.Unlock()

	if !force || s.load == nil {
		return nil, NotFound
	}
	text, err := s.load(uri)
	if err != nil {
		return nil, NotFound
	}
	// Transient, caller-owned; deliberately not registered.
	return New(uri, text, 1), Created
}

// Close drops the registration for uri.
func (s *Store) Close(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, uri)
}

// URIs returns the open document URIs.
func (s *Store) URIs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	uris := make([]string, 0, len(s.docs))
	for uri := range s.docs {
		uris = append(uris, uri)
	}
	return uris
}
