// Package units maintains the workspace import graph of Ada compilation
// units: which unit with's which, where each unit lives, and when it was
// last indexed. The in-memory graph serves queries; the sqlite store
// persists it across sessions.
package units

import (
	"sort"
	"sync"
	"time"
)

// Info records where a unit was found and when it was indexed.
type Info struct {
	Path     string
	Modified time.Time
}

// Graph is the in-memory import graph. Safe for concurrent use.
type Graph struct {
	mu      sync.RWMutex
	units   map[string]Info
	forward map[string]map[string]struct{} // unit -> units it imports
	reverse map[string]map[string]struct{} // unit -> units importing it
}

// NewGraph creates an empty Graph.
func NewGraph() *Graph {
	return &Graph{
		units:   make(map[string]Info),
		forward: make(map[string]map[string]struct{}),
		reverse: make(map[string]map[string]struct{}),
	}
}

// Upsert records a unit and replaces its outgoing imports.
func (g *Graph) Upsert(unit, path string, modified time.Time, imports []string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.units[unit] = Info{Path: path, Modified: modified}

	// Drop old edges.
	for target := range g.forward[unit] {
		delete(g.reverse[target], unit)
		if len(g.reverse[target]) == 0 {
			delete(g.reverse, target)
		}
	}

	edges := make(map[string]struct{}, len(imports))
	for _, target := range imports {
		if target == unit {
			continue
		}
		edges[target] = struct{}{}
		if g.reverse[target] == nil {
			g.reverse[target] = make(map[string]struct{})
		}
		g.reverse[target][unit] = struct{}{}
	}
	g.forward[unit] = edges
}

// Delete removes a unit and its outgoing edges. Incoming edges stay: the
// importers still name the unit even when its file is gone.
func (g *Graph) Delete(unit string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for target := range g.forward[unit] {
		delete(g.reverse[target], unit)
		if len(g.reverse[target]) == 0 {
			delete(g.reverse, target)
		}
	}
	delete(g.forward, unit)
	delete(g.units, unit)
}

// Imports returns the units the given unit with's, sorted.
func (g *Graph) Imports(unit string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.forward[unit])
}

// Importers returns the units with'ing the given unit, sorted.
func (g *Graph) Importers(unit string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.reverse[unit])
}

// Units returns all known unit names, sorted.
func (g *Graph) Units() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.units))
	for unit := range g.units {
		out = append(out, unit)
	}
	sort.Strings(out)
	return out
}

// Lookup returns a unit's index record.
func (g *Graph) Lookup(unit string) (Info, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	info, ok := g.units[unit]
	return info, ok
}

// Timestamp returns when the unit was last indexed; the zero time when it
// never was.
func (g *Graph) Timestamp(unit string) time.Time {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.units[unit].Modified
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
