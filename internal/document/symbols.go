package document

import (
	"context"
	"sort"
	"strings"

	"github.com/simonjwright/ada-language-server/internal/analysis"
)

// SymbolEntry maps a defining name to its token in the current parse.
// Entries are ordered by byte-wise name comparison.
type SymbolEntry struct {
	Name  string
	Token analysis.Token
}

// definingSymbols returns the symbol cache, rebuilding it from a fresh
// parse when a mutation has discarded it. Callers hold d.mu, which gives
// the cache populate-once semantics. The cache is an optimization only: its
// content always equals a fresh enumeration against the current text.
func (d *Document) definingSymbols(ctx context.Context, actx analysis.Context) ([]SymbolEntry, error) {
	if d.symbols != nil {
		return d.symbols, nil
	}

	p, err := actx.Parse(ctx, []byte(d.buf.Text()))
	if err != nil {
		return nil, err
	}
	defer p.Close()

	tokens := actx.DefiningNames(p)
	entries := make([]SymbolEntry, 0, len(tokens))
	for _, t := range tokens {
		entries = append(entries, SymbolEntry{Name: t.Name, Token: t})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})

	d.symbols = entries
	return entries, nil
}

// LookupSymbol finds the defining token for an exact name.
func (d *Document) LookupSymbol(ctx context.Context, actx analysis.Context, name string) (analysis.Token, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entries, err := d.definingSymbols(ctx, actx)
	if err != nil {
		return analysis.Token{}, false
	}
	i := sort.Search(len(entries), func(i int) bool {
		return entries[i].Name >= name
	})
	for ; i < len(entries) && entries[i].Name == name; i++ {
		return entries[i].Token, true
	}
	return analysis.Token{}, false
}

// MatchSymbols returns the entries whose name starts with prefix,
// case-insensitively.
func (d *Document) MatchSymbols(ctx context.Context, actx analysis.Context, prefix string) []SymbolEntry {
	d.mu.Lock()
	defer d.mu.Unlock()

	entries, err := d.definingSymbols(ctx, actx)
	if err != nil {
		return nil
	}
	lower := strings.ToLower(prefix)
	var out []SymbolEntry
	for _, e := range entries {
		if strings.HasPrefix(strings.ToLower(e.Name), lower) {
			out = append(out, e)
		}
	}
	return out
}
