package document_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/simonjwright/ada-language-server/internal/analysis"
	"github.com/simonjwright/ada-language-server/internal/buffer"
	"github.com/simonjwright/ada-language-server/internal/document"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// fakeAnalysis implements analysis.Context over a toy line language:
// "def NAME" defines a symbol, "with NAME" imports a unit, a line containing
// "!!" is a syntax finding. Format trims trailing blanks from every line.
type fakeAnalysis struct {
	parseCount int
	parseFails bool
}

func (f *fakeAnalysis) Parse(_ context.Context, text []byte) (*analysis.Parse, error) {
	f.parseCount++
	if f.parseFails {
		return nil, analysis.ErrParse
	}
	return &analysis.Parse{Source: text}, nil
}

func (f *fakeAnalysis) DefiningNames(p *analysis.Parse) []analysis.Token {
	var tokens []analysis.Token
	for i, line := range strings.Split(string(p.Source), "\n") {
		name, ok := strings.CutPrefix(line, "def ")
		if !ok {
			continue
		}
		tokens = append(tokens, analysis.Token{
			Name:      name,
			Kind:      protocol.SymbolKindFunction,
			Range:     lineSpan(i, len(line)),
			Selection: lineSpan(i, len(line)),
		})
	}
	return tokens
}

func (f *fakeAnalysis) WithClauses(p *analysis.Parse) []analysis.Token {
	var tokens []analysis.Token
	for i, line := range strings.Split(string(p.Source), "\n") {
		name, ok := strings.CutPrefix(line, "with ")
		if !ok {
			continue
		}
		tokens = append(tokens, analysis.Token{
			Name:  name,
			Kind:  protocol.SymbolKindModule,
			Range: lineSpan(i, len(line)),
		})
	}
	return tokens
}

func (f *fakeAnalysis) NodeAt(p *analysis.Parse, pos protocol.Position) (analysis.Node, bool) {
	lines := strings.Split(string(p.Source), "\n")
	if int(pos.Line) >= len(lines) {
		return analysis.Node{}, false
	}
	line := lines[pos.Line]
	return analysis.Node{
		Type:  "line",
		Range: lineSpan(int(pos.Line), len(line)),
		Text:  line,
	}, true
}

func (f *fakeAnalysis) Diagnostics(p *analysis.Parse) []analysis.Diagnostic {
	var found []analysis.Diagnostic
	for i, line := range strings.Split(string(p.Source), "\n") {
		if !strings.Contains(line, "!!") {
			continue
		}
		found = append(found, analysis.Diagnostic{
			Range:    lineSpan(i, len(line)),
			Severity: protocol.DiagnosticSeverityError,
			Message:  "Syntax error",
		})
	}
	return found
}

func (f *fakeAnalysis) FoldingBlocks(p *analysis.Parse) []protocol.Range {
	lines := strings.Split(string(p.Source), "\n")
	if len(lines) < 2 {
		return nil
	}
	return []protocol.Range{{
		Start: protocol.Position{Line: 0},
		End:   protocol.Position{Line: protocol.UInteger(len(lines) - 1)},
	}}
}

func (f *fakeAnalysis) Format(p *analysis.Parse, _ analysis.FormatOptions) (string, error) {
	lines := strings.Split(string(p.Source), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n"), nil
}

func lineSpan(line, length int) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: protocol.UInteger(line)},
		End: protocol.Position{
			Line:      protocol.UInteger(line),
			Character: protocol.UInteger(length),
		},
	}
}

func incremental(startLine, startChar, endLine, endChar int, text string) any {
	r := protocol.Range{
		Start: protocol.Position{
			Line:      protocol.UInteger(startLine),
			Character: protocol.UInteger(startChar),
		},
		End: protocol.Position{
			Line:      protocol.UInteger(endLine),
			Character: protocol.UInteger(endChar),
		},
	}
	return protocol.TextDocumentContentChangeEvent{Range: &r, Text: text}
}

func TestApplyChangesSequential(t *testing.T) {
	doc := document.New("file:///a.adb", "line1\nline2\nline3", 1)

	// The second event addresses the text produced by the first.
	err := doc.ApplyChanges(2, []any{
		incremental(1, 0, 1, 5, "LINE2"),
		incremental(1, 0, 1, 1, "l"),
	})
	if err != nil {
		t.Fatalf("ApplyChanges failed: %v", err)
	}
	if got := doc.Text(); got != "line1\nlINE2\nline3" {
		t.Errorf("Text() = %q", got)
	}
	if got := doc.Version(); got != 2 {
		t.Errorf("Version() = %d, want 2", got)
	}
}

func TestApplyChangesWholeDocument(t *testing.T) {
	doc := document.New("file:///a.adb", "old", 1)

	err := doc.ApplyChanges(2, []any{
		incremental(0, 0, 0, 1, "x"),
		protocol.TextDocumentContentChangeEventWhole{Text: "fresh\ncontent"},
	})
	if err != nil {
		t.Fatalf("ApplyChanges failed: %v", err)
	}
	if got := doc.Text(); got != "fresh\ncontent" {
		t.Errorf("Text() = %q, want whole-document replacement", got)
	}
}

func TestApplyChangesNilRangeMeansWholeDocument(t *testing.T) {
	doc := document.New("file:///a.adb", "old", 1)

	err := doc.ApplyChanges(2, []any{
		protocol.TextDocumentContentChangeEvent{Range: nil, Text: "new"},
	})
	if err != nil {
		t.Fatalf("ApplyChanges failed: %v", err)
	}
	if got := doc.Text(); got != "new" {
		t.Errorf("Text() = %q, want %q", got, "new")
	}
}

func TestApplyChangesVersioning(t *testing.T) {
	doc := document.New("file:///a.adb", "text", 5)

	// A stale or equal version is a desynchronization.
	for _, version := range []int32{3, 5} {
		err := doc.ApplyChanges(version, []any{incremental(0, 0, 0, 0, "x")})
		if !errors.Is(err, document.ErrVersionMismatch) {
			t.Errorf("version %d: error = %v, want ErrVersionMismatch", version, err)
		}
	}
	if got := doc.Text(); got != "text" {
		t.Errorf("rejected batch mutated the text: %q", got)
	}
	if got := doc.Version(); got != 5 {
		t.Errorf("rejected batch moved the version: %d", got)
	}

	// Version 0 advances by one.
	if err := doc.ApplyChanges(0, []any{incremental(0, 0, 0, 0, "y")}); err != nil {
		t.Fatalf("ApplyChanges failed: %v", err)
	}
	if got := doc.Version(); got != 6 {
		t.Errorf("Version() = %d, want 6", got)
	}

	// An empty batch still advances the version.
	if err := doc.ApplyChanges(9, nil); err != nil {
		t.Fatalf("empty batch failed: %v", err)
	}
	if got := doc.Version(); got != 9 {
		t.Errorf("Version() = %d, want 9", got)
	}
}

func TestApplyChangesVersionOncePerBatch(t *testing.T) {
	doc := document.New("file:///a.adb", "abc", 1)

	err := doc.ApplyChanges(0, []any{
		incremental(0, 0, 0, 0, "x"),
		incremental(0, 0, 0, 0, "y"),
		incremental(0, 0, 0, 0, "z"),
	})
	if err != nil {
		t.Fatalf("ApplyChanges failed: %v", err)
	}
	if got := doc.Version(); got != 2 {
		t.Errorf("Version() = %d, want 2 (one bump per batch)", got)
	}
}

func TestApplyChangesEquivalentToFullText(t *testing.T) {
	initial := "procedure P is\nbegin\n   null;\nend P;"
	doc := document.New("file:///p.adb", initial, 1)

	err := doc.ApplyChanges(2, []any{
		incremental(2, 3, 2, 8, "A := 1;"),
		incremental(0, 10, 0, 11, "Q"),
		incremental(3, 4, 3, 5, "Q"),
	})
	if err != nil {
		t.Fatalf("ApplyChanges failed: %v", err)
	}

	// Replay the same events against a plain buffer.
	b := buffer.New(initial, 1)
	if err := b.Replace(protocol.Range{
		Start: protocol.Position{Line: 2, Character: 3},
		End:   protocol.Position{Line: 2, Character: 8},
	}, "A := 1;"); err != nil {
		t.Fatal(err)
	}
	if err := b.Replace(protocol.Range{
		Start: protocol.Position{Line: 0, Character: 10},
		End:   protocol.Position{Line: 0, Character: 11},
	}, "Q"); err != nil {
		t.Fatal(err)
	}
	if err := b.Replace(protocol.Range{
		Start: protocol.Position{Line: 3, Character: 4},
		End:   protocol.Position{Line: 3, Character: 5},
	}, "Q"); err != nil {
		t.Fatal(err)
	}

	if doc.Text() != b.Text() {
		t.Errorf("document %q, buffer %q", doc.Text(), b.Text())
	}
}

func TestApplyChangesPartialFailure(t *testing.T) {
	fake := &fakeAnalysis{}
	doc := document.New("file:///a.adb", "def Alpha\ndef Beta", 1)
	ctx := context.Background()

	if _, err := doc.Symbols(ctx, fake); err != nil {
		t.Fatalf("Symbols failed: %v", err)
	}
	if fake.parseCount != 1 {
		t.Fatalf("parseCount = %d, want 1", fake.parseCount)
	}

	// The first event applies, the second addresses a line that does not
	// exist.
	err := doc.ApplyChanges(2, []any{
		incremental(1, 4, 1, 8, "Gamma"),
		incremental(99, 0, 99, 0, "x"),
	})
	if !errors.Is(err, buffer.ErrOutOfRange) {
		t.Fatalf("error = %v, want ErrOutOfRange", err)
	}

	// The applied prefix stays; the version does not advance. The protocol
	// layer resynchronizes by resending the full content.
	if got := doc.Text(); got != "def Alpha\ndef Gamma" {
		t.Errorf("Text() = %q", got)
	}
	if got := doc.Version(); got != 1 {
		t.Errorf("Version() = %d, want 1", got)
	}

	// The cache must not survive the mutation: a query reparses and sees
	// the current text.
	entries, err := doc.Symbols(ctx, fake)
	if err != nil {
		t.Fatalf("Symbols failed: %v", err)
	}
	if fake.parseCount != 2 {
		t.Errorf("parseCount = %d, want 2 (stale cache served)", fake.parseCount)
	}
	if len(entries) != 2 || entries[1].Name != "Gamma" {
		t.Errorf("Symbols = %+v, want Alpha and Gamma", entries)
	}
}

func TestApplyChangesRejectedBatchKeepsCache(t *testing.T) {
	fake := &fakeAnalysis{}
	doc := document.New("file:///a.adb", "def Alpha", 3)
	ctx := context.Background()

	if _, err := doc.Symbols(ctx, fake); err != nil {
		t.Fatalf("Symbols failed: %v", err)
	}

	// A stale version is rejected before anything mutates, so the cache is
	// still valid.
	err := doc.ApplyChanges(2, []any{incremental(0, 0, 0, 0, "x")})
	if !errors.Is(err, document.ErrVersionMismatch) {
		t.Fatalf("error = %v, want ErrVersionMismatch", err)
	}
	if _, err := doc.Symbols(ctx, fake); err != nil {
		t.Fatalf("Symbols failed: %v", err)
	}
	if fake.parseCount != 1 {
		t.Errorf("parseCount = %d, want 1 (nothing mutated)", fake.parseCount)
	}
}

func TestSymbolCache(t *testing.T) {
	fake := &fakeAnalysis{}
	doc := document.New("file:///a.adb", "def Alpha\ndef Beta", 1)
	ctx := context.Background()

	first, err := doc.Symbols(ctx, fake)
	if err != nil {
		t.Fatalf("Symbols failed: %v", err)
	}
	if len(first) != 2 || first[0].Name != "Alpha" || first[1].Name != "Beta" {
		t.Fatalf("Symbols = %+v", first)
	}
	if fake.parseCount != 1 {
		t.Errorf("parseCount = %d, want 1", fake.parseCount)
	}

	// A second query serves from the cache.
	if _, err := doc.Symbols(ctx, fake); err != nil {
		t.Fatalf("Symbols failed: %v", err)
	}
	if fake.parseCount != 1 {
		t.Errorf("parseCount after cached query = %d, want 1", fake.parseCount)
	}

	// Any mutation discards the cache.
	if err := doc.ApplyChanges(2, []any{incremental(1, 4, 1, 8, "Gamma")}); err != nil {
		t.Fatalf("ApplyChanges failed: %v", err)
	}
	second, err := doc.Symbols(ctx, fake)
	if err != nil {
		t.Fatalf("Symbols failed: %v", err)
	}
	if fake.parseCount != 2 {
		t.Errorf("parseCount after mutation = %d, want 2", fake.parseCount)
	}
	if len(second) != 2 || second[1].Name != "Gamma" {
		t.Errorf("Symbols after edit = %+v", second)
	}
}

func TestSymbolsSortedByName(t *testing.T) {
	fake := &fakeAnalysis{}
	doc := document.New("file:///a.adb", "def zeta\ndef Alpha\ndef beta", 1)

	entries, err := doc.Symbols(context.Background(), fake)
	if err != nil {
		t.Fatalf("Symbols failed: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	// Byte-wise order: uppercase sorts before lowercase.
	want := []string{"Alpha", "beta", "zeta"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names = %v, want %v", names, want)
		}
	}
}

func TestLookupSymbol(t *testing.T) {
	fake := &fakeAnalysis{}
	doc := document.New("file:///a.adb", "def One\ndef Two", 1)
	ctx := context.Background()

	token, ok := doc.LookupSymbol(ctx, fake, "Two")
	if !ok {
		t.Fatal("LookupSymbol(Two) not found")
	}
	if token.Range.Start.Line != 1 {
		t.Errorf("token on line %d, want 1", token.Range.Start.Line)
	}
	if _, ok := doc.LookupSymbol(ctx, fake, "Three"); ok {
		t.Error("LookupSymbol(Three) found a phantom symbol")
	}
}

func TestErrorsTruncation(t *testing.T) {
	fake := &fakeAnalysis{}
	doc := document.New("file:///a.adb", "!!\n!!\n!!\n!!\n!!", 1)
	ctx := context.Background()

	all, err := doc.Errors(ctx, fake, 0)
	if err != nil {
		t.Fatalf("Errors failed: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("untruncated count = %d, want 5", len(all))
	}

	capped, err := doc.Errors(ctx, fake, 3)
	if err != nil {
		t.Fatalf("Errors failed: %v", err)
	}
	if len(capped) != 3 {
		t.Fatalf("capped count = %d, want 3", len(capped))
	}
	// Detection order survives the cap.
	for i, d := range capped {
		if int(d.Range.Start.Line) != i {
			t.Errorf("diagnostic %d on line %d", i, d.Range.Start.Line)
		}
	}
}

func TestErrorsParseFailure(t *testing.T) {
	fake := &fakeAnalysis{parseFails: true}
	doc := document.New("file:///a.adb", "text", 1)

	_, err := doc.Errors(context.Background(), fake, 0)
	if !errors.Is(err, analysis.ErrParse) {
		t.Errorf("error = %v, want ErrParse", err)
	}
}

func TestNodeAt(t *testing.T) {
	fake := &fakeAnalysis{}
	doc := document.New("file:///a.adb", "first\nsecond", 1)
	ctx := context.Background()

	node, ok, err := doc.NodeAt(ctx, fake, protocol.Position{Line: 1, Character: 2})
	if err != nil || !ok {
		t.Fatalf("NodeAt = ok %v, err %v", ok, err)
	}
	if node.Text != "second" {
		t.Errorf("node text = %q", node.Text)
	}

	// Beyond the buffer is the caller's error.
	_, _, err = doc.NodeAt(ctx, fake, protocol.Position{Line: 9})
	if !errors.Is(err, buffer.ErrOutOfRange) {
		t.Errorf("error = %v, want ErrOutOfRange", err)
	}

	// A failing parse degrades to no node, not an error.
	fake.parseFails = true
	_, ok, err = doc.NodeAt(ctx, fake, protocol.Position{Line: 0})
	if err != nil || ok {
		t.Errorf("degraded NodeAt = ok %v, err %v, want false, nil", ok, err)
	}
}

func TestWordAt(t *testing.T) {
	doc := document.New("file:///a.adb", "procedure Put_Line is", 1)

	word, span, err := doc.WordAt(protocol.Position{Line: 0, Character: 13})
	if err != nil {
		t.Fatalf("WordAt failed: %v", err)
	}
	if word != "Put_Line" {
		t.Errorf("word = %q, want %q", word, "Put_Line")
	}
	if span.Start.Character != 10 || span.End.Character != 18 {
		t.Errorf("span = %v", span)
	}

	// Whitespace with no adjacent identifier has no word.
	indented := document.New("file:///b.adb", "   null;", 1)
	word, _, err = indented.WordAt(protocol.Position{Line: 0, Character: 1})
	if err != nil {
		t.Fatalf("WordAt failed: %v", err)
	}
	if word != "" {
		t.Errorf("word on whitespace = %q, want empty", word)
	}
}

func TestWordAtUnicode(t *testing.T) {
	// Letters outside ASCII belong to the word; punctuation like the
	// ellipsis does not, even though it is multi-byte.
	doc := document.New("file:///a.adb", "Idé…rest", 1)

	word, span, err := doc.WordAt(protocol.Position{Line: 0, Character: 1})
	if err != nil {
		t.Fatalf("WordAt failed: %v", err)
	}
	if word != "Idé" {
		t.Errorf("word = %q, want %q", word, "Idé")
	}
	if span.Start.Character != 0 || span.End.Character != 3 {
		t.Errorf("span = %v, want characters 0..3", span)
	}

	word, _, err = doc.WordAt(protocol.Position{Line: 0, Character: 5})
	if err != nil {
		t.Fatalf("WordAt failed: %v", err)
	}
	if word != "rest" {
		t.Errorf("word = %q, want %q", word, "rest")
	}
}

func TestCompletionsAt(t *testing.T) {
	fake := &fakeAnalysis{}
	doc := document.New("file:///a.adb", "def Apple\ndef apricot\ndef Banana\nAp", 1)

	items, err := doc.CompletionsAt(context.Background(), fake, protocol.Position{Line: 3, Character: 2})
	if err != nil {
		t.Fatalf("CompletionsAt failed: %v", err)
	}
	var labels []string
	for _, item := range items {
		labels = append(labels, item.Label)
	}
	// Ada names match case-insensitively.
	if len(labels) != 2 || labels[0] != "Apple" || labels[1] != "apricot" {
		t.Errorf("labels = %v, want [Apple apricot]", labels)
	}
}

func TestCompletionsAtDegradesOnParseFailure(t *testing.T) {
	fake := &fakeAnalysis{parseFails: true}
	doc := document.New("file:///a.adb", "Ap", 1)

	items, err := doc.CompletionsAt(context.Background(), fake, protocol.Position{Line: 0, Character: 2})
	if err != nil {
		t.Fatalf("CompletionsAt failed: %v", err)
	}
	if items != nil {
		t.Errorf("items = %v, want none", items)
	}
}

func TestFormattingWholeDocument(t *testing.T) {
	fake := &fakeAnalysis{}
	doc := document.New("file:///a.adb", "clean\ntrailing   \nalso clean", 1)

	ok, edits := doc.Formatting(context.Background(), fake, protocol.Range{}, analysis.FormatOptions{})
	if !ok {
		t.Fatal("Formatting reported failure")
	}
	b := buffer.New(doc.Text(), 1)
	for i := len(edits) - 1; i >= 0; i-- {
		if err := b.Replace(edits[i].Range, edits[i].NewText); err != nil {
			t.Fatalf("edit failed: %v", err)
		}
	}
	if got := b.Text(); got != "clean\ntrailing\nalso clean" {
		t.Errorf("formatted text = %q", got)
	}
}

func TestFormattingCleanDocument(t *testing.T) {
	fake := &fakeAnalysis{}
	doc := document.New("file:///a.adb", "already\nclean", 1)

	ok, edits := doc.Formatting(context.Background(), fake, protocol.Range{}, analysis.FormatOptions{})
	if !ok {
		t.Fatal("Formatting reported failure")
	}
	if len(edits) != 0 {
		t.Errorf("clean document produced edits: %+v", edits)
	}
}

func TestFormattingParseFailure(t *testing.T) {
	fake := &fakeAnalysis{parseFails: true}
	doc := document.New("file:///a.adb", "text   ", 1)

	ok, edits := doc.Formatting(context.Background(), fake, protocol.Range{}, analysis.FormatOptions{})
	if ok || edits != nil {
		t.Errorf("Formatting on unparseable text = %v, %v; want false, nil", ok, edits)
	}
}

func TestImportedUnits(t *testing.T) {
	fake := &fakeAnalysis{}
	doc := document.New("file:///a.adb", "with Ada.Text_Io\nwith Interfaces\ndef P", 1)

	units, err := doc.ImportedUnits(context.Background(), fake)
	if err != nil {
		t.Fatalf("ImportedUnits failed: %v", err)
	}
	if len(units) != 2 || units[0].Name != "Ada.Text_Io" || units[1].Name != "Interfaces" {
		t.Errorf("units = %+v", units)
	}
}

func TestReset(t *testing.T) {
	doc := document.New("file:///a.adb", "old", 3)
	doc.Reset("new content")

	if got := doc.Text(); got != "new content" {
		t.Errorf("Text() = %q", got)
	}
	if got := doc.Version(); got != 4 {
		t.Errorf("Version() = %d, want 4", got)
	}
}
