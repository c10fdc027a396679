package document_test

import (
	"errors"
	"testing"

	"github.com/simonjwright/ada-language-server/internal/document"
)

func TestStoreLifecycle(t *testing.T) {
	store := document.NewStore(nil)

	if doc, outcome := store.Get("file:///a.adb", false); outcome != document.NotFound || doc != nil {
		t.Errorf("Get before Open = %v, %v", doc, outcome)
	}

	opened := store.Open("file:///a.adb", "content", 1)
	doc, outcome := store.Get("file:///a.adb", false)
	if outcome != document.Found {
		t.Fatalf("outcome = %v, want Found", outcome)
	}
	if doc != opened {
		t.Error("Get returned a different document than Open")
	}

	store.Close("file:///a.adb")
	if _, outcome := store.Get("file:///a.adb", false); outcome != document.NotFound {
		t.Errorf("outcome after Close = %v, want NotFound", outcome)
	}
}

func TestStoreReopenReplaces(t *testing.T) {
	store := document.NewStore(nil)

	first := store.Open("file:///a.adb", "first", 1)
	second := store.Open("file:///a.adb", "second", 1)
	if first == second {
		t.Fatal("reopen returned the same document")
	}

	doc, _ := store.Get("file:///a.adb", false)
	if doc.Text() != "second" {
		t.Errorf("Text() = %q, want %q", doc.Text(), "second")
	}
}

func TestStoreForceConstruction(t *testing.T) {
	loads := 0
	store := document.NewStore(func(uri string) (string, error) {
		loads++
		if uri == "file:///missing.adb" {
			return "", errors.New("no such file")
		}
		return "loaded content", nil
	})

	doc, outcome := store.Get("file:///closed.adb", true)
	if outcome != document.Created {
		t.Fatalf("outcome = %v, want Created", outcome)
	}
	if doc.Text() != "loaded content" {
		t.Errorf("Text() = %q", doc.Text())
	}

	// Created documents are transient, not registered.
	if _, outcome := store.Get("file:///closed.adb", false); outcome != document.NotFound {
		t.Errorf("transient document was registered: outcome = %v", outcome)
	}
	if _, outcome := store.Get("file:///closed.adb", true); outcome != document.Created {
		t.Errorf("second force lookup outcome = %v, want Created", outcome)
	}
	if loads != 2 {
		t.Errorf("loads = %d, want 2", loads)
	}

	// Loader failure reads as NotFound.
	if _, outcome := store.Get("file:///missing.adb", true); outcome != document.NotFound {
		t.Errorf("outcome for failing load = %v, want NotFound", outcome)
	}

	// An open document wins over the loader.
	store.Open("file:///closed.adb", "open content", 1)
	doc, outcome = store.Get("file:///closed.adb", true)
	if outcome != document.Found || doc.Text() != "open content" {
		t.Errorf("Get with open document = %q, %v", doc.Text(), outcome)
	}
}

func TestStoreURIs(t *testing.T) {
	store := document.NewStore(nil)
	store.Open("file:///a.adb", "", 1)
	store.Open("file:///b.ads", "", 1)

	uris := store.URIs()
	if len(uris) != 2 {
		t.Errorf("URIs() = %v, want 2 entries", uris)
	}
}
