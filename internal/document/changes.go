package document

import (
	"errors"
	"fmt"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// ErrVersionMismatch reports a change batch whose version does not advance
// the document. The protocol layer resolves it, typically by requesting the
// editor resend the full content.
var ErrVersionMismatch = errors.New("document: change batch version does not advance document")

// ApplyChanges applies one ordered batch of protocol change events. Each
// event's ranges address the text produced by the preceding events of the
// same batch, so events apply strictly in order. The version advances
// exactly once per batch (to version, or by one when version is 0) and the
// symbol cache is discarded exactly once, regardless of the number of
// events. A whole-document event discards everything accumulated so far in
// the batch.
//
// A batch is not atomic: when an event fails, the events before it stay
// applied and the version does not advance. The symbol cache is still
// discarded whenever anything mutated, so queries never serve pre-edit
// symbols against post-edit text. Callers treat the error as a
// desynchronization and resend the full content.
func (d *Document) ApplyChanges(version int32, changes []any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if version != 0 && version <= d.buf.Version() {
		return fmt.Errorf("%w: have %d, got %d", ErrVersionMismatch, d.buf.Version(), version)
	}

	mutated := false
	defer func() {
		if mutated {
			d.symbols = nil
		}
	}()

	for _, raw := range changes {
		switch change := raw.(type) {
		case protocol.TextDocumentContentChangeEventWhole:
			d.buf.SetText(change.Text)
			mutated = true
		case protocol.TextDocumentContentChangeEvent:
			if change.Range == nil {
				d.buf.SetText(change.Text)
				mutated = true
				continue
			}
			if err := d.buf.Replace(*change.Range, change.Text); err != nil {
				return err
			}
			mutated = true
		default:
			return fmt.Errorf("unexpected change event type %T", raw)
		}
	}

	if version == 0 {
		version = d.buf.Version() + 1
	}
	d.buf.SetVersion(version)
	return nil
}

// Reset replaces the whole document content outside of any protocol batch,
// advancing the version by one. Used when resynchronizing from disk.
func (d *Document) Reset(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buf.SetText(text)
	d.buf.SetVersion(d.buf.Version() + 1)
	d.symbols = nil
}
