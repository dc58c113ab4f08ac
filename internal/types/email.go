// internal/types/email.go
package types

import "time"

/*
 * Email record.
 *
 * Email is the unit the pattern evaluator tests and the score engine scores.
 * Envelope fields are fixed at load time; flags and score change as rules run.
 *
 * Flag propagation: the Mark* mutators take a propagate argument. When true
 * and an owner is attached, the owner is told about the transition so it can
 * keep its aggregate counters (deleted, flagged, unread) current. When false
 * only the record itself changes.
 *
 * The body is loaded lazily through a loader function supplied by whoever
 * built the record; records without a loader report ErrNoBody.
 */

// FlagObserver receives flag transitions propagated from a record.
type FlagObserver interface {
	FlagChanged(e *Email, flag Flags, set bool)
}

// Email is one message record.
type Email struct {
	// Key identifies the record within its mailbox (Maildir base name).
	Key string

	env      Envelope
	flags    Flags
	number   int
	score    int
	size     int64
	received time.Time
	loader   func() (*Body, error)
	owner    FlagObserver
	display  string
	changed  bool
}

// NewEmail creates a record with the given envelope and no flags set.
func NewEmail(key string, env Envelope) *Email {
	return &Email{Key: key, env: env}
}

// Envelope returns the header fields.
func (e *Email) Envelope() *Envelope { return &e.env }

// Flags returns the state bitmask.
func (e *Email) Flags() Flags { return e.flags }

// SetFlags replaces the state bitmask without notifying the owner.
func (e *Email) SetFlags(f Flags) { e.flags = f }

// Number returns the 1-based position in the mailbox.
func (e *Email) Number() int { return e.number }

// SetNumber sets the 1-based position in the mailbox.
func (e *Email) SetNumber(n int) { e.number = n }

// Score returns the most recently computed score.
func (e *Email) Score() int { return e.score }

// SetScore stores a computed score.
func (e *Email) SetScore(s int) { e.score = s }

// Size returns the message size in bytes.
func (e *Email) Size() int64 { return e.size }

// SetSize sets the message size in bytes.
func (e *Email) SetSize(n int64) { e.size = n }

// Received returns the delivery time.
func (e *Email) Received() time.Time { return e.received }

// SetReceived sets the delivery time.
func (e *Email) SetReceived(t time.Time) { e.received = t }

// SetBodyLoader installs the function Body calls.
func (e *Email) SetBodyLoader(fn func() (*Body, error)) { e.loader = fn }

// SetOwner attaches the observer notified by propagated flag changes.
func (e *Email) SetOwner(o FlagObserver) { e.owner = o }

// Body loads the decoded message content.
func (e *Email) Body() (*Body, error) {
	if e.loader == nil {
		return nil, ErrNoBody
	}
	return e.loader()
}

// MarkDeleted sets the deleted flag.
func (e *Email) MarkDeleted(propagate bool) { e.mark(FlagDeleted, propagate) }

// MarkRead sets the read flag.
func (e *Email) MarkRead(propagate bool) { e.mark(FlagRead, propagate) }

// MarkFlagged sets the flagged (important) flag.
func (e *Email) MarkFlagged(propagate bool) { e.mark(FlagFlagged, propagate) }

func (e *Email) mark(f Flags, propagate bool) {
	if e.flags.Has(f) {
		return
	}
	e.flags |= f
	e.changed = true
	if propagate && e.owner != nil {
		e.owner.FlagChanged(e, f, true)
	}
}

// Changed reports whether a Mark* call changed the flags since the last ClearChanged.
func (e *Email) Changed() bool { return e.changed }

// ClearChanged resets the changed marker after flags were written back.
func (e *Email) ClearChanged() { e.changed = false }

// Display returns the cached index line, if any.
func (e *Email) Display() (string, bool) { return e.display, e.display != "" }

// SetDisplay caches a rendered index line.
func (e *Email) SetDisplay(s string) { e.display = s }

// ResetDisplay drops the cached index line so the next render recomputes it.
func (e *Email) ResetDisplay() { e.display = "" }
