// Package mailbox loads a Maildir folder into scorable records and keeps
// the folder-level state the score engine drives: flag counters, the sort
// order and pending resort and redraw requests.
//
// Flags in Maildir file names map to record flags as follows:
//
//	F  flagged
//	R  replied
//	S  read
//	T  deleted
//
// Messages in new/ are new; messages in cur/ without S are old. Other info
// letters are kept untouched when Sync renames a file.
package mailbox

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/solatis/mailscore/internal/score"
	"github.com/solatis/mailscore/internal/types"
)

const infoSep = ":2,"

type entry struct {
	email *types.Email
	dir   string // "cur" or "new"
	name  string // current file name
	base  string // file name without the info suffix
	extra string // info letters not mapped to record flags
}

func (e *entry) path(root string) string {
	return filepath.Join(root, e.dir, e.name)
}

// Mailbox is an open Maildir folder. Not safe for concurrent use.
type Mailbox struct {
	root    string
	entries []*entry

	primary score.SortKey
	aux     score.SortKey

	needResort bool
	subthreads bool
	needRedraw bool

	deleted int
	flagged int
	unread  int

	logger *slog.Logger
}

// Option configures Open.
type Option func(*Mailbox)

// WithSort sets the primary and auxiliary sort order.
func WithSort(primary, aux score.SortKey) Option {
	return func(m *Mailbox) {
		m.primary = primary
		m.aux = aux
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Mailbox) {
		m.logger = l
	}
}

// Open reads the messages in the Maildir at root. Envelopes are parsed
// now; bodies are read from disk when a body leaf first asks for them.
func Open(root string, opts ...Option) (*Mailbox, error) {
	m := &Mailbox{root: root, primary: score.SortDate, aux: score.SortDate, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}

	for _, sub := range []string{"cur", "new", "tmp"} {
		if fi, err := os.Stat(filepath.Join(root, sub)); err != nil || !fi.IsDir() {
			return nil, fmt.Errorf("%s is not a maildir (missing %s/)", root, sub)
		}
	}

	for _, sub := range []string{"cur", "new"} {
		dirents, err := os.ReadDir(filepath.Join(root, sub))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", sub, err)
		}
		for _, de := range dirents {
			if de.IsDir() || strings.HasPrefix(de.Name(), ".") {
				continue
			}
			e, err := m.load(sub, de.Name())
			if err != nil {
				m.logger.Warn("skipping unreadable message", "file", de.Name(), "error", err)
				continue
			}
			m.entries = append(m.entries, e)
		}
	}

	m.sortEntries()
	m.logger.Debug("maildir opened", "path", root, "messages", len(m.entries), "unread", m.unread)
	return m, nil
}

func (m *Mailbox) load(sub, name string) (*entry, error) {
	path := filepath.Join(m.root, sub, name)
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	env, err := ReadEnvelope(f)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	base, info := name, ""
	if i := strings.LastIndex(name, infoSep); i >= 0 {
		base, info = name[:i], name[i+len(infoSep):]
	}
	flags, extra := parseInfo(info)
	if sub == "cur" && !flags.Has(types.FlagRead) {
		flags |= types.FlagOld
	}

	email := types.NewEmail(base, env)
	email.SetFlags(flags)
	email.SetSize(fi.Size())
	email.SetReceived(fi.ModTime())
	email.SetOwner(m)

	e := &entry{email: email, dir: sub, name: name, base: base, extra: extra}
	email.SetBodyLoader(func() (*types.Body, error) {
		f, err := os.Open(e.path(m.root))
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ReadBody(f)
	})

	m.count(flags, 1)
	return e, nil
}

func (m *Mailbox) count(f types.Flags, delta int) {
	if f.Has(types.FlagDeleted) {
		m.deleted += delta
	}
	if f.Has(types.FlagFlagged) {
		m.flagged += delta
	}
	if !f.Has(types.FlagRead) {
		m.unread += delta
	}
}

// FlagChanged keeps the counters current for propagated flag changes.
func (m *Mailbox) FlagChanged(_ *types.Email, flag types.Flags, set bool) {
	delta := 1
	if !set {
		delta = -1
	}
	switch flag {
	case types.FlagDeleted:
		m.deleted += delta
	case types.FlagFlagged:
		m.flagged += delta
	case types.FlagRead:
		m.unread -= delta
	}
	m.needRedraw = true
}

// Path returns the Maildir root.
func (m *Mailbox) Path() string { return m.root }

// Len returns the number of messages.
func (m *Mailbox) Len() int { return len(m.entries) }

// At returns the i-th message in display order.
func (m *Mailbox) At(i int) score.Record { return m.entries[i].email }

// Email returns the i-th message in display order.
func (m *Mailbox) Email(i int) *types.Email { return m.entries[i].email }

// Emails returns the messages in display order.
func (m *Mailbox) Emails() []*types.Email {
	out := make([]*types.Email, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.email
	}
	return out
}

// FilePath returns the current file path of the i-th message.
func (m *Mailbox) FilePath(i int) string { return m.entries[i].path(m.root) }

// Deleted returns the number of messages marked deleted.
func (m *Mailbox) Deleted() int { return m.deleted }

// Flagged returns the number of flagged messages.
func (m *Mailbox) Flagged() int { return m.flagged }

// Unread returns the number of unread messages.
func (m *Mailbox) Unread() int { return m.unread }

// SortOrder returns the primary and auxiliary sort keys.
func (m *Mailbox) SortOrder() (score.SortKey, score.SortKey) { return m.primary, m.aux }

// SetSortOrder changes the sort keys and requests a resort.
func (m *Mailbox) SetSortOrder(primary, aux score.SortKey) {
	m.primary, m.aux = primary, aux
	m.RequestResort(false)
}

// RequestResort asks for the messages to be resorted on the next Resort.
func (m *Mailbox) RequestResort(subthreads bool) {
	m.needResort = true
	m.subthreads = m.subthreads || subthreads
}

// RequestRedraw asks for the index to be redrawn.
func (m *Mailbox) RequestRedraw() { m.needRedraw = true }

// NeedsResort reports a pending resort and whether subthreads must be rebuilt.
func (m *Mailbox) NeedsResort() (bool, bool) { return m.needResort, m.subthreads }

// NeedsRedraw reports a pending redraw.
func (m *Mailbox) NeedsRedraw() bool { return m.needRedraw }

// ClearRedraw acknowledges a redraw.
func (m *Mailbox) ClearRedraw() { m.needRedraw = false }

// Resort applies a pending resort. It returns false if none was pending.
func (m *Mailbox) Resort() bool {
	if !m.needResort {
		return false
	}
	m.sortEntries()
	m.needResort = false
	m.subthreads = false
	m.needRedraw = true
	return true
}

// sortEntries orders by the primary key, breaking ties with the auxiliary
// key and then by file name. Threads are not built; a thread sort orders by
// date. Messages are renumbered from 1.
func (m *Mailbox) sortEntries() {
	sort.SliceStable(m.entries, func(i, j int) bool {
		a, b := m.entries[i], m.entries[j]
		if c := compare(m.primary, a.email, b.email); c != 0 {
			return c < 0
		}
		if c := compare(m.aux, a.email, b.email); c != 0 {
			return c < 0
		}
		return a.base < b.base
	})
	for i, e := range m.entries {
		e.email.SetNumber(i + 1)
	}
}

func compare(k score.SortKey, a, b *types.Email) int {
	switch k {
	case score.SortDate, score.SortThreads:
		return a.Envelope().Date.Compare(b.Envelope().Date)
	case score.SortReceived:
		return a.Received().Compare(b.Received())
	case score.SortScore:
		// Highest score first.
		return b.Score() - a.Score()
	case score.SortSubject:
		return strings.Compare(strings.ToLower(a.Envelope().Subject), strings.ToLower(b.Envelope().Subject))
	case score.SortFrom:
		return strings.Compare(firstEmail(a.Envelope().From), firstEmail(b.Envelope().From))
	case score.SortSize:
		switch {
		case a.Size() < b.Size():
			return -1
		case a.Size() > b.Size():
			return 1
		}
	}
	return 0
}

func firstEmail(list []types.Address) string {
	if len(list) == 0 {
		return ""
	}
	return strings.ToLower(list[0].Email)
}
