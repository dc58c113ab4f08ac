// Package rc interprets muttrc-style command files that define score rules,
// hooks and address book entries.
//
//	score "~f boss@corp.example" 50
//	score "~s viagra" =-9999
//	unscore "~s viagra"
//	group -group work -rx @corp\.example$
//	alias mom Mom <mom@family.example>
//	subscribe ^golang-nuts@
//	save-hook alice +friends/alice
//
// Lines are tokenized with Tokenize; blank lines and comments are skipped.
// Errors from a file carry the file name and line number.
package rc

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/solatis/mailscore/internal/addrbook"
	"github.com/solatis/mailscore/internal/core/metrics"
	"github.com/solatis/mailscore/internal/hook"
	"github.com/solatis/mailscore/internal/score"
	"github.com/solatis/mailscore/internal/types"
)

// Interpreter applies commands to a rule store, an address book and a hook
// registry. Not safe for concurrent use.
type Interpreter struct {
	store  *score.Store
	book   *addrbook.Book
	hooks  *hook.Registry
	logger *slog.Logger

	commands map[string]func([]string) error
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(in *Interpreter) {
		in.logger = l
	}
}

// New creates an interpreter over the given components.
func New(store *score.Store, book *addrbook.Book, hooks *hook.Registry, opts ...Option) *Interpreter {
	in := &Interpreter{
		store:  store,
		book:   book,
		hooks:  hooks,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(in)
	}

	in.commands = map[string]func([]string) error{
		"score":         in.score,
		"unscore":       in.unscore,
		"group":         in.group,
		"ungroup":       in.ungroup,
		"alias":         in.alias,
		"unalias":       in.unalias,
		"lists":         in.regexList(in.book.AddList),
		"unlists":       in.unregexList(in.book.RemoveList),
		"subscribe":     in.regexList(in.book.Subscribe),
		"unsubscribe":   in.unregexList(in.book.Unsubscribe),
		"alternates":    in.regexList(in.book.AddAlternate),
		"unalternates":  in.unregexList(in.book.RemoveAlternate),
		"message-hook":  in.addHook(hook.Message),
		"save-hook":     in.addHook(hook.Save),
		"fcc-hook":      in.addHook(hook.Fcc),
		"send-hook":     in.addHook(hook.Send),
		"fcc-save-hook": in.addHook(hook.Fcc, hook.Save),
		"unhook":        in.unhook,
	}
	return in
}

// Exec runs one command line.
func (in *Interpreter) Exec(line string) error {
	words, err := Tokenize(line)
	if err != nil {
		return err
	}
	if len(words) == 0 {
		return nil
	}

	name, args := words[0], words[1:]
	cmd, ok := in.commands[name]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrUnknownCommand, name)
	}
	if err := cmd(args); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Load runs every line of r. name labels errors.
func (in *Interpreter) Load(r io.Reader, name string) error {
	sc := bufio.NewScanner(r)
	lineno := 0
	for sc.Scan() {
		lineno++
		if err := in.Exec(sc.Text()); err != nil {
			metrics.PatternErrors.WithLabelValues("rc").Inc()
			return fmt.Errorf("%s:%d: %w", name, lineno, err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	in.logger.Debug("command file loaded", "file", name, "lines", lineno, "rules", in.store.Len())
	return nil
}

// LoadFile runs every line of the file at path.
func (in *Interpreter) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open command file: %w", err)
	}
	defer f.Close()
	return in.Load(f, path)
}

func (in *Interpreter) score(args []string) error {
	switch {
	case len(args) < 2:
		return types.ErrTooFewArguments
	case len(args) > 2:
		return types.ErrTooManyArguments
	}
	if err := in.store.UpsertToken(args[0], args[1]); err != nil {
		return err
	}
	in.logger.Debug("score rule set", "pattern", args[0], "value", args[1])
	return nil
}

func (in *Interpreter) unscore(args []string) error {
	if len(args) == 0 {
		return types.ErrTooFewArguments
	}
	for _, key := range args {
		n := in.store.Remove(key)
		in.logger.Debug("score rule removed", "pattern", key, "removed", n)
	}
	return nil
}

// groupArgs splits "[-group name]... [-addr a...] [-rx r...]" style lists.
// Words after -addr or -rx belong to that mode until the next flag.
type groupArgs struct {
	groups []string
	addrs  []string
	rxs    []string
	rest   []string
}

func parseGroupArgs(args []string) (groupArgs, error) {
	var g groupArgs
	mode := ""
	for i := 0; i < len(args); i++ {
		switch a := args[i]; a {
		case "-group":
			if i+1 >= len(args) {
				return g, types.ErrTooFewArguments
			}
			i++
			g.groups = append(g.groups, args[i])
		case "-addr", "-rx":
			mode = a
		default:
			switch mode {
			case "-addr":
				g.addrs = append(g.addrs, a)
			case "-rx":
				g.rxs = append(g.rxs, a)
			default:
				g.rest = append(g.rest, a)
			}
		}
	}
	return g, nil
}

func (in *Interpreter) group(args []string) error {
	g, err := parseGroupArgs(args)
	if err != nil {
		return err
	}
	if len(g.groups) == 0 || len(g.addrs)+len(g.rxs) == 0 {
		return types.ErrTooFewArguments
	}
	if len(g.rest) > 0 {
		return types.ErrTooManyArguments
	}
	for _, name := range g.groups {
		for _, a := range g.addrs {
			in.book.AddGroupAddress(name, a)
		}
		for _, rx := range g.rxs {
			if err := in.book.AddGroupPattern(name, rx); err != nil {
				return err
			}
		}
	}
	in.store.MarkDirty()
	return nil
}

func (in *Interpreter) ungroup(args []string) error {
	g, err := parseGroupArgs(args)
	if err != nil {
		return err
	}
	if len(g.groups) == 0 {
		return types.ErrTooFewArguments
	}

	whole := len(g.addrs)+len(g.rxs) == 0
	if len(g.rest) == 1 && g.rest[0] == "*" {
		whole = true
	} else if len(g.rest) > 0 {
		return types.ErrTooManyArguments
	}

	for _, name := range g.groups {
		if whole {
			in.book.RemoveGroup(name)
			continue
		}
		for _, a := range g.addrs {
			in.book.RemoveGroupAddress(name, a)
		}
		for _, rx := range g.rxs {
			in.book.RemoveGroupPattern(name, rx)
		}
	}
	in.store.MarkDirty()
	return nil
}

// alias [-group name]... key address[, address]...
func (in *Interpreter) alias(args []string) error {
	g, err := parseGroupArgs(args)
	if err != nil {
		return err
	}
	if len(g.rest) < 2 {
		return types.ErrTooFewArguments
	}

	key := g.rest[0]
	var addrs []types.Address
	for _, part := range strings.Split(strings.Join(g.rest[1:], " "), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		a := addrbook.ParseAddress(part)
		addrs = append(addrs, a)
		for _, name := range g.groups {
			in.book.AddGroupAddress(name, a.Email)
		}
	}
	if len(addrs) == 0 {
		return types.ErrTooFewArguments
	}
	in.book.AddAlias(key, addrs...)
	in.store.MarkDirty()
	return nil
}

func (in *Interpreter) unalias(args []string) error {
	if len(args) == 0 {
		return types.ErrTooFewArguments
	}
	for _, key := range args {
		in.book.RemoveAlias(key)
	}
	in.store.MarkDirty()
	return nil
}

func (in *Interpreter) regexList(add func(string) error) func([]string) error {
	return func(args []string) error {
		g, err := parseGroupArgs(args)
		if err != nil {
			return err
		}
		if len(g.rest) == 0 {
			return types.ErrTooFewArguments
		}
		for _, rx := range g.rest {
			if err := add(rx); err != nil {
				return err
			}
			for _, name := range g.groups {
				if err := in.book.AddGroupPattern(name, rx); err != nil {
					return err
				}
			}
		}
		in.store.MarkDirty()
		return nil
	}
}

func (in *Interpreter) unregexList(remove func(string)) func([]string) error {
	return func(args []string) error {
		if len(args) == 0 {
			return types.ErrTooFewArguments
		}
		for _, rx := range args {
			remove(rx)
		}
		in.store.MarkDirty()
		return nil
	}
}

func (in *Interpreter) addHook(kinds ...hook.Type) func([]string) error {
	return func(args []string) error {
		switch {
		case len(args) < 2:
			return types.ErrTooFewArguments
		case len(args) > 2:
			return types.ErrTooManyArguments
		}
		for _, t := range kinds {
			if err := in.hooks.Add(t, args[0], args[1]); err != nil {
				return err
			}
		}
		return nil
	}
}

// unhook type|*
func (in *Interpreter) unhook(args []string) error {
	switch {
	case len(args) < 1:
		return types.ErrTooFewArguments
	case len(args) > 1:
		return types.ErrTooManyArguments
	}
	if args[0] == "*" {
		in.hooks.RemoveAll()
		return nil
	}
	t, err := hook.ParseType(args[0])
	if err != nil {
		return err
	}
	in.hooks.Remove(t)
	return nil
}
