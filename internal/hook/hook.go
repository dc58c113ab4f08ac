// Package hook matches messages against pattern hooks and returns the
// commands they carry.
//
// Four hook types exist. Message and send hooks accumulate: every matching
// hook contributes its command, in registration order. Save and fcc hooks
// pick one: the first matching hook wins, and registering the same pattern
// again replaces its command in place.
//
// Save and fcc hook patterns that contain no pattern operators are treated
// as an address and expanded through the default hook template, so
// "save-hook alice +alice" behaves like a hook on mail from or to alice.
package hook

import (
	"fmt"
	"strings"

	"github.com/solatis/mailscore/internal/core/config"
	"github.com/solatis/mailscore/internal/pattern"
	"github.com/solatis/mailscore/internal/types"
)

// Type identifies a hook kind.
type Type int

const (
	Message Type = iota
	Save
	Fcc
	Send
)

var typeNames = []string{"message-hook", "save-hook", "fcc-hook", "send-hook"}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("hook(%d)", int(t))
}

// ParseType accepts "message-hook" or the short form "message".
func ParseType(s string) (Type, error) {
	name := strings.TrimSuffix(strings.ToLower(s), "-hook")
	for i, n := range typeNames {
		if strings.TrimSuffix(n, "-hook") == name {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %s", types.ErrUnknownCommand, s)
}

// allowed returns the leaf classes a hook type may use. Send and fcc hooks
// run on a message being composed, which has no mailbox state.
func (t Type) allowed() pattern.Class {
	switch t {
	case Send, Fcc:
		return pattern.ClassFullMessage
	}
	return pattern.ClassAll
}

func (t Type) single() bool {
	return t == Save || t == Fcc
}

// Hook is one registered hook.
type Hook struct {
	Type    Type
	Source  string
	Pattern *pattern.Pattern
	Command string
}

// Registry holds hooks in registration order.
type Registry struct {
	hooks       []*Hook
	defaultHook string
	eval        *pattern.Evaluator
	opts        []pattern.Option
}

// New creates an empty registry. defaultHook is the template used for
// plain-text save and fcc patterns; "%s" is replaced by the quoted text.
func New(defaultHook string, dir pattern.Directory, opts ...pattern.Option) *Registry {
	return &Registry{
		defaultHook: defaultHook,
		eval:        pattern.NewEvaluator(dir),
		opts:        opts,
	}
}

// FromConfig builds a registry from the hooks configuration section.
func FromConfig(cfg config.HooksConfig, dir pattern.Directory, opts ...pattern.Option) (*Registry, error) {
	r := New(cfg.DefaultHook, dir, opts...)
	for _, h := range cfg.Hooks {
		t, err := ParseType(h.Type)
		if err != nil {
			return nil, err
		}
		if err := r.Add(t, h.Pattern, h.Command); err != nil {
			return nil, fmt.Errorf("failed to add %s %q: %w", t, h.Pattern, err)
		}
	}
	return r, nil
}

// Add registers a hook. An identical hook is ignored.
func (r *Registry) Add(t Type, text, command string) error {
	if text == "" || command == "" {
		return types.ErrTooFewArguments
	}
	if t.single() {
		text = r.expand(text)
	}

	for _, h := range r.hooks {
		if h.Type != t || h.Source != text {
			continue
		}
		if t.single() {
			h.Command = command
			return nil
		}
		if h.Command == command {
			return nil
		}
	}

	p, err := pattern.Compile(text, t.allowed(), r.opts...)
	if err != nil {
		return err
	}
	r.hooks = append(r.hooks, &Hook{Type: t, Source: text, Pattern: p, Command: command})
	return nil
}

// Remove deletes every hook of type t.
func (r *Registry) Remove(t Type) {
	out := r.hooks[:0]
	for _, h := range r.hooks {
		if h.Type != t {
			out = append(out, h)
		}
	}
	r.hooks = out
}

// RemoveAll deletes every hook.
func (r *Registry) RemoveAll() {
	r.hooks = nil
}

// Hooks returns a copy of the registered hooks.
func (r *Registry) Hooks() []Hook {
	out := make([]Hook, len(r.hooks))
	for i, h := range r.hooks {
		out[i] = *h
	}
	return out
}

// MessageHooks returns the commands of every matching message hook.
func (r *Registry) MessageHooks(msg pattern.Message) []string {
	return r.collect(Message, msg)
}

// SendHooks returns the commands of every matching send hook.
func (r *Registry) SendHooks(msg pattern.Message) []string {
	return r.collect(Send, msg)
}

// FindSave returns the command of the first matching save hook.
func (r *Registry) FindSave(msg pattern.Message) (string, bool) {
	return r.first(Save, msg)
}

// FindFcc returns the command of the first matching fcc hook.
func (r *Registry) FindFcc(msg pattern.Message) (string, bool) {
	return r.first(Fcc, msg)
}

func (r *Registry) collect(t Type, msg pattern.Message) []string {
	var out []string
	cache := pattern.NewCache()
	for _, h := range r.hooks {
		if h.Type == t && r.eval.Evaluate(h.Pattern, msg, pattern.MatchFullAddress, cache) {
			out = append(out, h.Command)
		}
	}
	return out
}

func (r *Registry) first(t Type, msg pattern.Message) (string, bool) {
	cache := pattern.NewCache()
	for _, h := range r.hooks {
		if h.Type == t && r.eval.Evaluate(h.Pattern, msg, pattern.MatchFullAddress, cache) {
			return h.Command, true
		}
	}
	return "", false
}

// expand turns plain text into a pattern through the default hook.
func (r *Registry) expand(text string) string {
	if r.defaultHook == "" || strings.ContainsAny(text, "~%=!|()") {
		return text
	}
	if text == "." {
		return "~A"
	}
	return strings.ReplaceAll(r.defaultHook, "%s", quote(text))
}

func quote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, ch := range s {
		if ch == '"' || ch == '\\' {
			sb.WriteByte('\\')
		}
		sb.WriteRune(ch)
	}
	sb.WriteByte('"')
	return sb.String()
}
