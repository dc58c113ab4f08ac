// internal/score/store.go
package score

import (
	"strconv"
	"strings"

	"github.com/solatis/mailscore/internal/pattern"
	"github.com/solatis/mailscore/internal/types"
)

/*
 * Score rule store.
 *
 * An ordered list of rules, unique by source text, plus the rescore-needed
 * flag. Order is insertion order and is also evaluation order.
 *
 * Upsert semantics: an existing source keeps its compiled tree and position;
 * only value and exact change. A new source is compiled first and appended
 * only if compilation succeeds, so a failed upsert leaves the store and the
 * flag exactly as they were. The same holds for a malformed value token,
 * which is parsed before anything else happens.
 *
 * Every successful mutation, and every Remove call whether or not it found
 * anything, sets the flag. Only Engine.Rescore clears it.
 *
 * Not safe for concurrent use.
 */

// Rule is one compiled score rule.
type Rule struct {
	Source  string
	Pattern *pattern.Pattern
	Value   int
	Exact   bool
}

// ValueToken renders the value the way ParseValue reads it.
func (r Rule) ValueToken() string {
	if r.Exact {
		return "=" + strconv.Itoa(r.Value)
	}
	return strconv.Itoa(r.Value)
}

// Store is the ordered score rule list.
type Store struct {
	rules []*Rule
	dirty bool
	opts  []pattern.Option
}

// NewStore creates an empty store. Options are passed to pattern.Compile.
func NewStore(opts ...pattern.Option) *Store {
	return &Store{opts: opts}
}

// ParseValue parses a rule value token. A leading "=" marks the value exact.
func ParseValue(token string) (int, bool, error) {
	exact := false
	if strings.HasPrefix(token, "=") {
		exact = true
		token = token[1:]
	}
	n, err := strconv.Atoi(token)
	if err != nil {
		return 0, false, types.NewParseError(types.ErrInvalidNumber, token)
	}
	return n, exact, nil
}

// Upsert adds a rule or updates the value of an existing one.
func (s *Store) Upsert(source string, value int, exact bool) error {
	if r := s.find(source); r != nil {
		r.Value = value
		r.Exact = exact
		s.dirty = true
		return nil
	}

	p, err := pattern.Compile(source, pattern.ClassAll, s.opts...)
	if err != nil {
		return err
	}
	s.rules = append(s.rules, &Rule{Source: source, Pattern: p, Value: value, Exact: exact})
	s.dirty = true
	return nil
}

// UpsertToken is Upsert with the value given as a raw token such as "10" or "=-5".
func (s *Store) UpsertToken(source, token string) error {
	value, exact, err := ParseValue(token)
	if err != nil {
		return err
	}
	return s.Upsert(source, value, exact)
}

// Remove deletes the rule with the given source, or every rule for "*".
// It returns the number of rules removed.
func (s *Store) Remove(key string) int {
	s.dirty = true
	if key == "*" {
		n := len(s.rules)
		s.rules = nil
		return n
	}
	for i, r := range s.rules {
		if r.Source == key {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			return 1
		}
	}
	return 0
}

// NeedsRescore reports whether the rule set changed since the last rescore.
func (s *Store) NeedsRescore() bool {
	return s.dirty
}

// MarkDirty forces the next Rescore to run, for example after the address
// book changed.
func (s *Store) MarkDirty() {
	s.dirty = true
}

// Len returns the number of rules.
func (s *Store) Len() int {
	return len(s.rules)
}

// Rules returns a copy of the rules in evaluation order.
func (s *Store) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	for i, r := range s.rules {
		out[i] = *r
	}
	return out
}

func (s *Store) find(source string) *Rule {
	for _, r := range s.rules {
		if r.Source == source {
			return r
		}
	}
	return nil
}
