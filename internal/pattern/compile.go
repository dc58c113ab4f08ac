// internal/pattern/compile.go
package pattern

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/solatis/mailscore/internal/types"
)

/*
 * Pattern compilation.
 *
 * Recursive descent over the pattern text:
 *
 *   pattern := orgroup { orgroup }            juxtaposition is AND
 *   orgroup := unary { "|" unary }            "|" binds tighter than AND
 *   unary   := { "!" | "^" | "@" } primary    each prefix toggles its bit
 *   primary := "(" pattern ")" | leaf
 *   leaf    := ("~" | "=" | "%") letter [argument]
 *
 * So "A B | C" compiles to AND(A, OR(B, C)).
 *
 * Collapse rules: a sequence or or-group of one term is that term; two or
 * more terms get a Combinator. A prefix in front of a parenthesised group
 * applies to whatever node the group produced, which for a single term is
 * the leaf itself.
 *
 * Compilation is pure. Relative dates resolve against the compiler clock,
 * which defaults to time.Now and is replaced with WithClock in tests.
 */

// Option configures Compile.
type Option func(*compiler)

// WithClock sets the time source relative dates resolve against.
func WithClock(now func() time.Time) Option {
	return func(c *compiler) {
		c.now = now
	}
}

type compiler struct {
	allow Class
	now   func() time.Time
}

// Compile parses text into a predicate tree. Leaves whose class is not in
// allow are rejected with ErrModifierNotAllowed.
func Compile(text string, allow Class, opts ...Option) (*Pattern, error) {
	c := &compiler{allow: allow, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}

	root, err := c.parse(text)
	if err != nil {
		return nil, err
	}
	return &Pattern{Root: root, Source: text}, nil
}

// MustCompile is like Compile but panics on error. For tests and constants.
func MustCompile(text string, allow Class, opts ...Option) *Pattern {
	p, err := Compile(text, allow, opts...)
	if err != nil {
		panic("pattern: Compile(" + text + "): " + err.Error())
	}
	return p
}

// parse compiles a whole sequence: the top level or a parenthesised group.
func (c *compiler) parse(s string) (Node, error) {
	var terms []Node
	rest := skipSpace(s)
	for rest != "" {
		term, next, err := c.parseOrGroup(rest)
		if err != nil {
			return nil, err
		}
		if term == nil {
			// Only prefixes were left.
			if len(terms) == 0 {
				return nil, types.NewParseError(types.ErrEmptyPattern, "")
			}
			return nil, types.NewParseError(types.ErrSyntax, rest)
		}
		terms = append(terms, term)
		rest = skipSpace(next)
	}

	switch len(terms) {
	case 0:
		return nil, types.NewParseError(types.ErrEmptyPattern, "")
	case 1:
		return terms[0], nil
	}
	return &Combinator{Op: OpAnd, Operands: terms}, nil
}

func (c *compiler) parseOrGroup(s string) (Node, string, error) {
	first, rest, err := c.parseUnary(s)
	if err != nil || first == nil {
		return nil, "", err
	}

	operands := []Node{first}
	for {
		r := skipSpace(rest)
		if !strings.HasPrefix(r, "|") {
			break
		}
		next, after, err := c.parseUnary(r[1:])
		if err != nil {
			return nil, "", err
		}
		if next == nil {
			return nil, "", types.NewParseError(types.ErrSyntax, r)
		}
		operands = append(operands, next)
		rest = after
	}

	if len(operands) == 1 {
		return first, rest, nil
	}
	return &Combinator{Op: OpOr, Operands: operands}, rest, nil
}

// parseUnary returns a nil node when the input ends before a primary.
func (c *compiler) parseUnary(s string) (Node, string, error) {
	var not, allAddr, isAlias bool
	for {
		s = skipSpace(s)
		if s == "" {
			return nil, "", nil
		}
		switch s[0] {
		case '!':
			not = !not
		case '^':
			allAddr = !allAddr
		case '@':
			isAlias = !isAlias
		default:
			return c.parsePrimary(s, not, allAddr, isAlias)
		}
		s = s[1:]
	}
}

func (c *compiler) parsePrimary(s string, not, allAddr, isAlias bool) (Node, string, error) {
	switch s[0] {
	case '(':
		end := matchingParen(s)
		if end < 0 {
			return nil, "", types.NewParseError(types.ErrMismatchedParen, s)
		}
		sub, err := c.parse(s[1:end])
		if err != nil {
			return nil, "", err
		}
		switch n := sub.(type) {
		case *Leaf:
			n.Not = n.Not != not
			n.AllAddr = n.AllAddr || allAddr
			n.IsAlias = n.IsAlias || isAlias
		case *Combinator:
			if allAddr || isAlias {
				return nil, "", types.NewParseError(types.ErrSyntax, s)
			}
			n.Not = n.Not != not
		}
		return sub, s[end+1:], nil

	case '~', '=', '%':
		leaf, rest, err := c.parseLeaf(s)
		if err != nil {
			return nil, "", err
		}
		leaf.Not = not
		leaf.AllAddr = allAddr
		leaf.IsAlias = isAlias
		return leaf, rest, nil
	}
	return nil, "", types.NewParseError(types.ErrSyntax, s)
}

func (c *compiler) parseLeaf(s string) (*Leaf, string, error) {
	marker := s[0]
	if len(s) < 2 {
		return nil, "", types.NewParseError(types.ErrMissingPattern, s)
	}
	letter, size := utf8.DecodeRuneInString(s[1:])
	def, ok := leafTable[letter]
	if !ok {
		return nil, "", types.NewParseError(types.ErrInvalidModifier, string(letter))
	}
	if def.class != 0 && c.allow&def.class == 0 {
		return nil, "", types.NewParseError(types.ErrModifierNotAllowed, string(letter))
	}
	if marker == '%' && !def.address {
		return nil, "", types.NewParseError(types.ErrInvalidModifier, s[:1+size])
	}

	leaf := &Leaf{Op: def.op}
	rest := s[1+size:]
	if def.arg == argNone {
		return leaf, rest, nil
	}

	rest = skipSpace(rest)
	// "=" stops a token but may open a date argument.
	prefix := ""
	if def.arg == argDate && strings.HasPrefix(rest, "=") {
		prefix, rest = rest[:1], rest[1:]
	}
	tok, rest := extractToken(rest)
	tok = prefix + tok
	if tok == "" {
		return nil, "", types.NewParseError(types.ErrMissingParameter, "")
	}

	var err error
	switch def.arg {
	case argString:
		leaf.Value, err = stringValue(marker, tok)
	case argRange:
		leaf.Value, err = parseRange(tok, def.op == OpSize)
	case argDate:
		leaf.Value, err = parseDate(tok, c.now())
	}
	if err != nil {
		return nil, "", err
	}
	return leaf, rest, nil
}

// matchingParen returns the index of the ")" closing the "(" at s[0], or -1.
// Quoted text and backslash-escaped characters are skipped.
func matchingParen(s string) int {
	level := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case quote != 0:
			if ch == '\\' && quote == '"' {
				i++
			} else if ch == quote {
				quote = 0
			}
		case ch == '\\':
			i++
		case ch == '"' || ch == '\'':
			quote = ch
		case ch == '(':
			level++
		case ch == ')':
			level--
			if level == 0 {
				return i
			}
		}
	}
	return -1
}

func skipSpace(s string) string {
	return strings.TrimLeft(s, " \t\r\n")
}
