// internal/pattern/evaluate.go
package pattern

import (
	"time"

	"github.com/solatis/mailscore/internal/types"
)

/*
 * Pattern evaluation.
 *
 * Walks a compiled tree against one record and returns a boolean.
 *
 * Evaluation flow:
 *   1. Combinator AND: operands in order, stop at the first false
 *   2. Combinator OR: operands in order, stop at the first true
 *   3. Leaf: read the field, test it against the leaf's value
 *   4. Apply the node's negation bit to the node's own result
 *
 * Address leaves consult a Directory for groups ("%" marker), the alias table
 * ("@" prefix), known and subscribed lists (~l ~u) and the user's own
 * addresses (~p ~P). The zero Evaluator uses an empty directory.
 *
 * Failures while reading the record (a body that cannot be loaded) make the
 * leaf false; evaluation itself never fails.
 */

// Message is the read-only view of a record leaf predicates test.
type Message interface {
	Envelope() *types.Envelope
	Flags() types.Flags
	Score() int
	Size() int64
	Number() int
	Received() time.Time
	Body() (*types.Body, error)
}

// Directory answers address questions that depend on user configuration.
type Directory interface {
	InGroup(group, s string) bool
	IsAlias(addr types.Address) bool
	IsList(addr types.Address) bool
	IsSubscribed(addr types.Address) bool
	IsMe(addr types.Address) bool
}

// AddressMode selects which parts of an address string leaves test.
type AddressMode int

const (
	// MatchMailbox tests only the mailbox part ("user@example.com").
	MatchMailbox AddressMode = iota
	// MatchFullAddress also tests the personal name.
	MatchFullAddress
)

// Evaluator evaluates patterns against records using a Directory.
type Evaluator struct {
	dir Directory
}

// NewEvaluator creates an evaluator. A nil directory answers false to every question.
func NewEvaluator(dir Directory) *Evaluator {
	if dir == nil {
		dir = emptyDirectory{}
	}
	return &Evaluator{dir: dir}
}

var defaultEvaluator = NewEvaluator(nil)

// Evaluate tests p against msg with an empty directory.
func Evaluate(p *Pattern, msg Message, mode AddressMode, cache *Cache) bool {
	return defaultEvaluator.Evaluate(p, msg, mode, cache)
}

// Evaluate tests p against msg. cache may be nil, in which case a temporary
// one is used.
func (e *Evaluator) Evaluate(p *Pattern, msg Message, mode AddressMode, cache *Cache) bool {
	if cache == nil {
		cache = NewCache()
	}
	return e.eval(p.Root, msg, mode, cache)
}

func (e *Evaluator) eval(n Node, msg Message, mode AddressMode, cache *Cache) bool {
	switch x := n.(type) {
	case *Combinator:
		return e.evalCombinator(x, msg, mode, cache) != x.Not
	case *Leaf:
		return e.evalLeaf(x, msg, mode, cache) != x.Not
	}
	return false
}

func (e *Evaluator) evalCombinator(c *Combinator, msg Message, mode AddressMode, cache *Cache) bool {
	if c.Op == OpOr {
		for _, op := range c.Operands {
			if e.eval(op, msg, mode, cache) {
				return true
			}
		}
		return false
	}
	for _, op := range c.Operands {
		if !e.eval(op, msg, mode, cache) {
			return false
		}
	}
	return true
}

type emptyDirectory struct{}

func (emptyDirectory) InGroup(string, string) bool     { return false }
func (emptyDirectory) IsAlias(types.Address) bool      { return false }
func (emptyDirectory) IsList(types.Address) bool       { return false }
func (emptyDirectory) IsSubscribed(types.Address) bool { return false }
func (emptyDirectory) IsMe(types.Address) bool         { return false }
