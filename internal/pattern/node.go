// internal/pattern/node.go
package pattern

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

/*
 * Predicate tree.
 *
 * A compiled pattern is a tree of Node values. Leaves test one field of a
 * record; combinators join two or more operands with AND or OR. Every node
 * carries its own negation bit, applied after the node's own result is known.
 *
 * Shape invariants established by Compile:
 *   - a Combinator has at least two operands
 *   - a single term is never wrapped, at the top level or inside parentheses
 *   - nodes are never shared between trees or between parents
 *
 * Leaves additionally carry the all-addresses and alias-only bits, which only
 * address leaves consult.
 */

// Op identifies what a node tests or how it combines operands.
type Op int

const (
	OpInvalid Op = iota
	OpAnd
	OpOr

	OpAll            // ~A
	OpBody           // ~b
	OpWholeMsg       // ~B
	OpCc             // ~c
	OpRecipient      // ~C
	OpDate           // ~d
	OpDeleted        // ~D
	OpSender         // ~e
	OpExpired        // ~E
	OpFrom           // ~f
	OpFlagged        // ~F
	OpSigned         // ~g
	OpEncrypted      // ~G
	OpHeader         // ~h
	OpSpam           // ~H
	OpMessageID      // ~i
	OpPGPKey         // ~k
	OpList           // ~l
	OpAddress        // ~L
	OpMessage        // ~m
	OpMIMEType       // ~M
	OpScore          // ~n
	OpNew            // ~N
	OpOld            // ~O
	OpPersonalRecip  // ~p
	OpPersonalFrom   // ~P
	OpReplied        // ~Q
	OpDateReceived   // ~r
	OpRead           // ~R
	OpSubject        // ~s
	OpSuperseded     // ~S
	OpTo             // ~t
	OpTagged         // ~T
	OpSubscribedList // ~u
	OpUnread         // ~U
	OpVerified       // ~V
	OpReference      // ~x
	OpAttachments    // ~X
	OpXLabel         // ~y
	OpTags           // ~Y
	OpSize           // ~z
)

var opNames = map[Op]string{
	OpAnd:            "And",
	OpOr:             "Or",
	OpAll:            "All",
	OpBody:           "Body",
	OpWholeMsg:       "WholeMsg",
	OpCc:             "Cc",
	OpRecipient:      "Recipient",
	OpDate:           "Date",
	OpDeleted:        "Deleted",
	OpSender:         "Sender",
	OpExpired:        "Expired",
	OpFrom:           "From",
	OpFlagged:        "Flagged",
	OpSigned:         "Signed",
	OpEncrypted:      "Encrypted",
	OpHeader:         "Header",
	OpSpam:           "Spam",
	OpMessageID:      "MessageID",
	OpPGPKey:         "PGPKey",
	OpList:           "List",
	OpAddress:        "Address",
	OpMessage:        "Message",
	OpMIMEType:       "MIMEType",
	OpScore:          "Score",
	OpNew:            "New",
	OpOld:            "Old",
	OpPersonalRecip:  "PersonalRecip",
	OpPersonalFrom:   "PersonalFrom",
	OpReplied:        "Replied",
	OpDateReceived:   "DateReceived",
	OpRead:           "Read",
	OpSubject:        "Subject",
	OpSuperseded:     "Superseded",
	OpTo:             "To",
	OpTagged:         "Tagged",
	OpSubscribedList: "SubscribedList",
	OpUnread:         "Unread",
	OpVerified:       "Verified",
	OpReference:      "Reference",
	OpAttachments:    "Attachments",
	OpXLabel:         "XLabel",
	OpTags:           "Tags",
	OpSize:           "Size",
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// ValueKind says how a leaf's parameter is interpreted.
type ValueKind int

const (
	ValueNone   ValueKind = iota
	ValueString           // literal substring, "=" marker
	ValueRegex            // regular expression, "~" marker
	ValueGroup            // address group name, "%" marker
	ValueRange            // inclusive integer range
	ValueDate             // inclusive range of Unix seconds
)

// Unbounded is the Max of an open-ended range.
const Unbounded int64 = math.MaxInt64

// Value is the parameter of a leaf.
type Value struct {
	Kind       ValueKind
	Str        string // literal, regex source or group name
	IgnoreCase bool   // set when the literal or regex source is all lower case
	Regex      *regexp.Regexp
	Min, Max   int64
}

// inRange reports whether n lies in [Min, Max].
func (v Value) inRange(n int64) bool {
	return n >= v.Min && (v.Max == Unbounded || n <= v.Max)
}

// Node is a Leaf or a Combinator.
type Node interface {
	Negated() bool
	node()
}

// Leaf tests a single field of a record.
type Leaf struct {
	Op      Op
	Not     bool
	AllAddr bool // every address in the field must match
	IsAlias bool // only addresses known to the alias table count
	Value   Value
}

// Combinator joins two or more operands with OpAnd or OpOr.
type Combinator struct {
	Op       Op
	Not      bool
	Operands []Node
}

func (l *Leaf) Negated() bool       { return l.Not }
func (c *Combinator) Negated() bool { return c.Not }
func (*Leaf) node()                 {}
func (*Combinator) node()           {}

// Pattern is a compiled pattern.
type Pattern struct {
	Root   Node
	Source string
}

// String returns the source text the pattern was compiled from.
func (p *Pattern) String() string {
	return p.Source
}

// Equal reports whether two trees have the same shape, flags and values.
// Regexes compare by source text.
func Equal(a, b Node) bool {
	switch x := a.(type) {
	case *Leaf:
		y, ok := b.(*Leaf)
		if !ok {
			return false
		}
		return x.Op == y.Op && x.Not == y.Not && x.AllAddr == y.AllAddr &&
			x.IsAlias == y.IsAlias && x.Value.Kind == y.Value.Kind &&
			x.Value.Str == y.Value.Str && x.Value.IgnoreCase == y.Value.IgnoreCase &&
			x.Value.Min == y.Value.Min && x.Value.Max == y.Value.Max
	case *Combinator:
		y, ok := b.(*Combinator)
		if !ok || x.Op != y.Op || x.Not != y.Not || len(x.Operands) != len(y.Operands) {
			return false
		}
		for i := range x.Operands {
			if !Equal(x.Operands[i], y.Operands[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Format renders a tree one node per line, children indented by two spaces.
//
//	{And,not=1}
//	  {Subject,str=foo,icase=1}
//	  {From,regex=bar,icase=1}
func Format(n Node) string {
	var sb strings.Builder
	format(&sb, n, 0)
	return sb.String()
}

func format(sb *strings.Builder, n Node, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	switch x := n.(type) {
	case *Leaf:
		fmt.Fprintf(sb, "{%s", x.Op)
		if x.Not {
			sb.WriteString(",not=1")
		}
		if x.AllAddr {
			sb.WriteString(",alladdr=1")
		}
		if x.IsAlias {
			sb.WriteString(",isalias=1")
		}
		switch x.Value.Kind {
		case ValueString:
			fmt.Fprintf(sb, ",str=%s", x.Value.Str)
		case ValueRegex:
			fmt.Fprintf(sb, ",regex=%s", x.Value.Str)
		case ValueGroup:
			fmt.Fprintf(sb, ",group=%s", x.Value.Str)
		case ValueRange, ValueDate:
			if x.Value.Max == Unbounded {
				fmt.Fprintf(sb, ",min=%d,max=inf", x.Value.Min)
			} else {
				fmt.Fprintf(sb, ",min=%d,max=%d", x.Value.Min, x.Value.Max)
			}
		}
		if x.Value.IgnoreCase {
			sb.WriteString(",icase=1")
		}
		sb.WriteString("}\n")
	case *Combinator:
		fmt.Fprintf(sb, "{%s", x.Op)
		if x.Not {
			sb.WriteString(",not=1")
		}
		sb.WriteString("}\n")
		for _, op := range x.Operands {
			format(sb, op, depth+1)
		}
	}
}
