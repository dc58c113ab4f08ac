// internal/pattern/leaves.go
package pattern

import (
	"strings"

	"github.com/solatis/mailscore/internal/types"
)

/*
 * Leaf predicates.
 *
 * One case per leaf op. String-valued leaves go through matchString, which
 * dispatches on the value kind: literal substring, regex, or group lookup.
 *
 * Address lists: a leaf matches when any address matches, or, with the
 * all-addresses bit, when every address matches. With the all-addresses bit
 * an empty list matches. With the alias bit only addresses in the alias table
 * are considered.
 *
 * Body leaves test one line at a time, so "^" and "$" anchor to lines.
 */

func (e *Evaluator) evalLeaf(l *Leaf, msg Message, mode AddressMode, cache *Cache) bool {
	env := msg.Envelope()
	flags := msg.Flags()

	switch l.Op {
	case OpAll:
		return true

	case OpSubject:
		return e.matchString(l.Value, env.Subject)
	case OpMessageID:
		return e.matchString(l.Value, env.MessageID)
	case OpXLabel:
		return e.matchString(l.Value, env.XLabel)
	case OpSpam:
		return e.matchString(l.Value, env.Spam)
	case OpTags:
		return e.matchString(l.Value, strings.Join(env.Tags, " "))
	case OpReference:
		return e.matchAny(l.Value, env.References) || e.matchAny(l.Value, env.InReplyTo)

	case OpFrom:
		return e.matchAddresses(l, mode, env.From)
	case OpSender:
		return e.matchAddresses(l, mode, env.Sender)
	case OpTo:
		return e.matchAddresses(l, mode, env.To)
	case OpCc:
		return e.matchAddresses(l, mode, env.Cc)
	case OpRecipient:
		return e.matchAddresses(l, mode, env.To, env.Cc)
	case OpAddress:
		return e.matchAddresses(l, mode, env.From, env.Sender, env.To, env.Cc)

	case OpList, OpSubscribedList, OpPersonalRecip, OpPersonalFrom:
		if v, ok := cache.lookup(l.Op, l.AllAddr); ok {
			return v
		}
		v := e.classify(l, env)
		cache.store(l.Op, l.AllAddr, v)
		return v

	case OpDate:
		return l.Value.inRange(env.Date.Unix())
	case OpDateReceived:
		return l.Value.inRange(msg.Received().Unix())
	case OpMessage:
		return l.Value.inRange(int64(msg.Number()))
	case OpScore:
		return l.Value.inRange(int64(msg.Score()))
	case OpSize:
		return l.Value.inRange(msg.Size())

	case OpBody, OpWholeMsg, OpHeader, OpMIMEType, OpAttachments:
		body, err := cache.loadBody(msg)
		if err != nil || body == nil {
			return false
		}
		return e.matchBody(l, body)

	case OpDeleted:
		return flags.Has(types.FlagDeleted)
	case OpFlagged:
		return flags.Has(types.FlagFlagged)
	case OpRead:
		return flags.Has(types.FlagRead)
	case OpUnread:
		return !flags.Has(types.FlagRead)
	case OpNew:
		return !flags.Has(types.FlagRead) && !flags.Has(types.FlagOld)
	case OpOld:
		return !flags.Has(types.FlagRead) && flags.Has(types.FlagOld)
	case OpReplied:
		return flags.Has(types.FlagReplied)
	case OpTagged:
		return flags.Has(types.FlagTagged)
	case OpSuperseded:
		return flags.Has(types.FlagSuperseded)
	case OpExpired:
		return flags.Has(types.FlagExpired)
	case OpSigned:
		return flags.Has(types.FlagSigned)
	case OpEncrypted:
		return flags.Has(types.FlagEncrypted)
	case OpVerified:
		return flags.Has(types.FlagVerified)
	case OpPGPKey:
		return flags.Has(types.FlagPGPKey)
	}
	return false
}

func (e *Evaluator) matchString(v Value, s string) bool {
	switch v.Kind {
	case ValueString:
		if v.IgnoreCase {
			return strings.Contains(strings.ToLower(s), v.Str)
		}
		return strings.Contains(s, v.Str)
	case ValueRegex:
		return v.Regex.MatchString(s)
	case ValueGroup:
		return e.dir.InGroup(v.Str, s)
	}
	return false
}

func (e *Evaluator) matchAny(v Value, ss []string) bool {
	for _, s := range ss {
		if e.matchString(v, s) {
			return true
		}
	}
	return false
}

func (e *Evaluator) matchAddresses(l *Leaf, mode AddressMode, lists ...[]types.Address) bool {
	for _, list := range lists {
		for _, a := range list {
			ok := (!l.IsAlias || e.dir.IsAlias(a)) &&
				(e.matchString(l.Value, a.Email) ||
					(mode == MatchFullAddress && a.Name != "" && e.matchString(l.Value, a.Name)))
			if ok && !l.AllAddr {
				return true
			}
			if !ok && l.AllAddr {
				return false
			}
		}
	}
	return l.AllAddr
}

// classify evaluates the record-only address leaves ~l ~u ~p ~P.
func (e *Evaluator) classify(l *Leaf, env *types.Envelope) bool {
	switch l.Op {
	case OpList:
		return everyOrAny(l.AllAddr, e.dir.IsList, env.To, env.Cc)
	case OpSubscribedList:
		return everyOrAny(l.AllAddr, e.dir.IsSubscribed, env.To, env.Cc)
	case OpPersonalRecip:
		return everyOrAny(l.AllAddr, e.dir.IsMe, env.To, env.Cc)
	case OpPersonalFrom:
		return everyOrAny(l.AllAddr, e.dir.IsMe, env.From)
	}
	return false
}

func everyOrAny(all bool, pred func(types.Address) bool, lists ...[]types.Address) bool {
	for _, list := range lists {
		for _, a := range list {
			ok := pred(a)
			if ok && !all {
				return true
			}
			if !ok && all {
				return false
			}
		}
	}
	return all
}

func (e *Evaluator) matchBody(l *Leaf, body *types.Body) bool {
	switch l.Op {
	case OpMIMEType:
		return e.matchAny(l.Value, body.MIMETypes)
	case OpAttachments:
		return l.Value.inRange(int64(body.Attachments))
	case OpHeader:
		return e.matchAny(l.Value, body.Header)
	case OpBody:
		return e.matchLines(l.Value, body.Text)
	case OpWholeMsg:
		return e.matchAny(l.Value, body.Header) || e.matchLines(l.Value, body.Text)
	}
	return false
}

func (e *Evaluator) matchLines(v Value, text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if e.matchString(v, strings.TrimSuffix(line, "\r")) {
			return true
		}
	}
	return false
}
