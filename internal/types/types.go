// Package types provides the email record model shared across mailscore components.
//
// The record is deliberately storage-agnostic: the mailbox package fills it
// from Maildir files, the api package from request payloads, and the pattern
// and score packages only read and mutate it through small interfaces.
package types

import (
	"strings"
	"time"
)

// MessageID is a UUIDv7 identifier for a stored score row.
type MessageID string

// APIKeyID is a UUIDv7 identifier for an API key row.
type APIKeyID string

// Address is one mailbox in an address header.
type Address struct {
	Name  string `mapstructure:"name"`
	Email string `mapstructure:"email"`
}

// String renders the address as "Name <email>", or the bare email without a name.
func (a Address) String() string {
	if a.Name == "" {
		return a.Email
	}
	return a.Name + " <" + a.Email + ">"
}

// Envelope holds the header fields leaf predicates test against.
type Envelope struct {
	Subject    string    `mapstructure:"subject"`
	From       []Address `mapstructure:"from"`
	Sender     []Address `mapstructure:"sender"`
	To         []Address `mapstructure:"to"`
	Cc         []Address `mapstructure:"cc"`
	ReplyTo    []Address `mapstructure:"reply_to"`
	Date       time.Time `mapstructure:"date"`
	MessageID  string    `mapstructure:"message_id"`
	References []string  `mapstructure:"references"`
	InReplyTo  []string  `mapstructure:"in_reply_to"`
	XLabel     string    `mapstructure:"x_label"`
	Spam       string    `mapstructure:"spam"`
	Tags       []string  `mapstructure:"tags"`
}

// Flags is the state bitmask of a record.
type Flags uint32

const (
	FlagDeleted Flags = 1 << iota
	FlagFlagged
	FlagRead
	FlagOld
	FlagReplied
	FlagTagged
	FlagSuperseded
	FlagExpired
	FlagSigned
	FlagEncrypted
	FlagVerified
	FlagPGPKey
)

// Has reports whether every bit in f2 is set.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagDeleted, "deleted"},
	{FlagFlagged, "flagged"},
	{FlagRead, "read"},
	{FlagOld, "old"},
	{FlagReplied, "replied"},
	{FlagTagged, "tagged"},
	{FlagSuperseded, "superseded"},
	{FlagExpired, "expired"},
	{FlagSigned, "signed"},
	{FlagEncrypted, "encrypted"},
	{FlagVerified, "verified"},
	{FlagPGPKey, "pgpkey"},
}

// String lists the set flags separated by commas.
func (f Flags) String() string {
	var names []string
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			names = append(names, fn.name)
		}
	}
	return strings.Join(names, ",")
}

// ParseFlags is the inverse of Flags.String. Unknown names are ignored.
func ParseFlags(s string) Flags {
	var f Flags
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		for _, fn := range flagNames {
			if fn.name == name {
				f |= fn.flag
			}
		}
	}
	return f
}

// Body is the decoded content of a message, loaded on demand.
type Body struct {
	// Header holds unfolded "Name: value" lines in message order.
	Header []string
	// Text is the decoded text of the first text part, HTML rendered to text.
	Text string
	// MIMETypes lists the content type of every part.
	MIMETypes []string
	// Attachments counts non-inline parts.
	Attachments int
}

// Score sentinels. A matching rule carrying either value sets the score and
// stops further rule evaluation.
const (
	ScoreMax = 9999
	ScoreMin = -9999
)
