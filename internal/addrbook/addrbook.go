// Package addrbook answers the address questions patterns ask: group
// membership, alias reverse lookup, mailing list classification and which
// addresses belong to the user.
package addrbook

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/emersion/go-message/mail"
	"github.com/solatis/mailscore/internal/core/config"
	"github.com/solatis/mailscore/internal/types"
)

type group struct {
	addrs    map[string]bool
	patterns []*regexp.Regexp
}

// Book holds groups, aliases, list and subscription patterns and alternates.
// Address comparisons are case-insensitive.
type Book struct {
	groups     map[string]*group
	aliases    map[string][]types.Address
	lists      []*regexp.Regexp
	subscribed []*regexp.Regexp
	alternates []*regexp.Regexp
}

// New creates an empty book.
func New() *Book {
	return &Book{
		groups:  make(map[string]*group),
		aliases: make(map[string][]types.Address),
	}
}

// FromConfig builds a book from the addressbook configuration section.
func FromConfig(cfg config.AddressBookConfig) (*Book, error) {
	b := New()
	for name, g := range cfg.Groups {
		for _, a := range g.Addresses {
			b.AddGroupAddress(name, a)
		}
		for _, rx := range g.Patterns {
			if err := b.AddGroupPattern(name, rx); err != nil {
				return nil, err
			}
		}
	}
	for name, addrs := range cfg.Aliases {
		for _, a := range addrs {
			b.AddAlias(name, ParseAddress(a))
		}
	}
	for _, rx := range cfg.Lists {
		if err := b.AddList(rx); err != nil {
			return nil, err
		}
	}
	for _, rx := range cfg.Subscribe {
		if err := b.Subscribe(rx); err != nil {
			return nil, err
		}
	}
	for _, rx := range cfg.Alternates {
		if err := b.AddAlternate(rx); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *Book) group(name string) *group {
	g, ok := b.groups[name]
	if !ok {
		g = &group{addrs: make(map[string]bool)}
		b.groups[name] = g
	}
	return g
}

// AddGroupAddress adds an exact address to a group, creating the group.
func (b *Book) AddGroupAddress(name, addr string) {
	b.group(name).addrs[strings.ToLower(ParseAddress(addr).Email)] = true
}

// AddGroupPattern adds a regex to a group, creating the group.
func (b *Book) AddGroupPattern(name, expr string) error {
	re, err := compileList(expr)
	if err != nil {
		return err
	}
	g := b.group(name)
	g.patterns = append(g.patterns, re)
	return nil
}

// RemoveGroupAddress removes an exact address from a group. A group left
// with no members is deleted.
func (b *Book) RemoveGroupAddress(name, addr string) {
	g, ok := b.groups[name]
	if !ok {
		return
	}
	delete(g.addrs, strings.ToLower(ParseAddress(addr).Email))
	b.pruneGroup(name, g)
}

// RemoveGroupPattern removes a regex previously added with AddGroupPattern.
func (b *Book) RemoveGroupPattern(name, expr string) {
	g, ok := b.groups[name]
	if !ok {
		return
	}
	g.patterns = removePattern(g.patterns, expr)
	b.pruneGroup(name, g)
}

func (b *Book) pruneGroup(name string, g *group) {
	if len(g.addrs) == 0 && len(g.patterns) == 0 {
		delete(b.groups, name)
	}
}

// RemoveGroup deletes a group; "*" deletes every group.
func (b *Book) RemoveGroup(name string) {
	if name == "*" {
		b.groups = make(map[string]*group)
		return
	}
	delete(b.groups, name)
}

// AddAlias appends addresses to an alias.
func (b *Book) AddAlias(name string, addrs ...types.Address) {
	b.aliases[name] = append(b.aliases[name], addrs...)
}

// RemoveAlias deletes an alias; "*" deletes every alias.
func (b *Book) RemoveAlias(name string) {
	if name == "*" {
		b.aliases = make(map[string][]types.Address)
		return
	}
	delete(b.aliases, name)
}

// Alias returns the addresses of an alias.
func (b *Book) Alias(name string) ([]types.Address, bool) {
	a, ok := b.aliases[name]
	return a, ok
}

// AddList registers a mailing list pattern.
func (b *Book) AddList(expr string) error {
	re, err := compileList(expr)
	if err != nil {
		return err
	}
	b.lists = append(b.lists, re)
	return nil
}

// Subscribe registers a subscribed list pattern. Subscribed lists are also lists.
func (b *Book) Subscribe(expr string) error {
	re, err := compileList(expr)
	if err != nil {
		return err
	}
	b.subscribed = append(b.subscribed, re)
	return nil
}

// AddAlternate registers a pattern for addresses that belong to the user.
func (b *Book) AddAlternate(expr string) error {
	re, err := compileList(expr)
	if err != nil {
		return err
	}
	b.alternates = append(b.alternates, re)
	return nil
}

// RemoveList drops a list pattern; "*" drops every list pattern.
func (b *Book) RemoveList(expr string) {
	b.lists = removePattern(b.lists, expr)
}

// Unsubscribe drops a subscribed pattern; "*" drops every one.
func (b *Book) Unsubscribe(expr string) {
	b.subscribed = removePattern(b.subscribed, expr)
}

// RemoveAlternate drops an alternate pattern; "*" drops every one.
func (b *Book) RemoveAlternate(expr string) {
	b.alternates = removePattern(b.alternates, expr)
}

// InGroup reports whether s is a member address of group or matches one of
// its patterns. Unknown groups have no members.
func (b *Book) InGroup(name, s string) bool {
	g, ok := b.groups[name]
	if !ok {
		return false
	}
	if g.addrs[strings.ToLower(s)] {
		return true
	}
	return anyMatch(g.patterns, s)
}

// IsAlias reports whether any alias expands to addr.
func (b *Book) IsAlias(addr types.Address) bool {
	for _, addrs := range b.aliases {
		for _, a := range addrs {
			if strings.EqualFold(a.Email, addr.Email) {
				return true
			}
		}
	}
	return false
}

// IsList reports whether addr is a known or subscribed mailing list.
func (b *Book) IsList(addr types.Address) bool {
	return anyMatch(b.lists, addr.Email) || anyMatch(b.subscribed, addr.Email)
}

// IsSubscribed reports whether addr is a subscribed mailing list.
func (b *Book) IsSubscribed(addr types.Address) bool {
	return anyMatch(b.subscribed, addr.Email)
}

// IsMe reports whether addr matches an alternate.
func (b *Book) IsMe(addr types.Address) bool {
	return anyMatch(b.alternates, addr.Email)
}

func compileList(expr string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)" + expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidRegex, expr)
	}
	return re, nil
}

func removePattern(res []*regexp.Regexp, expr string) []*regexp.Regexp {
	if expr == "*" {
		return nil
	}
	out := res[:0]
	for _, re := range res {
		if re.String() != "(?i)"+expr {
			out = append(out, re)
		}
	}
	return out
}

func anyMatch(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// ParseAddress splits "Name <email>" into its parts. Text that does not
// parse as an RFC 5322 address is taken as a bare email.
func ParseAddress(s string) types.Address {
	s = strings.TrimSpace(s)
	a, err := mail.ParseAddress(s)
	if err != nil {
		return types.Address{Email: s}
	}
	return types.Address{Name: a.Name, Email: a.Address}
}
