// internal/pattern/evaluate_test.go
package pattern

import (
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/solatis/mailscore/internal/types"
)

// stubMessage is a Message that counts envelope and body reads.
type stubMessage struct {
	env      types.Envelope
	flags    types.Flags
	score    int
	size     int64
	number   int
	received time.Time
	body     *types.Body

	envReads  int
	bodyReads int
}

func (m *stubMessage) Envelope() *types.Envelope { m.envReads++; return &m.env }
func (m *stubMessage) Flags() types.Flags        { return m.flags }
func (m *stubMessage) Score() int                { return m.score }
func (m *stubMessage) Size() int64               { return m.size }
func (m *stubMessage) Number() int               { return m.number }
func (m *stubMessage) Received() time.Time       { return m.received }
func (m *stubMessage) Body() (*types.Body, error) {
	m.bodyReads++
	if m.body == nil {
		return nil, types.ErrNoBody
	}
	return m.body, nil
}

// stubDirectory answers from fixed sets and counts list lookups.
type stubDirectory struct {
	groups  map[string][]string
	aliases map[string]bool
	lists   map[string]bool
	me      map[string]bool

	listCalls int
}

func (d *stubDirectory) InGroup(group, s string) bool {
	for _, m := range d.groups[group] {
		if strings.EqualFold(m, s) {
			return true
		}
	}
	return false
}
func (d *stubDirectory) IsAlias(a types.Address) bool { return d.aliases[a.Email] }
func (d *stubDirectory) IsList(a types.Address) bool {
	d.listCalls++
	return d.lists[a.Email]
}
func (d *stubDirectory) IsSubscribed(a types.Address) bool { return false }
func (d *stubDirectory) IsMe(a types.Address) bool         { return d.me[a.Email] }

func addr(name, email string) types.Address { return types.Address{Name: name, Email: email} }

func sampleMessage() *stubMessage {
	return &stubMessage{
		env: types.Envelope{
			Subject:    "Quarterly Report",
			From:       []types.Address{addr("Alice Smith", "alice@example.com")},
			To:         []types.Address{addr("", "bob@example.com"), addr("Team", "team@lists.example.com")},
			Cc:         []types.Address{addr("Carol", "carol@example.org")},
			Date:       time.Date(2024, time.March, 14, 9, 30, 0, 0, time.UTC),
			MessageID:  "<abc123@example.com>",
			References: []string{"<parent@example.com>"},
			XLabel:     "work",
			Tags:       []string{"inbox", "important"},
		},
		flags:    types.FlagFlagged | types.FlagOld,
		score:    42,
		size:     20 * 1024,
		number:   7,
		received: time.Date(2024, time.March, 14, 9, 31, 0, 0, time.UTC),
		body: &types.Body{
			Header:      []string{"Subject: Quarterly Report", "X-Mailer: test"},
			Text:        "Hello Bob,\nthe numbers are attached.\nRegards",
			MIMETypes:   []string{"multipart/mixed", "text/plain", "application/pdf"},
			Attachments: 1,
		},
	}
}

func TestEvaluate_Leaves(t *testing.T) {
	dir := &stubDirectory{
		groups:  map[string][]string{"friends": {"alice@example.com"}},
		aliases: map[string]bool{"alice@example.com": true},
		lists:   map[string]bool{"team@lists.example.com": true},
		me:      map[string]bool{"bob@example.com": true},
	}
	ev := NewEvaluator(dir)

	tests := []struct {
		text string
		want bool
	}{
		{"~A", true},
		{"=s report", true},
		{"=s Report", true},
		{"=s REPORT", false},
		{"~s ^quarterly", true},
		{"~s ^Report", false},
		{"~f alice", true},
		{"~f smith", false},
		{"~f mallory", false},
		{"%f friends", true},
		{"%f enemies", false},
		{"@~f alice", true},
		{"@~c carol", false},
		{"~t team", true},
		{"^~t example.com", true},
		{"^~t bob", false},
		{"~c carol", true},
		{"~C carol", true},
		{"~L alice", true},
		{"~e alice", false},
		{"^~e alice", true},
		{"~l", true},
		{"^~l", false},
		{"~p", true},
		{"~P", false},
		{"~u", false},
		{"~i abc123", true},
		{"~x parent", true},
		{"~y work", true},
		{"~Y important", true},
		{"~F", true},
		{"~D", false},
		{"~O", true},
		{"~N", false},
		{"~U", true},
		{"~R", false},
		{"~n 40-50", true},
		{"~n >42", false},
		{"~m 7", true},
		{"~z >10K", true},
		{"~z <10K", false},
		{"~d 14/3/2024", true},
		{"~d -13/3/2024", false},
		{"~r 14/3/2024-15/3/2024", true},
		{"~b numbers", true},
		{"~b ^the", true},
		{"~b x-mailer", false},
		{"~h x-mailer", true},
		{"~B x-mailer", true},
		{"~M application/pdf", true},
		{"~X 1", true},
		{"~X 2-", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			p, err := Compile(tt.text, ClassAll, WithClock(fixedClock))
			if err != nil {
				t.Fatalf("Compile(%q) error = %v, want nil", tt.text, err)
			}
			if got := ev.Evaluate(p, sampleMessage(), MatchMailbox, nil); got != tt.want {
				t.Errorf("Evaluate(%q) = %v, want %v", tt.text, got, tt.want)
			}
			negated := MustCompile("!("+tt.text+")", ClassAll, WithClock(fixedClock))
			if got := ev.Evaluate(negated, sampleMessage(), MatchMailbox, nil); got != !tt.want {
				t.Errorf("Evaluate(!(%q)) = %v, want %v", tt.text, got, !tt.want)
			}
		})
	}
}

func TestEvaluate_FullAddressMode(t *testing.T) {
	p := MustCompile("~f smith", ClassAll)
	msg := sampleMessage()

	if Evaluate(p, msg, MatchMailbox, nil) {
		t.Errorf("mailbox mode matched the personal name")
	}
	if !Evaluate(p, msg, MatchFullAddress, nil) {
		t.Errorf("full address mode did not match the personal name")
	}
}

func TestEvaluate_AllAddressesEmptyList(t *testing.T) {
	msg := sampleMessage()
	if !Evaluate(MustCompile("^~e anyone", ClassAll), msg, MatchMailbox, nil) {
		t.Errorf("all-addresses leaf over an empty list = false, want true")
	}
	if Evaluate(MustCompile("~e anyone", ClassAll), msg, MatchMailbox, nil) {
		t.Errorf("any-address leaf over an empty list = true, want false")
	}
}

func TestEvaluate_Combinators(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"=s report ~f alice", true},
		{"=s report ~f mallory", false},
		{"=s nothing | ~f alice", true},
		{"=s nothing | ~f mallory", false},
		{"!(=s nothing | ~f mallory)", true},
		{"=s report =s nothing | ~F", true},
		{"!(=s report ~F)", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			p := MustCompile(tt.text, ClassAll)
			if got := Evaluate(p, sampleMessage(), MatchMailbox, nil); got != tt.want {
				t.Errorf("Evaluate(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestEvaluate_ShortCircuit(t *testing.T) {
	msg := sampleMessage()

	Evaluate(MustCompile("=s nothing =s report", ClassAll), msg, MatchMailbox, nil)
	if msg.envReads != 1 {
		t.Errorf("AND read the envelope %d times, want 1", msg.envReads)
	}

	msg.envReads = 0
	Evaluate(MustCompile("=s report | =s nothing", ClassAll), msg, MatchMailbox, nil)
	if msg.envReads != 1 {
		t.Errorf("OR read the envelope %d times, want 1", msg.envReads)
	}
}

func TestEvaluate_CacheMemoises(t *testing.T) {
	dir := &stubDirectory{lists: map[string]bool{"team@lists.example.com": true}}
	ev := NewEvaluator(dir)
	msg := sampleMessage()
	cache := NewCache()

	p := MustCompile("~l", ClassAll)
	first := ev.Evaluate(p, msg, MatchMailbox, cache)
	calls := dir.listCalls
	second := ev.Evaluate(p, msg, MatchMailbox, cache)

	if first != second {
		t.Errorf("cached result = %v, want %v", second, first)
	}
	if dir.listCalls != calls {
		t.Errorf("list lookups after cached evaluation = %d, want %d", dir.listCalls, calls)
	}

	// The negated form shares the cached, un-negated result.
	if got := ev.Evaluate(MustCompile("!~l", ClassAll), msg, MatchMailbox, cache); got != !first {
		t.Errorf("Evaluate(!~l) = %v, want %v", got, !first)
	}

	// The all-addresses variant has its own slot.
	ev.Evaluate(MustCompile("^~l", ClassAll), msg, MatchMailbox, cache)
	if dir.listCalls == calls {
		t.Errorf("all-addresses variant was served from the any-address slot")
	}
}

func TestEvaluate_BodyLoadedOnce(t *testing.T) {
	msg := sampleMessage()
	cache := NewCache()

	Evaluate(MustCompile("~b numbers", ClassAll), msg, MatchMailbox, cache)
	Evaluate(MustCompile("~h mailer ~M pdf", ClassAll), msg, MatchMailbox, cache)
	if msg.bodyReads != 1 {
		t.Errorf("body loaded %d times, want 1", msg.bodyReads)
	}
}

func TestEvaluate_MissingBody(t *testing.T) {
	msg := sampleMessage()
	msg.body = nil
	if Evaluate(MustCompile("~b numbers", ClassAll), msg, MatchMailbox, nil) {
		t.Errorf("body leaf matched a record without a body")
	}
	if !Evaluate(MustCompile("!~b numbers", ClassAll), msg, MatchMailbox, nil) {
		t.Errorf("negated body leaf did not match a record without a body")
	}
}

// Property-based test: repeated evaluation with one cache is stable
func TestEvaluate_PropertyIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("evaluating twice with one cache gives one answer", prop.ForAll(
		func(word string, negate bool) bool {
			text := "=s " + word + " | ~l"
			if negate {
				text = "!(" + text + ")"
			}
			p := MustCompile(text, ClassAll)
			msg := sampleMessage()
			msg.env.Subject = "about " + word
			cache := NewCache()
			first := Evaluate(p, msg, MatchMailbox, cache)
			second := Evaluate(p, msg, MatchMailbox, cache)
			return first == second && first == !negate
		},
		gen.Identifier(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
