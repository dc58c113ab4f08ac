package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/solatis/mailscore/internal/types"
)

// ScoreRequest is the payload of Score.
//
//	{"mailbox": "inbox",
//	 "messages": [{"key": "1.host", "flags": ["read"],
//	               "envelope": {"subject": "hi", "from": [{"email": "a@b"}],
//	                            "date": "2024-03-01T10:00:00Z"},
//	               "body": {"text": "..."}}]}
//
// Scores are persisted when mailbox is set and the service has a database.
type ScoreRequest struct {
	Mailbox  string           `mapstructure:"mailbox"`
	Messages []MessagePayload `mapstructure:"messages"`
}

// MessagePayload is one message to score.
type MessagePayload struct {
	Key      string         `mapstructure:"key"`
	Envelope types.Envelope `mapstructure:"envelope"`
	Flags    []string       `mapstructure:"flags"`
	Size     int64          `mapstructure:"size"`
	Number   int            `mapstructure:"number"`
	Received time.Time      `mapstructure:"received"`
	Body     *BodyPayload   `mapstructure:"body"`
}

// BodyPayload carries decoded content for the body leaves. Messages without
// one never match ~b, ~B, ~h, ~M or ~X.
type BodyPayload struct {
	Header      []string `mapstructure:"header"`
	Text        string   `mapstructure:"text"`
	MIMETypes   []string `mapstructure:"mime_types"`
	Attachments int      `mapstructure:"attachments"`
}

// RuleRequest is the payload of Compile, AddRule and RemoveRule.
type RuleRequest struct {
	Pattern string `mapstructure:"pattern"`
	Value   string `mapstructure:"value"`
}

// decode maps a request struct onto out. Unknown keys are rejected and
// timestamps are RFC 3339 strings.
func decode(in map[string]interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(in); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}

// email builds the record the engine scores.
func (m MessagePayload) email() *types.Email {
	e := types.NewEmail(m.Key, m.Envelope)
	e.SetFlags(types.ParseFlags(strings.Join(m.Flags, ",")))
	e.SetSize(m.Size)
	e.SetNumber(m.Number)
	e.SetReceived(m.Received)
	if m.Body != nil {
		body := &types.Body{
			Header:      m.Body.Header,
			Text:        m.Body.Text,
			MIMETypes:   m.Body.MIMETypes,
			Attachments: m.Body.Attachments,
		}
		e.SetBodyLoader(func() (*types.Body, error) { return body, nil })
	}
	return e
}

// flagList renders flags as a list of names for a response.
func flagList(f types.Flags) []interface{} {
	s := f.String()
	if s == "" {
		return []interface{}{}
	}
	var out []interface{}
	for _, name := range strings.Split(s, ",") {
		out = append(out, name)
	}
	return out
}
