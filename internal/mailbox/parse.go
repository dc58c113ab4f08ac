package mailbox

import (
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/k3a/html2text"

	"github.com/solatis/mailscore/internal/types"
)

// ReadEnvelope parses the header of a message into an envelope. The body is
// not read.
func ReadEnvelope(r io.Reader) (types.Envelope, error) {
	entity, err := readEntity(r)
	if err != nil {
		return types.Envelope{}, err
	}
	return envelopeFromHeader(mail.Header{Header: entity.Header}), nil
}

// ReadBody parses a whole message into the content body leaves test.
// Text parts are concatenated; an HTML-only message is converted to text.
func ReadBody(r io.Reader) (*types.Body, error) {
	entity, err := readEntity(r)
	if err != nil {
		return nil, err
	}

	body := &types.Body{}
	fields := entity.Header.Fields()
	for fields.Next() {
		body.Header = append(body.Header, fields.Key()+": "+fields.Value())
	}

	var plain, html []string
	err = entity.Walk(func(path []int, part *message.Entity, err error) error {
		if err != nil {
			return err
		}
		mediaType, _, _ := part.Header.ContentType()
		if mediaType == "" {
			mediaType = "text/plain"
		}
		body.MIMETypes = append(body.MIMETypes, mediaType)
		if strings.HasPrefix(mediaType, "multipart/") {
			return nil
		}

		disp, _, _ := part.Header.ContentDisposition()
		if disp == "attachment" || (len(path) > 0 && !strings.HasPrefix(mediaType, "text/")) {
			body.Attachments++
			return nil
		}

		content, err := io.ReadAll(part.Body)
		if err != nil {
			return fmt.Errorf("failed to read %s part: %w", mediaType, err)
		}
		switch mediaType {
		case "text/plain":
			plain = append(plain, string(content))
		case "text/html":
			html = append(html, string(content))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch {
	case len(plain) > 0:
		body.Text = strings.Join(plain, "\n")
	case len(html) > 0:
		body.Text = html2text.HTML2Text(strings.Join(html, "\n"))
	}
	return body, nil
}

func readEntity(r io.Reader) (*message.Entity, error) {
	entity, err := message.Read(r)
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}
	return entity, nil
}

func envelopeFromHeader(h mail.Header) types.Envelope {
	var env types.Envelope

	env.Subject, _ = h.Subject()
	env.Date, _ = h.Date()
	env.From = addressList(h, "From")
	env.Sender = addressList(h, "Sender")
	env.To = addressList(h, "To")
	env.Cc = addressList(h, "Cc")
	env.ReplyTo = addressList(h, "Reply-To")

	if id, err := h.MessageID(); err == nil && id != "" {
		env.MessageID = "<" + id + ">"
	}
	env.References = msgIDList(h, "References")
	env.InReplyTo = msgIDList(h, "In-Reply-To")

	env.XLabel = h.Get("X-Label")
	env.Spam = h.Get("X-Spam-Status")
	if env.Spam == "" {
		env.Spam = h.Get("X-Spam-Flag")
	}
	for _, kw := range strings.FieldsFunc(h.Get("Keywords")+","+h.Get("X-Keywords"), func(r rune) bool {
		return r == ',' || r == ' '
	}) {
		env.Tags = append(env.Tags, kw)
	}
	return env
}

func addressList(h mail.Header, key string) []types.Address {
	list, err := h.AddressList(key)
	if err != nil {
		return nil
	}
	out := make([]types.Address, 0, len(list))
	for _, a := range list {
		out = append(out, types.Address{Name: a.Name, Email: a.Address})
	}
	return out
}

func msgIDList(h mail.Header, key string) []string {
	ids, err := h.MsgIDList(key)
	if err != nil {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = "<" + id + ">"
	}
	return out
}
