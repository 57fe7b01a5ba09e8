// Package notify delivers finished reports: by SMTP for scheduled runs, or
// to a file or stdout for previews.
package notify

import (
	"bytes"
	"context"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/teranos/batchwatch/errors"
)

// Message is one report mail.
type Message struct {
	From    string
	To      []string
	Cc      []string
	Subject string
	HTML    []byte
	Date    time.Time
}

// Recipients returns every envelope recipient, To before Cc.
func (m Message) Recipients() []string {
	out := make([]string, 0, len(m.To)+len(m.Cc))
	out = append(out, m.To...)
	return append(out, m.Cc...)
}

// Notifier delivers a report.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Compose renders msg as an RFC 5322 message with a single quoted-printable
// HTML part.
func Compose(msg Message) ([]byte, error) {
	from, err := mail.ParseAddress(msg.From)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid sender %q", msg.From)
	}
	to, err := parseAddresses(msg.To)
	if err != nil {
		return nil, err
	}
	if len(to) == 0 {
		return nil, errors.New("message has no recipients")
	}
	cc, err := parseAddresses(msg.Cc)
	if err != nil {
		return nil, err
	}

	var h mail.Header
	date := msg.Date
	if date.IsZero() {
		date = time.Now()
	}
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", to)
	if len(cc) > 0 {
		h.SetAddressList("Cc", cc)
	}
	h.SetSubject(msg.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, errors.Wrap(err, "failed to generate message id")
	}
	h.SetContentType("text/html", map[string]string{"charset": "utf-8"})
	h.Set("Content-Transfer-Encoding", "quoted-printable")

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create message writer")
	}
	if _, err := w.Write(msg.HTML); err != nil {
		return nil, errors.Wrap(err, "failed to write message body")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to finish message")
	}
	return buf.Bytes(), nil
}

func parseAddresses(list []string) ([]*mail.Address, error) {
	out := make([]*mail.Address, 0, len(list))
	for _, s := range list {
		a, err := mail.ParseAddress(s)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid recipient %q", s)
		}
		out = append(out, a)
	}
	return out, nil
}
