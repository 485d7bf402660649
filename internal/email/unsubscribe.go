package email

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/emersion/go-message/mail"
)

const (
	defaultUnsubscribeSubject = "Unsubscribe"
	defaultUnsubscribeBody    = "Please remove this address from your mailing list."
)

// ParseMailto turns a mailto: link into the message that answers it.
// Subject and body default when the link carries none.
func ParseMailto(link string) (*EmailMessage, error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return nil, fmt.Errorf("invalid mailto link: %w", err)
	}
	if !strings.EqualFold(u.Scheme, "mailto") {
		return nil, fmt.Errorf("not a mailto link: %q", link)
	}

	target := u.Opaque
	if target == "" {
		target = u.Path
	}
	if unescaped, err := url.PathUnescape(target); err == nil {
		target = unescaped
	}

	query := u.Query()
	if target == "" {
		target = query.Get("to")
	}

	var to []string
	for _, addr := range strings.Split(target, ",") {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		parsed, err := mail.ParseAddress(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid mailto recipient %q: %w", addr, err)
		}
		to = append(to, parsed.Address)
	}
	if len(to) == 0 {
		return nil, fmt.Errorf("mailto link has no recipient: %q", link)
	}

	msg := &EmailMessage{
		To:       to,
		Subject:  query.Get("subject"),
		BodyText: query.Get("body"),
	}
	if msg.Subject == "" {
		msg.Subject = defaultUnsubscribeSubject
	}
	if msg.BodyText == "" {
		msg.BodyText = defaultUnsubscribeBody
	}
	return msg, nil
}
