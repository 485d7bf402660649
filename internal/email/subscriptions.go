package email

import (
	"context"
	"regexp"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/jhillyerd/enmime"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/brandon/mailsweep/pkg/types"
)

// maxSubscriptionScan caps how many matching messages are parsed
const maxSubscriptionScan = 100

var unsubscribeKeywords = []string{
	"unsubscribe", "subscription", "optout", "notifications",
	"abmelden", "désabonnement", "cancel", "manage preferences",
}

var (
	listUnsubscribeEntry = regexp.MustCompile(`<([^>]+)>`)
	mailtoToken          = regexp.MustCompile(`(?i)mailto:\S+`)
)

// Subscriptions finds mailing-list senders in INBOX: messages whose body
// mentions "unsubscribe", one entry per sender address. Senders in skip
// (lower-cased addresses) are left out.
func (s *Scanner) Subscriptions(ctx context.Context, sess *types.Session, skip map[string]struct{}) ([]types.Subscription, error) {
	conn, err := s.dial(ctx, sess)
	if err != nil {
		return nil, err
	}
	defer s.logout(conn)

	if _, err := conn.Select(InboxFolder, true); err != nil {
		s.logger.WithError(err).Warn("Subscription scan skipped")
		return []types.Subscription{}, nil
	}

	criteria := imap.NewSearchCriteria()
	criteria.Body = []string{"unsubscribe"}
	uids, err := conn.UidSearch(criteria)
	if err != nil {
		s.logger.WithError(err).Warn("Subscription search failed")
		return []types.Subscription{}, nil
	}
	if len(uids) == 0 {
		return []types.Subscription{}, nil
	}
	if len(uids) > maxSubscriptionScan {
		uids = uids[:maxSubscriptionScan]
	}

	section := &imap.BodySectionName{Peek: true}
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- conn.UidFetch(seqSet, []imap.FetchItem{imap.FetchUid, section.FetchItem()}, messages)
	}()

	subs := []types.Subscription{}
	seen := make(map[string]struct{})
	for msg := range messages {
		literal := msg.GetBody(section)
		if literal == nil {
			continue
		}
		env, err := enmime.ReadEnvelope(literal)
		if err != nil {
			s.logger.WithError(err).WithField("uid", msg.Uid).Debug("Skipping unparsable message")
			continue
		}

		name, addr, ok := sender(env)
		if !ok {
			continue
		}
		key := strings.ToLower(addr)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if _, gone := skip[key]; gone {
			continue
		}

		method, link := ExtractUnsubscribe(env)
		subs = append(subs, types.Subscription{
			Name:   name,
			Email:  addr,
			Method: method,
			Link:   link,
		})
	}

	if err := <-done; err != nil {
		s.logger.WithError(err).Warn("Subscription fetch ended with error")
	}

	s.logger.WithFields(logrus.Fields{
		"matched":       len(uids),
		"subscriptions": len(subs),
	}).Info("Scanned subscriptions")
	return subs, nil
}

func sender(env *enmime.Envelope) (name, addr string, ok bool) {
	list, err := env.AddressList("From")
	if err != nil || len(list) == 0 || list[0].Address == "" {
		return "", "", false
	}
	name = strings.TrimSpace(list[0].Name)
	if name == "" {
		name = list[0].Address
	}
	return name, list[0].Address, true
}

// ExtractUnsubscribe sniffs an unsubscribe target from the List-Unsubscribe
// header, then HTML anchors, then mailto links in the text part.
func ExtractUnsubscribe(env *enmime.Envelope) (types.UnsubscribeMethod, string) {
	if method, link := fromListUnsubscribe(env.GetHeader("List-Unsubscribe")); link != "" {
		return method, link
	}
	if env.HTML != "" {
		if method, link := anchorLink(env.HTML); link != "" {
			return method, link
		}
	}
	return textMailto(env.Text)
}

func fromListUnsubscribe(header string) (types.UnsubscribeMethod, string) {
	var mailto string
	for _, m := range listUnsubscribeEntry.FindAllStringSubmatch(header, -1) {
		link := strings.TrimSpace(m[1])
		switch linkMethod(link) {
		case types.UnsubscribeHTTP:
			return types.UnsubscribeHTTP, link
		case types.UnsubscribeMailto:
			if mailto == "" {
				mailto = link
			}
		}
	}
	if mailto != "" {
		return types.UnsubscribeMailto, mailto
	}
	return "", ""
}

func anchorLink(doc string) (types.UnsubscribeMethod, string) {
	z := html.NewTokenizer(strings.NewReader(doc))
	var (
		href     string
		inAnchor bool
		text     strings.Builder
	)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return "", ""
		case html.StartTagToken:
			tok := z.Token()
			if tok.DataAtom != atom.A {
				continue
			}
			inAnchor, href = true, ""
			text.Reset()
			for _, a := range tok.Attr {
				if strings.EqualFold(a.Key, "href") {
					href = strings.TrimSpace(a.Val)
				}
			}
		case html.TextToken:
			if inAnchor {
				text.Write(z.Text())
			}
		case html.EndTagToken:
			tok := z.Token()
			if tok.DataAtom != atom.A || !inAnchor {
				continue
			}
			inAnchor = false
			if href != "" && (hasKeyword(href) || hasKeyword(text.String())) {
				return linkMethod(href), href
			}
		}
	}
}

func textMailto(text string) (types.UnsubscribeMethod, string) {
	for _, m := range mailtoToken.FindAllString(text, -1) {
		if hasKeyword(m) {
			return types.UnsubscribeMailto, m
		}
	}
	return "", ""
}

func linkMethod(link string) types.UnsubscribeMethod {
	lower := strings.ToLower(link)
	switch {
	case strings.HasPrefix(lower, "mailto:"):
		return types.UnsubscribeMailto
	case strings.HasPrefix(lower, "http"):
		return types.UnsubscribeHTTP
	}
	return types.UnsubscribeUnknown
}

func hasKeyword(s string) bool {
	lower := strings.ToLower(strings.TrimSpace(s))
	for _, kw := range unsubscribeKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
