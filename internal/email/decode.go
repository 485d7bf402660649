package email

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"

	"github.com/brandon/mailsweep/pkg/types"
)

const (
	maxTextLen      = 200
	maxMessageIDLen = 100

	noSubject     = "No Subject"
	unknownSender = "Unknown Sender"
	unknownDate   = "Unknown Date"
)

// headerFields are the only header lines requested when scanning
var headerFields = []string{"FROM", "SUBJECT", "DATE", "MESSAGE-ID"}

// dateLayouts are tried in order; the first match wins
var dateLayouts = []string{
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05",
	"2 Jan 2006 15:04:05",
}

var (
	zoneComment = regexp.MustCompile(`\([A-Za-z]+\)`)
	spaceRun    = regexp.MustCompile(`\s+`)
)

// DecodeHeaders turns a raw header block into a MessageRecord. Encoded words
// are decoded per field, falling back to the raw value. An error is returned
// only when the block itself cannot be parsed.
func DecodeHeaders(uid uint32, raw []byte, loc *time.Location) (types.MessageRecord, error) {
	if !bytes.HasSuffix(raw, []byte("\r\n\r\n")) && !bytes.HasSuffix(raw, []byte("\n\n")) {
		raw = append(append([]byte{}, bytes.TrimRight(raw, "\r\n")...), "\r\n\r\n"...)
	}

	h, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return types.MessageRecord{}, fmt.Errorf("%w: uid %d: %w", ErrDecode, uid, err)
	}
	hdr := mail.Header{Header: message.Header{Header: h}}

	dateRaw := strings.TrimSpace(hdr.Get("Date"))
	if dateRaw == "" {
		dateRaw = unknownDate
	}

	return types.MessageRecord{
		Subject:    truncate(headerText(hdr, "Subject", noSubject), maxTextLen),
		Sender:     truncate(headerText(hdr, "From", unknownSender), maxTextLen),
		DateRaw:    dateRaw,
		DateParsed: ParseDate(dateRaw, loc),
		MessageID:  truncate(strings.TrimSpace(hdr.Get("Message-Id")), maxMessageIDLen),
		UID:        uid,
	}, nil
}

// headerText decodes RFC 2047 encoded words, keeping the raw value on failure
func headerText(h mail.Header, key, fallback string) string {
	raw := h.Get(key)
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	text, err := h.Text(key)
	if err != nil {
		text = raw
	}
	return strings.TrimSpace(spaceRun.ReplaceAllString(text, " "))
}

// ParseDate parses a Date header against dateLayouts. Zone-less dates are
// read in loc. It returns nil when nothing matches.
func ParseDate(raw string, loc *time.Location) *time.Time {
	if raw == "" || raw == unknownDate {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}

	s := zoneComment.ReplaceAllString(raw, "")
	s = strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return &t
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
