package types

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// DefaultIMAPPort is the implicit-TLS IMAP port.
const DefaultIMAPPort = 993

// Account identifies a mailbox without carrying its secret
type Account struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Host  string `json:"host"`
	Port  int    `json:"port"`
}

// Addr returns host:port, defaulting to the implicit-TLS port
func (a Account) Addr() string {
	port := a.Port
	if port == 0 {
		port = DefaultIMAPPort
	}
	return net.JoinHostPort(a.Host, strconv.Itoa(port))
}

// Session is the handle records keep so they can reconnect for deletion.
// Every record from one scan shares the same *Session; the secret is never
// serialized or printed.
type Session struct {
	Account Account
	secret  string
}

// NewSession creates a session handle for an account
func NewSession(acct Account, secret string) *Session {
	return &Session{Account: acct, secret: secret}
}

// Secret returns the app password used for LOGIN
func (s *Session) Secret() string {
	if s == nil {
		return ""
	}
	return s.secret
}

// String implements fmt.Stringer without exposing the secret
func (s *Session) String() string {
	if s == nil {
		return "<nil session>"
	}
	return fmt.Sprintf("%s@%s", s.Account.Email, s.Account.Addr())
}

// Category is the closed set of folder classifications
type Category string

const (
	CategoryInbox Category = "inbox"
	CategorySpam  Category = "spam"
	CategoryTrash Category = "trash"
	CategoryOther Category = "other"
)

// ParseCategory maps user-facing names ("unread", "junk", ...) onto a Category
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inbox", "unread":
		return CategoryInbox, nil
	case "spam", "junk", "spam_or_junk":
		return CategorySpam, nil
	case "trash", "deleted":
		return CategoryTrash, nil
	case "other":
		return CategoryOther, nil
	}
	return "", fmt.Errorf("unknown category: %q", s)
}

// Origin records where a message was found and how to reach it again
type Origin struct {
	Category Category `json:"category"`
	Folder   string   `json:"folder"`
	Account  Account  `json:"account"`
	Session  *Session `json:"-"`
}

// MessageRecord is the decoded header summary of one scanned message
type MessageRecord struct {
	Subject    string     `json:"subject"`
	Sender     string     `json:"sender"`
	DateRaw    string     `json:"date"`
	DateParsed *time.Time `json:"datetime,omitempty"`
	MessageID  string     `json:"message_id"`
	UID        uint32     `json:"uid,omitempty"`
	Origin     Origin     `json:"origin"`
}

// HasUID reports whether the record can be targeted by a UID command.
// IMAP UIDs are non-zero, so zero means the server did not return one.
func (r MessageRecord) HasUID() bool {
	return r.UID != 0
}

// ScanResult is the aggregate returned by one scan invocation
type ScanResult struct {
	ID          string          `json:"id,omitempty"`
	Account     Account         `json:"account"`
	Folders     []string        `json:"folders"`
	Unread      []MessageRecord `json:"unread"`
	TotalUnread int             `json:"total_unread_count"`
	Spam        []MessageRecord `json:"spam"`
	Trash       []MessageRecord `json:"trash"`
	StartedAt   time.Time       `json:"started_at"`
	Duration    time.Duration   `json:"scan_time"`
}

// Records returns the bucket for a category
func (r *ScanResult) Records(c Category) []MessageRecord {
	switch c {
	case CategoryInbox:
		return r.Unread
	case CategorySpam:
		return r.Spam
	case CategoryTrash:
		return r.Trash
	}
	return nil
}

// AttachSession points every record at sess. Records loaded from the cache
// carry no session until the owning account re-attaches one.
func (r *ScanResult) AttachSession(sess *Session) {
	for _, bucket := range [][]MessageRecord{r.Unread, r.Spam, r.Trash} {
		for i := range bucket {
			bucket[i].Origin.Session = sess
		}
	}
}

// UnsubscribeMethod describes how a sender accepts unsubscribe requests
type UnsubscribeMethod string

const (
	UnsubscribeHTTP    UnsubscribeMethod = "http"
	UnsubscribeMailto  UnsubscribeMethod = "mailto"
	UnsubscribeUnknown UnsubscribeMethod = "unknown"
)

// Subscription is a mailing-list sender discovered in the inbox
type Subscription struct {
	Name   string            `json:"name"`
	Email  string            `json:"email"`
	Method UnsubscribeMethod `json:"unsub_type,omitempty"`
	Link   string            `json:"unsub_link,omitempty"`
}
