package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"

	"github.com/brandon/mailsweep/pkg/types"
)

// Conn is the slice of the IMAP client the scanner and mutator use.
// A Conn belongs to exactly one goroutine for its whole lifetime.
type Conn interface {
	List(ref, name string, ch chan *imap.MailboxInfo) error
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	UidStore(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error
	Expunge(ch chan uint32) error
	Logout() error
}

var _ Conn = (*client.Client)(nil)

// Dialer opens a new authenticated connection for a session
type Dialer func(ctx context.Context, sess *types.Session) (Conn, error)

// NewTLSDialer returns a Dialer that connects with Connect
func NewTLSDialer(timeout time.Duration, logger *logrus.Logger) Dialer {
	return func(ctx context.Context, sess *types.Session) (Conn, error) {
		return Connect(ctx, sess, timeout, logger)
	}
}

// Connect opens an implicit-TLS session to the account's server and logs in.
// The timeout bounds the dial and every later command on the connection.
// It never retries.
func Connect(ctx context.Context, sess *types.Session, timeout time.Duration, logger *logrus.Logger) (Conn, error) {
	if sess == nil {
		return nil, fmt.Errorf("%w: no session", ErrConnection)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	acct := sess.Account
	dialer := &net.Dialer{Timeout: timeout}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}

	cl, err := client.DialWithDialerTLS(dialer, acct.Addr(), &tls.Config{
		ServerName: acct.Host,
		MinVersion: tls.VersionTLS12,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrConnection, acct.Addr(), err)
	}
	cl.Timeout = timeout

	if err := cl.Login(acct.Email, sess.Secret()); err != nil {
		cl.Logout() //nolint:errcheck
		return nil, fmt.Errorf("%w: login %s: %w", ErrConnection, acct.Email, err)
	}

	logger.WithFields(logrus.Fields{
		"account": acct.Email,
		"server":  acct.Addr(),
	}).Debug("Connected to IMAP server")
	return cl, nil
}
