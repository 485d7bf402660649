package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emersion/go-imap"
	"github.com/sirupsen/logrus"

	"github.com/brandon/mailsweep/pkg/types"
)

// fakeFolder is one mailbox on the fake server
type fakeFolder struct {
	uids        []uint32
	unseen      []uint32
	unseenSince []uint32
	bodyMatches []uint32
	headers     map[uint32]string
	full        map[uint32]string
}

// fakeServer records every command its connections issue
type fakeServer struct {
	mu        sync.Mutex
	folders   map[string]*fakeFolder
	listOrder []string

	listErr   error
	sinceErr  error
	fetchErr  error
	storeErr  map[int]error // by store call index
	selectErr map[string]error

	failDial  func(n int64) bool
	dials     atomic.Int64
	logouts   atomic.Int64
	fetches   int
	fetched   int
	stores    [][]uint32
	expunges  int
	selects   []string
	readOnly  []bool
	searches  []*imap.SearchCriteria
	maxActive int
	active    int
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		folders:   make(map[string]*fakeFolder),
		storeErr:  make(map[int]error),
		selectErr: make(map[string]error),
	}
}

func (s *fakeServer) addFolder(name string, f *fakeFolder) {
	if f.headers == nil {
		f.headers = make(map[uint32]string)
	}
	s.folders[name] = f
	s.listOrder = append(s.listOrder, name)
}

func (s *fakeServer) dialer() Dialer {
	return func(ctx context.Context, sess *types.Session) (Conn, error) {
		n := s.dials.Add(1)
		if s.failDial != nil && s.failDial(n) {
			return nil, fmt.Errorf("%w: dial refused", ErrConnection)
		}
		s.mu.Lock()
		s.active++
		if s.active > s.maxActive {
			s.maxActive = s.active
		}
		s.mu.Unlock()
		return &fakeConn{server: s}, nil
	}
}

type fakeConn struct {
	server   *fakeServer
	selected *fakeFolder
}

func (c *fakeConn) List(_, _ string, ch chan *imap.MailboxInfo) error {
	defer close(ch)
	if c.server.listErr != nil {
		return c.server.listErr
	}
	for _, name := range c.server.listOrder {
		ch <- &imap.MailboxInfo{Name: name, Delimiter: "/"}
	}
	return nil
}

func (c *fakeConn) Select(name string, readOnly bool) (*imap.MailboxStatus, error) {
	s := c.server
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selects = append(s.selects, name)
	s.readOnly = append(s.readOnly, readOnly)
	if err := s.selectErr[name]; err != nil {
		return nil, err
	}
	f, ok := s.folders[name]
	if !ok {
		return nil, errors.New("NO mailbox does not exist")
	}
	c.selected = f
	return &imap.MailboxStatus{Name: name, Messages: uint32(len(f.uids))}, nil
}

func (c *fakeConn) UidSearch(criteria *imap.SearchCriteria) ([]uint32, error) {
	s := c.server
	s.mu.Lock()
	s.searches = append(s.searches, criteria)
	s.mu.Unlock()

	f := c.selected
	switch {
	case len(criteria.Body) > 0:
		return f.bodyMatches, nil
	case len(criteria.WithoutFlags) > 0 && !criteria.Since.IsZero():
		if s.sinceErr != nil {
			return nil, s.sinceErr
		}
		return f.unseenSince, nil
	case len(criteria.WithoutFlags) > 0:
		return f.unseen, nil
	}
	return f.uids, nil
}

func (c *fakeConn) UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error {
	defer close(ch)
	s := c.server
	s.mu.Lock()
	s.fetches++
	for _, seq := range seqset.Set {
		s.fetched += int(seq.Stop-seq.Start) + 1
	}
	s.mu.Unlock()

	header := headerSection()
	wantHeader := false
	for _, item := range items {
		if item == header.FetchItem() {
			wantHeader = true
		}
	}

	source := c.selected.full
	section := &imap.BodySectionName{}
	if wantHeader {
		source = c.selected.headers
		section = &imap.BodySectionName{BodyPartName: header.BodyPartName}
	}

	for uid := uint32(1); uid <= maxUID(seqset); uid++ {
		raw, ok := source[uid]
		if !ok || !seqset.Contains(uid) {
			continue
		}
		ch <- &imap.Message{
			SeqNum: uid,
			Uid:    uid,
			Body:   map[*imap.BodySectionName]imap.Literal{section: bytes.NewBufferString(raw)},
		}
	}
	return s.fetchErr
}

func maxUID(set *imap.SeqSet) uint32 {
	var top uint32
	for _, seq := range set.Set {
		if seq.Stop > top {
			top = seq.Stop
		}
		if seq.Start > top {
			top = seq.Start
		}
	}
	return top
}

func (c *fakeConn) UidStore(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error {
	s := c.server
	s.mu.Lock()
	defer s.mu.Unlock()

	index := len(s.stores)
	var uids []uint32
	for _, seq := range seqset.Set {
		for u := seq.Start; u <= seq.Stop; u++ {
			uids = append(uids, u)
		}
	}
	s.stores = append(s.stores, uids)
	return s.storeErr[index]
}

func (c *fakeConn) Expunge(ch chan uint32) error {
	c.server.mu.Lock()
	c.server.expunges++
	c.server.mu.Unlock()
	return nil
}

func (c *fakeConn) Logout() error {
	c.server.logouts.Add(1)
	c.server.mu.Lock()
	c.server.active--
	c.server.mu.Unlock()
	return nil
}

func rawHeader(uid uint32, subject string, date time.Time) string {
	return fmt.Sprintf("From: Sender %d <sender%d@example.com>\r\nSubject: %s\r\nDate: %s\r\nMessage-ID: <%d@example.com>\r\n\r\n",
		uid, uid, subject, date.Format("Mon, 2 Jan 2006 15:04:05 -0700"), uid)
}

// seqUIDs returns first..first+n-1
func seqUIDs(first uint32, n int) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = first + uint32(i)
	}
	return out
}

func folderWith(uids []uint32, date time.Time) *fakeFolder {
	f := &fakeFolder{uids: uids, headers: make(map[uint32]string)}
	for _, uid := range uids {
		f.headers[uid] = rawHeader(uid, fmt.Sprintf("message %d", uid), date)
	}
	return f
}

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

var testSession = types.NewSession(types.Account{
	Name:  "default",
	Email: "me@example.com",
	Host:  "imap.example.com",
	Port:  993,
}, "app-password")

func newTestScanner(s *fakeServer) *Scanner {
	return NewScanner(s.dialer(), Options{Location: time.UTC}, discardLogger())
}
