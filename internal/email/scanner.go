package email

import (
	"context"
	"fmt"
	"time"

	"github.com/emersion/go-imap"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"github.com/brandon/mailsweep/pkg/types"
)

// Scan and mutation policy
const (
	DefaultChunkSize     = 25
	MaxChunkSize         = 50
	MinWorkers           = 3
	MaxWorkers           = 5
	DefaultWorkers       = 3
	DefaultUnreadWorkers = 4
	DeleteBatchSize      = 50
	DefaultTimeout       = 30 * time.Second
)

// Options tunes a Scanner. Zero values take the defaults above and
// out-of-range values are clamped.
type Options struct {
	Workers       int
	UnreadWorkers int
	ChunkSize     int
	Timeout       time.Duration
	Location      *time.Location
}

func (o Options) normalize() Options {
	o.Workers = clampWorkers(o.Workers, DefaultWorkers)
	o.UnreadWorkers = clampWorkers(o.UnreadWorkers, DefaultUnreadWorkers)
	switch {
	case o.ChunkSize <= 0:
		o.ChunkSize = DefaultChunkSize
	case o.ChunkSize < DefaultChunkSize:
		o.ChunkSize = DefaultChunkSize
	case o.ChunkSize > MaxChunkSize:
		o.ChunkSize = MaxChunkSize
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	return o
}

func clampWorkers(n, def int) int {
	switch {
	case n <= 0:
		return def
	case n < MinWorkers:
		return MinWorkers
	case n > MaxWorkers:
		return MaxWorkers
	}
	return n
}

// Scanner runs folder scans and bulk deletes. Every network operation goes
// through its own connection from dial; connections are never shared.
type Scanner struct {
	dial   Dialer
	opts   Options
	logger *logrus.Logger
	now    func() time.Time
}

// NewScanner creates a scanner. A nil dial connects over TLS with opts.Timeout.
func NewScanner(dial Dialer, opts Options, logger *logrus.Logger) *Scanner {
	opts = opts.normalize()
	if logger == nil {
		logger = logrus.New()
	}
	if dial == nil {
		dial = NewTLSDialer(opts.Timeout, logger)
	}
	return &Scanner{
		dial:   dial,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

// Options returns the normalized options in effect
func (s *Scanner) Options() Options {
	return s.opts
}

// Chunk partitions ids into consecutive slices of at most size elements
func Chunk(ids []uint32, size int) [][]uint32 {
	if size <= 0 {
		size = DefaultChunkSize
	}
	chunks := make([][]uint32, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// FilterSince drops records dated before cutoff. Records without a parsed
// date are kept.
func FilterSince(records []types.MessageRecord, cutoff *time.Time) []types.MessageRecord {
	if cutoff == nil {
		return records
	}
	kept := records[:0]
	for _, r := range records {
		if r.DateParsed == nil || !r.DateParsed.Before(*cutoff) {
			kept = append(kept, r)
		}
	}
	return kept
}

// ScanFolder searches folder for every message and fetches headers in
// parallel chunks. A folder that cannot be selected or searched yields an
// empty result. Record order is unspecified.
func (s *Scanner) ScanFolder(ctx context.Context, sess *types.Session, folder string, cutoff *time.Time) []types.MessageRecord {
	var uids []uint32
	err := s.withFolder(ctx, sess, folder, true, func(conn Conn) error {
		var err error
		uids, err = conn.UidSearch(imap.NewSearchCriteria())
		if err != nil {
			return fmt.Errorf("%w: search %q: %w", ErrFolder, folder, err)
		}
		return nil
	})
	if err != nil {
		s.logger.WithError(err).WithField("folder", folder).Warn("Folder scan skipped")
		return nil
	}

	records := FilterSince(s.fetchChunks(ctx, sess, folder, uids, s.opts.Workers), cutoff)
	stampOrigin(records, sess, folder)

	s.logger.WithFields(logrus.Fields{
		"folder":  folder,
		"matched": len(uids),
		"kept":    len(records),
	}).Info("Scanned folder")
	return records
}

// ScanUnread scans unseen INBOX messages. With a cutoff, a SINCE bound is
// added server-side as a coarse day-granular pre-filter and the exact cutoff
// is applied afterwards. The count is of all unseen messages, regardless of
// the cutoff.
func (s *Scanner) ScanUnread(ctx context.Context, sess *types.Session, cutoff *time.Time) ([]types.MessageRecord, int) {
	var uids []uint32
	total := 0
	err := s.withFolder(ctx, sess, InboxFolder, true, func(conn Conn) error {
		unseen := imap.NewSearchCriteria()
		unseen.WithoutFlags = []string{imap.SeenFlag}
		all, err := conn.UidSearch(unseen)
		if err != nil {
			return fmt.Errorf("%w: search unseen: %w", ErrFolder, err)
		}
		total, uids = len(all), all
		if cutoff == nil || total == 0 {
			return nil
		}

		windowed := imap.NewSearchCriteria()
		windowed.WithoutFlags = []string{imap.SeenFlag}
		windowed.Since = *cutoff
		recent, err := conn.UidSearch(windowed)
		if err != nil {
			s.logger.WithError(err).Warn("SINCE search failed, filtering locally")
			return nil
		}
		uids = recent
		return nil
	})
	if err != nil {
		s.logger.WithError(err).Warn("Unread scan skipped")
		return nil, 0
	}

	records := FilterSince(s.fetchChunks(ctx, sess, InboxFolder, uids, s.opts.UnreadWorkers), cutoff)
	stampOrigin(records, sess, InboxFolder)

	s.logger.WithFields(logrus.Fields{
		"total_unread": total,
		"kept":         len(records),
	}).Info("Scanned unread")
	return records, total
}

// fetchChunks fans chunks out to at most workers goroutines, each with its
// own connection, and merges their buffers in completion order.
func (s *Scanner) fetchChunks(ctx context.Context, sess *types.Session, folder string, uids []uint32, workers int) []types.MessageRecord {
	chunks := Chunk(uids, s.opts.ChunkSize)
	if len(chunks) == 0 {
		return nil
	}

	results := make(chan []types.MessageRecord, len(chunks))
	p := pool.New().WithMaxGoroutines(workers)
	for i, chunk := range chunks {
		p.Go(func() {
			results <- s.fetchChunk(ctx, sess, folder, i, chunk)
		})
	}
	p.Wait()
	close(results)

	merged := make([]types.MessageRecord, 0, len(uids))
	for batch := range results {
		merged = append(merged, batch...)
	}
	return merged
}

func (s *Scanner) fetchChunk(ctx context.Context, sess *types.Session, folder string, index int, uids []uint32) []types.MessageRecord {
	fields := logrus.Fields{"folder": folder, "chunk": index, "size": len(uids)}

	var records []types.MessageRecord
	err := s.withFolder(ctx, sess, folder, true, func(conn Conn) error {
		records = FetchBatch(conn, folder, uids, s.opts.Location, s.logger)
		return nil
	})
	if err != nil {
		s.logger.WithError(err).WithFields(fields).Warn("Chunk dropped")
		return nil
	}

	s.logger.WithFields(fields).WithField("records", len(records)).Debug("Chunk fetched")
	return records
}

// withFolder dials, selects folder and runs fn, logging out afterwards.
// Sessions end with LOGOUT only: CLOSE would expunge flagged messages.
func (s *Scanner) withFolder(ctx context.Context, sess *types.Session, folder string, readOnly bool, fn func(Conn) error) error {
	conn, err := s.dial(ctx, sess)
	if err != nil {
		return err
	}
	defer s.logout(conn)

	if _, err := conn.Select(folder, readOnly); err != nil {
		return fmt.Errorf("%w: select %q: %w", ErrFolder, folder, err)
	}
	return fn(conn)
}

func (s *Scanner) logout(conn Conn) {
	if err := conn.Logout(); err != nil {
		s.logger.WithError(err).Debug("Logout failed")
	}
}

func stampOrigin(records []types.MessageRecord, sess *types.Session, folder string) {
	category := Classify(folder)
	for i := range records {
		records[i].Origin = types.Origin{
			Category: category,
			Folder:   folder,
			Account:  sess.Account,
			Session:  sess,
		}
	}
}
