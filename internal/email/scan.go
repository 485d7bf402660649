package email

import (
	"context"
	"fmt"
	"time"

	"github.com/emersion/go-imap"
	"github.com/sirupsen/logrus"

	"github.com/brandon/mailsweep/pkg/types"
)

// Cutoff returns now minus daysBack days in the reference zone, or nil when
// daysBack is nil or negative.
func (s *Scanner) Cutoff(daysBack *int) *time.Time {
	if daysBack == nil || *daysBack < 0 {
		return nil
	}
	cutoff := s.now().In(s.opts.Location).AddDate(0, 0, -*daysBack)
	return &cutoff
}

// ListFolders enumerates mailbox names on a fresh connection. Failing to
// connect is fatal; a failed LIST degrades to an empty list.
func (s *Scanner) ListFolders(ctx context.Context, sess *types.Session) ([]string, error) {
	conn, err := s.dial(ctx, sess)
	if err != nil {
		return nil, err
	}
	defer s.logout(conn)

	mailboxes := make(chan *imap.MailboxInfo, 10)
	done := make(chan error, 1)
	go func() {
		done <- conn.List("", "*", mailboxes)
	}()

	folders := []string{}
	for m := range mailboxes {
		folders = append(folders, m.Name)
	}

	if err := <-done; err != nil {
		s.logger.WithError(err).Warn("Failed to list folders")
		return []string{}, nil
	}
	return folders, nil
}

// ScanAll enumerates folders and scans unread, spam/junk and, when
// includeTrash is set, trash. The returned error is non-nil only when the
// initial connection fails; everything below it degrades to empty buckets.
func (s *Scanner) ScanAll(ctx context.Context, sess *types.Session, daysBack *int, includeTrash bool) (*types.ScanResult, error) {
	start := s.now()

	folders, err := s.ListFolders(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("scan aborted: %w", err)
	}

	result := &types.ScanResult{
		Account:   sess.Account,
		Folders:   folders,
		Unread:    []types.MessageRecord{},
		Spam:      []types.MessageRecord{},
		Trash:     []types.MessageRecord{},
		StartedAt: start,
	}

	cutoff := s.Cutoff(daysBack)
	unread, total := s.ScanUnread(ctx, sess, cutoff)
	result.Unread = append(result.Unread, unread...)
	result.TotalUnread = total

	for _, folder := range MatchingFolders(folders, types.CategorySpam) {
		result.Spam = append(result.Spam, s.ScanFolder(ctx, sess, folder, cutoff)...)
	}

	if includeTrash {
		for _, folder := range MatchingFolders(folders, types.CategoryTrash) {
			result.Trash = append(result.Trash, s.ScanFolder(ctx, sess, folder, cutoff)...)
		}
	}

	result.Duration = s.now().Sub(start)
	s.logger.WithFields(logrus.Fields{
		"account":  sess.Account.Email,
		"folders":  len(folders),
		"unread":   len(result.Unread),
		"spam":     len(result.Spam),
		"trash":    len(result.Trash),
		"duration": result.Duration.String(),
	}).Info("Scan complete")
	return result, nil
}
