package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/sirupsen/logrus"

	"github.com/brandon/mailsweep/pkg/types"
)

// Delete flags the records' UIDs as \Deleted in the folder that category
// resolves to among knownFolders, in batches of DeleteBatchSize, and
// expunges only when permanent is set. It returns the number of distinct
// UIDs submitted, so records repeating a UID count once. No matching folder, no UIDs, or an unselectable folder all
// return 0 without error; only a failed connection is an error.
func (s *Scanner) Delete(ctx context.Context, category types.Category, records []types.MessageRecord, knownFolders []string, permanent bool) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	folder, err := ResolveFolder(category, knownFolders)
	if err != nil {
		s.logger.WithField("category", category).Info("No folder for category, nothing deleted")
		return 0, nil
	}

	uids, sess := s.deletableUIDs(records, folder)
	if len(uids) == 0 {
		return 0, nil
	}
	if sess == nil {
		return 0, fmt.Errorf("%w: records carry no session", ErrConnection)
	}

	fields := logrus.Fields{"folder": folder, "category": category, "permanent": permanent}

	conn, err := s.dial(ctx, sess)
	if err != nil {
		return 0, err
	}
	defer s.logout(conn)

	if _, err := conn.Select(folder, false); err != nil {
		s.logger.WithError(err).WithFields(fields).Warn("Delete skipped, folder not selectable")
		return 0, nil
	}

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.DeletedFlag}

	submitted := 0
	for i, batch := range Chunk(uids, DeleteBatchSize) {
		seqSet := new(imap.SeqSet)
		seqSet.AddNum(batch...)
		if err := conn.UidStore(seqSet, item, flags, nil); err != nil {
			s.logger.WithError(err).WithFields(fields).WithField("batch", i).Warn("Flagging batch failed")
			continue
		}
		submitted += len(batch)
	}

	if permanent && submitted > 0 {
		if err := conn.Expunge(nil); err != nil {
			s.logger.WithError(err).WithFields(fields).Warn("Expunge failed")
		}
	}

	s.logger.WithFields(fields).WithField("count", submitted).Info("Flagged messages for deletion")
	return submitted, nil
}

// deletableUIDs is TargetUIDs plus a warning for records left behind
func (s *Scanner) deletableUIDs(records []types.MessageRecord, folder string) ([]uint32, *types.Session) {
	uids, sess, foreign := TargetUIDs(records, folder)
	if foreign > 0 {
		s.logger.WithFields(logrus.Fields{
			"folder":  folder,
			"skipped": foreign,
		}).Warn("Ignoring records scanned from another folder")
	}
	return uids, sess
}

// TargetUIDs keeps records that have a UID and belong to folder,
// de-duplicated in input order. It returns the first session found and how
// many records belonged to another folder.
func TargetUIDs(records []types.MessageRecord, folder string) ([]uint32, *types.Session, int) {
	var sess *types.Session
	seen := make(map[uint32]struct{}, len(records))
	uids := make([]uint32, 0, len(records))
	foreign := 0

	for _, r := range records {
		if !r.HasUID() {
			continue
		}
		if r.Origin.Folder != "" && !strings.EqualFold(r.Origin.Folder, folder) {
			foreign++
			continue
		}
		if _, dup := seen[r.UID]; dup {
			continue
		}
		seen[r.UID] = struct{}{}
		uids = append(uids, r.UID)
		if sess == nil {
			sess = r.Origin.Session
		}
	}
	return uids, sess, foreign
}
