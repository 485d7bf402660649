package email

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-imap"
	"github.com/sirupsen/logrus"

	"github.com/brandon/mailsweep/pkg/types"
)

// headerSection is BODY.PEEK[HEADER.FIELDS (FROM SUBJECT DATE MESSAGE-ID)]
func headerSection() *imap.BodySectionName {
	return &imap.BodySectionName{
		BodyPartName: imap.BodyPartName{
			Specifier: imap.HeaderSpecifier,
			Fields:    headerFields,
		},
		Peek: true,
	}
}

// FetchBatch fetches the scan headers for uids in one UID FETCH on a
// connection that already has folder selected. Entries that cannot be
// decoded are skipped one by one; a FETCH error keeps whatever arrived.
func FetchBatch(conn Conn, folder string, uids []uint32, loc *time.Location, logger *logrus.Logger) []types.MessageRecord {
	if len(uids) == 0 {
		return nil
	}

	section := headerSection()
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- conn.UidFetch(seqSet, items, messages)
	}()

	records := make([]types.MessageRecord, 0, len(uids))
	for msg := range messages {
		record, err := decodeMessage(msg, section, loc)
		if err != nil {
			logger.WithError(err).WithField("folder", folder).Warn("Skipping undecodable message")
			continue
		}
		record.Origin.Folder = folder
		records = append(records, record)
	}

	if err := <-done; err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"folder":   folder,
			"received": len(records),
			"wanted":   len(uids),
		}).Warn("Fetch ended with error")
	}

	return records
}

func decodeMessage(msg *imap.Message, section *imap.BodySectionName, loc *time.Location) (types.MessageRecord, error) {
	if msg == nil {
		return types.MessageRecord{}, fmt.Errorf("%w: empty fetch response", ErrDecode)
	}
	literal := msg.GetBody(section)
	if literal == nil {
		return types.MessageRecord{}, fmt.Errorf("%w: seq %d has no header literal", ErrDecode, msg.SeqNum)
	}
	raw, err := io.ReadAll(literal)
	if err != nil {
		return types.MessageRecord{}, fmt.Errorf("%w: seq %d: %w", ErrDecode, msg.SeqNum, err)
	}
	return DecodeHeaders(msg.Uid, raw, loc)
}
