package cache

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandon/mailsweep/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	c, err := NewCache(MemoryPath, logger)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return NewStore(c, logger)
}

var testAccount = types.Account{Name: "default", Email: "me@example.com", Host: "imap.example.com", Port: 993}

func record(uid uint32, folder, subject string, date *time.Time) types.MessageRecord {
	raw := "Unknown Date"
	if date != nil {
		raw = date.Format(time.RFC1123Z)
	}
	return types.MessageRecord{
		Subject:    subject,
		Sender:     "News <news@example.com>",
		DateRaw:    raw,
		DateParsed: date,
		MessageID:  "<id-" + subject + "@example.com>",
		UID:        uid,
		Origin:     types.Origin{Folder: folder, Account: testAccount},
	}
}

func ts(day int) *time.Time {
	t := time.Date(2026, 10, day, 9, 0, 0, 0, time.UTC)
	return &t
}

func sampleScan(started time.Time) *types.ScanResult {
	return &types.ScanResult{
		Account: testAccount,
		Folders: []string{"INBOX", "Junk", "Trash"},
		Unread: []types.MessageRecord{
			record(1, "INBOX", "weekly digest", ts(3)),
			record(2, "INBOX", "invoice", ts(5)),
		},
		TotalUnread: 7,
		Spam:        []types.MessageRecord{record(10, "Junk", "prize", nil)},
		Trash:       []types.MessageRecord{},
		StartedAt:   started,
		Duration:    1500 * time.Millisecond,
	}
}

func TestSaveAndLoadLatestScan(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	older := sampleScan(time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.SaveScan(ctx, older))
	require.NotEmpty(t, older.ID)

	newer := sampleScan(time.Date(2026, 10, 2, 0, 0, 0, 0, time.UTC))
	newer.Spam = nil
	require.NoError(t, store.SaveScan(ctx, newer))

	got, err := store.LatestScan(ctx, "default")
	require.NoError(t, err)

	assert.Equal(t, newer.ID, got.ID)
	assert.Equal(t, testAccount, got.Account)
	assert.Equal(t, []string{"INBOX", "Junk", "Trash"}, got.Folders)
	assert.Equal(t, 7, got.TotalUnread)
	assert.Equal(t, 1500*time.Millisecond, got.Duration)
	assert.True(t, newer.StartedAt.Equal(got.StartedAt))
	require.Len(t, got.Unread, 2)
	assert.Empty(t, got.Spam)

	first := got.Unread[0]
	assert.Equal(t, uint32(1), first.UID)
	assert.Equal(t, "INBOX", first.Origin.Folder)
	assert.Equal(t, types.CategoryInbox, first.Origin.Category)
	assert.Nil(t, first.Origin.Session)
	require.NotNil(t, first.DateParsed)
	assert.True(t, ts(3).Equal(*first.DateParsed))
}

func TestLatestScanMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.LatestScan(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveMessages(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	scan := sampleScan(time.Now())
	require.NoError(t, store.SaveScan(ctx, scan))

	n, err := store.RemoveMessages(ctx, scan.ID, types.CategoryInbox, "inbox", []uint32{1, 99})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := store.LatestScan(ctx, "default")
	require.NoError(t, err)
	require.Len(t, got.Unread, 1)
	assert.Equal(t, uint32(2), got.Unread[0].UID)
	assert.Len(t, got.Spam, 1)
}

func TestRemoveMessagesKeepsOtherFolders(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	scan := sampleScan(time.Now())
	scan.Folders = []string{"INBOX", "Spam", "Junk"}
	scan.Spam = []types.MessageRecord{
		record(1, "Spam", "a", nil),
		record(2, "Spam", "b", nil),
		record(1, "Junk", "c", nil),
		record(2, "Junk", "d", nil),
	}
	require.NoError(t, store.SaveScan(ctx, scan))

	n, err := store.RemoveMessages(ctx, scan.ID, types.CategorySpam, "Spam", []uint32{1, 2})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := store.LatestScan(ctx, "default")
	require.NoError(t, err)
	require.Len(t, got.Spam, 2)
	for _, r := range got.Spam {
		assert.Equal(t, "Junk", r.Origin.Folder)
	}
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.SaveScan(ctx, sampleScan(time.Now())))

	all, err := store.Search(ctx, SearchOptions{Account: "default"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "invoice", all[0].Subject)
	assert.Equal(t, "weekly digest", all[1].Subject)
	assert.Equal(t, "prize", all[2].Subject, "undated records sort last")

	spam := types.CategorySpam
	got, err := store.Search(ctx, SearchOptions{Account: "default", Category: &spam})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint32(10), got[0].UID)

	q := "digest"
	got, err = store.Search(ctx, SearchOptions{Account: "default", Query: &q})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "weekly digest", got[0].Subject)

	from := *ts(4)
	got, err = store.Search(ctx, SearchOptions{Account: "default", DateFrom: &from})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "invoice", got[0].Subject)

	got, err = store.Search(ctx, SearchOptions{Account: "default", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = store.Search(ctx, SearchOptions{Account: "nobody"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUnsubscribed(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.MarkUnsubscribed(ctx, testAccount, "News@Example.com"))
	require.NoError(t, store.MarkUnsubscribed(ctx, testAccount, "news@example.com"))

	got, err := store.Unsubscribed(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"news@example.com": {}}, got)

	none, err := store.Unsubscribed(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, none)
}
