package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/brandon/mailsweep/pkg/types"
)

// ErrNotFound is returned when a lookup matches nothing
var ErrNotFound = errors.New("not found in cache")

// Store provides methods for storing and retrieving data from the cache
type Store struct {
	cache  *Cache
	logger *logrus.Logger
}

// NewStore creates a new store instance
func NewStore(cache *Cache, logger *logrus.Logger) *Store {
	return &Store{
		cache:  cache,
		logger: logger,
	}
}

type scanRow struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Email       string `db:"email"`
	Host        string `db:"imap_host"`
	Port        int    `db:"imap_port"`
	StartedAt   string `db:"started_at"`
	DurationMS  int64  `db:"duration_ms"`
	TotalUnread int    `db:"total_unread"`
	Folders     string `db:"folders"`
}

type messageRow struct {
	Category   string         `db:"category"`
	Folder     string         `db:"folder"`
	UID        int64          `db:"uid"`
	MessageID  string         `db:"message_id"`
	Subject    string         `db:"subject"`
	Sender     string         `db:"sender"`
	DateRaw    string         `db:"date_raw"`
	DateParsed sql.NullString `db:"date_parsed"`
}

func (r messageRow) record(acct types.Account) types.MessageRecord {
	rec := types.MessageRecord{
		Subject:   r.Subject,
		Sender:    r.Sender,
		DateRaw:   r.DateRaw,
		MessageID: r.MessageID,
		UID:       uint32(r.UID),
		Origin: types.Origin{
			Category: types.Category(r.Category),
			Folder:   r.Folder,
			Account:  acct,
		},
	}
	if r.DateParsed.Valid {
		if t, err := time.Parse(time.RFC3339Nano, r.DateParsed.String); err == nil {
			rec.DateParsed = &t
		}
	}
	return rec
}

// UpsertAccount upserts an account in the cache
func (s *Store) UpsertAccount(ctx context.Context, acct types.Account) (int64, error) {
	return upsertAccount(ctx, s.cache.DB(), acct)
}

func upsertAccount(ctx context.Context, q sqlx.QueryerContext, acct types.Account) (int64, error) {
	query := `
		INSERT INTO accounts (name, email, imap_host, imap_port, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET
			email = excluded.email,
			imap_host = excluded.imap_host,
			imap_port = excluded.imap_port,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`
	var id int64
	if err := sqlx.GetContext(ctx, q, &id, query, acct.Name, acct.Email, acct.Host, acct.Port); err != nil {
		return 0, fmt.Errorf("failed to upsert account: %w", err)
	}
	return id, nil
}

// SaveScan stores a scan and its records, assigning the scan an ID when it
// has none.
func (s *Store) SaveScan(ctx context.Context, res *types.ScanResult) error {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}

	folders, err := json.Marshal(res.Folders)
	if err != nil {
		return fmt.Errorf("failed to encode folders: %w", err)
	}

	tx, err := s.cache.DB().BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	accountID, err := upsertAccount(ctx, tx, res.Account)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scans (id, account_id, started_at, started_unix, duration_ms, total_unread, folders)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		res.ID, accountID, res.StartedAt.Format(time.RFC3339Nano), res.StartedAt.UnixNano(),
		res.Duration.Milliseconds(), res.TotalUnread, string(folders))
	if err != nil {
		return fmt.Errorf("failed to insert scan: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO messages (scan_id, category, folder, uid, message_id, subject, sender, date_raw, date_parsed, date_unix)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	buckets := []types.Category{types.CategoryInbox, types.CategorySpam, types.CategoryTrash}
	total := 0
	for _, category := range buckets {
		for _, r := range res.Records(category) {
			var parsed, unix interface{}
			if r.DateParsed != nil {
				parsed = r.DateParsed.Format(time.RFC3339Nano)
				unix = r.DateParsed.Unix()
			}
			if _, err := stmt.ExecContext(ctx, res.ID, string(category), r.Origin.Folder, int64(r.UID),
				r.MessageID, r.Subject, r.Sender, r.DateRaw, parsed, unix); err != nil {
				return fmt.Errorf("failed to insert message: %w", err)
			}
			total++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit scan: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"scan_id":  res.ID,
		"account":  res.Account.Name,
		"messages": total,
	}).Debug("Cached scan")
	return nil
}

// LatestScan loads the most recent scan for an account. Records come back
// without a session; callers re-attach one before deleting.
func (s *Store) LatestScan(ctx context.Context, account string) (*types.ScanResult, error) {
	var row scanRow
	err := s.cache.DB().GetContext(ctx, &row, `
		SELECT s.id, a.name, a.email, a.imap_host, a.imap_port,
		       s.started_at, s.duration_ms, s.total_unread, s.folders
		FROM scans s
		JOIN accounts a ON a.id = s.account_id
		WHERE a.name = ?
		ORDER BY s.started_unix DESC
		LIMIT 1`, account)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no scan for account %s", ErrNotFound, account)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load scan: %w", err)
	}

	acct := types.Account{Name: row.Name, Email: row.Email, Host: row.Host, Port: row.Port}
	res := &types.ScanResult{
		ID:          row.ID,
		Account:     acct,
		Unread:      []types.MessageRecord{},
		Spam:        []types.MessageRecord{},
		Trash:       []types.MessageRecord{},
		TotalUnread: row.TotalUnread,
		Duration:    time.Duration(row.DurationMS) * time.Millisecond,
	}
	if res.StartedAt, err = time.Parse(time.RFC3339Nano, row.StartedAt); err != nil {
		return nil, fmt.Errorf("failed to parse scan time: %w", err)
	}
	if err := json.Unmarshal([]byte(row.Folders), &res.Folders); err != nil {
		return nil, fmt.Errorf("failed to decode folders: %w", err)
	}

	var rows []messageRow
	err = s.cache.DB().SelectContext(ctx, &rows, `
		SELECT category, folder, uid, message_id, subject, sender, date_raw, date_parsed
		FROM messages
		WHERE scan_id = ?
		ORDER BY id`, row.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	for _, m := range rows {
		rec := m.record(acct)
		switch types.Category(m.Category) {
		case types.CategoryInbox:
			res.Unread = append(res.Unread, rec)
		case types.CategorySpam:
			res.Spam = append(res.Spam, rec)
		case types.CategoryTrash:
			res.Trash = append(res.Trash, rec)
		}
	}
	return res, nil
}

// RemoveMessages drops deleted records from a cached scan. UIDs are only
// unique within a folder, so rows from other folders of the same category
// are kept; rows stored without a folder match any.
func (s *Store) RemoveMessages(ctx context.Context, scanID string, category types.Category, folder string, uids []uint32) (int64, error) {
	if len(uids) == 0 {
		return 0, nil
	}

	args := make([]interface{}, len(uids))
	for i, uid := range uids {
		args[i] = int64(uid)
	}
	query, inArgs, err := sqlx.In(`DELETE FROM messages
		WHERE scan_id = ? AND category = ? AND (folder = ? COLLATE NOCASE OR folder = '') AND uid IN (?)`,
		scanID, string(category), folder, args)
	if err != nil {
		return 0, fmt.Errorf("failed to build delete: %w", err)
	}

	result, err := s.cache.DB().ExecContext(ctx, s.cache.DB().Rebind(query), inArgs...)
	if err != nil {
		return 0, fmt.Errorf("failed to remove messages: %w", err)
	}
	return result.RowsAffected()
}

// MarkUnsubscribed remembers that account has unsubscribed from sender
func (s *Store) MarkUnsubscribed(ctx context.Context, acct types.Account, sender string) error {
	accountID, err := s.UpsertAccount(ctx, acct)
	if err != nil {
		return err
	}
	_, err = s.cache.DB().ExecContext(ctx,
		`INSERT OR IGNORE INTO unsubscribed (account_id, sender) VALUES (?, ?)`,
		accountID, strings.ToLower(strings.TrimSpace(sender)))
	if err != nil {
		return fmt.Errorf("failed to mark unsubscribed: %w", err)
	}
	return nil
}

// Unsubscribed returns the lower-cased senders account has unsubscribed from
func (s *Store) Unsubscribed(ctx context.Context, account string) (map[string]struct{}, error) {
	var senders []string
	err := s.cache.DB().SelectContext(ctx, &senders, `
		SELECT u.sender
		FROM unsubscribed u
		JOIN accounts a ON a.id = u.account_id
		WHERE a.name = ?`, account)
	if err != nil {
		return nil, fmt.Errorf("failed to load unsubscribed senders: %w", err)
	}

	set := make(map[string]struct{}, len(senders))
	for _, sender := range senders {
		set[sender] = struct{}{}
	}
	return set, nil
}
