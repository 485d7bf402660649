package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brandon/mailsweep/pkg/types"
)

// SearchOptions contains search parameters. Only the latest scan of Account
// is searched.
type SearchOptions struct {
	Account  string
	Category *types.Category
	Sender   *string
	Subject  *string
	Query    *string
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
}

// Search performs a search on the messages of the latest cached scan.
// Newest first; records whose date could not be parsed sort last.
func (s *Store) Search(ctx context.Context, opts SearchOptions) ([]types.MessageRecord, error) {
	var row scanRow
	err := s.cache.DB().GetContext(ctx, &row, `
		SELECT s.id, a.name, a.email, a.imap_host, a.imap_port
		FROM scans s
		JOIN accounts a ON a.id = s.account_id
		WHERE a.name = ?
		ORDER BY s.started_unix DESC
		LIMIT 1`, opts.Account)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no scan for account %s", ErrNotFound, opts.Account)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load scan: %w", err)
	}

	conditions := []string{"m.scan_id = ?"}
	args := []interface{}{row.ID}

	if opts.Category != nil {
		conditions = append(conditions, "m.category = ?")
		args = append(args, string(*opts.Category))
	}

	if opts.Sender != nil {
		conditions = append(conditions, "m.sender LIKE ?")
		args = append(args, "%"+*opts.Sender+"%")
	}

	if opts.Subject != nil {
		conditions = append(conditions, "m.subject LIKE ?")
		args = append(args, "%"+*opts.Subject+"%")
	}

	if opts.Query != nil && strings.TrimSpace(*opts.Query) != "" {
		conditions = append(conditions, "m.id IN (SELECT rowid FROM messages_fts WHERE messages_fts MATCH ?)")
		args = append(args, ftsPhrase(*opts.Query))
	}

	if opts.DateFrom != nil {
		conditions = append(conditions, "m.date_unix >= ?")
		args = append(args, opts.DateFrom.Unix())
	}

	if opts.DateTo != nil {
		conditions = append(conditions, "m.date_unix <= ?")
		args = append(args, opts.DateTo.Unix())
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT m.category, m.folder, m.uid, m.message_id, m.subject, m.sender, m.date_raw, m.date_parsed
		FROM messages m
		WHERE %s
		ORDER BY m.date_unix IS NULL, m.date_unix DESC, m.id
		LIMIT ?`, strings.Join(conditions, " AND "))

	var rows []messageRow
	if err := s.cache.DB().SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}

	acct := types.Account{Name: row.Name, Email: row.Email, Host: row.Host, Port: row.Port}
	results := make([]types.MessageRecord, 0, len(rows))
	for _, r := range rows {
		results = append(results, r.record(acct))
	}
	return results, nil
}

// ftsPhrase quotes free text so FTS5 treats it as a phrase, not syntax
func ftsPhrase(q string) string {
	return `"` + strings.ReplaceAll(strings.TrimSpace(q), `"`, `""`) + `"`
}
