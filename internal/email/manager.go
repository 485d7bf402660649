package email

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mailsweep/internal/cache"
	"github.com/brandon/mailsweep/internal/config"
	"github.com/brandon/mailsweep/pkg/types"
)

// Manager manages email operations
type Manager struct {
	accountManager *AccountManager
	scanner        *Scanner
	store          *cache.Store
	config         *config.Config
	logger         *logrus.Logger
}

// NewManager creates a new email manager. A nil dial connects over TLS.
func NewManager(cfg *config.Config, cacheStore *cache.Store, dial Dialer, logger *logrus.Logger) (*Manager, error) {
	accountManager, err := NewAccountManager(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create account manager: %w", err)
	}

	loc, err := cfg.Scan.Location()
	if err != nil {
		return nil, err
	}

	scanner := NewScanner(dial, Options{
		Workers:       cfg.Scan.Workers,
		UnreadWorkers: cfg.Scan.UnreadWorkers,
		ChunkSize:     cfg.Scan.ChunkSize,
		Timeout:       cfg.Scan.IOTimeout,
		Location:      loc,
	}, logger)

	return &Manager{
		accountManager: accountManager,
		scanner:        scanner,
		store:          cacheStore,
		config:         cfg,
		logger:         logger,
	}, nil
}

// DeleteReport summarizes one bulk delete
type DeleteReport struct {
	Account   string         `json:"account"`
	Category  types.Category `json:"category"`
	ScanID    string         `json:"scan_id"`
	Submitted int            `json:"submitted"`
	Permanent bool           `json:"permanent"`
}

// UnsubscribeReport says what was done for one sender
type UnsubscribeReport struct {
	Email  string                  `json:"email"`
	Method types.UnsubscribeMethod `json:"unsub_type"`
	Link   string                  `json:"unsub_link,omitempty"`
	Sent   bool                    `json:"sent"`
}

// Scan runs a full scan for an account and caches the result. The result
// returned still carries the session and can be passed to Delete directly.
func (m *Manager) Scan(ctx context.Context, accountName string, daysBack *int, includeTrash bool) (*types.ScanResult, error) {
	account, err := m.accountManager.GetAccount(accountName)
	if err != nil {
		return nil, err
	}

	result, err := m.scanner.ScanAll(ctx, account.Session, daysBack, includeTrash)
	if err != nil {
		return nil, err
	}

	if err := m.store.SaveScan(ctx, result); err != nil {
		m.logger.WithError(err).WithField("account", accountName).Warn("Failed to cache scan")
	}
	return result, nil
}

// Delete removes the category's messages found by the account's latest
// cached scan.
func (m *Manager) Delete(ctx context.Context, accountName string, category types.Category, permanent bool) (*DeleteReport, error) {
	account, err := m.accountManager.GetAccount(accountName)
	if err != nil {
		return nil, err
	}

	scan, err := m.store.LatestScan(ctx, accountName)
	if err != nil {
		return nil, fmt.Errorf("run a scan first: %w", err)
	}
	scan.AttachSession(account.Session)

	return m.DeleteFrom(ctx, scan, category, permanent)
}

// DeleteFrom removes the category's messages of scan, which must carry a
// session, and prunes them from the cached copy.
func (m *Manager) DeleteFrom(ctx context.Context, scan *types.ScanResult, category types.Category, permanent bool) (*DeleteReport, error) {
	records := scan.Records(category)
	n, err := m.scanner.Delete(ctx, category, records, scan.Folders, permanent)
	if err != nil {
		return nil, err
	}

	report := &DeleteReport{
		Account:   scan.Account.Name,
		Category:  category,
		ScanID:    scan.ID,
		Submitted: n,
		Permanent: permanent,
	}
	if n == 0 || scan.ID == "" {
		return report, nil
	}

	folder, err := ResolveFolder(category, scan.Folders)
	if err != nil {
		return report, nil
	}
	uids, _, _ := TargetUIDs(records, folder)
	if _, err := m.store.RemoveMessages(ctx, scan.ID, category, folder, uids); err != nil {
		m.logger.WithError(err).WithField("scan_id", scan.ID).Warn("Failed to prune cached scan")
	}
	return report, nil
}

// Folders lists the account's mailbox names
func (m *Manager) Folders(ctx context.Context, accountName string) ([]string, error) {
	account, err := m.accountManager.GetAccount(accountName)
	if err != nil {
		return nil, err
	}
	return m.scanner.ListFolders(ctx, account.Session)
}

// Search queries the account's latest cached scan
func (m *Manager) Search(ctx context.Context, opts cache.SearchOptions) ([]types.MessageRecord, error) {
	if _, err := m.accountManager.GetAccount(opts.Account); err != nil {
		return nil, err
	}
	if opts.Limit <= 0 || opts.Limit > m.config.SearchResultLimit {
		opts.Limit = m.config.SearchResultLimit
	}
	return m.store.Search(ctx, opts)
}

// Subscriptions lists mailing-list senders the account has not yet
// unsubscribed from.
func (m *Manager) Subscriptions(ctx context.Context, accountName string) ([]types.Subscription, error) {
	account, err := m.accountManager.GetAccount(accountName)
	if err != nil {
		return nil, err
	}

	skip, err := m.store.Unsubscribed(ctx, accountName)
	if err != nil {
		return nil, err
	}
	return m.scanner.Subscriptions(ctx, account.Session, skip)
}

// Unsubscribe acts on a subscription: mailto: links are answered over SMTP
// when the account has it configured, http links are returned for the
// caller to open. The sender is remembered either way.
func (m *Manager) Unsubscribe(ctx context.Context, accountName string, sub types.Subscription) (*UnsubscribeReport, error) {
	account, err := m.accountManager.GetAccount(accountName)
	if err != nil {
		return nil, err
	}

	report := &UnsubscribeReport{Email: sub.Email, Method: sub.Method, Link: sub.Link}
	if sub.Method == types.UnsubscribeMailto && sub.Link != "" && account.SMTP != nil {
		msg, err := ParseMailto(sub.Link)
		if err != nil {
			return nil, err
		}
		if err := account.SMTP.Send(msg); err != nil {
			return nil, fmt.Errorf("failed to send unsubscribe request: %w", err)
		}
		report.Sent = true
	}

	if err := m.store.MarkUnsubscribed(ctx, account.Session.Account, sub.Email); err != nil {
		return nil, err
	}

	m.logger.WithFields(logrus.Fields{
		"account": accountName,
		"sender":  sub.Email,
		"method":  sub.Method,
		"sent":    report.Sent,
	}).Info("Unsubscribed")
	return report, nil
}

// Accounts returns all account names
func (m *Manager) Accounts() []string {
	return m.accountManager.ListAccounts()
}

// GetAccount returns an account by name
func (m *Manager) GetAccount(name string) (*Account, error) {
	return m.accountManager.GetAccount(name)
}
