package tools

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandon/mailsweep/internal/cache"
	"github.com/brandon/mailsweep/internal/config"
	"github.com/brandon/mailsweep/internal/email"
	"github.com/brandon/mailsweep/pkg/types"
)

type fakeMailbox struct {
	scanArgs struct {
		account      string
		daysBack     *int
		includeTrash bool
	}
	deleted     []types.Category
	permanent   bool
	searchOpts  cache.SearchOptions
	subs        []types.Subscription
	unsubscribe []types.Subscription
}

func (f *fakeMailbox) Scan(_ context.Context, account string, daysBack *int, includeTrash bool) (*types.ScanResult, error) {
	f.scanArgs.account, f.scanArgs.daysBack, f.scanArgs.includeTrash = account, daysBack, includeTrash
	return &types.ScanResult{ID: "scan-1", Account: types.Account{Name: account}}, nil
}

func (f *fakeMailbox) Delete(_ context.Context, account string, category types.Category, permanent bool) (*email.DeleteReport, error) {
	f.deleted = append(f.deleted, category)
	f.permanent = permanent
	return &email.DeleteReport{Account: account, Category: category, Submitted: 3, Permanent: permanent}, nil
}

func (f *fakeMailbox) Folders(_ context.Context, account string) ([]string, error) {
	if account != "default" {
		return nil, errors.New("account not found: " + account)
	}
	return []string{"INBOX", "Junk", "Archive"}, nil
}

func (f *fakeMailbox) Search(_ context.Context, opts cache.SearchOptions) ([]types.MessageRecord, error) {
	f.searchOpts = opts
	return []types.MessageRecord{{Subject: "hit", UID: 4}}, nil
}

func (f *fakeMailbox) Subscriptions(_ context.Context, _ string) ([]types.Subscription, error) {
	return f.subs, nil
}

func (f *fakeMailbox) Unsubscribe(_ context.Context, _ string, sub types.Subscription) (*email.UnsubscribeReport, error) {
	f.unsubscribe = append(f.unsubscribe, sub)
	return &email.UnsubscribeReport{Email: sub.Email, Method: sub.Method, Link: sub.Link}, nil
}

func newTestRegistry(t *testing.T) (*Registry, *fakeMailbox) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &config.Config{
		SearchResultLimit: 100,
		Scan:              config.ScanConfig{IncludeTrash: true},
		Accounts:          []config.AccountConfig{{Name: "default"}},
	}
	mailbox := &fakeMailbox{}
	reg, err := NewRegistry(cfg, mailbox, logger)
	require.NoError(t, err)
	return reg, mailbox
}

func execute(t *testing.T, reg *Registry, name string, params map[string]interface{}) (interface{}, error) {
	t.Helper()
	tool, ok := reg.GetTool(name)
	require.True(t, ok, "tool %s not registered", name)
	return tool.Execute(context.Background(), params)
}

func TestRegistryDefinitions(t *testing.T) {
	reg, _ := newTestRegistry(t)

	var names []string
	for _, def := range reg.GetToolDefinitions() {
		names = append(names, def["name"].(string))
		assert.NotEmpty(t, def["description"])
		assert.NotNil(t, def["inputSchema"])
	}
	assert.Equal(t, []string{
		"delete_messages", "list_folders", "list_subscriptions",
		"scan_mailbox", "search_messages", "unsubscribe",
	}, names)
}

func TestScanMailboxTool(t *testing.T) {
	reg, mailbox := newTestRegistry(t)

	out, err := execute(t, reg, "scan_mailbox", map[string]interface{}{"days_back": float64(7)})
	require.NoError(t, err)
	assert.Equal(t, "scan-1", out.(*types.ScanResult).ID)
	assert.Equal(t, "default", mailbox.scanArgs.account)
	require.NotNil(t, mailbox.scanArgs.daysBack)
	assert.Equal(t, 7, *mailbox.scanArgs.daysBack)
	assert.True(t, mailbox.scanArgs.includeTrash)

	_, err = execute(t, reg, "scan_mailbox", map[string]interface{}{"include_trash": false})
	require.NoError(t, err)
	assert.Nil(t, mailbox.scanArgs.daysBack)
	assert.False(t, mailbox.scanArgs.includeTrash)

	_, err = execute(t, reg, "scan_mailbox", map[string]interface{}{"days_back": "soon"})
	assert.Error(t, err)
}

func TestDeleteMessagesTool(t *testing.T) {
	reg, mailbox := newTestRegistry(t)

	out, err := execute(t, reg, "delete_messages", map[string]interface{}{"category": "junk", "permanent": true})
	require.NoError(t, err)
	assert.Equal(t, 3, out.(*email.DeleteReport).Submitted)
	assert.Equal(t, []types.Category{types.CategorySpam}, mailbox.deleted)
	assert.True(t, mailbox.permanent)

	_, err = execute(t, reg, "delete_messages", map[string]interface{}{})
	assert.ErrorContains(t, err, "category is required")

	_, err = execute(t, reg, "delete_messages", map[string]interface{}{"category": "other"})
	assert.Error(t, err)
}

func TestListFoldersTool(t *testing.T) {
	reg, _ := newTestRegistry(t)

	out, err := execute(t, reg, "list_folders", nil)
	require.NoError(t, err)
	folders := out.([]map[string]interface{})
	require.Len(t, folders, 3)
	assert.Equal(t, types.CategorySpam, folders[1]["category"])
	assert.Equal(t, types.CategoryOther, folders[2]["category"])

	_, err = execute(t, reg, "list_folders", map[string]interface{}{"account_name": "nope"})
	assert.Error(t, err)
}

func TestSearchMessagesTool(t *testing.T) {
	reg, mailbox := newTestRegistry(t)

	_, err := execute(t, reg, "search_messages", map[string]interface{}{
		"category":  "spam",
		"sender":    "news",
		"date_from": "2026-10-01T00:00:00Z",
		"limit":     float64(5),
	})
	require.NoError(t, err)

	opts := mailbox.searchOpts
	assert.Equal(t, "default", opts.Account)
	require.NotNil(t, opts.Category)
	assert.Equal(t, types.CategorySpam, *opts.Category)
	assert.Equal(t, "news", *opts.Sender)
	assert.Nil(t, opts.Subject)
	require.NotNil(t, opts.DateFrom)
	assert.True(t, opts.DateFrom.Equal(time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 5, opts.Limit)

	_, err = execute(t, reg, "search_messages", map[string]interface{}{"date_to": "yesterday"})
	assert.Error(t, err)
}

func TestUnsubscribeTool(t *testing.T) {
	reg, mailbox := newTestRegistry(t)
	mailbox.subs = []types.Subscription{
		{Name: "News", Email: "news@example.com", Method: types.UnsubscribeHTTP, Link: "https://example.com/u"},
	}

	_, err := execute(t, reg, "unsubscribe", map[string]interface{}{"sender": "NEWS@example.com"})
	require.NoError(t, err)
	require.Len(t, mailbox.unsubscribe, 1)
	assert.Equal(t, "https://example.com/u", mailbox.unsubscribe[0].Link)

	_, err = execute(t, reg, "unsubscribe", map[string]interface{}{
		"sender":     "list@example.org",
		"unsub_type": "MAILTO",
		"unsub_link": "mailto:leave@example.org",
	})
	require.NoError(t, err)
	assert.Equal(t, types.UnsubscribeMailto, mailbox.unsubscribe[1].Method)

	_, err = execute(t, reg, "unsubscribe", map[string]interface{}{"sender": "ghost@example.com"})
	assert.ErrorContains(t, err, "no subscription found")

	_, err = execute(t, reg, "unsubscribe", map[string]interface{}{})
	assert.ErrorContains(t, err, "sender is required")
}
