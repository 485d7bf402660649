package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/brandon/mailsweep/internal/cache"
	"github.com/brandon/mailsweep/pkg/types"
)

// SearchMessagesTool searches the latest cached scan
type SearchMessagesTool struct {
	toolBase
}

// Name returns the tool name
func (t *SearchMessagesTool) Name() string {
	return "search_messages"
}

// Description returns the tool description
func (t *SearchMessagesTool) Description() string {
	return "Search the messages of the account's latest scan (category, sender, subject, text, date range)"
}

// InputSchema returns the JSON schema for tool inputs
func (t *SearchMessagesTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"account_name": accountProperty(),
			"category": map[string]interface{}{
				"type":        "string",
				"description": "Optional: unread, spam or trash",
			},
			"sender": map[string]interface{}{
				"type":        "string",
				"description": "Optional: Filter by sender (substring match)",
			},
			"subject": map[string]interface{}{
				"type":        "string",
				"description": "Optional: Filter by subject (substring match)",
			},
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Optional: Full-text phrase over subject and sender",
			},
			"date_from": map[string]interface{}{
				"type":        "string",
				"description": "Optional: Start date (ISO 8601 format)",
			},
			"date_to": map[string]interface{}{
				"type":        "string",
				"description": "Optional: End date (ISO 8601 format)",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Optional: Result limit (default: SEARCH_RESULT_LIMIT)",
				"minimum":     1,
				"maximum":     1000,
			},
		},
	}
}

// Execute executes the tool
func (t *SearchMessagesTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	accountName, err := t.accountName(params)
	if err != nil {
		return nil, err
	}
	opts := cache.SearchOptions{
		Account: accountName,
		Sender:  stringParam(params, "sender"),
		Subject: stringParam(params, "subject"),
		Query:   stringParam(params, "query"),
	}

	if raw := stringParam(params, "category"); raw != nil {
		category, err := types.ParseCategory(*raw)
		if err != nil {
			return nil, err
		}
		opts.Category = &category
	}

	if opts.DateFrom, err = timeParam(params, "date_from"); err != nil {
		return nil, err
	}
	if opts.DateTo, err = timeParam(params, "date_to"); err != nil {
		return nil, err
	}

	limit, err := intParam(params, "limit")
	if err != nil {
		return nil, err
	}
	if limit != nil {
		opts.Limit = *limit
	}

	results, err := t.mailbox.Search(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	return results, nil
}

func timeParam(params map[string]interface{}, key string) (*time.Time, error) {
	raw := stringParam(params, key)
	if raw == nil {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s format: %w", key, err)
	}
	return &ts, nil
}
