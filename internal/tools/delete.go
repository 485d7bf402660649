package tools

import (
	"context"
	"fmt"

	"github.com/brandon/mailsweep/pkg/types"
)

// DeleteMessagesTool deletes one category of the latest scan
type DeleteMessagesTool struct {
	toolBase
}

// Name returns the tool name
func (t *DeleteMessagesTool) Name() string {
	return "delete_messages"
}

// Description returns the tool description
func (t *DeleteMessagesTool) Description() string {
	return "Delete the unread, spam or trash messages found by the account's latest scan"
}

// InputSchema returns the JSON schema for tool inputs
func (t *DeleteMessagesTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"account_name": accountProperty(),
			"category": map[string]interface{}{
				"type":        "string",
				"description": "Which bucket to delete",
				"enum":        []string{"unread", "spam", "trash"},
			},
			"permanent": map[string]interface{}{
				"type":        "boolean",
				"description": "Optional: Expunge after flagging (default: false)",
			},
		},
		"required": []string{"category"},
	}
}

// Execute executes the tool
func (t *DeleteMessagesTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	accountName, err := t.accountName(params)
	if err != nil {
		return nil, err
	}

	raw := stringParam(params, "category")
	if raw == nil {
		return nil, fmt.Errorf("category is required")
	}
	category, err := types.ParseCategory(*raw)
	if err != nil {
		return nil, err
	}
	if category == types.CategoryOther {
		return nil, fmt.Errorf("category must be unread, spam or trash")
	}

	report, err := t.mailbox.Delete(ctx, accountName, category, boolParam(params, "permanent", false))
	if err != nil {
		return nil, fmt.Errorf("failed to delete messages: %w", err)
	}
	return report, nil
}
