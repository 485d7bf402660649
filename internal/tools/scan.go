package tools

import (
	"context"
	"fmt"
)

// ScanMailboxTool scans unread, spam and trash folders of an account
type ScanMailboxTool struct {
	toolBase
}

// Name returns the tool name
func (t *ScanMailboxTool) Name() string {
	return "scan_mailbox"
}

// Description returns the tool description
func (t *ScanMailboxTool) Description() string {
	return "Scan an account's unread inbox, spam/junk and trash folders and cache the result for later deletes and searches"
}

// InputSchema returns the JSON schema for tool inputs
func (t *ScanMailboxTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"account_name": accountProperty(),
			"days_back": map[string]interface{}{
				"type":        "integer",
				"description": "Optional: Only keep messages from the last N days",
				"minimum":     0,
			},
			"include_trash": map[string]interface{}{
				"type":        "boolean",
				"description": "Optional: Also scan trash (default from INCLUDE_TRASH)",
			},
		},
	}
}

// Execute executes the tool
func (t *ScanMailboxTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	accountName, err := t.accountName(params)
	if err != nil {
		return nil, err
	}

	daysBack, err := intParam(params, "days_back")
	if err != nil {
		return nil, err
	}
	includeTrash := boolParam(params, "include_trash", t.config.Scan.IncludeTrash)

	result, err := t.mailbox.Scan(ctx, accountName, daysBack, includeTrash)
	if err != nil {
		return nil, fmt.Errorf("failed to scan mailbox: %w", err)
	}
	return result, nil
}
