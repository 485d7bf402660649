package tools

import (
	"context"
	"fmt"

	"github.com/brandon/mailsweep/internal/email"
)

// ListFoldersTool lists available email folders
type ListFoldersTool struct {
	toolBase
}

// Name returns the tool name
func (t *ListFoldersTool) Name() string {
	return "list_folders"
}

// Description returns the tool description
func (t *ListFoldersTool) Description() string {
	return "List the mailboxes/folders of an account and how each is classified"
}

// InputSchema returns the JSON schema for tool inputs
func (t *ListFoldersTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"account_name": accountProperty(),
		},
	}
}

// Execute executes the tool
func (t *ListFoldersTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	accountName, err := t.accountName(params)
	if err != nil {
		return nil, err
	}

	folders, err := t.mailbox.Folders(ctx, accountName)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}

	result := make([]map[string]interface{}, len(folders))
	for i, folder := range folders {
		result[i] = map[string]interface{}{
			"account_name": accountName,
			"name":         folder,
			"category":     email.Classify(folder),
		}
	}
	return result, nil
}
