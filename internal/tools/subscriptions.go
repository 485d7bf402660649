package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/brandon/mailsweep/pkg/types"
)

// ListSubscriptionsTool lists mailing-list senders found in the inbox
type ListSubscriptionsTool struct {
	toolBase
}

// Name returns the tool name
func (t *ListSubscriptionsTool) Name() string {
	return "list_subscriptions"
}

// Description returns the tool description
func (t *ListSubscriptionsTool) Description() string {
	return "List newsletter and mailing-list senders in the inbox with their unsubscribe links"
}

// InputSchema returns the JSON schema for tool inputs
func (t *ListSubscriptionsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"account_name": accountProperty(),
		},
	}
}

// Execute executes the tool
func (t *ListSubscriptionsTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	accountName, err := t.accountName(params)
	if err != nil {
		return nil, err
	}

	subs, err := t.mailbox.Subscriptions(ctx, accountName)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}

// UnsubscribeTool unsubscribes from one sender
type UnsubscribeTool struct {
	toolBase
}

// Name returns the tool name
func (t *UnsubscribeTool) Name() string {
	return "unsubscribe"
}

// Description returns the tool description
func (t *UnsubscribeTool) Description() string {
	return "Unsubscribe from a sender: mailto links are answered by email, http links are returned to open"
}

// InputSchema returns the JSON schema for tool inputs
func (t *UnsubscribeTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"account_name": accountProperty(),
			"sender": map[string]interface{}{
				"type":        "string",
				"description": "Sender address as returned by list_subscriptions",
			},
			"unsub_type": map[string]interface{}{
				"type":        "string",
				"description": "Optional: http or mailto; looked up when omitted",
			},
			"unsub_link": map[string]interface{}{
				"type":        "string",
				"description": "Optional: Unsubscribe link; looked up when omitted",
			},
		},
		"required": []string{"sender"},
	}
}

// Execute executes the tool
func (t *UnsubscribeTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	accountName, err := t.accountName(params)
	if err != nil {
		return nil, err
	}

	sender := stringParam(params, "sender")
	if sender == nil {
		return nil, fmt.Errorf("sender is required")
	}

	sub := types.Subscription{Email: *sender}
	if link := stringParam(params, "unsub_link"); link != nil {
		sub.Link = *link
		sub.Method = types.UnsubscribeUnknown
		if method := stringParam(params, "unsub_type"); method != nil {
			sub.Method = types.UnsubscribeMethod(strings.ToLower(*method))
		}
	} else {
		found, err := t.lookup(ctx, accountName, *sender)
		if err != nil {
			return nil, err
		}
		sub = found
	}

	report, err := t.mailbox.Unsubscribe(ctx, accountName, sub)
	if err != nil {
		return nil, fmt.Errorf("failed to unsubscribe: %w", err)
	}
	return report, nil
}

func (t *UnsubscribeTool) lookup(ctx context.Context, accountName, sender string) (types.Subscription, error) {
	subs, err := t.mailbox.Subscriptions(ctx, accountName)
	if err != nil {
		return types.Subscription{}, fmt.Errorf("failed to look up subscription: %w", err)
	}
	for _, s := range subs {
		if strings.EqualFold(s.Email, sender) {
			return s, nil
		}
	}
	return types.Subscription{}, fmt.Errorf("no subscription found for %s", sender)
}
