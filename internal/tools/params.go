package tools

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mailsweep/internal/config"
)

// toolBase is embedded by every tool
type toolBase struct {
	config  *config.Config
	mailbox Mailbox
	logger  *logrus.Logger
}

func accountProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Optional: Account name, defaults to the default account",
	}
}

// accountName returns the requested account or the default one
func (b *toolBase) accountName(params map[string]interface{}) (string, error) {
	if name, ok := params["account_name"].(string); ok && strings.TrimSpace(name) != "" {
		return strings.TrimSpace(name), nil
	}
	acc := b.config.GetDefaultAccount()
	if acc == nil {
		return "", fmt.Errorf("no accounts configured")
	}
	return acc.Name, nil
}

func stringParam(params map[string]interface{}, key string) *string {
	if v, ok := params[key].(string); ok && strings.TrimSpace(v) != "" {
		v = strings.TrimSpace(v)
		return &v
	}
	return nil
}

// intParam accepts JSON numbers and numeric strings
func intParam(params map[string]interface{}, key string) (*int, error) {
	switch v := params[key].(type) {
	case nil:
		return nil, nil
	case float64:
		n := int(v)
		return &n, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		return &n, nil
	}
	return nil, fmt.Errorf("invalid %s: %v", key, params[key])
}

func boolParam(params map[string]interface{}, key string, def bool) bool {
	switch v := params[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
