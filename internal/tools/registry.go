package tools

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mailsweep/internal/cache"
	"github.com/brandon/mailsweep/internal/config"
	"github.com/brandon/mailsweep/internal/email"
	"github.com/brandon/mailsweep/pkg/types"
)

// Mailbox is what the tools drive; *email.Manager implements it
type Mailbox interface {
	Scan(ctx context.Context, accountName string, daysBack *int, includeTrash bool) (*types.ScanResult, error)
	Delete(ctx context.Context, accountName string, category types.Category, permanent bool) (*email.DeleteReport, error)
	Folders(ctx context.Context, accountName string) ([]string, error)
	Search(ctx context.Context, opts cache.SearchOptions) ([]types.MessageRecord, error)
	Subscriptions(ctx context.Context, accountName string) ([]types.Subscription, error)
	Unsubscribe(ctx context.Context, accountName string, sub types.Subscription) (*email.UnsubscribeReport, error)
}

var _ Mailbox = (*email.Manager)(nil)

// Registry manages MCP tools
type Registry struct {
	config  *config.Config
	logger  *logrus.Logger
	mailbox Mailbox
	tools   map[string]Tool
}

// Tool represents an MCP tool
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]interface{}
	Execute(ctx context.Context, params map[string]interface{}) (interface{}, error)
}

// NewRegistry creates a new tool registry
func NewRegistry(cfg *config.Config, mailbox Mailbox, logger *logrus.Logger) (*Registry, error) {
	reg := &Registry{
		config:  cfg,
		logger:  logger,
		mailbox: mailbox,
		tools:   make(map[string]Tool),
	}

	// Register all tools
	reg.registerTools()

	return reg, nil
}

// registerTools registers all available tools
func (r *Registry) registerTools() {
	base := toolBase{config: r.config, mailbox: r.mailbox, logger: r.logger}
	toolList := []Tool{
		&ScanMailboxTool{base},
		&DeleteMessagesTool{base},
		&ListFoldersTool{base},
		&SearchMessagesTool{base},
		&ListSubscriptionsTool{base},
		&UnsubscribeTool{base},
	}

	for _, tool := range toolList {
		r.tools[tool.Name()] = tool
		r.logger.WithField("tool", tool.Name()).Debug("Registered tool")
	}

	r.logger.WithField("count", len(r.tools)).Info("Registered tools")
}

// GetTool returns a tool by name
func (r *Registry) GetTool(name string) (Tool, bool) {
	tool, exists := r.tools[name]
	return tool, exists
}

// ListTools returns all registered tools, sorted by name
func (r *Registry) ListTools() []Tool {
	tools := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name() < tools[j].Name() })
	return tools
}

// GetToolDefinitions returns tool definitions for MCP
func (r *Registry) GetToolDefinitions() []map[string]interface{} {
	tools := r.ListTools()
	definitions := make([]map[string]interface{}, 0, len(tools))
	for _, tool := range tools {
		definitions = append(definitions, map[string]interface{}{
			"name":        tool.Name(),
			"description": tool.Description(),
			"inputSchema": tool.InputSchema(),
		})
	}
	return definitions
}
