// Package tools provides the tool set exposed to the model: arithmetic
// helpers and the document search integrations.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sashabaranov/go-openai"

	"evalbot/internal/logger"
)

var (
	ErrToolNotFound  = errors.New("tool not found")
	ErrDuplicateTool = errors.New("tool already registered")
)

// ToolRegistry maps tool names to tools. It is safe for concurrent use by
// several conversations.
type ToolRegistry struct {
	tools map[string]Tool
	mu    sync.RWMutex
}

// NewToolRegistry creates a registry holding the given tools.
func NewToolRegistry(tools ...Tool) (*ToolRegistry, error) {
	r := &ToolRegistry{
		tools: make(map[string]Tool),
	}
	for _, tool := range tools {
		if err := r.RegisterTool(tool); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// RegisterTool adds a tool. Empty and duplicate names are rejected so a
// misconfigured tool set fails at startup instead of at call time.
func (r *ToolRegistry) RegisterTool(tool Tool) error {
	name := tool.Name()
	if name == "" {
		return errors.New("tool has an empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}

	r.tools[name] = tool
	logger.AIDebugf("Registered tool: %s", name)
	return nil
}

// GetTool returns a tool by name.
func (r *ToolRegistry) GetTool(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	if !exists {
		return nil, fmt.Errorf("%w: '%s'", ErrToolNotFound, name)
	}

	return tool, nil
}

// Names returns the registered tool names in sorted order.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Restrict returns a registry holding only the named tools. Every name must
// already be registered.
func (r *ToolRegistry) Restrict(names []string) (*ToolRegistry, error) {
	subset := make([]Tool, 0, len(names))
	for _, name := range names {
		tool, err := r.GetTool(name)
		if err != nil {
			return nil, err
		}
		subset = append(subset, tool)
	}
	return NewToolRegistry(subset...)
}

// GetOpenAITools converts the registered tools to the OpenAI tool format,
// sorted by name so identical registries produce identical requests.
func (r *ToolRegistry) GetOpenAITools() []openai.Tool {
	names := r.Names()

	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]openai.Tool, 0, len(names))
	for _, name := range names {
		defs = append(defs, r.tools[name].ToOpenAITool())
	}
	return defs
}

// ExecuteTool executes a named tool with the provided JSON arguments.
func (r *ToolRegistry) ExecuteTool(ctx context.Context, name string, args string) (string, error) {
	tool, err := r.GetTool(name)
	if err != nil {
		return "", err
	}

	logger.AIDebugf("Executing tool: %s with args: %s", name, args)
	result, err := tool.Execute(ctx, args)
	if err != nil {
		logger.Warnf("Tool execution error: %s: %v", name, err)
		return "", err
	}

	return result, nil
}
