package tools

import (
	"context"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// Tool is a named function the model may call. Execute receives the raw JSON
// arguments produced by the model.
type Tool interface {
	Name() string
	Description() string
	Parameters() jsonschema.Definition
	Execute(ctx context.Context, args string) (string, error)
	ToOpenAITool() openai.Tool
}

type BaseTool struct {
	ToolName        string
	ToolDescription string
	ToolParameters  jsonschema.Definition
}

func (b *BaseTool) Name() string {
	return b.ToolName
}

func (b *BaseTool) Description() string {
	return b.ToolDescription
}

func (b *BaseTool) Parameters() jsonschema.Definition {
	return b.ToolParameters
}

func (b *BaseTool) ToOpenAITool() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        b.Name(),
			Description: b.Description(),
			Parameters:  b.Parameters(),
		},
	}
}

// queryParams is the schema shared by the search tools.
func queryParams(description string) jsonschema.Definition {
	return jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"query": {
				Type:        jsonschema.String,
				Description: description,
			},
		},
		Required: []string{"query"},
	}
}
