package ai

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sashabaranov/go-openai"

	"evalbot/internal/logger"
)

// Model is the inference service: the full conversation and the tool schemas
// in, one assistant message out.
type Model interface {
	Complete(ctx context.Context, messages []Message, tools []openai.Tool) (Message, error)
}

// Provider describes an OpenAI-compatible chat endpoint.
type Provider struct {
	Name         string
	BaseURL      string
	DefaultModel string
	APIKeyEnv    []string
}

var providers = map[string]Provider{
	"openai": {
		Name:         "openai",
		BaseURL:      "https://api.openai.com/v1",
		DefaultModel: openai.GPT4o,
		APIKeyEnv:    []string{"OPENAI_API_KEY"},
	},
	"groq": {
		Name:         "groq",
		BaseURL:      "https://api.groq.com/openai/v1",
		DefaultModel: "qwen-qwq-32b",
		APIKeyEnv:    []string{"GROQ_API_KEY"},
	},
	"google": {
		Name:         "google",
		BaseURL:      "https://generativelanguage.googleapis.com/v1beta/openai",
		DefaultModel: "gemini-2.0-flash",
		APIKeyEnv:    []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"},
	},
	"huggingface": {
		Name:         "huggingface",
		BaseURL:      "https://router.huggingface.co/v1",
		DefaultModel: "meta-llama/Llama-3.3-70B-Instruct",
		APIKeyEnv:    []string{"HF_TOKEN", "HUGGINGFACEHUB_API_TOKEN"},
	},
}

// LookupProvider returns the preset for name.
func LookupProvider(name string) (Provider, error) {
	p, ok := providers[name]
	if !ok {
		return Provider{}, fmt.Errorf("invalid provider %q: choose openai, groq, google or huggingface", name)
	}
	return p, nil
}

// APIKey returns the first key found in the provider's environment variables.
func (p Provider) APIKey() (string, error) {
	for _, key := range p.APIKeyEnv {
		if v := os.Getenv(key); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: set %s", ErrMissingAPIKey, p.APIKeyEnv[0])
}

type ModelOptions struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float32
	MaxTokens   int

	// RetryAttempts is the number of retries after the first transient failure.
	RetryAttempts int
	RetryBase     time.Duration
	RetryMax      time.Duration
}

// OpenAIModel talks to any OpenAI-compatible chat completion endpoint.
type OpenAIModel struct {
	client      *openai.Client
	provider    string
	model       string
	temperature float32
	maxTokens   int

	retryAttempts int
	retryBase     time.Duration
	retryMax      time.Duration
}

func NewOpenAIModel(opts ModelOptions) (*OpenAIModel, error) {
	preset, err := LookupProvider(opts.Provider)
	if err != nil {
		return nil, err
	}

	apiKey := opts.APIKey
	if apiKey == "" {
		if apiKey, err = preset.APIKey(); err != nil {
			return nil, err
		}
	}

	clientConfig := openai.DefaultConfig(apiKey)
	clientConfig.BaseURL = preset.BaseURL
	if opts.BaseURL != "" {
		clientConfig.BaseURL = opts.BaseURL
	}

	model := opts.Model
	if model == "" {
		model = preset.DefaultModel
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = time.Second
	}
	if opts.RetryMax <= 0 {
		opts.RetryMax = 30 * time.Second
	}

	logger.Successf("Inference client initialized (provider %s, model %s)", preset.Name, model)
	return &OpenAIModel{
		client:        openai.NewClientWithConfig(clientConfig),
		provider:      preset.Name,
		model:         model,
		temperature:   opts.Temperature,
		maxTokens:     opts.MaxTokens,
		retryAttempts: opts.RetryAttempts,
		retryBase:     opts.RetryBase,
		retryMax:      opts.RetryMax,
	}, nil
}

func (m *OpenAIModel) Name() string { return m.provider + "/" + m.model }

func (m *OpenAIModel) createChatRequest(messages []Message, availableTools []openai.Tool) openai.ChatCompletionRequest {
	request := openai.ChatCompletionRequest{
		Model:       m.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: m.temperature,
		MaxTokens:   m.maxTokens,
	}
	if len(availableTools) > 0 {
		request.Tools = availableTools
	}
	return request
}

// Complete sends the conversation, retrying transient failures with
// exponential backoff.
func (m *OpenAIModel) Complete(ctx context.Context, messages []Message, availableTools []openai.Tool) (Message, error) {
	request := m.createChatRequest(messages, availableTools)

	delay := m.retryBase
	for attempt := 0; ; attempt++ {
		resp, err := m.client.CreateChatCompletion(ctx, request)
		if err == nil {
			if len(resp.Choices) == 0 {
				return Message{}, &FatalError{Err: ErrEmptyResponse}
			}
			return fromOpenAIMessage(resp.Choices[0].Message), nil
		}

		err = classifyError(ctx, err)
		if !IsTransient(err) || attempt >= m.retryAttempts {
			logger.Errorf("%s API error: %v", m.provider, err)
			return Message{}, err
		}

		logger.Warnf("%s API error (attempt %d/%d), retrying in %s: %v",
			m.provider, attempt+1, m.retryAttempts+1, delay, err)
		select {
		case <-ctx.Done():
			return Message{}, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > m.retryMax {
			delay = m.retryMax
		}
	}
}
