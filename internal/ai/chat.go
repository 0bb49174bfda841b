package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"evalbot/internal/ai/tools"
	"evalbot/internal/logger"
	"evalbot/internal/retriever"
)

// Retriever returns stored documents ranked by similarity to the query.
type Retriever interface {
	Search(ctx context.Context, query string) ([]retriever.Document, error)
}

type state int

const (
	stateRetrieving state = iota
	stateInferring
	stateResolvingTools
	stateDone
)

func (s state) String() string {
	switch s {
	case stateRetrieving:
		return "retrieving"
	case stateInferring:
		return "inferring"
	case stateResolvingTools:
		return "resolving-tools"
	default:
		return "done"
	}
}

// Agent answers one question at a time with a retrieve, infer, call tools
// loop. An Agent holds no per-question state and may serve concurrent
// calls to Answer.
type Agent struct {
	model     Model
	retriever Retriever
	registry  *tools.ToolRegistry
	toolDefs  []openai.Tool
	cfg       Config
}

// NewAgent wires a model, an optional retriever and a tool registry. A nil
// retriever skips the retrieval step.
func NewAgent(model Model, r Retriever, registry *tools.ToolRegistry, cfg Config) (*Agent, error) {
	if model == nil {
		return nil, errors.New("agent needs a model")
	}
	if registry == nil {
		return nil, errors.New("agent needs a tool registry")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Agent{
		model:     model,
		retriever: r,
		registry:  registry,
		toolDefs:  registry.GetOpenAITools(),
		cfg:       cfg,
	}, nil
}

// Answer runs the conversation for question and returns the final answer
// with the answer marker stripped.
func (a *Agent) Answer(ctx context.Context, question string) (string, error) {
	transcript, err := a.Run(ctx, question)
	if err != nil {
		return "", err
	}
	return transcript.Answer, nil
}

// Run is Answer returning the whole conversation.
func (a *Agent) Run(ctx context.Context, question string) (*Transcript, error) {
	logger.AIDebugf("Agent received question (first 50 chars): %s...", truncate(strings.TrimSpace(question), 50))

	t := &Transcript{Question: question}
	var last Message

	st := stateRetrieving
	for {
		logger.AIDebugf("Conversation state: %s", st)

		switch st {
		case stateRetrieving:
			exemplar, err := a.retrieve(ctx, question)
			if err != nil {
				return t, fail(st, err)
			}
			t.Messages = append(t.Messages,
				Message{Role: RoleSystem, Content: a.cfg.SystemPrompt},
				Message{Role: RoleUser, Content: question},
			)
			if exemplar != "" {
				t.Messages = append(t.Messages, Message{Role: RoleUser, Content: exemplarPrefix + exemplar})
			}
			st = stateInferring

		case stateInferring:
			if t.InferenceCalls >= a.cfg.MaxRounds {
				return t, fail(st, &LoopExceededError{Rounds: t.InferenceCalls})
			}

			msg, err := a.infer(ctx, t.Messages)
			t.InferenceCalls++
			if err != nil {
				return t, fail(st, err)
			}
			t.Messages = append(t.Messages, msg)
			last = msg

			if len(msg.ToolCalls) == 0 {
				st = stateDone
			} else {
				logger.AIDebugf("Round %d requested %d tool calls", t.InferenceCalls, len(msg.ToolCalls))
				st = stateResolvingTools
			}

		case stateResolvingTools:
			// Sequential, in request order. Every call gets exactly one
			// tool message before the next inference.
			for _, call := range last.ToolCalls {
				t.Messages = append(t.Messages, a.resolve(ctx, call))
				t.ToolResults++
			}
			st = stateInferring

		case stateDone:
			t.Answer = ExtractFinalAnswer(last.Content, a.cfg.AnswerMarker)
			logger.AIDebugf("Final answer after %d rounds: %s", t.InferenceCalls, t.Answer)
			return t, nil
		}
	}
}

// fail logs the state a conversation was in when it stopped.
func fail(st state, err error) error {
	logger.Errorf("Conversation failed while %s: %v", st, err)
	return err
}

func (a *Agent) retrieve(ctx context.Context, question string) (string, error) {
	if a.retriever == nil {
		return "", nil
	}

	docs, err := a.retriever.Search(ctx, question)
	if err != nil {
		return "", fmt.Errorf("retrieve similar question: %w", err)
	}
	if len(docs) == 0 {
		if a.cfg.AllowMissingExemplar {
			logger.Warnf("No similar question found, continuing without an exemplar")
			return "", nil
		}
		return "", ErrNoExemplar
	}
	logger.AIDebugf("Using exemplar from %s (score %.3f)", docs[0].Source, docs[0].Score)
	return docs[0].Content, nil
}

func (a *Agent) infer(ctx context.Context, messages []Message) (Message, error) {
	callCtx := ctx
	if a.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.cfg.CallTimeout)
		defer cancel()
	}

	// Hand the model its own copy so it cannot alias the transcript.
	snapshot := make([]Message, len(messages))
	copy(snapshot, messages)

	msg, err := a.model.Complete(callCtx, snapshot, a.toolDefs)
	if err != nil {
		return Message{}, err
	}
	msg.Role = RoleAssistant
	return msg, nil
}

// resolve runs one tool call. Failures are reported to the model as the tool
// result so the conversation can continue.
func (a *Agent) resolve(ctx context.Context, call ToolCall) Message {
	callCtx := ctx
	if a.cfg.ToolTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.cfg.ToolTimeout)
		defer cancel()
	}

	result, err := a.registry.ExecuteTool(callCtx, call.Name, call.Arguments)
	if err != nil {
		result = fmt.Sprintf("Error executing tool %s: %v", call.Name, err)
	} else {
		logger.AIDebugf("Tool %s executed, response length: %d chars", call.Name, len(result))
	}

	return Message{
		Role:       RoleTool,
		Content:    result,
		Name:       call.Name,
		ToolCallID: call.ID,
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
