package ai

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"evalbot/internal"
	"evalbot/internal/logger"
)

type Config struct {
	SystemPrompt string
	AnswerMarker string

	// MaxRounds bounds the number of inference calls per question.
	MaxRounds   int
	CallTimeout time.Duration
	ToolTimeout time.Duration

	// AllowMissingExemplar lets a conversation start without a retrieved
	// exemplar instead of failing with ErrNoExemplar.
	AllowMissingExemplar bool
}

// DefaultSystemPrompt is the GAIA answer-format prompt. The final line of
// every answer starts with the answer marker.
const DefaultSystemPrompt = `You are a helpful assistant tasked with answering questions using a set of tools.
Now, I will ask you a question. Report your thoughts, and finish your answer with the following template:
FINAL ANSWER: [YOUR FINAL ANSWER].
YOUR FINAL ANSWER should be a number OR as few words as possible OR a comma separated list of numbers and/or strings. If you are asked for a number, don't use comma to write your number neither use units such as $ or percent sign unless specified otherwise. If you are asked for a string, don't use articles, neither abbreviations (e.g. for cities), and write the digits in plain text unless specified otherwise. If you are asked for a comma separated list, apply the above rules depending of whether the element to be put in the list is a number or a string.
Your answer should only start with "FINAL ANSWER: ", then follows with your answer.`

const exemplarPrefix = "Here I provide a similar question and answer for reference: \n\n"

func DefaultConfig() Config {
	return Config{
		SystemPrompt: DefaultSystemPrompt,
		AnswerMarker: internal.DEFAULT_ANSWER_MARKER,
		MaxRounds:    internal.DEFAULT_MAX_ROUNDS,
		CallTimeout:  time.Duration(internal.DEFAULT_CALL_TIMEOUT) * time.Second,
		ToolTimeout:  time.Duration(internal.DEFAULT_TOOL_TIMEOUT) * time.Second,
	}
}

// LoadSystemPrompt reads the prompt file at path. A missing file yields
// DefaultSystemPrompt.
func LoadSystemPrompt(path string) (string, error) {
	if path == "" {
		return DefaultSystemPrompt, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warnf("System prompt %s not found, using the built-in prompt", path)
		return DefaultSystemPrompt, nil
	}
	if err != nil {
		return "", fmt.Errorf("read system prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("system prompt %s is empty", path)
	}
	return prompt, nil
}

func (c Config) validate() error {
	if c.MaxRounds <= 0 {
		return errors.New("max rounds must be positive")
	}
	if c.SystemPrompt == "" {
		return errors.New("system prompt is empty")
	}
	return nil
}
