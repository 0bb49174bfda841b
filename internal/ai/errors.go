package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

var (
	ErrMissingAPIKey = errors.New("API key not found")
	ErrNoExemplar    = errors.New("retriever returned no similar question")
	ErrLoopExceeded  = errors.New("maximum inference rounds reached without a final answer")
	ErrEmptyResponse = errors.New("model returned no choices")
)

// TransientError wraps inference failures worth retrying: rate limits,
// server errors, timeouts and network faults.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient inference error: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// FatalError wraps inference failures that retrying cannot fix, such as bad
// credentials or a malformed request.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return "inference error: " + e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// LoopExceededError reports how many rounds ran before giving up. It
// matches ErrLoopExceeded with errors.Is.
type LoopExceededError struct {
	Rounds int
}

func (e *LoopExceededError) Error() string {
	return fmt.Sprintf("%v (%d rounds)", ErrLoopExceeded, e.Rounds)
}

func (e *LoopExceededError) Is(target error) bool { return target == ErrLoopExceeded }

// classifyError sorts an inference error into TransientError or FatalError.
// Context cancellation by the caller is returned unchanged.
func classifyError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &TransientError{Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &TransientError{Err: err}
	}

	return &FatalError{Err: err}
}

func classifyStatus(status int, err error) error {
	switch {
	case status == http.StatusTooManyRequests,
		status == http.StatusRequestTimeout,
		status >= http.StatusInternalServerError:
		return &TransientError{Err: err}
	default:
		return &FatalError{Err: err}
	}
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}
