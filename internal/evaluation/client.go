// Package evaluation fetches benchmark questions, answers them with the agent
// and submits the answers to the scoring service.
package evaluation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"evalbot/internal/logger"
)

var (
	ErrNoQuestions = errors.New("fetched questions list is empty")
	ErrNoAnswers   = errors.New("agent did not produce any answers to submit")
)

// Question is one item of the scoring service's question list. Question is
// a pointer so a missing field can be told apart from an empty one.
type Question struct {
	TaskID   string  `json:"task_id"`
	Question *string `json:"question"`
	Level    string  `json:"Level,omitempty"`
	FileName string  `json:"file_name,omitempty"`
}

// Answer is one entry of a submission.
type Answer struct {
	TaskID          string `json:"task_id"`
	SubmittedAnswer string `json:"submitted_answer"`
}

type Submission struct {
	Username  string   `json:"username"`
	AgentCode string   `json:"agent_code"`
	Answers   []Answer `json:"answers"`
}

// SubmitResult is the scoring service's verdict. Fields are pointers because
// the service may omit any of them.
type SubmitResult struct {
	Username       string   `json:"username"`
	Score          *float64 `json:"score"`
	CorrectCount   *int     `json:"correct_count"`
	TotalAttempted *int     `json:"total_attempted"`
	Message        *string  `json:"message"`
}

// HTTPError is a non-2xx response from the scoring service.
type HTTPError struct {
	StatusCode int
	Detail     string
	// FromJSON is set when the response body was JSON.
	FromJSON bool
}

func (e *HTTPError) Error() string {
	label := "Response"
	if e.FromJSON {
		label = "Detail"
	}
	return fmt.Sprintf("Server responded with status %d. %s: %s", e.StatusCode, label, e.Detail)
}

type ClientOptions struct {
	QuestionsTimeout time.Duration
	SubmitTimeout    time.Duration
	HTTPClient       *http.Client
}

// Client talks to the scoring service.
type Client struct {
	baseURL          string
	http             *http.Client
	questionsTimeout time.Duration
	submitTimeout    time.Duration
}

func NewClient(baseURL string, opts ClientOptions) *Client {
	if opts.QuestionsTimeout <= 0 {
		opts.QuestionsTimeout = 15 * time.Second
	}
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = 60 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	return &Client{
		baseURL:          strings.TrimRight(baseURL, "/"),
		http:             opts.HTTPClient,
		questionsTimeout: opts.QuestionsTimeout,
		submitTimeout:    opts.SubmitTimeout,
	}
}

// FetchQuestions returns the question list. An empty list is an error.
func (c *Client) FetchQuestions(ctx context.Context) ([]Question, error) {
	ctx, cancel := context.WithTimeout(ctx, c.questionsTimeout)
	defer cancel()

	url := c.baseURL + "/questions"
	logger.Infof("Fetching questions from: %s", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch questions: %w", err)
	}

	var questions []Question
	if err := json.Unmarshal(body, &questions); err != nil {
		return nil, fmt.Errorf("decode questions: %w (response: %s)", err, truncateBody(body))
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	logger.Infof("Fetched %d questions", len(questions))
	return questions, nil
}

// Submit posts the answers and returns the service's verdict.
func (c *Client) Submit(ctx context.Context, sub Submission) (*SubmitResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.submitTimeout)
	defer cancel()

	payload, err := json.Marshal(sub)
	if err != nil {
		return nil, err
	}

	url := c.baseURL + "/submit"
	logger.Infof("Submitting %d answers to: %s", len(sub.Answers), url)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var result SubmitResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode submit response: %w", err)
	}
	return &result, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newHTTPError(resp.StatusCode, body)
	}
	return body, nil
}

func newHTTPError(status int, body []byte) *HTTPError {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil {
		if detail, ok := payload["detail"]; ok {
			if s, isString := detail.(string); isString {
				return &HTTPError{StatusCode: status, Detail: s, FromJSON: true}
			}
			raw, _ := json.Marshal(detail)
			return &HTTPError{StatusCode: status, Detail: string(raw), FromJSON: true}
		}
		return &HTTPError{StatusCode: status, Detail: string(body), FromJSON: true}
	}
	return &HTTPError{StatusCode: status, Detail: truncateBody(body)}
}

func truncateBody(body []byte) string {
	if len(body) > 500 {
		body = body[:500]
	}
	return string(body)
}
