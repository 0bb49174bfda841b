package evaluation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"evalbot/internal/logger"
)

// Answerer answers a single question. *ai.Agent satisfies it.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

// Row is one line of the results table.
type Row struct {
	TaskID          string `json:"task_id"`
	Question        string `json:"question"`
	SubmittedAnswer string `json:"submitted_answer"`
	Failed          bool   `json:"failed,omitempty"`
	Cached          bool   `json:"cached,omitempty"`
}

// Report collects the outcome of one run.
type Report struct {
	RunID      string        `json:"run_id"`
	Username   string        `json:"username,omitempty"`
	AgentCode  string        `json:"agent_code,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Rows       []Row         `json:"rows"`
	Answers    []Answer      `json:"answers"`
	Result     *SubmitResult `json:"result,omitempty"`
	Status     string        `json:"status"`
}

type RunnerOptions struct {
	Username string
	SpaceID  string
	// Workers bounds the number of concurrent conversations.
	Workers int
	// Resume reuses successful answers from the cache instead of asking again.
	Resume bool
}

type Runner struct {
	client *Client
	agent  Answerer
	cache  *Cache
	opts   RunnerOptions
}

// NewRunner wires the scoring client, the agent and an optional cache.
func NewRunner(client *Client, agent Answerer, cache *Cache, opts RunnerOptions) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Runner{client: client, agent: agent, cache: cache, opts: opts}
}

// AgentCodeURL links the submission to the code that produced it.
func AgentCodeURL(spaceID string) string {
	return fmt.Sprintf("https://huggingface.co/spaces/%s/tree/main", spaceID)
}

// Run fetches the questions and answers them.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	questions, err := r.client.FetchQuestions(ctx)
	if err != nil {
		return nil, err
	}
	return r.AnswerAll(ctx, questions)
}

// AnswerAll answers questions with at most Workers conversations in flight.
// Rows keep the order of questions. A failed question becomes an
// "AGENT ERROR" row and is left out of Answers.
func (r *Runner) AnswerAll(ctx context.Context, questions []Question) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}

	valid := make([]Question, 0, len(questions))
	for _, q := range questions {
		if q.TaskID == "" || q.Question == nil {
			logger.Warnf("Skipping item with missing task_id or question: %+v", q)
			continue
		}
		valid = append(valid, q)
	}

	logger.Infof("Running agent on %d questions (run %s, %d workers)", len(valid), report.RunID, r.opts.Workers)
	logger.LogRunEvent(report.RunID, fmt.Sprintf("run started with %d questions", len(valid)))
	defer logger.CloseRunLog(report.RunID)

	rows := make([]Row, len(valid))
	var done atomic.Int32

	var g errgroup.Group
	g.SetLimit(r.opts.Workers)
	for i, q := range valid {
		if ctx.Err() != nil {
			break
		}
		i, q := i, q
		g.Go(func() error {
			rows[i] = r.answerOne(ctx, report.RunID, q)
			logger.Infof("[%d/%d] Task %s done", done.Add(1), len(valid), q.TaskID)
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		logger.LogRunEvent(report.RunID, "run cancelled")
		return report, err
	}

	report.Rows = rows
	for _, row := range rows {
		if !row.Failed {
			report.Answers = append(report.Answers, Answer{TaskID: row.TaskID, SubmittedAnswer: row.SubmittedAnswer})
		}
	}
	report.FinishedAt = time.Now()
	logger.Successf("Answered %d of %d questions in %s",
		len(report.Answers), len(rows), report.FinishedAt.Sub(report.StartedAt).Round(time.Second))
	return report, nil
}

func (r *Runner) answerOne(ctx context.Context, runID string, q Question) Row {
	question := *q.Question

	if r.cache != nil && r.opts.Resume {
		cached, found, err := r.cache.Get(q.TaskID)
		if err != nil {
			logger.Warnf("Answer cache lookup for %s failed: %v", q.TaskID, err)
		} else if found && cached.Error == "" {
			logger.Debugf("Reusing cached answer for task %s", q.TaskID)
			return Row{TaskID: q.TaskID, Question: question, SubmittedAnswer: cached.SubmittedAnswer, Cached: true}
		}
	}

	entry := CachedAnswer{TaskID: q.TaskID, Question: question, RunID: runID}
	row := Row{TaskID: q.TaskID, Question: question}

	answer, err := r.agent.Answer(ctx, question)
	if err != nil {
		logger.Errorf("Error running agent on task %s: %v", q.TaskID, err)
		row.SubmittedAnswer = fmt.Sprintf("AGENT ERROR: %v", err)
		row.Failed = true
		entry.Error = err.Error()
	} else {
		row.SubmittedAnswer = answer
		entry.SubmittedAnswer = answer
	}

	logger.LogRunAnswer(runID, q.TaskID, question, row.SubmittedAnswer)

	if r.cache != nil {
		entry.AnsweredAt = time.Now()
		if err := r.cache.Put(entry); err != nil {
			logger.Warnf("Failed to cache answer for %s: %v", q.TaskID, err)
		}
	}
	return row
}

// Submit sends the report's answers and stores the verdict on the report.
func (r *Runner) Submit(ctx context.Context, report *Report) (*SubmitResult, error) {
	if len(report.Answers) == 0 {
		return nil, ErrNoAnswers
	}
	username := strings.TrimSpace(r.opts.Username)
	if username == "" {
		return nil, errors.New("username is required to submit")
	}

	report.Username = username
	report.AgentCode = AgentCodeURL(r.opts.SpaceID)
	logger.Infof("Agent finished. Submitting %d answers for user '%s'...", len(report.Answers), username)

	result, err := r.client.Submit(ctx, Submission{
		Username:  username,
		AgentCode: report.AgentCode,
		Answers:   report.Answers,
	})
	if err != nil {
		return nil, err
	}
	report.Result = result
	return result, nil
}

// RunAndSubmit fetches, answers and submits, filling in report.Status. The
// report is returned whenever the questions could be fetched.
func (r *Runner) RunAndSubmit(ctx context.Context) (*Report, error) {
	report, err := r.Run(ctx)
	if err != nil {
		if report == nil {
			report = &Report{}
		}
		report.Status = FetchStatus(err)
		return report, err
	}

	result, err := r.Submit(ctx, report)
	report.Status = SubmitStatus(result, err)
	logger.LogRunEvent(report.RunID, report.Status)
	defer logger.CloseRunLog(report.RunID)
	if err != nil {
		logger.Errorf("%s", report.Status)
		return report, err
	}
	logger.Successf("Submission successful")
	return report, nil
}

// SubmitCached submits every successful answer in the cache without running
// the agent.
func (r *Runner) SubmitCached(ctx context.Context) (*Report, error) {
	if r.cache == nil {
		return nil, errors.New("answer cache is not configured")
	}
	cached, err := r.cache.All()
	if err != nil {
		return nil, err
	}

	report := &Report{RunID: uuid.NewString(), StartedAt: time.Now()}
	for _, c := range cached {
		row := Row{TaskID: c.TaskID, Question: c.Question, SubmittedAnswer: c.SubmittedAnswer, Cached: true}
		if c.Error != "" {
			row.SubmittedAnswer = "AGENT ERROR: " + c.Error
			row.Failed = true
		} else {
			report.Answers = append(report.Answers, Answer{TaskID: c.TaskID, SubmittedAnswer: c.SubmittedAnswer})
		}
		report.Rows = append(report.Rows, row)
	}
	report.FinishedAt = time.Now()

	result, err := r.Submit(ctx, report)
	report.Status = SubmitStatus(result, err)
	return report, err
}

// FetchStatus renders a question-fetch failure for the user.
func FetchStatus(err error) string {
	var httpErr *HTTPError
	switch {
	case errors.Is(err, ErrNoQuestions):
		return "Fetched questions list is empty or invalid format."
	case errors.Is(err, context.Canceled):
		return "Run cancelled."
	case errors.As(err, &httpErr), isNetworkError(err):
		return fmt.Sprintf("Error fetching questions: %v", err)
	default:
		return fmt.Sprintf("An unexpected error occurred fetching questions: %v", err)
	}
}

// SubmitStatus renders the outcome of a submission for the user.
func SubmitStatus(result *SubmitResult, err error) string {
	var httpErr *HTTPError
	switch {
	case err == nil && result != nil:
		return FormatResult(result)
	case errors.Is(err, ErrNoAnswers):
		return "Agent did not produce any answers to submit."
	case errors.As(err, &httpErr):
		return "Submission Failed: " + httpErr.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "Submission Failed: The request timed out."
	case isNetworkError(err):
		return fmt.Sprintf("Submission Failed: Network error - %v", err)
	default:
		return fmt.Sprintf("An unexpected error occurred during submission: %v", err)
	}
}

// FormatResult renders a successful verdict. Missing fields print as N/A
// or ?.
func FormatResult(result *SubmitResult) string {
	score := "N/A"
	if result.Score != nil {
		score = strconv.FormatFloat(*result.Score, 'f', -1, 64)
	}
	correct, total := "?", "?"
	if result.CorrectCount != nil {
		correct = strconv.Itoa(*result.CorrectCount)
	}
	if result.TotalAttempted != nil {
		total = strconv.Itoa(*result.TotalAttempted)
	}
	message := "No message received."
	if result.Message != nil {
		message = *result.Message
	}

	return fmt.Sprintf("Submission Successful!\nUser: %s\nOverall Score: %s%% (%s/%s correct)\nMessage: %s",
		result.Username, score, correct, total, message)
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}
