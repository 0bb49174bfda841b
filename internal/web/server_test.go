package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"evalbot/internal/evaluation"
	"evalbot/internal/security"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type echoAgent struct{ err error }

func (a echoAgent) Answer(_ context.Context, q string) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	return "echo: " + q, nil
}

func fakeRun(gotUser *string) RunFunc {
	return func(_ context.Context, username string) (*evaluation.Report, error) {
		*gotUser = username
		return &evaluation.Report{
			RunID:  "run-1",
			Status: "Submission Successful!\nUser: " + username,
			Rows: []evaluation.Row{
				{TaskID: "a", Question: "Q <one>", SubmittedAnswer: "42"},
				{TaskID: "b", Question: "Q two", SubmittedAnswer: "AGENT ERROR: boom", Failed: true},
			},
		}, nil
	}
}

func newTestServer(t *testing.T, run RunFunc, agent Answerer, opts Options) http.Handler {
	t.Helper()
	s, err := NewServer(context.Background(), run, agent, opts)
	require.NoError(t, err)
	return s.Handler()
}

func do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestIndexAndHealth(t *testing.T) {
	var user string
	h := newTestServer(t, fakeRun(&user), echoAgent{}, Options{Info: map[string]interface{}{"model": "groq/qwen"}})

	w := do(h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", w.Body.String())

	w = do(h, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Run Evaluation &amp; Submit All Answers")
	require.Contains(t, w.Body.String(), "groq/qwen")

	w = do(h, httptest.NewRequest(http.MethodGet, "/api/results", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunRendersResults(t *testing.T) {
	var user string
	h := newTestServer(t, fakeRun(&user), echoAgent{}, Options{})

	w := do(h, postForm("/run", url.Values{"username": {"  ada "}}))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ada", user)

	body := w.Body.String()
	require.Contains(t, body, "Submission Successful!\nUser: ada")
	require.Contains(t, body, "Q &lt;one&gt;")
	require.Contains(t, body, `class="failed"`)

	w = do(h, httptest.NewRequest(http.MethodGet, "/api/results", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var report evaluation.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	require.Equal(t, "run-1", report.RunID)
	require.Len(t, report.Rows, 2)
}

func TestRunRequiresUsername(t *testing.T) {
	var user string
	h := newTestServer(t, fakeRun(&user), echoAgent{}, Options{})

	w := do(h, postForm("/run", url.Values{}))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Empty(t, user)
}

func TestRunFailureWithoutReport(t *testing.T) {
	run := func(context.Context, string) (*evaluation.Report, error) {
		return nil, errors.New("agent init failed")
	}
	h := newTestServer(t, run, echoAgent{}, Options{})

	w := do(h, postForm("/run", url.Values{"username": {"ada"}}))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "agent init failed")
}

func TestAsk(t *testing.T) {
	var user string
	h := newTestServer(t, fakeRun(&user), echoAgent{}, Options{})

	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	w := do(h, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"answer":"echo: hi"}`, w.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	require.Equal(t, http.StatusBadRequest, do(h, req).Code)

	h = newTestServer(t, fakeRun(&user), echoAgent{err: errors.New("model down")}, Options{})
	req = httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	w = do(h, req)
	require.Equal(t, http.StatusBadGateway, w.Code)
	require.Contains(t, w.Body.String(), "model down")
}

func TestAskRateLimit(t *testing.T) {
	var user string
	h := newTestServer(t, fakeRun(&user), echoAgent{}, Options{AskLimit: 2})

	ask := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"hi"}`))
		req.Header.Set("Content-Type", "application/json")
		return do(h, req)
	}
	require.Equal(t, http.StatusOK, ask().Code)
	require.Equal(t, http.StatusOK, ask().Code)

	w := ask()
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestBasicAuth(t *testing.T) {
	hash, err := security.GenerateHash("s3cret")
	require.NoError(t, err)

	var user string
	h := newTestServer(t, fakeRun(&user), echoAgent{}, Options{AdminUser: "admin", AdminPassHash: hash})

	// The form itself stays public.
	require.Equal(t, http.StatusOK, do(h, httptest.NewRequest(http.MethodGet, "/", nil)).Code)

	w := do(h, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, `Basic realm="evalbot"`, w.Header().Get("WWW-Authenticate"))

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.SetBasicAuth("admin", "wrong")
	require.Equal(t, http.StatusUnauthorized, do(h, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.SetBasicAuth("admin", "s3cret")
	require.Equal(t, http.StatusOK, do(h, req).Code)

	req = postForm("/run", url.Values{"username": {"ada"}})
	require.Equal(t, http.StatusUnauthorized, do(h, req).Code)
	require.Empty(t, user)
}

func TestNewServerValidation(t *testing.T) {
	_, err := NewServer(context.Background(), nil, echoAgent{}, Options{})
	require.Error(t, err)
}
