// Package web serves the evaluation form and a small JSON API.
package web

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"evalbot/internal/evaluation"
	"evalbot/internal/logger"
	"evalbot/internal/security"
)

// RunFunc runs the full evaluation for username and submits the answers.
type RunFunc func(ctx context.Context, username string) (*evaluation.Report, error)

// Answerer answers a single ad-hoc question.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

type Options struct {
	Listen        string
	AdminUser     string
	AdminPassHash string

	// AskLimit requests per AskWindow are allowed on /api/ask per client.
	AskLimit  int
	AskWindow time.Duration

	// Info is shown on the form and served at /api/status.
	Info map[string]interface{}
}

type Server struct {
	engine *gin.Engine
	opts   Options
	run    RunFunc
	agent  Answerer

	// baseCtx outlives individual requests so a run survives a closed tab.
	baseCtx context.Context

	running atomic.Bool
	mu      sync.RWMutex
	last    *evaluation.Report
}

func NewServer(ctx context.Context, run RunFunc, agent Answerer, opts Options) (*Server, error) {
	if run == nil || agent == nil {
		return nil, errors.New("web server needs a run function and an agent")
	}
	if opts.AskLimit <= 0 {
		opts.AskLimit = 10
	}
	if opts.AskWindow <= 0 {
		opts.AskWindow = time.Minute
	}

	tmpl, err := template.New("index").Parse(indexHTML)
	if err != nil {
		return nil, err
	}

	s := &Server{opts: opts, run: run, agent: agent, baseCtx: ctx}

	g := gin.New()
	g.Use(gin.Recovery())
	g.SetHTMLTemplate(tmpl)

	g.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	g.GET("/", s.index)

	protected := g.Group("/")
	if opts.AdminUser != "" && opts.AdminPassHash != "" {
		protected.Use(BasicAuth(opts.AdminUser, opts.AdminPassHash))
	} else {
		logger.Warnf("Web admin credentials not configured, /run and /api are open")
	}
	protected.POST("/run", s.runForm)
	protected.GET("/api/results", s.results)
	protected.GET("/api/status", s.status)
	protected.POST("/api/ask", RateLimit(security.NewRequestTracker(opts.AskWindow, opts.AskLimit)), s.ask)

	s.engine = g
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Listen,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Successf("Web form listening on %s", s.opts.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Infof("Shutting down web form")
		return srv.Shutdown(shutdownCtx)
	}
}

type pageData struct {
	Info     map[string]interface{}
	Username string
	Status   string
	Report   *evaluation.Report
	Running  bool
}

func (s *Server) page(username, status string) pageData {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if status == "" && s.last != nil {
		status = s.last.Status
	}
	return pageData{
		Info:     s.opts.Info,
		Username: username,
		Status:   status,
		Report:   s.last,
		Running:  s.running.Load(),
	}
}

func (s *Server) index(c *gin.Context) {
	c.HTML(http.StatusOK, "index", s.page("", ""))
}

func (s *Server) runForm(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	if username == "" {
		c.HTML(http.StatusBadRequest, "index", s.page("", "Please enter your Hugging Face username."))
		return
	}

	if !s.running.CompareAndSwap(false, true) {
		c.HTML(http.StatusConflict, "index", s.page(username, "A run is already in progress."))
		return
	}
	defer s.running.Store(false)

	logger.Infof("Web run started for user %s", username)
	report, err := s.run(s.baseCtx, username)
	if err != nil {
		logger.Errorf("Web run failed: %v", err)
	}
	if report != nil {
		s.mu.Lock()
		s.last = report
		s.mu.Unlock()
	}

	status := ""
	if report == nil && err != nil {
		status = err.Error()
	}
	c.HTML(http.StatusOK, "index", s.page(username, status))
}

func (s *Server) results(c *gin.Context) {
	s.mu.RLock()
	report := s.last
	s.mu.RUnlock()

	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no run yet"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"info": s.opts.Info, "running": s.running.Load()})
}

type askRequest struct {
	Question string `json:"question" binding:"required"`
}

func (s *Server) ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}

	answer, err := s.agent.Answer(c.Request.Context(), req.Question)
	if err != nil {
		logger.Errorf("Ad-hoc question failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": answer})
}
