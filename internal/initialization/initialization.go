package initialization

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"

	"evalbot/internal/ai"
	"evalbot/internal/ai/tools"
	"evalbot/internal/config"
	"evalbot/internal/evaluation"
	"evalbot/internal/logger"
	"evalbot/internal/notify"
	"evalbot/internal/retriever"
)

// App holds everything a command needs. Fields that a command does not use
// may be nil.
type App struct {
	Config    *config.Config
	Agent     *ai.Agent
	Retriever *retriever.Retriever
	Cache     *evaluation.Cache
	Client    *evaluation.Client
	Announcer *notify.Announcer
}

// LoadConfig reads .env and the TOML config, then opens the log files.
func LoadConfig(configPath string) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if configPath == "" {
		configPath = config.GetConfigPath()
	}
	logger.Infof("Loading configuration from %s", configPath)
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	if spaceID := os.Getenv("SPACE_ID"); spaceID != "" && cfg.Evaluation.SpaceID == "" {
		cfg.Evaluation.SpaceID = spaceID
	}

	logger.SetDebug(cfg.Debug)
	if err := logger.Init(cfg.DataDir); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Initialize builds the agent, the scoring client, the answer cache and the
// announcer from cfg.
func Initialize(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return nil, err
	}

	model, err := ai.NewOpenAIModel(ai.ModelOptions{
		Provider:      cfg.Agent.Provider,
		Model:         cfg.Agent.Model,
		BaseURL:       cfg.Agent.BaseURL,
		Temperature:   cfg.Agent.Temperature,
		MaxTokens:     cfg.Agent.MaxTokens,
		RetryAttempts: cfg.Agent.RetryAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("error initializing agent: %w", err)
	}

	prompt, err := ai.LoadSystemPrompt(cfg.Agent.SystemPromptPath)
	if err != nil {
		return nil, err
	}

	agentCfg := ai.DefaultConfig()
	agentCfg.SystemPrompt = prompt
	agentCfg.AnswerMarker = cfg.Agent.AnswerMarker
	agentCfg.MaxRounds = cfg.Agent.MaxRounds
	agentCfg.CallTimeout = time.Duration(cfg.Agent.CallTimeoutSecs) * time.Second
	agentCfg.ToolTimeout = time.Duration(cfg.Tools.TimeoutSecs) * time.Second
	agentCfg.AllowMissingExemplar = cfg.Retriever.AllowMissingExemplar

	// A nil *Retriever must not reach the agent as a non-nil interface.
	var r ai.Retriever
	if !cfg.Retriever.Disabled {
		app.Retriever, err = OpenRetriever(cfg)
		if err != nil {
			return nil, err
		}
		if count, err := app.Retriever.Store().Count(ctx); err == nil && count == 0 {
			logger.Warnf("Exemplar store %s is empty, run `evalbot index` first", cfg.Retriever.DBPath)
		}
		r = app.Retriever
	} else {
		logger.Warnf("Retrieval disabled, questions are asked without an exemplar")
	}

	app.Agent, err = ai.NewAgent(model, r, registry, agentCfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Cache, err = evaluation.OpenCache(cfg.Evaluation.CachePath)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Client = evaluation.NewClient(cfg.Evaluation.APIURL, evaluation.ClientOptions{
		QuestionsTimeout: time.Duration(cfg.Evaluation.QuestionsTimeoutSecs) * time.Second,
		SubmitTimeout:    time.Duration(cfg.Evaluation.SubmitTimeoutSecs) * time.Second,
	})

	app.Announcer = notify.New(notify.Options{
		Server:         cfg.Notify.Server,
		Nick:           cfg.Notify.Nick,
		User:           cfg.Notify.User,
		RealName:       cfg.Notify.RealName,
		Password:       cfg.Notify.Password,
		Channel:        cfg.Notify.Channel,
		ConnectTimeout: time.Duration(cfg.Notify.ConnectTimeoutSecs) * time.Second,
	})

	logger.Successf("Agent ready: %v", app.Agent.Status())
	return app, nil
}

func buildRegistry(cfg *config.Config) (*tools.ToolRegistry, error) {
	registry, err := tools.NewDefaultRegistry(tools.Options{
		Timeout:       time.Duration(cfg.Tools.TimeoutSecs) * time.Second,
		TavilyAPIKey:  tools.GetEnvToken("TAVILY_API_KEY"),
		TavilyDepth:   cfg.Tools.TavilyDepth,
		WebMaxResults: cfg.Tools.WebMaxResults,
		WikiMaxDocs:   cfg.Tools.WikiMaxDocs,
		WikiMaxChars:  cfg.Tools.WikiMaxChars,
		ArxivMaxDocs:  cfg.Tools.ArxivMaxDocs,
		ArxivMaxChars: cfg.Tools.ArxivMaxChars,
	})
	if err != nil {
		return nil, err
	}
	if len(cfg.Agent.Tools) == 0 {
		return registry, nil
	}

	restricted, err := registry.Restrict(cfg.Agent.Tools)
	if err != nil {
		return nil, fmt.Errorf("agent.tools: %w", err)
	}
	logger.Infof("Tool set restricted to %v", restricted.Names())
	return restricted, nil
}

// OpenRetriever opens the exemplar store with the configured embedder.
func OpenRetriever(cfg *config.Config) (*retriever.Retriever, error) {
	apiKey := tools.GetEnvToken("EMBEDDING_API_KEY", "OPENAI_API_KEY")
	embedder, err := retriever.NewOpenAIEmbedder(apiKey, cfg.Retriever.EmbeddingBaseURL, cfg.Retriever.EmbeddingModel)
	if err != nil {
		return nil, fmt.Errorf("%w: set EMBEDDING_API_KEY or OPENAI_API_KEY, or disable the retriever", err)
	}

	store, err := retriever.OpenStore(cfg.Retriever.DBPath)
	if err != nil {
		return nil, err
	}
	r, err := retriever.New(store, embedder, cfg.Retriever.TopK)
	if err != nil {
		store.Close()
		return nil, err
	}
	return r, nil
}

// Runner builds an evaluation runner submitting as username. An empty
// username falls back to evaluation.username.
func (a *App) Runner(username string) *evaluation.Runner {
	if username == "" {
		username = a.Config.Evaluation.Username
	}
	return evaluation.NewRunner(a.Client, a.Agent, a.Cache, evaluation.RunnerOptions{
		Username: username,
		SpaceID:  a.Config.Evaluation.SpaceID,
		Workers:  a.Config.Evaluation.Workers,
		Resume:   a.Config.Evaluation.Resume,
	})
}

// RunAndSubmit runs the evaluation, submits and announces the status.
func (a *App) RunAndSubmit(ctx context.Context, username string) (*evaluation.Report, error) {
	report, err := a.Runner(username).RunAndSubmit(ctx)
	if report != nil && report.Status != "" {
		a.Announcer.Notify(ctx, report.Status)
	}
	return report, err
}

// Close releases the stores. It is safe to call on a partly built App.
func (a *App) Close() {
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			logger.Errorf("Error closing answer cache: %v", err)
		}
	}
	if a.Retriever != nil {
		if err := a.Retriever.Store().Close(); err != nil {
			logger.Errorf("Error closing exemplar store: %v", err)
		}
	}
}
