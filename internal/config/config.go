package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"evalbot/internal"
)

type AgentConfig struct {
	Provider         string   `toml:"provider"`
	Model            string   `toml:"model"`
	BaseURL          string   `toml:"base_url"`
	Temperature      float32  `toml:"temperature"`
	MaxTokens        int      `toml:"max_tokens"`
	SystemPromptPath string   `toml:"system_prompt_path"`
	AnswerMarker     string   `toml:"answer_marker"`
	MaxRounds        int      `toml:"max_rounds"`
	CallTimeoutSecs  int      `toml:"call_timeout_secs"`
	RetryAttempts    int      `toml:"retry_attempts"`
	Tools            []string `toml:"tools"`
}

type RetrieverConfig struct {
	Disabled             bool   `toml:"disabled"`
	DBPath               string `toml:"db_path"`
	EmbeddingModel       string `toml:"embedding_model"`
	EmbeddingBaseURL     string `toml:"embedding_base_url"`
	TopK                 int    `toml:"top_k"`
	AllowMissingExemplar bool   `toml:"allow_missing_exemplar"`
}

type ToolsConfig struct {
	TimeoutSecs   int    `toml:"timeout_secs"`
	WikiMaxDocs   int    `toml:"wiki_max_docs"`
	WikiMaxChars  int    `toml:"wiki_max_chars"`
	WebMaxResults int    `toml:"web_max_results"`
	ArxivMaxDocs  int    `toml:"arxiv_max_docs"`
	ArxivMaxChars int    `toml:"arxiv_max_chars"`
	TavilyDepth   string `toml:"tavily_depth"`
}

type EvaluationConfig struct {
	APIURL               string `toml:"api_url"`
	Username             string `toml:"username"`
	SpaceID              string `toml:"space_id"`
	Workers              int    `toml:"workers"`
	CachePath            string `toml:"cache_path"`
	Resume               bool   `toml:"resume"`
	QuestionsTimeoutSecs int    `toml:"questions_timeout_secs"`
	SubmitTimeoutSecs    int    `toml:"submit_timeout_secs"`
}

type WebConfig struct {
	Listen        string `toml:"listen"`
	AdminUser     string `toml:"admin_user"`
	AdminPasshash string `toml:"admin_passhash"`
	// AskPerMinute limits /api/ask calls per client.
	AskPerMinute int `toml:"ask_per_minute"`
}

type NotifyConfig struct {
	Server             string `toml:"server"`
	Nick               string `toml:"nick"`
	User               string `toml:"user"`
	RealName           string `toml:"real_name"`
	Password           string `toml:"password"`
	Channel            string `toml:"channel"`
	ConnectTimeoutSecs int    `toml:"connect_timeout_secs"`
}

type Config struct {
	DataDir    string           `toml:"data_dir"`
	Debug      bool             `toml:"debug"`
	Agent      AgentConfig      `toml:"agent"`
	Retriever  RetrieverConfig  `toml:"retriever"`
	Tools      ToolsConfig      `toml:"tools"`
	Evaluation EvaluationConfig `toml:"evaluation"`
	Web        WebConfig        `toml:"web"`
	Notify     NotifyConfig     `toml:"notify"`
}

var providers = map[string]bool{
	"openai":      true,
	"groq":        true,
	"google":      true,
	"huggingface": true,
}

// Default returns a configuration that runs against the public scoring
// service with the groq provider.
func Default() *Config {
	return &Config{
		DataDir: internal.DEFAULT_DATA_DIR,
		Agent: AgentConfig{
			Provider:         "groq",
			SystemPromptPath: internal.DEFAULT_PROMPT_PATH,
			AnswerMarker:     internal.DEFAULT_ANSWER_MARKER,
			MaxRounds:        internal.DEFAULT_MAX_ROUNDS,
			CallTimeoutSecs:  internal.DEFAULT_CALL_TIMEOUT,
			RetryAttempts:    internal.DEFAULT_RETRY_ATTEMPTS,
		},
		Retriever: RetrieverConfig{
			DBPath:         internal.DEFAULT_CORPUS_DB_PATH,
			EmbeddingModel: "text-embedding-3-small",
			TopK:           internal.DEFAULT_TOP_K,
		},
		Tools: ToolsConfig{
			TimeoutSecs:   internal.DEFAULT_TOOL_TIMEOUT,
			WikiMaxDocs:   2,
			WikiMaxChars:  8000,
			WebMaxResults: 3,
			ArxivMaxDocs:  3,
			ArxivMaxChars: 1000,
			TavilyDepth:   "basic",
		},
		Evaluation: EvaluationConfig{
			APIURL:               internal.DEFAULT_API_URL,
			Workers:              internal.DEFAULT_WORKERS,
			CachePath:            internal.DEFAULT_CACHE_PATH,
			QuestionsTimeoutSecs: internal.DEFAULT_QUESTIONS_TIMEOUT,
			SubmitTimeoutSecs:    internal.DEFAULT_SUBMIT_TIMEOUT,
		},
		Web: WebConfig{
			Listen:       internal.DEFAULT_LISTEN_ADDR,
			AskPerMinute: 10,
		},
		Notify: NotifyConfig{
			Nick:               "evalbot",
			User:               "evalbot",
			RealName:           "evalbot run announcer",
			ConnectTimeoutSecs: internal.DEFAULT_CONNECT_TIMEOUT,
		},
	}
}

// ValidateConfig checks if all required configuration fields are properly set
func ValidateConfig(cfg *Config) error {
	var problems []string

	if !providers[cfg.Agent.Provider] {
		problems = append(problems, fmt.Sprintf("agent.provider %q is not one of openai, groq, google, huggingface", cfg.Agent.Provider))
	}
	if cfg.Agent.AnswerMarker == "" {
		problems = append(problems, "agent.answer_marker is empty")
	}
	if cfg.Agent.MaxRounds <= 0 {
		problems = append(problems, "agent.max_rounds must be positive")
	}
	if cfg.Agent.CallTimeoutSecs <= 0 {
		problems = append(problems, "agent.call_timeout_secs must be positive")
	}
	if cfg.Agent.RetryAttempts < 0 {
		problems = append(problems, "agent.retry_attempts must not be negative")
	}

	if !cfg.Retriever.Disabled {
		if cfg.Retriever.DBPath == "" {
			problems = append(problems, "retriever.db_path")
		}
		if cfg.Retriever.TopK <= 0 {
			problems = append(problems, "retriever.top_k must be positive")
		}
	}

	if cfg.Tools.TimeoutSecs <= 0 {
		problems = append(problems, "tools.timeout_secs must be positive")
	}

	if u, err := url.Parse(cfg.Evaluation.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		problems = append(problems, fmt.Sprintf("evaluation.api_url %q is not an absolute URL", cfg.Evaluation.APIURL))
	}
	if cfg.Evaluation.Workers <= 0 {
		problems = append(problems, "evaluation.workers must be positive")
	}

	if cfg.Web.AskPerMinute <= 0 {
		problems = append(problems, "web.ask_per_minute must be positive")
	}
	if (cfg.Web.AdminUser == "") != (cfg.Web.AdminPasshash == "") {
		problems = append(problems, "web.admin_user and web.admin_passhash must be set together")
	}

	if cfg.Notify.Server != "" {
		if !strings.Contains(cfg.Notify.Server, ":") {
			problems = append(problems, "notify.server does not contain a port (format should be host:port)")
		}
		if cfg.Notify.Channel == "" {
			problems = append(problems, "notify.channel")
		}
		if cfg.Notify.Nick == "" {
			problems = append(problems, "notify.nick")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, ", "))
	}
	return nil
}

// LoadConfig decodes path on top of Default(). A missing file yields the
// defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := ValidateConfig(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveConfig writes cfg to path, creating parent directories.
func SaveConfig(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for config file: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// GetConfigPath returns CONFIG_PATH or the default location.
func GetConfigPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return internal.DEFAULT_CONFIG_PATH
}
