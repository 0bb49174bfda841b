package internal

const (
	// IRC numerics and commands used by the run announcer
	RPL_WELCOME       = "001"
	ERR_NICKNAMEINUSE = "433"

	CMD_PRIVMSG = "PRIVMSG"
	CMD_JOIN    = "JOIN"
	CMD_QUIT    = "QUIT"
	CMD_ERROR   = "ERROR"
)

const (
	BOT_VERSION = "1.0.0"

	DEFAULT_DATA_DIR       = "./data"
	DEFAULT_CONFIG_PATH    = "./data/config.toml"
	DEFAULT_PROMPT_PATH    = "./PROMPT.txt"
	DEFAULT_CORPUS_DB_PATH = "./data/exemplars.db"
	DEFAULT_CACHE_PATH     = "./data/answers.db"

	DEFAULT_API_URL       = "https://agents-course-unit4-scoring.hf.space"
	DEFAULT_LISTEN_ADDR   = ":7860"
	DEFAULT_ANSWER_MARKER = "FINAL ANSWER:"

	DEFAULT_MAX_ROUNDS        = 10
	DEFAULT_CALL_TIMEOUT      = 120
	DEFAULT_TOOL_TIMEOUT      = 30
	DEFAULT_RETRY_ATTEMPTS    = 3
	DEFAULT_WORKERS           = 1
	DEFAULT_TOP_K             = 4
	DEFAULT_CONNECT_TIMEOUT   = 30
	DEFAULT_QUESTIONS_TIMEOUT = 15
	DEFAULT_SUBMIT_TIMEOUT    = 60
)
