package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/robalobadob/minigames/internal/hangman"
	"github.com/robalobadob/minigames/internal/memory"
	"github.com/robalobadob/minigames/internal/quiz"
)

var ErrMissingSecret = errors.New("JWT_SECRET must be set in production")

// Config holds application configuration loaded from files and environment variables.
type Config struct {
	Env      string `mapstructure:"env"`       // local, dev, production
	LogLevel string `mapstructure:"log_level"` // zerolog level name

	HTTP     HTTP     `mapstructure:"http"`
	DB       DB       `mapstructure:"database"`
	Auth     Auth     `mapstructure:"auth"`
	Daily    Daily    `mapstructure:"daily"`
	OpenAI   OpenAI   `mapstructure:"openai"`
	Games    Games    `mapstructure:"games"`
	Sessions Sessions `mapstructure:"sessions"`
}

// HTTP contains listener and CORS settings.
type HTTP struct {
	Port           string        `mapstructure:"port"`
	ClientOrigins  []string      `mapstructure:"client_origins"` // allowed CORS origins
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// DB contains database-related configuration parameters.
type DB struct {
	Path string `mapstructure:"path"` // SQLite file
}

// Auth contains JWT and cookie settings.
type Auth struct {
	JWTSecret   string `mapstructure:"jwt_secret"`
	ExpiresDays int    `mapstructure:"expires_days"`
	CookieName  string `mapstructure:"cookie_name"`
}

// Daily contains the daily hangman settings.
type Daily struct {
	Salt string `mapstructure:"salt"`
}

// OpenAI contains content generation settings. Generation is off without a key.
type OpenAI struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"` // deadline of one /generate request
}

// Games contains the engine timings.
type Games struct {
	Quiz    QuizTimings   `mapstructure:"quiz"`
	Hangman HangmanRules  `mapstructure:"hangman"`
	Memory  MemoryTimings `mapstructure:"memory"`
}

type QuizTimings struct {
	TimeLimit     time.Duration `mapstructure:"time_limit"`
	AnswerSettle  time.Duration `mapstructure:"answer_settle"`
	TimeoutSettle time.Duration `mapstructure:"timeout_settle"`
	Pacing        time.Duration `mapstructure:"pacing"`
	ManualAdvance bool          `mapstructure:"manual_advance"`
}

type HangmanRules struct {
	MaxLives int           `mapstructure:"max_lives"`
	Settle   time.Duration `mapstructure:"settle"`
}

type MemoryTimings struct {
	MatchSettle    time.Duration `mapstructure:"match_settle"`
	MismatchSettle time.Duration `mapstructure:"mismatch_settle"`
}

// Sessions controls how long idle play sessions are kept in memory.
type Sessions struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// Production reports whether the server runs in production mode (secure cookies).
func (c *Config) Production() bool { return c.Env == "production" }

// QuizConfig returns the quiz engine config.
func (g Games) QuizConfig() quiz.Config {
	cfg := quiz.DefaultConfig()
	cfg.TimeLimit = g.Quiz.TimeLimit
	cfg.AnswerSettle = g.Quiz.AnswerSettle
	cfg.TimeoutSettle = g.Quiz.TimeoutSettle
	cfg.Pacing = g.Quiz.Pacing
	cfg.ManualAdvance = g.Quiz.ManualAdvance
	return cfg
}

// HangmanConfig returns the hangman engine config.
func (g Games) HangmanConfig() hangman.Config {
	return hangman.Config{MaxLives: g.Hangman.MaxLives, Settle: g.Hangman.Settle}
}

// MemoryConfig returns the memory engine config.
func (g Games) MemoryConfig() memory.Config {
	return memory.Config{MatchSettle: g.Memory.MatchSettle, MismatchSettle: g.Memory.MismatchSettle}
}

// Load reads configuration from config files and environment variables.
// configFile may be empty; then ./config.yaml and ./config/config.yaml are tried.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	quizDefaults := quiz.DefaultConfig()
	hangmanDefaults := hangman.DefaultConfig()
	memoryDefaults := memory.DefaultConfig()

	v.SetDefault("env", "local")
	v.SetDefault("log_level", "info")
	v.SetDefault("http.port", "5175")
	v.SetDefault("http.client_origins", []string{"http://localhost:5173"})
	v.SetDefault("http.request_timeout", "10s")
	v.SetDefault("database.path", "./data/minigames.db")
	v.SetDefault("auth.jwt_secret", "dev_secret_change_me")
	v.SetDefault("auth.expires_days", 14)
	v.SetDefault("auth.cookie_name", "minigames_token")
	v.SetDefault("daily.salt", "local_dev_salt")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.timeout", "2m")
	v.SetDefault("games.quiz.time_limit", quizDefaults.TimeLimit)
	v.SetDefault("games.quiz.answer_settle", quizDefaults.AnswerSettle)
	v.SetDefault("games.quiz.timeout_settle", quizDefaults.TimeoutSettle)
	v.SetDefault("games.quiz.pacing", quizDefaults.Pacing)
	v.SetDefault("games.quiz.manual_advance", false)
	v.SetDefault("games.hangman.max_lives", hangmanDefaults.MaxLives)
	v.SetDefault("games.hangman.settle", hangmanDefaults.Settle)
	v.SetDefault("games.memory.match_settle", memoryDefaults.MatchSettle)
	v.SetDefault("games.memory.mismatch_settle", memoryDefaults.MismatchSettle)
	v.SetDefault("sessions.ttl", "2h")

	// nested keys map to ENV style names: http.port -> HTTP_PORT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Conventional short names used by deployments and .env files.
	_ = v.BindEnv("env", "APP_ENV", "NODE_ENV")
	_ = v.BindEnv("log_level", "LOG_LEVEL")
	_ = v.BindEnv("http.port", "PORT", "HTTP_PORT")
	_ = v.BindEnv("http.client_origins", "CLIENT_ORIGIN", "HTTP_CLIENT_ORIGINS")
	_ = v.BindEnv("database.path", "DB_PATH", "DATABASE_PATH")
	_ = v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	_ = v.BindEnv("auth.expires_days", "JWT_EXPIRES_DAYS")
	_ = v.BindEnv("auth.cookie_name", "COOKIE_NAME")
	_ = v.BindEnv("daily.salt", "DAILY_SALT")
	_ = v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("openai.model", "OPENAI_MODEL")
	_ = v.BindEnv("openai.base_url", "OPENAI_BASE_URL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	// CLIENT_ORIGIN may list several origins separated by commas.
	var origins []string
	for _, o := range cfg.HTTP.ClientOrigins {
		for _, part := range strings.Split(o, ",") {
			if part = strings.TrimSpace(part); part != "" {
				origins = append(origins, part)
			}
		}
	}
	cfg.HTTP.ClientOrigins = origins

	if cfg.Production() && (cfg.Auth.JWTSecret == "" || cfg.Auth.JWTSecret == "dev_secret_change_me") {
		return nil, ErrMissingSecret
	}
	return &cfg, nil
}
