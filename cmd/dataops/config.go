package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fwojciec/dataops"
	"github.com/joho/godotenv"
)

// envFiles are loaded in order when present. Variables already set in the
// environment win.
var envFiles = []string{".env", "dataops/.env"}

// Config is the process configuration, read from the environment.
type Config struct {
	Project        string // GOOGLE_CLOUD_PROJECT
	Location       string // GOOGLE_CLOUD_LOCATION
	AgentEngineID  string // AGENT_ENGINE_ID
	GeneratorModel string // MODEL_AGENT
	ToolModel      string // MODEL_TOOL

	GeminiAPIKey     string
	BigQueryProject  string
	Dataset          string
	QueryTimeout     time.Duration
	MaxBytesBilled   int64
	MaxRows          int
	MaxResultBytes   int
	AutoApproveBytes int64
	SessionTTL       time.Duration
	SessionDir       string
	PromptDir        string
	HTTPAddr         string
	LogLevel         slog.Level
}

var required = []string{
	"GOOGLE_CLOUD_PROJECT",
	"GOOGLE_CLOUD_LOCATION",
	"AGENT_ENGINE_ID",
	"MODEL_AGENT",
	"MODEL_TOOL",
}

// loadEnvFiles loads the dotenv files that exist.
func loadEnvFiles(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// loadConfig reads the configuration through getenv. Every missing
// required key is reported at once.
func loadConfig(getenv func(string) string) (Config, error) {
	var missing []string
	for _, k := range required {
		if strings.TrimSpace(getenv(k)) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s: %w", strings.Join(missing, ", "), dataops.ErrConfig)
	}

	cfg := Config{
		Project:         getenv("GOOGLE_CLOUD_PROJECT"),
		Location:        getenv("GOOGLE_CLOUD_LOCATION"),
		AgentEngineID:   getenv("AGENT_ENGINE_ID"),
		GeneratorModel:  getenv("MODEL_AGENT"),
		ToolModel:       getenv("MODEL_TOOL"),
		GeminiAPIKey:    getenv("GEMINI_API_KEY"),
		BigQueryProject: orDefault(getenv("BIGQUERY_PROJECT"), getenv("GOOGLE_CLOUD_PROJECT")),
		Dataset:         getenv("DATAOPS_DATASET"),
		SessionDir:      getenv("SESSION_DIR"),
		PromptDir:       getenv("PROMPT_DIR"),
		HTTPAddr:        orDefault(getenv("HTTP_ADDR"), ":8080"),
	}

	var errs []error
	cfg.QueryTimeout = parse(getenv, "QUERY_TIMEOUT", time.ParseDuration, &errs)
	cfg.SessionTTL = parse(getenv, "SESSION_TTL", time.ParseDuration, &errs)
	cfg.MaxBytesBilled = parse(getenv, "MAX_BYTES_BILLED", parseInt64, &errs)
	cfg.AutoApproveBytes = parse(getenv, "AUTO_APPROVE_BYTES", parseInt64, &errs)
	cfg.MaxRows = parse(getenv, "MAX_ROWS", strconv.Atoi, &errs)
	cfg.MaxResultBytes = parse(getenv, "MAX_RESULT_BYTES", strconv.Atoi, &errs)
	cfg.LogLevel = parse(getenv, "LOG_LEVEL", parseLevel, &errs)
	if len(errs) > 0 {
		return Config{}, fmt.Errorf("%w: %w", errors.Join(errs...), dataops.ErrConfig)
	}
	return cfg, nil
}

// parse converts an optional variable. Unset variables yield the zero value.
func parse[T any](getenv func(string) string, key string, fn func(string) (T, error), errs *[]error) T {
	var zero T
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return zero
	}
	v, err := fn(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s %q", key, raw))
		return zero
	}
	return v
}

func parseInt64(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err == nil && n < 0 {
		return 0, errors.New("negative")
	}
	return n, err
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(s))
	return l, err
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
