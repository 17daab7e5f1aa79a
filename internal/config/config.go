package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ledger-recon/internal/escalation"
	"ledger-recon/internal/matcher"
	"ledger-recon/internal/resolver"
)

type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	App        AppConfig
	Matching   matcher.Config
	Resolver   resolver.Config
	Escalation EscalationConfig
	Firestore  FirestoreConfig
	Export     ExportConfig
}

// DatabaseConfig selects the ledger store. Driver "memory" keeps everything
// in process.
type DatabaseConfig struct {
	Driver   string
	DSN      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	Path     string
}

type ServerConfig struct {
	Port string
}

// AppConfig holds service-wide settings. ImportDir confines local statement
// imports; when empty only gs:// statements can be imported.
type AppConfig struct {
	LogLevel        string
	BatchSize       int
	LearnedPriority int
	ImportDir       string
}

type EscalationConfig struct {
	AutoEscalate bool
	Retry        escalation.RetryPolicy
	Gemini       escalation.GeminiConfig
}

// Enabled reports whether a Gemini backend is configured.
func (c EscalationConfig) Enabled() bool {
	return c.Gemini.APIKey != "" || c.Gemini.Project != ""
}

// FirestoreConfig moves rules and accounts to Firestore when ProjectID is set.
type FirestoreConfig struct {
	ProjectID string
}

// ExportConfig enables the BigQuery journal export when all fields are set.
type ExportConfig struct {
	ProjectID string
	Dataset   string
	Table     string
}

func (c ExportConfig) Enabled() bool {
	return c.ProjectID != "" && c.Dataset != "" && c.Table != ""
}

// tunables is the YAML overlay. Absent sections keep their defaults.
type tunables struct {
	Matching *matcher.Config  `yaml:"matching"`
	Resolver *resolver.Config `yaml:"resolver"`
}

func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			DSN:      getEnv("DB_DSN", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "ledger_recon"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Path:     getEnv("DB_PATH", "ledger.db"),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		App: AppConfig{
			LogLevel:        getEnv("LOG_LEVEL", "info"),
			BatchSize:       getEnvInt("BATCH_SIZE", 500),
			LearnedPriority: getEnvInt("LEARNED_RULE_PRIORITY", 10),
			ImportDir:       getEnv("IMPORT_DIR", ""),
		},
		Matching: matcher.DefaultConfig(),
		Resolver: resolver.DefaultConfig(),
		Escalation: EscalationConfig{
			AutoEscalate: getEnvBool("AUTO_ESCALATE", false),
			Retry: escalation.RetryPolicy{
				MaxAttempts:    getEnvInt("ESCALATION_MAX_ATTEMPTS", 3),
				Timeout:        getEnvDuration("ESCALATION_TIMEOUT", 30*time.Second),
				InitialBackoff: getEnvDuration("ESCALATION_INITIAL_BACKOFF", 500*time.Millisecond),
				MaxBackoff:     getEnvDuration("ESCALATION_MAX_BACKOFF", 8*time.Second),
			},
			Gemini: escalation.GeminiConfig{
				APIKey:   getEnv("GEMINI_API_KEY", ""),
				Project:  getEnv("GEMINI_PROJECT", ""),
				Location: getEnv("GEMINI_LOCATION", "us-central1"),
				Model:    getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			},
		},
		Firestore: FirestoreConfig{
			ProjectID: getEnv("FIRESTORE_PROJECT_ID", ""),
		},
		Export: ExportConfig{
			ProjectID: getEnv("BIGQUERY_PROJECT_ID", ""),
			Dataset:   getEnv("BIGQUERY_DATASET", ""),
			Table:     getEnv("BIGQUERY_TABLE", "journal_lines"),
		},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlay(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overlay decodes the YAML file over the defaults. Keys missing from the
// file keep their current values; category_accounts entries are merged.
func (c *Config) overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	defaults := c.Matching.CategoryAccounts
	t := tunables{Matching: &c.Matching, Resolver: &c.Resolver}
	c.Matching.CategoryAccounts = nil
	if err := yaml.Unmarshal(data, &t); err != nil {
		c.Matching.CategoryAccounts = defaults
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	merged := make(map[string]string, len(defaults)+len(c.Matching.CategoryAccounts))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range c.Matching.CategoryAccounts {
		merged[strings.ToLower(strings.TrimSpace(k))] = v
	}
	c.Matching.CategoryAccounts = merged
	return nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite", "memory":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if err := c.Matching.Validate(); err != nil {
		return fmt.Errorf("invalid matching config: %w", err)
	}
	if c.Resolver.MinSimilarity <= 0 || c.Resolver.MinSimilarity > 1 {
		return fmt.Errorf("invalid resolver config: min similarity must be within (0, 1]")
	}
	if c.Resolver.CombinationMinSize > c.Resolver.CombinationMaxSize {
		return fmt.Errorf("invalid resolver config: combination min size exceeds max size")
	}
	if c.Escalation.Retry.MaxAttempts < 1 {
		return fmt.Errorf("ESCALATION_MAX_ATTEMPTS must be at least 1")
	}
	if c.App.BatchSize < 1 {
		return fmt.Errorf("BATCH_SIZE must be at least 1")
	}
	return nil
}

func (c *DatabaseConfig) ConnectionString() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	b, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return d
}
