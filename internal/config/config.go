package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`

	Server struct {
		Port        int               `yaml:"port"`
		CORSOrigins []string          `yaml:"corsOrigins"`
		APIKeys     map[string]string `yaml:"apiKeys"` // client name -> key; empty disables auth
		RateLimit   struct {
			RPS   float64 `yaml:"rps"`
			Burst int     `yaml:"burst"`
		} `yaml:"rateLimit"`
		BlockPrivateURLs bool  `yaml:"blockPrivateUrls"`
		MaxUploadBytes   int64 `yaml:"maxUploadBytes"`
	} `yaml:"server"`

	AI struct {
		Provider        string        `yaml:"provider"` // anthropic | openai
		Model           string        `yaml:"model"`
		MaxTokens       int           `yaml:"maxTokens"`
		Timeout         time.Duration `yaml:"timeout"`
		AnthropicAPIKey string        `yaml:"anthropicApiKey"`
		OpenAIAPIKey    string        `yaml:"openaiApiKey"`
	} `yaml:"ai"`

	Callback struct {
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"callback"`

	Storage struct {
		TempDir         string        `yaml:"tempDir"`
		ReportsDir      string        `yaml:"reportsDir"`
		DownloadTimeout time.Duration `yaml:"downloadTimeout"`
	} `yaml:"storage"`

	Report struct {
		Company string `yaml:"company"`
	} `yaml:"report"`

	Status struct {
		MaxJobs    int           `yaml:"maxJobs"`
		TTL        time.Duration `yaml:"ttl"`
		SweepEvery time.Duration `yaml:"sweepEvery"`
	} `yaml:"status"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres; empty disables persistence
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
		DSN      string `yaml:"dsn"`
	} `yaml:"database"`

	Minio struct {
		Enabled    bool   `yaml:"enabled"`
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Load reads the yaml file at path. A missing file is not an error: the
// defaults plus environment overrides are used instead.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, err
	}

	cfg.applyDefaults()
	cfg.applyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}
	if c.Server.RateLimit.RPS == 0 {
		c.Server.RateLimit.RPS = 5
	}
	if c.Server.RateLimit.Burst == 0 {
		c.Server.RateLimit.Burst = 20
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = 50 << 20
	}
	if c.AI.Provider == "" {
		c.AI.Provider = "anthropic"
	}
	if c.AI.MaxTokens == 0 {
		c.AI.MaxTokens = 8192
	}
	if c.AI.Timeout == 0 {
		c.AI.Timeout = 5 * time.Minute
	}
	if c.Callback.Timeout == 0 {
		c.Callback.Timeout = 30 * time.Second
	}
	if c.Storage.TempDir == "" {
		c.Storage.TempDir = "temp"
	}
	if c.Storage.ReportsDir == "" {
		c.Storage.ReportsDir = "reports"
	}
	if c.Storage.DownloadTimeout == 0 {
		c.Storage.DownloadTimeout = 60 * time.Second
	}
	if c.Report.Company == "" {
		c.Report.Company = "Rhône Risk Advisory"
	}
	if c.Status.MaxJobs == 0 {
		c.Status.MaxJobs = 1000
	}
	if c.Status.TTL == 0 {
		c.Status.TTL = 24 * time.Hour
	}
	if c.Status.SweepEvery == 0 {
		c.Status.SweepEvery = 10 * time.Minute
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("ENVIRONMENT"); v != "" {
		c.Environment = v
	}
	if v := getenv("ANTHROPIC_API_KEY"); v != "" {
		c.AI.AnthropicAPIKey = v
	}
	if v := getenv("OPENAI_API_KEY"); v != "" {
		c.AI.OpenAIAPIKey = v
	}
	if v := getenv("DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) Validate() error {
	switch c.AI.Provider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("ai.provider must be anthropic or openai, got %q", c.AI.Provider)
	}
	switch c.Database.Driver {
	case "", "mysql", "postgres":
	default:
		return fmt.Errorf("database.driver must be mysql or postgres, got %q", c.Database.Driver)
	}
	if c.Minio.Enabled && (c.Minio.Endpoint == "" || c.Minio.BucketName == "") {
		return errors.New("minio.endpoint and minio.bucketName are required when minio is enabled")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// AIKey returns the API key for the configured provider.
func (c *Config) AIKey() string {
	if c.AI.Provider == "openai" {
		return c.AI.OpenAIAPIKey
	}
	return c.AI.AnthropicAPIKey
}

// DatabaseEnabled reports whether a Result Store should be wired.
func (c *Config) DatabaseEnabled() bool {
	return c.Database.Driver != "" && (c.Database.DSN != "" || c.Database.Host != "")
}

// DSN returns the explicit DSN or builds one for the configured driver.
func (c *Config) DSN() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}
	if strings.EqualFold(c.Database.Driver, "postgres") {
		return c.PostgresDSN()
	}
	return c.MySQLDSN()
}

// MySQLDSN builds a go-sql-driver DSN from the discrete fields.
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}
