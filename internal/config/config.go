package config

import (
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// Upstream content-generation backend (analysis + prompts).
	APIURL          string        `env:"CONTENTGEN_API_URL" envDefault:"http://localhost:8000"`
	AnalysisTimeout time.Duration `env:"ANALYSIS_TIMEOUT" envDefault:"5m"`
	PromptsTimeout  time.Duration `env:"PROMPTS_TIMEOUT" envDefault:"30s"`

	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"6m"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	AuthToken   string `env:"AUTH_TOKEN"`
	CORSOrigins string `env:"CORS_ORIGINS"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	MaxUploadMB      int `env:"MAX_UPLOAD_MB" envDefault:"10"`
	PromptTokenLimit int `env:"PROMPT_TOKEN_LIMIT" envDefault:"4000"`

	// Optional. Generations and feedback are kept in memory when empty.
	DatabaseURL            string        `env:"DATABASE_URL"`
	DatabaseMaxConns       int32         `env:"DATABASE_MAX_CONNS" envDefault:"10"`
	DatabaseMinConns       int32         `env:"DATABASE_MIN_CONNS" envDefault:"1"`
	DatabaseConnectTimeout time.Duration `env:"DATABASE_CONNECT_TIMEOUT" envDefault:"10s"`

	ArtifactDir string `env:"ARTIFACT_DIR" envDefault:"./artifacts"`
	S3          S3Config

	MQTT MQTTConfig
}

// S3Config configures the optional S3-compatible artifact store.
type S3Config struct {
	Bucket        string        `env:"S3_BUCKET"`
	Region        string        `env:"S3_REGION" envDefault:"us-east-1"`
	Endpoint      string        `env:"S3_ENDPOINT"`
	AccessKey     string        `env:"S3_ACCESS_KEY"`
	SecretKey     string        `env:"S3_SECRET_KEY"`
	Prefix        string        `env:"S3_PREFIX"`
	PresignExpiry time.Duration `env:"S3_PRESIGN_EXPIRY" envDefault:"1h"`
}

// Enabled reports whether a bucket has been configured.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

// MQTTConfig configures the optional event publisher.
type MQTTConfig struct {
	BrokerURL   string `env:"MQTT_BROKER_URL"`
	ClientID    string `env:"MQTT_CLIENT_ID" envDefault:"contentgen"`
	TopicPrefix string `env:"MQTT_TOPIC_PREFIX" envDefault:"contentgen"`
	Username    string `env:"MQTT_USERNAME"`
	Password    string `env:"MQTT_PASSWORD"`
}

// Enabled reports whether a broker has been configured.
func (c MQTTConfig) Enabled() bool { return c.BrokerURL != "" }

// MaxUploadBytes returns the per-file upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// AllowedOrigins splits CORS_ORIGINS on commas. Empty means allow all.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile     string
	HTTPAddr    string
	LogLevel    string
	APIURL      string
	DatabaseURL string
	ArtifactDir string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Apply CLI overrides (non-empty values win)
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.APIURL != "" {
		cfg.APIURL = overrides.APIURL
	}
	if overrides.DatabaseURL != "" {
		cfg.DatabaseURL = overrides.DatabaseURL
	}
	if overrides.ArtifactDir != "" {
		cfg.ArtifactDir = overrides.ArtifactDir
	}

	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	return cfg, nil
}
