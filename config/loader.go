// Package config loads the service's process-wide configuration once at
// startup: YAML file, overridden by environment variables. There is no
// reload path — the service trades hot-reload for a single immutable
// config record passed explicitly to every component; a config change
// requires a restart.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete, immutable process configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" env:"SERVER"`
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`
	Auth     AuthConfig     `yaml:"auth" env:"AUTH"`
	Session  SessionConfig  `yaml:"session" env:"SESSION"`
	OCR      OCRConfig      `yaml:"ocr" env:"OCR"`
	LLM      LLMConfig      `yaml:"llm" env:"LLM"`
	Upload    UploadConfig    `yaml:"upload" env:"UPLOAD"`
	Log       LogConfig       `yaml:"log" env:"LOG"`
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
	Letters   LettersConfig   `yaml:"letters" env:"LETTERS"`
	Cache     CacheConfig     `yaml:"cache" env:"CACHE"`
}

// LettersConfig configures the letter template catalog. An empty
// TemplatesPath falls back to the binary's embedded seed catalog.
type LettersConfig struct {
	TemplatesPath string `yaml:"templates_path" env:"TEMPLATES_PATH"`
}

// CacheConfig configures the Redis-backed session revocation cache. An
// empty Addr disables it — logout then becomes a client-side token
// discard rather than a server-enforced revocation.
type CacheConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
}

// ServerConfig configures the HTTP listener and its ambient middleware.
type ServerConfig struct {
	HTTPPort           int           `yaml:"http_port" env:"HTTP_PORT"`
	MetricsPort        int           `yaml:"metrics_port" env:"METRICS_PORT"`
	ReadTimeout        time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout       time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
	RateLimitRPS       float64       `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst     int           `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
}

// DatabaseConfig configures the user/key/analysis/letter store.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver" env:"DRIVER"` // postgres, mysql, sqlite
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	User            string        `yaml:"user" env:"USER"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	Name            string        `yaml:"name" env:"NAME"`
	SSLMode         string        `yaml:"ssl_mode" env:"SSL_MODE"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// AuthConfig configures the two identity providers.
type AuthConfig struct {
	GoogleClientID    string `yaml:"google_client_id" env:"GOOGLE_CLIENT_ID"`
	TelegramBotSecret string `yaml:"telegram_bot_secret" env:"TELEGRAM_BOT_SECRET"`
}

// SessionConfig configures bearer session token minting/verification.
type SessionConfig struct {
	SigningSecret string        `yaml:"signing_secret" env:"SIGNING_SECRET"`
	TTL           time.Duration `yaml:"ttl" env:"TTL"`
}

// OCRConfig configures the OCR engine's external binary and language packs.
type OCRConfig struct {
	TesseractPath   string        `yaml:"tesseract_path" env:"TESSERACT_PATH"`
	LanguagePackDir string        `yaml:"language_pack_dir" env:"LANGUAGE_PACK_DIR"`
	Languages       []string      `yaml:"languages" env:"LANGUAGES"` // deu, eng, rus, ukr
	Timeout         time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// LLMConfig configures the router's system-wide fallback keys and the
// slot→provider-family mapping used when resolving user keys.
type LLMConfig struct {
	SlotProviders [3]string         `yaml:"slot_providers" env:"SLOT_PROVIDERS"` // e.g. [gemini, openai, claude]
	SystemKeys    map[string]string `yaml:"-" env:"-"`
	DefaultModels map[string]string `yaml:"-" env:"-"`
	Gemini        ProviderEndpoint  `yaml:"gemini" env:"GEMINI"`
	OpenAI        ProviderEndpoint  `yaml:"openai" env:"OPENAI"`
	Claude        ProviderEndpoint  `yaml:"claude" env:"CLAUDE"`
	SoftTimeout   time.Duration     `yaml:"soft_timeout" env:"SOFT_TIMEOUT"`
	HardTimeout   time.Duration     `yaml:"hard_timeout" env:"HARD_TIMEOUT"`
}

// ProviderEndpoint holds the system key, base URL and default model for one
// provider family.
type ProviderEndpoint struct {
	SystemAPIKey string `yaml:"system_api_key" env:"SYSTEM_API_KEY"`
	BaseURL      string `yaml:"base_url" env:"BASE_URL"`
	Model        string `yaml:"model" env:"MODEL"`
}

// UploadConfig bounds the analyze-file request body.
type UploadConfig struct {
	MaxSizeBytes int64 `yaml:"max_size_bytes" env:"MAX_SIZE_BYTES"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level            string   `yaml:"level" env:"LEVEL"`
	Format           string   `yaml:"format" env:"FORMAT"` // json, console
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"` // "stdout", "stderr", or a file path
}

// TelemetryConfig configures the OpenTelemetry SDK wired up by
// internal/telemetry.Init. Disabled by default — the pipeline and HTTP
// layers emit spans to a noop tracer until an OTLP endpoint is set.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// Loader loads Config from defaults, then an optional YAML file, then
// environment variables, in that order of increasing precedence.
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a loader with the service's default env prefix.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "DOCSCAN",
		validators: make([]func(*Config) error, 0),
	}
}

func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load builds the final Config. This is called exactly once, at startup.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	l.deriveSystemKeys(cfg)

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// deriveSystemKeys populates LLM.SystemKeys/DefaultModels from each family's
// ProviderEndpoint, which may have been set by file or env above.
func (l *Loader) deriveSystemKeys(cfg *Config) {
	cfg.LLM.SystemKeys = make(map[string]string)
	cfg.LLM.DefaultModels = make(map[string]string)
	for name, ep := range map[string]ProviderEndpoint{
		"gemini": cfg.LLM.Gemini,
		"openai": cfg.LLM.OpenAI,
		"claude": cfg.LLM.Claude,
	} {
		if ep.SystemAPIKey != "" {
			cfg.LLM.SystemKeys[name] = ep.SystemAPIKey
		}
		if ep.Model != "" {
			cfg.LLM.DefaultModels[name] = ep.Model
		}
	}
}

func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}

	case reflect.Array:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := 0; i < field.Len() && i < len(parts); i++ {
				field.Index(i).SetString(strings.TrimSpace(parts[i]))
			}
		}
	}

	return nil
}

// MustLoad loads config, panicking on failure. Used only from main().
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate checks invariants that the zero-value defaults cannot express.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Session.SigningSecret == "" {
		errs = append(errs, "session signing secret is required")
	}
	if c.Upload.MaxSizeBytes <= 0 {
		errs = append(errs, "upload.max_size_bytes must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// DSN returns the database driver's connection string.
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
