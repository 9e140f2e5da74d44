package config

import "time"

// DefaultConfig returns the zero-value-safe defaults applied before the
// YAML file and environment overrides are layered on.
func DefaultConfig() *Config {
	return &Config{
		Server:   DefaultServerConfig(),
		Database: DefaultDatabaseConfig(),
		Auth:     DefaultAuthConfig(),
		Session:  DefaultSessionConfig(),
		OCR:      DefaultOCRConfig(),
		LLM:      DefaultLLMConfig(),
		Upload:    DefaultUploadConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
		Cache:     DefaultCacheConfig(),
	}
}

// DefaultCacheConfig disables the session revocation cache by default —
// an empty Addr means NewServer never dials Redis.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{Addr: "", DB: 0}
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9090,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    10,
		RateLimitBurst:  20,
	}
}

func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "docscan",
		Password:        "",
		Name:            "docscan.db",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		GoogleClientID:    "",
		TelegramBotSecret: "",
	}
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		SigningSecret: "",
		TTL:           30 * 24 * time.Hour,
	}
}

func DefaultOCRConfig() OCRConfig {
	return OCRConfig{
		TesseractPath:   "tesseract",
		LanguagePackDir: "/usr/share/tesseract-ocr/5/tessdata",
		Languages:       []string{"deu", "eng", "rus", "ukr"},
		Timeout:         10 * time.Second,
	}
}

// DefaultLLMConfig sets the default per-family models and the slot→provider
// mapping a user's three stored key slots resolve against, in order.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		SlotProviders: [3]string{"gemini", "openai", "claude"},
		SystemKeys:    make(map[string]string),
		DefaultModels: make(map[string]string),
		Gemini: ProviderEndpoint{
			BaseURL: "https://generativelanguage.googleapis.com",
			Model:   "gemini-2.0-flash",
		},
		OpenAI: ProviderEndpoint{
			BaseURL: "https://api.openai.com",
			Model:   "gpt-4o",
		},
		Claude: ProviderEndpoint{
			BaseURL: "https://api.anthropic.com",
			Model:   "claude-3-5-sonnet-20241022",
		},
		SoftTimeout: 30 * time.Second,
		HardTimeout: 60 * time.Second,
	}
}

func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		MaxSizeBytes: 10 * 1024 * 1024,
	}
}

func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		EnableCaller:     true,
		EnableStacktrace: false,
		OutputPaths:      []string{"stdout"},
	}
}

func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		ServiceName:  "docscan",
		OTLPEndpoint: "localhost:4317",
		SampleRate:   1.0,
	}
}
