// Configuration loader and defaults tests.
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  http_port: 8888
  read_timeout: 60s

database:
  driver: "postgres"
  host: "db.example.com"
  port: 5433

ocr:
  tesseract_path: "/usr/bin/tesseract"
  languages: ["deu", "eng"]

log:
  level: "debug"
  format: "console"
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "db.example.com", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)

	assert.Equal(t, "/usr/bin/tesseract", cfg.OCR.TesseractPath)
	assert.Equal(t, []string{"deu", "eng"}, cfg.OCR.Languages)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	envVars := map[string]string{
		"DOCSCAN_SERVER_HTTP_PORT":   "7777",
		"DOCSCAN_DATABASE_HOST":      "env-db",
		"DOCSCAN_DATABASE_DRIVER":    "mysql",
		"DOCSCAN_SESSION_TTL":        "48h",
		"DOCSCAN_LOG_LEVEL":          "warn",
	}

	for k, v := range envVars {
		os.Setenv(k, v)
	}
	defer func() {
		for k := range envVars {
			os.Unsetenv(k)
		}
	}()

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.HTTPPort)
	assert.Equal(t, "env-db", cfg.Database.Host)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 48*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  http_port: 8888
database:
  driver: "postgres"
  host: "yaml-db"
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	os.Setenv("DOCSCAN_SERVER_HTTP_PORT", "9999")
	os.Setenv("DOCSCAN_DATABASE_HOST", "env-db")
	defer func() {
		os.Unsetenv("DOCSCAN_SERVER_HTTP_PORT")
		os.Unsetenv("DOCSCAN_DATABASE_HOST")
	}()

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.HTTPPort)
	assert.Equal(t, "env-db", cfg.Database.Host)
	// YAML value survives where env didn't override it.
	assert.Equal(t, "postgres", cfg.Database.Driver)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	os.Setenv("MYAPP_SERVER_HTTP_PORT", "6666")
	os.Setenv("MYAPP_DATABASE_HOST", "custom-prefix-db")
	defer func() {
		os.Unsetenv("MYAPP_SERVER_HTTP_PORT")
		os.Unsetenv("MYAPP_DATABASE_HOST")
	}()

	cfg, err := NewLoader().
		WithEnvPrefix("MYAPP").
		Load()
	require.NoError(t, err)

	assert.Equal(t, 6666, cfg.Server.HTTPPort)
	assert.Equal(t, "custom-prefix-db", cfg.Database.Host)
}

func TestLoader_SlotProvidersFromEnv(t *testing.T) {
	os.Setenv("DOCSCAN_LLM_SLOT_PROVIDERS", "claude,gemini,openai")
	defer os.Unsetenv("DOCSCAN_LLM_SLOT_PROVIDERS")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, [3]string{"claude", "gemini", "openai"}, cfg.LLM.SlotProviders)
}

func TestLoader_DerivesSystemKeysFromProviderEndpoints(t *testing.T) {
	os.Setenv("DOCSCAN_LLM_GEMINI_SYSTEM_API_KEY", "sys-gemini-key")
	os.Setenv("DOCSCAN_LLM_OPENAI_MODEL", "gpt-4o-mini")
	defer func() {
		os.Unsetenv("DOCSCAN_LLM_GEMINI_SYSTEM_API_KEY")
		os.Unsetenv("DOCSCAN_LLM_OPENAI_MODEL")
	}()

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "sys-gemini-key", cfg.LLM.SystemKeys["gemini"])
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.DefaultModels["openai"])
}

func TestLoader_WithValidator(t *testing.T) {
	validator := func(cfg *Config) error {
		if cfg.Server.HTTPPort < 1024 {
			return assert.AnError
		}
		return nil
	}

	os.Setenv("DOCSCAN_SERVER_HTTP_PORT", "80")
	defer os.Unsetenv("DOCSCAN_SERVER_HTTP_PORT")

	_, err := NewLoader().
		WithValidator(validator).
		Load()
	assert.Error(t, err)
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().
		WithConfigPath("/non/existent/path/config.yaml").
		Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoader_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
server:
  http_port: [invalid
  this is not valid yaml
`
	err := os.WriteFile(configPath, []byte(invalidYAML), 0644)
	require.NoError(t, err)

	_, err = NewLoader().
		WithConfigPath(configPath).
		Load()
	assert.Error(t, err)
}

// --- Config methods ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) { c.Session.SigningSecret = "a-secret" },
			wantErr: false,
		},
		{
			name: "invalid HTTP port (negative)",
			modify: func(c *Config) {
				c.Session.SigningSecret = "a-secret"
				c.Server.HTTPPort = -1
			},
			wantErr: true,
		},
		{
			name: "invalid HTTP port (too large)",
			modify: func(c *Config) {
				c.Session.SigningSecret = "a-secret"
				c.Server.HTTPPort = 70000
			},
			wantErr: true,
		},
		{
			name: "missing session signing secret",
			modify: func(c *Config) {
				c.Session.SigningSecret = ""
			},
			wantErr: true,
		},
		{
			name: "invalid upload size",
			modify: func(c *Config) {
				c.Session.SigningSecret = "a-secret"
				c.Upload.MaxSizeBytes = 0
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name     string
		config   DatabaseConfig
		expected string
	}{
		{
			name: "postgres DSN",
			config: DatabaseConfig{
				Driver:   "postgres",
				Host:     "localhost",
				Port:     5432,
				User:     "user",
				Password: "pass",
				Name:     "dbname",
				SSLMode:  "disable",
			},
			expected: "host=localhost port=5432 user=user password=pass dbname=dbname sslmode=disable",
		},
		{
			name: "mysql DSN",
			config: DatabaseConfig{
				Driver:   "mysql",
				Host:     "localhost",
				Port:     3306,
				User:     "user",
				Password: "pass",
				Name:     "dbname",
			},
			expected: "user:pass@tcp(localhost:3306)/dbname?parseTime=true",
		},
		{
			name: "sqlite DSN",
			config: DatabaseConfig{
				Driver: "sqlite",
				Name:   "/path/to/db.sqlite",
			},
			expected: "/path/to/db.sqlite",
		},
		{
			name: "unknown driver",
			config: DatabaseConfig{
				Driver: "unknown",
			},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.DSN())
		})
	}
}

// --- MustLoad ---

func TestMustLoad_Success(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  http_port: 8080
session:
  signing_secret: "a-secret"
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		cfg := MustLoad(configPath)
		assert.Equal(t, 8080, cfg.Server.HTTPPort)
	})
}

func TestMustLoad_InvalidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	err := os.WriteFile(configPath, []byte("invalid: [yaml"), 0644)
	require.NoError(t, err)

	assert.Panics(t, func() {
		MustLoad(configPath)
	})
}
