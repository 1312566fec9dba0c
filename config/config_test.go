package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "patientrest", cfg.App.Name)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
	assert.Equal(t, 50, cfg.REST.DefaultLimit)
	assert.Equal(t, 100, cfg.REST.MaxLimit)
	assert.Equal(t, 5*time.Minute, cfg.Redis.PatientTTL)
	assert.False(t, cfg.Events.Enabled)
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET=from-file\nREST_BASE_URL=https://emr.example.org/api/v1/\n"), 0o600))
	t.Setenv("ENV_FILE", path)
	// godotenv never overrides variables that are already set.
	for _, key := range []string{"JWT_SECRET", "REST_BASE_URL"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.JWT.Secret)
	assert.Equal(t, "https://emr.example.org/api/v1", cfg.REST.BaseURL)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			App:      AppConfig{Environment: "development"},
			Database: DatabaseConfig{SSLMode: "require"},
			JWT:      JWTConfig{Secret: "secret"},
			REST:     RESTConfig{DefaultLimit: 50, MaxLimit: 100},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid development config", mutate: func(c *Config) {}},
		{
			name:    "missing secret",
			mutate:  func(c *Config) { c.JWT.Secret = "" },
			wantErr: "JWT_SECRET",
		},
		{
			name: "short secret in production",
			mutate: func(c *Config) {
				c.App.Environment = "production"
				c.Database.Password = "pw"
			},
			wantErr: "at least 32 characters",
		},
		{
			name: "ssl disabled in production",
			mutate: func(c *Config) {
				c.App.Environment = "production"
				c.Database.Password = "pw"
				c.JWT.Secret = "0123456789abcdef0123456789abcdef"
				c.Database.SSLMode = "disable"
			},
			wantErr: "DB_SSLMODE",
		},
		{
			name:    "default limit above max",
			mutate:  func(c *Config) { c.REST.DefaultLimit = 500 },
			wantErr: "REST_DEFAULT_LIMIT",
		},
		{
			name:    "bootstrap email without password",
			mutate:  func(c *Config) { c.Bootstrap.AdminEmail = "admin@example.org" },
			wantErr: "BOOTSTRAP_ADMIN_EMAIL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
