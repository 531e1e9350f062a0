package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===== Test Helper Functions =====

const minimalYAML = `
database:
  postgres:
    host: localhost
    database: jobboard
    user: ${TEST_DB_USER}
  redis:
    address: localhost:6379
auth:
  keycloak:
    url: http://keycloak:8080
    realm: jobboard
storage:
  region: us-east-1
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// ===== Loading =====

func TestLoadFromFile_AppliesDefaultsAndExpandsEnv(t *testing.T) {
	t.Setenv("TEST_DB_USER", "board")

	cfg, err := LoadFromFile(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "board", cfg.Database.Postgres.User)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, 10, cfg.Database.Redis.PoolSize)
	assert.Equal(t, 1000, cfg.Database.Redis.ReadTimeout)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "resume", cfg.Storage.ResumeBucket)
	assert.Equal(t, "companylogo", cfg.Storage.LogoBucket)
	assert.Equal(t, 60, cfg.Storage.SignedURLTTL)
	assert.Equal(t, "postjob_changes", cfg.Feed.Channel)
	assert.Equal(t, "jobs", cfg.Search.Index)
	assert.Equal(t, "/auth/sign-in", cfg.Auth.SignInPath)
	assert.Equal(t, "job-board", cfg.Observability.ServiceName)
	assert.Equal(t, "us-east-1", cfg.Notifications.AWS.Region)
}

func TestLoadFromFile_Validation(t *testing.T) {
	t.Setenv("TEST_DB_USER", "board")

	tests := []struct {
		name    string
		extra   string
		wantErr string
	}{
		{
			name:    "search enabled without elasticsearch",
			extra:   "search:\n  enabled: true\n",
			wantErr: "elasticsearch",
		},
		{
			name:    "events enabled without topic",
			extra:   "notifications:\n  events:\n    enabled: true\n",
			wantErr: "topic_arn",
		},
		{
			name:    "email enabled without sender",
			extra:   "notifications:\n  email:\n    enabled: true\n",
			wantErr: "from_email",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, minimalYAML+tt.extra))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile_MissingPostgresHost(t *testing.T) {
	body := `
database:
  redis:
    address: localhost:6379
`
	_, err := LoadFromFile(writeConfig(t, body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.postgres.host")
}

func TestPostgresConfig_GetDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "jobboard", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=jobboard sslmode=disable", p.GetDSN())
}

func TestDurations(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
	assert.Equal(t, time.Minute, GetSeconds(60))
}
