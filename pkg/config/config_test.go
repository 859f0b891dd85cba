package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "AI Banking Portal", cfg.Mail.FromName)
	assert.Equal(t, "smtp.gmail.com", cfg.Mail.Host)
	assert.Equal(t, 587, cfg.Mail.Port)
	assert.False(t, cfg.Mail.Enabled())
	assert.False(t, cfg.Scorer.Enabled())
	assert.Equal(t, 20*time.Second, cfg.Scorer.Timeout)
	assert.Equal(t, "https://iam.cloud.ibm.com/identity/token", cfg.Scorer.TokenURL)
	assert.NotEqual(t, cfg.JWT.ApplicantSecret, cfg.JWT.StaffSecret)
	assert.Empty(t, cfg.Events.Brokers)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SCORER_API_KEY", "key")
	t.Setenv("SCORER_AGENT_ENDPOINT", "https://agent.example.com/chat")
	t.Setenv("SCORER_TIMEOUT", "3s")
	t.Setenv("SMTP_USERNAME", "bank@example.com")
	t.Setenv("SMTP_PASSWORD", "secret")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("UPLOAD_MAX_FILE_SIZE", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Scorer.Enabled())
	assert.Equal(t, 3*time.Second, cfg.Scorer.Timeout)
	assert.True(t, cfg.Mail.Enabled())
	assert.Equal(t, "bank@example.com", cfg.Mail.FromEmail)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Events.Brokers)
	assert.Equal(t, int64(10*1024*1024), cfg.Uploads.MaxFileSizeBytes)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("soon", time.Minute))
	assert.Equal(t, 5*time.Second, parseDuration("5s", time.Minute))
}
