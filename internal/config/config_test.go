package config

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:    AppConfig{Environment: "development"},
		Logger: LoggerConfig{Level: "info"},
		Data:   DataConfig{BasePath: "/tmp/annotate-test"},
		API: APIConfig{
			ConsumerKey:     uuid.NewString(),
			DefaultPageSize: 20,
		},
	}
}

func TestValidate_OK(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_Environment(t *testing.T) {
	cfg := validConfig()
	cfg.App.Environment = "testing"

	err := cfg.Validate()
	assert.ErrorContains(t, err, "invalid environment")
}

func TestValidate_LogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Logger.Level = "verbose"

	err := cfg.Validate()
	assert.ErrorContains(t, err, "invalid log level")
}

func TestValidate_DataPath(t *testing.T) {
	cfg := validConfig()
	cfg.Data.BasePath = ""

	err := cfg.Validate()
	assert.ErrorContains(t, err, "data base path")
}

func TestValidate_ConsumerKey(t *testing.T) {
	cfg := validConfig()
	cfg.API.ConsumerKey = "not-a-uuid"

	err := cfg.Validate()
	assert.ErrorContains(t, err, "invalid consumer key")
}

func TestValidate_DefaultPageSize(t *testing.T) {
	cfg := validConfig()
	cfg.API.DefaultPageSize = 0

	err := cfg.Validate()
	assert.ErrorContains(t, err, "default page size")
}

func TestGetConfigValue_Precedence(t *testing.T) {
	t.Setenv("ANNOTATE_TEST_KEY", "from-env")

	// Flag wins over env.
	assert.Equal(t, "from-flag", getConfigValue("from-flag", "ANNOTATE_TEST_KEY", "default"))
	// Env wins over default.
	assert.Equal(t, "from-env", getConfigValue("", "ANNOTATE_TEST_KEY", "default"))
	// Default when nothing set.
	assert.Equal(t, "default", getConfigValue("", "ANNOTATE_TEST_UNSET", "default"))
}

func TestExpandPath(t *testing.T) {
	expanded, err := expandPath("", "/default/path")
	require.NoError(t, err)
	assert.Equal(t, "/default/path", expanded)

	expanded, err = expandPath("/some//path/", "")
	require.NoError(t, err)
	assert.Equal(t, "/some/path", expanded)
}
