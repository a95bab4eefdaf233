package util

import (
	"bytes"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestSetKeyValue(t *testing.T) {
	vi := viper.New()
	vi.SetDefault("log_level", "info")
	vi.SetDefault("mongo.url", "")
	vi.SetDefault("rate_limiter.rate", 0)

	assert.True(t, SetKeyValue(vi, "NL_LOG_LEVEL", "debug"))
	assert.True(t, SetKeyValue(vi, "NL_MONGO_URL", "mongodb://db:27017"))
	assert.True(t, SetKeyValue(vi, "NL_RATE_LIMITER_RATE", "5"))
	assert.True(t, SetKeyValue(vi, "NL_APP_NAME", "pipes"))
	assert.False(t, SetKeyValue(vi, "NL", "x"))

	assert.Equal(t, "debug", vi.GetString("log_level"))
	assert.Equal(t, "mongodb://db:27017", vi.GetString("mongo.url"))
	assert.Equal(t, 5.0, vi.GetFloat64("rate_limiter.rate"))
	assert.Equal(t, "pipes", vi.GetString("app_name"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zap.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zap.InfoLevel, ParseLevel("info"))
	assert.Equal(t, zap.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zap.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zap.ErrorLevel, ParseLevel("verbose"))
}

func TestNewLoggerWithOutput(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithOutput(true, &buf, zap.NewAtomicLevelAt(zap.InfoLevel))

	log.Debug("hidden")
	log.Info("shown", zap.String("k", "v"))
	log.Sync() //nolint:errcheck

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"k":"v"`)
}
