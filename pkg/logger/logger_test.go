package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fatflowers/checkout/pkg/config"
)

func TestBuild(t *testing.T) {
	l, err := Build(&config.Config{Env: config.EnvProd, Log: config.LogConfig{Level: "warn"}})
	require.NoError(t, err)
	require.False(t, l.Core().Enabled(zapcore.InfoLevel))
	require.True(t, l.Core().Enabled(zapcore.WarnLevel))

	l, err = Build(&config.Config{Env: config.EnvDev})
	require.NoError(t, err)
	require.True(t, l.Core().Enabled(zapcore.DebugLevel))

	_, err = Build(&config.Config{Log: config.LogConfig{Level: "loud"}})
	require.Error(t, err)
}
