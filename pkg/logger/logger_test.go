package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"warning": WarnLevel,
		"warn":    WarnLevel,
		"error":   ErrorLevel,
		"loud":    InfoLevel,
		"":        InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNew_Levels(t *testing.T) {
	log, err := New(Config{Level: WarnLevel, Environment: "production"})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))

	log, err = New(Config{})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestGlobalLogger(t *testing.T) {
	prev := globalLogger
	t.Cleanup(func() { globalLogger = prev })

	globalLogger = nil
	assert.NotNil(t, GetGlobalLogger())

	nop := NewNop()
	SetGlobalLogger(nop)
	assert.Same(t, nop, GetGlobalLogger())
}

func TestScopedFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := (&Logger{Logger: zap.New(core)}).
		WithComponent("sync-loop").
		WithGroupID("ABC123").
		WithMemberID("member_1")

	log.Info("Snapshot applied")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "sync-loop", fields["component"])
	assert.Equal(t, "ABC123", fields["group_id"])
	assert.Equal(t, "member_1", fields["member_id"])
}
