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
	for in, want := range map[string]LogLevel{
		"debug": DEBUG, "INFO": INFO, "": INFO, "warning": WARN, "Error": ERROR, "fatal": FATAL,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestComponentFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := ReplaceLogger(zap.New(core))
	defer restore()

	InfoCF("store", "fetched", map[string]any{"count": 3})
	WarnC("loop", "slow")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "fetched", entries[0].Message)
	assert.Equal(t, "store", entries[0].ContextMap()["component"])
	assert.EqualValues(t, 3, entries[0].ContextMap()["count"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "loop", entries[1].ContextMap()["component"])
}

func TestSetLevel(t *testing.T) {
	prev := GetLevel()
	defer SetLevel(prev)

	SetLevel(ERROR)
	assert.Equal(t, ERROR, GetLevel())
	SetLevel(DEBUG)
	assert.Equal(t, DEBUG, GetLevel())
}
