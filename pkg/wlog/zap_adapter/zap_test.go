package zapadapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestAdapterForwardsFields tests that key value pairs end up as zap fields
func TestAdapterForwardsFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	a := New(zap.New(core))

	a.Info("peer connected", "id", 7, "addr", "127.0.0.1:9000")
	a.Debug("ignored opcode", "opcode", 9)
	a.Warn("delivery exhausted", "seq", 3)
	a.Error("send failed", "error", "boom")

	entries := logs.All()
	if assert.Len(t, entries, 4) {
		assert.Equal(t, "peer connected", entries[0].Message)
		assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
		assert.Equal(t, int64(7), entries[0].ContextMap()["id"])
		assert.Equal(t, "127.0.0.1:9000", entries[0].ContextMap()["addr"])
		assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
		assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
		assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
	}
}
