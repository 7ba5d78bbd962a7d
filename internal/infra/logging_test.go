package infra

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		level string
		debug bool
		info  bool
	}{
		{"debug", true, true},
		{"DEBUG", true, true},
		{"info", false, true},
		{"warn", false, false},
		{"nonsense", false, true},
		{"", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l := NewLogger(&bytes.Buffer{}, tt.level)
			assert.Equal(t, tt.debug, l.Enabled(context.Background(), slog.LevelDebug))
			assert.Equal(t, tt.info, l.Enabled(context.Background(), slog.LevelInfo))
		})
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, "info").Info("settlement pass complete", "settled", 3)
	assert.Contains(t, buf.String(), `"msg":"settlement pass complete"`)
	assert.Contains(t, buf.String(), `"settled":3`)
}
