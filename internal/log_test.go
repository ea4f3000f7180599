package internal

import (
	"bytes"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	flags := log.Flags()
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetFlags(flags)
	})
	return &buf
}

func TestParseLogLevel(t *testing.T) {
	level, ok := ParseLogLevel(" debug ")
	assert.True(t, ok)
	assert.Equal(t, LogLevelDebug, level)

	_, ok = ParseLogLevel("verbose")
	assert.False(t, ok)
}

func TestLoggerFiltersByLevel(t *testing.T) {
	buf := captureLog(t)
	l := NewLogger(LogLevelWarn).With("Server")

	l.Info("hidden %d", 1)
	l.Warn("shown %d", 2)

	assert.NotContains(t, buf.String(), "hidden")
	assert.Equal(t, "[WARN] [Server] shown 2\n", buf.String())
}
