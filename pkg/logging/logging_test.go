package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New("APP", ColorApp, &buf, WithColors(false))

	l.Infof("episode %d finished", 3)
	l.Warn("careful")
	l.Error("failed")

	out := buf.String()
	assert.Contains(t, out, "[APP] [INFO] episode 3 finished")
	assert.Contains(t, out, "[APP] [WARN] careful")
	assert.Contains(t, out, "[APP] [ERROR] failed")
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := New("APP", ColorApp, &buf, WithColors(false))

	l.Debugf("hidden")
	assert.Empty(t, buf.String())

	l.SetLevel(LevelDebug)
	l.Debugf("shown %s", "now")
	assert.Contains(t, buf.String(), "[APP] [DEBUG] shown now")

	buf.Reset()
	l.SetLevel(LevelError)
	l.Info("dropped")
	l.Warnf("dropped %d", 1)
	assert.Empty(t, buf.String())
}

func TestLoggerColors(t *testing.T) {
	var buf bytes.Buffer
	l := New("SRV", ColorServer, &buf, WithColors(true))
	l.Info("up")
	assert.Contains(t, buf.String(), "\x1b[")
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{
		"debug":   LevelDebug,
		"":        LevelInfo,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		" error ": LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}
