package log

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(LevelInfo)
	})

	SetLevel(LevelInfo)
	Debug("hidden debug")
	Info("visible info", "key", "value")
	Error("visible error", errors.New("boom"), "id", 7)

	out := buf.String()
	assert.NotContains(t, out, "hidden debug")
	assert.Contains(t, out, "visible info")
	assert.Contains(t, out, "key=value")
	assert.Contains(t, out, "visible error")
	assert.Contains(t, out, "err=boom")
	assert.Contains(t, out, "id=7")

	buf.Reset()
	SetLevel(LevelDebug)
	Debug("shown debug")
	assert.Contains(t, buf.String(), "shown debug")

	buf.Reset()
	SetLevel(LevelError)
	Info("quiet info")
	assert.Empty(t, buf.String())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelDebug, ParseLevel(" DEBUG "))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("info"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
	assert.Equal(t, LevelInfo, ParseLevel(""))
}
