package hittuning

import (
	"bytes"
	"log/slog"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlerDropsKeys(t *testing.T) {
	var out bytes.Buffer
	l := NewLogger(&out, slog.LevelInfo)
	l.Info("Created 3 output directories", "submit")

	line := out.String()
	assert.Regexp(t, regexp.MustCompile(`^\[\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}\] \[submit\] Created 3 output directories\n$`), line)
	assert.NotContains(t, line, "module=")
}

func TestHandlerLevelAndAttrs(t *testing.T) {
	var out bytes.Buffer
	log := slog.New(NewHandler(&out, &slog.HandlerOptions{Level: slog.LevelWarn}))
	log.Info("hidden", "module", "grid")
	assert.Empty(t, out.String())

	log.Warn("shown", "module", "merge", "file", "a.db")
	assert.Contains(t, out.String(), "[merge] [a.db] shown")
}

func TestSetLoggerNil(t *testing.T) {
	prev := GetLogger()
	defer SetLogger(prev)

	SetLogger(nil)
	assert.Equal(t, nopLogger{}, GetLogger())
}
