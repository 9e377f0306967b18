package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewErrorClonesSentinel(t *testing.T) {
	err := NewError(ErrNotFound, "Missing plugins: a.", map[string]any{"names": []string{"a"}})

	assert.Equal(t, "Missing plugins: a.", err.Message)
	assert.Equal(t, ErrCodeNotFound, err.TextCode)
	assert.Equal(t, "entry not found", ErrNotFound.Message)
	assert.True(t, IsCode(err, ErrCodeNotFound))
}

func TestWrapErrorKeepsCode(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := WrapError(ErrInvalidDefinition, "cannot load", cause, nil)

	assert.Same(t, cause, err.Source)
	assert.Equal(t, ErrCodeInvalidDefinition, Code(fmt.Errorf("outer: %w", err)))
	assert.Empty(t, Code(cause))
	assert.False(t, IsCode(nil, ErrCodeInvalidDefinition))
}

func TestFmtLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewFmtLogger(&buf)

	logger.Info("installed %s", "audit")
	WithLoggerFields(logger, map[string]any{"plugin": "audit", "app": "api"}).
		WithContext(context.Background()).
		Warn("slow")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], " INFO installed audit")
	assert.True(t, strings.HasSuffix(lines[1], " WARN slow app=api plugin=audit"))
}

func TestFmtLoggerMinLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewFmtLogger(&buf).WithMinLevel(LevelWarn)

	logger.Debug("skipped")
	logger.Info("skipped")
	logger.Error("failed %d times", 3)

	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
	assert.Contains(t, buf.String(), " ERROR failed 3 times")
	assert.Equal(t, "LEVEL(9)", Level(9).String())
}

func TestNormalizeLogger(t *testing.T) {
	assert.IsType(t, &FmtLogger{}, NormalizeLogger(nil))
	assert.IsType(t, &FmtLogger{}, NewGlogLogger(nil))

	custom := NewFmtLogger(&bytes.Buffer{})
	assert.Same(t, custom, NormalizeLogger(custom))
}
