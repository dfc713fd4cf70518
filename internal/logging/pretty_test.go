package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPrettyHandlerHandle(t *testing.T) {
	ctx := context.Background()

	t.Run("Handle INFO level log", func(t *testing.T) {
		var buf bytes.Buffer
		handler := NewPrettyHandler(&buf, PrettyHandlerOptions{})

		record := slog.NewRecord(time.Now(), slog.LevelInfo, "ingested document", 0)
		record.AddAttrs(slog.Int("chunks", 42))

		err := handler.Handle(ctx, record)

		assert.NoError(t, err)
		output := buf.String()
		assert.Contains(t, output, "INFO:")
		assert.Contains(t, output, "ingested document")
		assert.Contains(t, output, "chunks")
		assert.Contains(t, output, "42")
		assert.Regexp(t, `\[\d{2}:\d{2}:\d{2}\.\d{3}\]`, output)
	})

	t.Run("Handle error attribute", func(t *testing.T) {
		var buf bytes.Buffer
		handler := NewPrettyHandler(&buf, PrettyHandlerOptions{})

		record := slog.NewRecord(time.Now(), slog.LevelError, "embedding failed", 0)
		record.AddAttrs(slog.Any("error", errors.New("service unavailable")))

		assert.NoError(t, handler.Handle(ctx, record))
		assert.Contains(t, buf.String(), "ERROR:")
		assert.Contains(t, buf.String(), "service unavailable")
	})

	t.Run("Handle log with no attributes", func(t *testing.T) {
		var buf bytes.Buffer
		handler := NewPrettyHandler(&buf, PrettyHandlerOptions{})

		record := slog.NewRecord(time.Now(), slog.LevelWarn, "simple message", 0)

		assert.NoError(t, handler.Handle(ctx, record))
		assert.Contains(t, buf.String(), "WARN:")
		assert.Contains(t, buf.String(), "{}")
	})

	t.Run("WithAttrs carries attributes", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(NewPrettyHandler(&buf, PrettyHandlerOptions{})).With(slog.String("component", "retriever"))

		logger.Info("query")

		assert.Contains(t, buf.String(), "component")
		assert.Contains(t, buf.String(), "retriever")
	})
}

func TestNew(t *testing.T) {
	t.Run("level filters records", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New(&buf, "warn", "pretty")

		logger.Info("hidden")
		logger.Warn("shown")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("json format", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New(&buf, "debug", "json")

		logger.Debug("structured", slog.String("doc_id", "abc"))

		assert.Contains(t, buf.String(), `"msg":"structured"`)
		assert.Contains(t, buf.String(), `"doc_id":"abc"`)
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}
