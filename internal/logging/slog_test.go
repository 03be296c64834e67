package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_ConsoleAndFile(t *testing.T) {
	var console, file bytes.Buffer
	m := NewSlogManager()
	require.NoError(t, m.Setup(Options{Level: "info", Console: &console, File: &file}))

	m.Logger().Info("hello both", "vessels", 3)

	assert.Contains(t, console.String(), "hello both")
	assert.Contains(t, file.String(), "hello both")
	assert.Contains(t, file.String(), "vessels=3")
}

func TestSetup_DebugLevel(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	require.NoError(t, m.Setup(Options{Level: "debug", Console: &buf}))

	m.Logger().Debug("debug msg")
	m.Logger().Info("info msg")

	assert.Contains(t, buf.String(), "debug msg")
	assert.Contains(t, buf.String(), "info msg")
}

func TestSetup_InfoLevel_FiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	require.NoError(t, m.Setup(Options{Level: "info", Console: &buf}))

	m.Logger().Debug("should be filtered")
	m.Logger().Info("should appear")

	assert.NotContains(t, buf.String(), "should be filtered")
	assert.Contains(t, buf.String(), "should appear")
}

func TestSetup_RFC3339UTCTime(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	require.NoError(t, m.Setup(Options{Console: &buf}))

	m.Logger().Info("timed")

	line := buf.String()
	start := strings.Index(line, "time=") + len("time=")
	end := strings.IndexByte(line[start:], ' ')
	_, err := time.Parse(time.RFC3339, line[start:start+end])
	assert.NoError(t, err)
	assert.True(t, strings.HasSuffix(line[start:start+end], "Z"))
}

func TestSetup_ReplacesLogger(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	m := NewSlogManager()

	require.NoError(t, m.Setup(Options{Console: &buf1}))
	m.Logger().Info("first")

	require.NoError(t, m.Setup(Options{Console: &buf2}))
	m.Logger().Info("second")

	assert.Contains(t, buf1.String(), "first")
	assert.NotContains(t, buf1.String(), "second")
	assert.Contains(t, buf2.String(), "second")
}

func TestSetup_RunIDFromContext(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	require.NoError(t, m.Setup(Options{Console: &buf, Context: RunIDProvider}))

	ctx := WithRunID(context.Background(), "run-42")
	m.Logger().InfoContext(ctx, "with run")
	m.Logger().Info("without run")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "run=run-42")
	assert.NotContains(t, lines[1], "run=")
}

func TestSetup_Graylog(t *testing.T) {
	reader, err := gelf.NewReader("127.0.0.1:0")
	require.NoError(t, err)

	m := NewSlogManager()
	t.Cleanup(func() { _ = m.Close() })
	require.NoError(t, m.Setup(Options{Console: &bytes.Buffer{}, GraylogAddress: reader.Addr()}))

	received := make(chan string, 1)
	go func() {
		msg, err := reader.ReadMessage()
		if err == nil {
			received <- msg.Short
		}
	}()

	m.Logger().Warn("vessel jumped", "mmsi", 219000001)

	select {
	case short := <-received:
		assert.Contains(t, short, "vessel jumped")
		assert.Contains(t, short, "219000001")
	case <-time.After(5 * time.Second):
		t.Fatal("no GELF message received")
	}
}

func TestSetup_GraylogBadAddress(t *testing.T) {
	m := NewSlogManager()
	err := m.Setup(Options{Console: &bytes.Buffer{}, GraylogAddress: "not a host:port:x"})
	assert.Error(t, err)
}

func TestLogger_DefaultBeforeSetup(t *testing.T) {
	m := NewSlogManager()
	assert.Equal(t, slog.Default(), m.Logger())
	assert.NoError(t, m.Close())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestMultiHandler_FansOut(t *testing.T) {
	var a, b bytes.Buffer
	h := NewMultiHandler(slog.NewTextHandler(&a, nil), nil, slog.NewTextHandler(&b, nil))

	slog.New(h).Info("fan out")

	assert.Contains(t, a.String(), "fan out")
	assert.Contains(t, b.String(), "fan out")
}

func TestMultiHandler_Enabled(t *testing.T) {
	var buf bytes.Buffer
	h := NewMultiHandler(
		slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError}),
		slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}),
	)
	ctx := context.Background()

	assert.True(t, h.Enabled(ctx, slog.LevelInfo))
	assert.False(t, h.Enabled(ctx, slog.LevelDebug))
	assert.False(t, NewMultiHandler().Enabled(ctx, slog.LevelError))
}

func TestMultiHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	h := NewMultiHandler(slog.NewTextHandler(&buf, nil))

	slog.New(h).With("strategy", "concurrent").WithGroup("pass").Info("done", "events", 2)

	assert.Contains(t, buf.String(), "strategy=concurrent")
	assert.Contains(t, buf.String(), "pass.events=2")
	assert.Same(t, h, h.WithGroup(""))
}

type errorHandler struct{}

var errSink = errors.New("sink down")

func (errorHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (errorHandler) Handle(context.Context, slog.Record) error { return errSink }
func (h errorHandler) WithAttrs([]slog.Attr) slog.Handler       { return h }
func (h errorHandler) WithGroup(string) slog.Handler            { return h }

func TestMultiHandler_HandleError(t *testing.T) {
	var buf bytes.Buffer
	h := NewMultiHandler(errorHandler{}, slog.NewTextHandler(&buf, nil))

	err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "still delivered", 0))

	assert.ErrorIs(t, err, errSink)
	assert.Contains(t, buf.String(), "still delivered")
}

func TestRunID(t *testing.T) {
	_, ok := RunID(context.Background())
	assert.False(t, ok)

	_, ok = RunID(WithRunID(context.Background(), ""))
	assert.False(t, ok)

	id, ok := RunID(WithRunID(context.Background(), "abc"))
	assert.True(t, ok)
	assert.Equal(t, "abc", id)
	assert.Nil(t, RunIDProvider(context.Background()))
}
