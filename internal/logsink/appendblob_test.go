package logsink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memAppender struct {
	mu      sync.Mutex
	created []string
	blobs   map[string]*bytes.Buffer
}

func (m *memAppender) Create(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, name)
	if m.blobs == nil {
		m.blobs = map[string]*bytes.Buffer{}
	}
	if _, ok := m.blobs[name]; !ok {
		m.blobs[name] = &bytes.Buffer{}
	}
	return nil
}

func (m *memAppender) Append(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[name]
	if !ok {
		return errors.New("blob does not exist")
	}
	b.Write(data)
	return nil
}

func (m *memAppender) lines(name string) []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(m.blobs[name].String()), "\n") {
		var ev map[string]any
		if err := json.Unmarshal([]byte(line), &ev); err == nil {
			out = append(out, ev)
		}
	}
	return out
}

func TestHandlerWritesJSONLines(t *testing.T) {
	dst := &memAppender{}
	now := time.Date(2026, 10, 15, 23, 0, 0, 0, time.UTC)
	h := newHandler(context.Background(), Config{BlobName: "api", FlushEvery: time.Hour}, dst, func() time.Time { return now })

	logger := slog.New(h).With("request_id", "r1")
	logger.Info("recipe extracted", "title", "Soup", "error", errors.New("boom"))
	logger.Warn("slow fetch", slog.Group("fetch", "ms", 1200))
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())

	name := "2026/10/15/api.jsonl"
	assert.Equal(t, []string{name}, dst.created)
	lines := dst.lines(name)
	require.Len(t, lines, 2)
	assert.Equal(t, "recipe extracted", lines[0]["msg"])
	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "Soup", lines[0]["title"])
	assert.Equal(t, "boom", lines[0]["error"])
	assert.Equal(t, "r1", lines[0]["request_id"])
	assert.Equal(t, map[string]any{"ms": float64(1200)}, lines[1]["fetch"])

	// after close records are dropped
	assert.NoError(t, h.Handle(context.Background(), slog.NewRecord(now, slog.LevelInfo, "late", 0)))
}

func TestBlobName(t *testing.T) {
	loc := time.FixedZone("PDT", -7*3600)
	assert.Equal(t, "2026/10/16/host.jsonl", BlobName(time.Date(2026, 10, 15, 20, 0, 0, 0, loc), "host"))
}

func TestFanout(t *testing.T) {
	var a, b bytes.Buffer
	f := Fanout{
		slog.NewJSONHandler(&a, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}
	logger := slog.New(f).With("svc", "cookflow")
	logger.Info("only json")
	logger.Warn("both")
	logger.Debug("neither")

	assert.Equal(t, 2, strings.Count(a.String(), "\n"))
	assert.Contains(t, a.String(), `"svc":"cookflow"`)
	assert.Equal(t, 1, strings.Count(b.String(), "\n"))
	assert.Contains(t, b.String(), "msg=both")
	assert.False(t, f.Enabled(context.Background(), slog.LevelDebug))
}
