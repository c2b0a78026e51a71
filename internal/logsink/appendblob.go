// Package logsink ships JSON log lines to a daily append blob.
package logsink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/appendblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
)

type Config struct {
	AccountName string
	AccountKey  string
	Container   string
	BlobName    string        // defaults to the hostname
	FlushEvery  time.Duration // default 2s
}

// appender is the slice of append blob behaviour the handler needs.
type appender interface {
	Create(ctx context.Context, name string) error
	Append(ctx context.Context, name string, data []byte) error
}

type Handler struct {
	base   string
	dst    appender
	now    func() time.Time
	ch     chan []byte
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	ticker *time.Ticker

	mu     sync.RWMutex
	closed bool

	current string // blob currently appended to
}

func New(ctx context.Context, cfg Config) (*Handler, error) {
	if cfg.AccountName == "" || cfg.AccountKey == "" || cfg.Container == "" {
		return nil, errors.New("AccountName, AccountKey and Container are required")
	}
	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, err
	}
	client, err := azblob.NewClientWithSharedKeyCredential(fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName), cred, nil)
	if err != nil {
		return nil, err
	}
	dst := &blobAppender{container: client.ServiceClient().NewContainerClient(cfg.Container)}
	return newHandler(ctx, cfg, dst, time.Now), nil
}

func newHandler(ctx context.Context, cfg Config, dst appender, now func() time.Time) *Handler {
	if cfg.BlobName == "" {
		cfg.BlobName, _ = os.Hostname()
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = 2 * time.Second
	}
	ctx, cancel := context.WithCancel(ctx)
	h := &Handler{
		base:   cfg.BlobName,
		dst:    dst,
		now:    now,
		ch:     make(chan []byte, 1024),
		ctx:    ctx,
		cancel: cancel,
		ticker: time.NewTicker(cfg.FlushEvery),
	}
	h.wg.Add(1)
	go h.loop()
	return h
}

// Close flushes what is buffered and stops the writer.
func (h *Handler) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	close(h.ch)
	h.mu.Unlock()

	h.wg.Wait()
	h.cancel()
	h.ticker.Stop()
	return nil
}

// BlobName is where lines written at t go: YYYY/MM/DD/<name>.jsonl.
func BlobName(t time.Time, name string) string {
	return dateFolder(t) + name + ".jsonl"
}

func dateFolder(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%d/%02d/%02d/", t.Year(), int(t.Month()), t.Day())
}

func (h *Handler) Enabled(context.Context, slog.Level) bool { return true }

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	ev := make(map[string]any, r.NumAttrs()+3)
	ts := r.Time
	if ts.IsZero() {
		ts = h.now()
	}
	ev["ts"] = ts.UTC().Format(time.RFC3339Nano)
	ev["level"] = r.Level.String()
	ev["msg"] = r.Message

	add := func(a slog.Attr) bool {
		a.Value = a.Value.Resolve()
		if a.Value.Kind() == slog.KindGroup {
			m := map[string]any{}
			// one level deep
			for _, aa := range a.Value.Group() {
				m[aa.Key] = aa.Value.Resolve().Any()
			}
			ev[a.Key] = m
			return true
		}
		if err, ok := a.Value.Any().(error); ok {
			ev[a.Key] = err.Error()
			return true
		}
		ev[a.Key] = a.Value.Any()
		return true
	}
	r.Attrs(add)

	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ev); err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return nil
	}
	select {
	case h.ch <- b.Bytes():
		return nil
	case <-h.ctx.Done():
		return h.ctx.Err()
	}
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &withAttrs{h: h, attrs: attrs}
}

func (h *Handler) WithGroup(string) slog.Handler { return h }

func (h *Handler) loop() {
	defer h.wg.Done()
	var buf []byte
	flush := func() {
		if len(buf) == 0 {
			return
		}
		if err := h.write(buf); err != nil {
			// slog would loop back into this handler
			fmt.Fprintf(os.Stderr, "logsink: append failed: %v\n", err)
		}
		buf = buf[:0]
	}

	for {
		select {
		case line, ok := <-h.ch:
			if !ok {
				flush()
				return
			}
			buf = append(buf, line...)
		case <-h.ticker.C:
			flush()
		}
	}
}

func (h *Handler) write(data []byte) error {
	name := BlobName(h.now(), h.base)
	if name != h.current {
		if err := h.dst.Create(h.ctx, name); err != nil {
			return err
		}
		h.current = name
	}
	return h.dst.Append(h.ctx, name, data)
}

type withAttrs struct {
	h     *Handler
	attrs []slog.Attr
}

func (w *withAttrs) Enabled(ctx context.Context, l slog.Level) bool { return w.h.Enabled(ctx, l) }

func (w *withAttrs) Handle(ctx context.Context, r slog.Record) error {
	r2 := r.Clone()
	r2.AddAttrs(w.attrs...)
	return w.h.Handle(ctx, r2)
}

func (w *withAttrs) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &withAttrs{h: w.h, attrs: append(append([]slog.Attr{}, w.attrs...), attrs...)}
}

func (w *withAttrs) WithGroup(string) slog.Handler { return w }

type blobAppender struct {
	container *container.Client
}

// Create makes the blob unless it already exists; a plain create would
// truncate it.
func (b *blobAppender) Create(ctx context.Context, name string) error {
	_, err := b.container.NewAppendBlobClient(name).Create(ctx, &appendblob.CreateOptions{
		AccessConditions: &blob.AccessConditions{
			ModifiedAccessConditions: &blob.ModifiedAccessConditions{IfNoneMatch: to.Ptr(azcore.ETagAny)},
		},
	})
	if bloberror.HasCode(err, bloberror.BlobAlreadyExists) {
		return nil
	}
	return err
}

func (b *blobAppender) Append(ctx context.Context, name string, data []byte) error {
	_, err := b.container.NewAppendBlobClient(name).AppendBlock(ctx, readSeekNopCloser{bytes.NewReader(data)}, nil)
	return err
}

type readSeekNopCloser struct{ io.ReadSeeker }

func (r readSeekNopCloser) Close() error { return nil }
