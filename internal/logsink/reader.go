package logsink

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// Entry is one line written by Handler.
type Entry struct {
	TS    time.Time      `json:"ts"`
	Level string         `json:"level"`
	Msg   string         `json:"msg"`
	Attrs map[string]any `json:"-"`
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*e = Entry{Attrs: map[string]any{}}
	for k, v := range fields {
		switch k {
		case "ts":
			s, _ := v.(string)
			e.TS, _ = time.Parse(time.RFC3339Nano, s)
		case "level":
			e.Level, _ = v.(string)
		case "msg":
			e.Msg, _ = v.(string)
		default:
			e.Attrs[k] = v
		}
	}
	return nil
}

// Reader reads the daily blobs back.
type Reader struct {
	container string
	client    *azblob.Client
	now       func() time.Time
}

func NewReader(cfg Config) (*Reader, error) {
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
	return &Reader{container: cfg.Container, client: client, now: time.Now}, nil
}

// Since returns entries newer than d, oldest first.
func (r *Reader) Since(ctx context.Context, d time.Duration) ([]Entry, error) {
	until := r.now()
	since := until.Add(-d)

	var all []Entry
	for _, prefix := range datePrefixes(since, until) {
		pager := r.client.NewListBlobsFlatPager(r.container, &azblob.ListBlobsFlatOptions{Prefix: &prefix})
		for pager.More() {
			resp, err := pager.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to list blobs: %w", err)
			}
			for _, item := range resp.Segment.BlobItems {
				if item.Properties != nil && item.Properties.LastModified != nil && item.Properties.LastModified.Before(since) {
					continue
				}
				entries, err := r.read(ctx, *item.Name, since)
				if err != nil {
					slog.WarnContext(ctx, "failed to read log blob", "blob", *item.Name, "error", err)
					continue
				}
				all = append(all, entries...)
			}
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].TS.Before(all[j].TS) })
	return all, nil
}

func (r *Reader) read(ctx context.Context, name string, since time.Time) ([]Entry, error) {
	resp, err := r.client.DownloadStream(ctx, r.container, name, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download blob: %w", err)
	}
	defer resp.Body.Close()
	return parseEntries(resp.Body, since)
}

// datePrefixes lists the day folders covering [since, until].
func datePrefixes(since, until time.Time) []string {
	var prefixes []string
	current := since.UTC().Truncate(24 * time.Hour)
	end := until.UTC().Truncate(24 * time.Hour)
	for !current.After(end) {
		prefixes = append(prefixes, dateFolder(current))
		current = current.Add(24 * time.Hour)
	}
	return prefixes
}

// parseEntries skips lines that are not JSON and entries older than since.
func parseEntries(rd io.Reader, since time.Time) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		if !e.TS.IsZero() && e.TS.Before(since) {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("error scanning logs: %w", err)
	}
	return entries, nil
}
