package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cookflow/internal/ai"
	"cookflow/internal/logsink"
	"cookflow/internal/recipes"
)

const recipePage = `<html><head>
<meta property="og:title" content="Glue Pizza">
<meta property="og:description" content="The stickiest pizza on the internet">
</head><body></body></html>`

// env writes a config using the file store and the mock model.
func env(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, k := range []string{"GEMINI_API_KEY", "EXPO_PUBLIC_GEMINI_API_KEY", "GEMINI_BACKEND", "STORE_BACKEND", "STORE_PATH", "REVENUECAT_API_KEY", "EXPO_PUBLIC_REVENUECAT_API_KEY"} {
		t.Setenv(k, "")
	}
	cfgPath := filepath.Join(dir, "cookflow.toml")
	cfg := fmt.Sprintf("[gemini]\nbackend = \"mock\"\n\n[store]\nbackend = \"file\"\npath = %q\n", filepath.Join(dir, "data"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0644))

	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, recipePage)
	}))
	t.Cleanup(page.Close)
	return cfgPath, page.URL + "/pizza"
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	r := NewRunner(RunnerOpts{Logger: log.New(io.Discard), Output: &out})
	err := newApp(r).Run(context.Background(), append([]string{"cookflow"}, args...))
	return out.String(), err
}

func TestCLIExtractThroughGrocery(t *testing.T) {
	cfgPath, url := env(t)

	out, err := run(t, "-c", cfgPath, "extract", "--json", url)
	require.NoError(t, err)
	var res recipes.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Saved)
	assert.Equal(t, "Glue Pizza", res.Recipe.Title)
	assert.Equal(t, 1, res.Quota.Used)
	id := res.Recipe.ID

	out, err = run(t, "-c", cfgPath, "recipes", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Glue Pizza")

	out, err = run(t, "-c", cfgPath, "grocery", "add", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Added 4 items")

	out, err = run(t, "-c", cfgPath, "grocery", "list", "--json")
	require.NoError(t, err)
	var groups []recipes.CategoryGroup
	require.NoError(t, json.Unmarshal([]byte(out), &groups))
	require.Len(t, groups, 4)
	assert.Equal(t, ai.CategoryBakery, groups[0].Category)
	assert.Equal(t, ai.CategoryOther, groups[2].Category)

	out, err = run(t, "-c", cfgPath, "grocery", "toggle", groups[0].Items[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, "[x]")

	out, err = run(t, "-c", cfgPath, "grocery", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "3 left to get")
	assert.Contains(t, out, "Bakery")

	out, err = run(t, "-c", cfgPath, "grocery", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 1 checked items")

	_, err = run(t, "-c", cfgPath, "recipes", "delete", id)
	require.NoError(t, err)
	out, err = run(t, "-c", cfgPath, "recipes", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No recipes yet")

	out, err = run(t, "-c", cfgPath, "quota")
	require.NoError(t, err)
	assert.Contains(t, out, "1 of 3")
}

func TestCLIQuotaExhausted(t *testing.T) {
	cfgPath, url := env(t)
	for i := 0; i < 3; i++ {
		_, err := run(t, "-c", cfgPath, "extract", url)
		require.NoError(t, err)
	}
	_, err := run(t, "-c", cfgPath, "extract", url)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Upgrade to Pro")

	_, err = run(t, "-c", cfgPath, "extract", "--pro", url)
	require.NoError(t, err)

	out, err := run(t, "-c", cfgPath, "quota")
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "limit reached"), out)
}

func TestCLIExtractEmptyURL(t *testing.T) {
	cfgPath, _ := env(t)
	_, err := run(t, "-c", cfgPath, "extract")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Please enter a video URL")
}

func TestFormatLogEntry(t *testing.T) {
	e := logsink.Entry{
		TS:    time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC),
		Level: "ERROR",
		Msg:   "Extraction error",
		Attrs: map[string]any{"url": "https://x", "error": "boom"},
	}
	line := formatEntry(e)
	assert.Contains(t, line, "ERROR Extraction error")
	assert.Less(t, strings.Index(line, "=boom"), strings.Index(line, "=https://x"), "attrs sorted by key")
}

func TestCLILogsRequiresSink(t *testing.T) {
	cfgPath, _ := env(t)
	_, err := run(t, "-c", cfgPath, "logs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log sink is not configured")
}
