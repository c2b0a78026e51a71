package ai

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSDKClientGenerate(t *testing.T) {
	var gotPath string
	srv := geminiServer(t, http.StatusOK, envelope(t, pancakes), func(r *http.Request, _ []byte) {
		gotPath = r.URL.Path
	})

	client, err := NewSDKClient(context.Background(), "k", "gemini-2.0-flash", srv.URL)
	require.NoError(t, err)

	recipe, err := NewExtractor(client).Extract(context.Background(), "Video Title: Pancakes")
	require.NoError(t, err)
	assert.Equal(t, "Pancakes", recipe.Title)
	assert.True(t, strings.HasSuffix(gotPath, "models/gemini-2.0-flash:generateContent"), gotPath)
}

func TestSDKClientUpstreamError(t *testing.T) {
	srv := geminiServer(t, http.StatusBadRequest, `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`, nil)

	client, err := NewSDKClient(context.Background(), "k", "m", srv.URL)
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "x")
	require.ErrorIs(t, err, ErrUpstream)
	assert.Equal(t, "API key not valid", UserMessage(err))
}
