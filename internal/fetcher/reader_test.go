package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripReaderPreamble(t *testing.T) {
	body := "Title: Some Article\nURL Source: https://example.com\n\nMarkdown Content:\n# Heading\n\nBody text.\n"
	assert.Equal(t, "# Heading\n\nBody text.", stripReaderPreamble(body))

	// Without the marker the body passes through trimmed.
	assert.Equal(t, "plain markdown", stripReaderPreamble("  plain markdown\n"))
}

func TestFetchMarkdown(t *testing.T) {
	var gotPath, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.String()
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte("Markdown Content:\n# Hello\n\nWorld."))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, nil)
	markdown, err := client.FetchMarkdown(context.Background(), "https://example.com/post")
	require.NoError(t, err)

	assert.Equal(t, "# Hello\n\nWorld.", markdown)
	assert.Equal(t, "/https://example.com/post", gotPath)
	assert.Equal(t, "text/markdown", gotAccept)
}

func TestFetchMarkdownUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, nil)
	client.retryConfig.MaxAttempts = 1

	_, err := client.FetchMarkdown(context.Background(), "https://example.com/post")
	assert.Error(t, err)
}

func TestFetchMarkdownRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("Markdown Content:\nrecovered"))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, nil)
	client.retryConfig.InitialDelay = time.Millisecond

	markdown, err := client.FetchMarkdown(context.Background(), "https://example.com/post")
	require.NoError(t, err)
	assert.Equal(t, "recovered", markdown)
	assert.Equal(t, 2, attempts)
}
