package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sourcehr/engine/internal/pipeline"
)

func TestDirectFetchHTML(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>payload</html>"))
	}))
	t.Cleanup(ts.Close)

	d := NewDirect(5*time.Second, zap.NewNop())
	html, err := d.FetchHTML(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Equal(t, "<html>payload</html>", html)
}

func TestDirectFetchHTMLErrorStatus(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	t.Cleanup(ts.Close)

	d := NewDirect(5*time.Second, zap.NewNop())
	_, err := d.FetchHTML(context.Background(), ts.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestDirectFetchHTMLEmptyBody(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	t.Cleanup(ts.Close)

	d := NewDirect(5*time.Second, zap.NewNop())
	_, err := d.FetchHTML(context.Background(), ts.URL)
	assert.ErrorIs(t, err, pipeline.ErrNoContent)
}

func TestDirectFetchHTMLCancellation(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = w.Write([]byte("late"))
	}))
	t.Cleanup(func() {
		close(release)
		ts.Close()
	})

	d := NewDirect(30*time.Second, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := d.FetchHTML(ctx, ts.URL)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second, "cancellation must not wait out the request timeout")
}
