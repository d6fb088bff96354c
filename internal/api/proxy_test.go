package api

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deadURL returns the address of a server that is no longer listening
func deadURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	u := srv.URL
	srv.Close()
	return u
}

func staticServer(t *testing.T, status int, contentType, body string, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProxiedURL(t *testing.T) {
	target := "https://web.archive.org/cdx/search/cdx?url=a.com&output=json"

	tests := []struct {
		name   string
		prefix string
		want   string
	}{
		{
			name:   "allorigins escapes target",
			prefix: "https://api.allorigins.win/raw?url=",
			want:   "https://api.allorigins.win/raw?url=https%3A%2F%2Fweb.archive.org%2Fcdx%2Fsearch%2Fcdx%3Furl%3Da.com%26output%3Djson",
		},
		{
			name:   "corsproxy keeps target raw",
			prefix: "https://corsproxy.io/?",
			want:   "https://corsproxy.io/?" + target,
		},
		{
			name:   "empty prefix is direct",
			prefix: "  ",
			want:   target,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProxiedURL(tt.prefix, target))
		})
	}
}

func TestFallbackStrategies(t *testing.T) {
	strategies := FallbackStrategies([]string{"https://api.allorigins.win/raw?url=", "https://corsproxy.io/?"}, 5*time.Second)
	require.Len(t, strategies, 2)
	assert.Equal(t, "api.allorigins.win", strategies[0].Name)
	assert.Equal(t, 5*time.Second, strategies[0].Timeout)
	assert.Equal(t, "corsproxy.io", strategies[1].Name)
	assert.Zero(t, strategies[1].Timeout)
}

func TestValidateJSONBody(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid json", `[["urlkey"]]`, false},
		{"oops marker", `{"msg":"Oops, something broke"}`, true},
		{"timeout marker", `{"status":"timeout"}`, true},
		{"error marker", `{"error":"bad gateway"}`, true},
		{"not json", `<html>hi</html>`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateJSONBody(&Response{URL: "u", Body: []byte(tt.body)})
			if tt.wantErr {
				var ve *ValidationError
				assert.ErrorAs(t, err, &ve)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFetcherDirectSuccess(t *testing.T) {
	var proxyHits int32
	proxy := staticServer(t, http.StatusOK, "application/json", `[]`, &proxyHits)
	direct := staticServer(t, http.StatusOK, "application/json", `[["a"]]`, nil)

	f := NewFetcher(nil, "", FallbackStrategies([]string{proxy.URL + "/?"}, time.Second), nil)
	resp, err := f.Get(context.Background(), direct.URL+"/x", nil, ValidateJSONBody)
	require.NoError(t, err)
	assert.Equal(t, "direct", resp.Via)
	assert.Equal(t, `[["a"]]`, string(resp.Body))
	assert.Zero(t, atomic.LoadInt32(&proxyHits))
}

func TestFetcherHTTPStatusDoesNotFallBack(t *testing.T) {
	var proxyHits int32
	proxy := staticServer(t, http.StatusOK, "application/json", `[]`, &proxyHits)
	direct := staticServer(t, http.StatusBadGateway, "text/plain", "upstream down", nil)

	f := NewFetcher(nil, "", FallbackStrategies([]string{proxy.URL + "/?"}, time.Second), nil)
	_, err := f.Get(context.Background(), direct.URL, nil, ValidateJSONBody)

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "upstream down")
	assert.False(t, IsCORSError(err))
	assert.Zero(t, atomic.LoadInt32(&proxyHits))
}

func TestFetcherFallsBackToSecondProxy(t *testing.T) {
	var firstHits, secondHits int32
	first := staticServer(t, http.StatusOK, "text/plain", "Oops, rate limited", &firstHits)
	second := staticServer(t, http.StatusOK, "application/json", `[["urlkey"],["k"]]`, &secondHits)

	f := NewFetcher(nil, "", FallbackStrategies([]string{first.URL + "/?", second.URL + "/?"}, time.Second), nil)
	resp, err := f.Get(context.Background(), deadURL(t)+"/cdx", nil, ValidateJSONBody)
	require.NoError(t, err)
	assert.Equal(t, `[["urlkey"],["k"]]`, string(resp.Body))
	assert.Equal(t, int32(1), atomic.LoadInt32(&firstHits))
	assert.Equal(t, int32(1), atomic.LoadInt32(&secondHits))
}

func TestFetcherAllProxiesFailIsCORSError(t *testing.T) {
	first := staticServer(t, http.StatusOK, "text/plain", "request timeout", nil)
	second := staticServer(t, http.StatusOK, "text/html", "<html>Oops</html>", nil)

	f := NewFetcher(nil, "", FallbackStrategies([]string{first.URL + "/?", second.URL + "/?"}, time.Second), nil)
	_, err := f.Get(context.Background(), deadURL(t)+"/cdx", nil, ValidateJSONBody)
	require.Error(t, err)

	assert.True(t, IsCORSError(err))
	assert.Contains(t, err.Error(), CORSErrorMarker)

	var ce *CORSError
	require.ErrorAs(t, err, &ce)
	// direct failure plus one per proxy
	assert.Len(t, ce.Attempts, 3)
	assert.True(t, IsTransportError(ce.Attempts[0]))
}

func TestFetcherFirstFallbackTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(slow.Close)
	fast := staticServer(t, http.StatusOK, "application/json", `{"ok":true}`, nil)

	f := NewFetcher(nil, "", FallbackStrategies([]string{slow.URL + "/?", fast.URL + "/?"}, 50*time.Millisecond), nil)

	start := time.Now()
	resp, err := f.Get(context.Background(), deadURL(t), nil, ValidateJSONBody)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(resp.Body))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestFetcherConfiguredProxySingleAttempt(t *testing.T) {
	var gotQuery string
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(proxy.Close)

	var fallbackHits int32
	fallback := staticServer(t, http.StatusOK, "application/json", `[]`, &fallbackHits)

	f := NewFetcher(nil, proxy.URL+"/?", FallbackStrategies([]string{fallback.URL + "/?"}, time.Second), nil)
	require.True(t, f.HasConfiguredProxy())

	resp, err := f.Get(context.Background(), "https://web.archive.org/cdx/search/cdx?url=a.com", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "configured proxy", resp.Via)
	assert.Equal(t, "https://web.archive.org/cdx/search/cdx?url=a.com", gotQuery)
	assert.Zero(t, atomic.LoadInt32(&fallbackHits))
}

func TestFetcherConfiguredProxyFailureIsNotRetried(t *testing.T) {
	f := NewFetcher(nil, deadURL(t)+"/?", nil, nil)
	_, err := f.Get(context.Background(), "https://example.com", nil, nil)
	require.Error(t, err)
	assert.True(t, IsTransportError(err))
	assert.False(t, IsCORSError(err))
}

func TestFetcherGzipBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		_, _ = gz.Write([]byte(`{"compressed":true}`))
		_ = gz.Close()
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(buf.Bytes())
	}))
	t.Cleanup(srv.Close)

	f := NewFetcher(nil, "", nil, nil)
	resp, err := f.Get(context.Background(), srv.URL, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, `{"compressed":true}`, string(resp.Body))
}

func TestFetcherCallerHeadersOverrideDefaults(t *testing.T) {
	var accept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
	}))
	t.Cleanup(srv.Close)

	f := NewFetcher(nil, "", nil, nil)
	_, err := f.Get(context.Background(), srv.URL, http.Header{"Accept": {"text/html"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "text/html", accept)
}

func TestFetcherCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewFetcher(nil, "", FallbackStrategies([]string{"http://127.0.0.1:1/?"}, time.Second), nil)
	_, err := f.Get(ctx, deadURL(t), nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled) || strings.Contains(err.Error(), "canceled"))
}
