package api

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Error markers public proxies embed in otherwise successful (200) responses
var proxyErrorMarkers = []string{"Oops", "timeout", "error"}

// ProxyStrategy is one public CORS proxy in the fallback chain
type ProxyStrategy struct {
	Name    string
	Prefix  string
	Timeout time.Duration // zero means the HTTP client default
}

// FallbackStrategies builds the ordered fallback chain from proxy prefixes.
// Only the first strategy gets a hard timeout.
func FallbackStrategies(prefixes []string, firstTimeout time.Duration) []ProxyStrategy {
	strategies := make([]ProxyStrategy, 0, len(prefixes))
	for i, prefix := range prefixes {
		s := ProxyStrategy{Name: proxyName(prefix), Prefix: prefix}
		if i == 0 {
			s.Timeout = firstTimeout
		}
		strategies = append(strategies, s)
	}
	return strategies
}

func proxyName(prefix string) string {
	if u, err := url.Parse(prefix); err == nil && u.Host != "" {
		return u.Host
	}
	return prefix
}

// ProxiedURL routes target through a proxy prefix.
// allorigins-style proxies take the target as an encoded query value; others
// (corsproxy.io style) take the raw target so its own query string survives unescaped.
func ProxiedURL(prefix, target string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return target
	}
	if strings.Contains(strings.ToLower(prefix), "allorigins") {
		return prefix + url.QueryEscape(target)
	}
	return prefix + target
}

// Request describes one upstream call
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is a fully read upstream response
type Response struct {
	URL        string // URL actually requested
	Via        string // "direct", "configured proxy" or the fallback strategy name
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ContentType returns the response media type in lower case
func (r *Response) ContentType() string {
	return strings.ToLower(r.Header.Get("Content-Type"))
}

// Validator decides whether a proxied body can be trusted
type Validator func(resp *Response) error

// ValidateJSONBody rejects bodies that carry a proxy error marker or are not JSON
func ValidateJSONBody(resp *Response) error {
	for _, marker := range proxyErrorMarkers {
		if bytes.Contains(resp.Body, []byte(marker)) {
			return &ValidationError{URL: resp.URL, Reason: fmt.Sprintf("body contains %q", marker)}
		}
	}
	if !json.Valid(resp.Body) {
		return &ValidationError{URL: resp.URL, Reason: "body is not JSON"}
	}
	return nil
}

// ValidateNonEmpty rejects empty bodies
func ValidateNonEmpty(resp *Response) error {
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return &ValidationError{URL: resp.URL, Reason: "empty body"}
	}
	return nil
}

// Fetcher resolves how each request reaches the upstream: through the configured
// proxy, or directly with an automatic fallback chain on transport failure.
// Every call runs its own sequence; no proxy health is remembered between calls.
type Fetcher struct {
	httpClient *http.Client
	proxy      string
	fallbacks  []ProxyStrategy
	logger     *log.Logger
}

// NewFetcher creates a Fetcher. configuredProxy may be empty.
func NewFetcher(httpClient *http.Client, configuredProxy string, fallbacks []ProxyStrategy, logger *log.Logger) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Fetcher{
		httpClient: httpClient,
		proxy:      strings.TrimSpace(configuredProxy),
		fallbacks:  fallbacks,
		logger:     logger,
	}
}

// HasConfiguredProxy reports whether an operator proxy is set
func (f *Fetcher) HasConfiguredProxy() bool {
	return f.proxy != ""
}

// Get fetches target, falling back through public proxies if the direct
// request fails at the transport level. validate is applied to fallback bodies.
func (f *Fetcher) Get(ctx context.Context, target string, header http.Header, validate Validator) (*Response, error) {
	req := Request{Method: http.MethodGet, URL: target, Header: header}

	if f.HasConfiguredProxy() {
		return f.send(ctx, req, "configured proxy", ProxiedURL(f.proxy, target), 0)
	}

	resp, err := f.send(ctx, req, "direct", target, 0)
	if err == nil {
		return resp, nil
	}
	if !IsTransportError(err) || ctx.Err() != nil {
		return nil, err
	}

	if f.logger != nil {
		f.logger.Warn("Direct fetch failed, trying fallback proxies", "url", target, "err", err)
	}

	attempts := make([]attemptFunc, 0, len(f.fallbacks))
	for _, s := range f.fallbacks {
		strategy := s
		attempts = append(attempts, func(ctx context.Context) (*Response, error) {
			resp, err := f.send(ctx, req, strategy.Name, ProxiedURL(strategy.Prefix, target), strategy.Timeout)
			if err != nil {
				return nil, err
			}
			if validate != nil {
				if err := validate(resp); err != nil {
					return nil, err
				}
			}
			return resp, nil
		})
	}

	resp, failures := firstSuccess(ctx, attempts)
	if resp != nil {
		if f.logger != nil {
			f.logger.Info("Fetched through fallback proxy", "url", target, "via", resp.Via)
		}
		return resp, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, &CORSError{URL: target, Attempts: append([]error{err}, failures...)}
}

// Send performs a single request through the configured proxy (or directly), with no fallback
func (f *Fetcher) Send(ctx context.Context, req Request) (*Response, error) {
	if f.HasConfiguredProxy() {
		return f.send(ctx, req, "configured proxy", ProxiedURL(f.proxy, req.URL), 0)
	}
	return f.send(ctx, req, "direct", req.URL, 0)
}

type attemptFunc func(ctx context.Context) (*Response, error)

// firstSuccess runs attempts in order and returns the first success, or every failure
func firstSuccess(ctx context.Context, attempts []attemptFunc) (*Response, []error) {
	var failures []error
	for _, attempt := range attempts {
		if ctx.Err() != nil {
			failures = append(failures, ctx.Err())
			break
		}
		resp, err := attempt(ctx)
		if err == nil {
			return resp, nil
		}
		failures = append(failures, err)
	}
	return nil, failures
}

// send executes one HTTP exchange and reads the whole body.
// Non-2xx responses become HTTPStatusError, with the body still attached.
func (f *Fetcher) send(ctx context.Context, r Request, via, rawURL string, timeout time.Duration) (*Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers emulating a real browser
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Referer", "https://web.archive.org/")
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	for k, vals := range r.Header {
		req.Header.Del(k)
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}

	if f.logger != nil {
		f.logger.Debug("HTTP request", "method", method, "url", rawURL, "via", via)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	data, err := readBody(resp)
	if err != nil {
		return nil, &TransportError{URL: rawURL, Err: err}
	}

	out := &Response{
		URL:        rawURL,
		Via:        via,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, &HTTPStatusError{URL: rawURL, StatusCode: resp.StatusCode, Body: truncateBody(data, 300)}
	}
	return out, nil
}

// readBody reads the response, handling gzip-compressed payloads.
// Use case-insensitive check and handle variations like "gzip", "x-gzip", etc.
func readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	contentEncoding := strings.ToLower(resp.Header.Get("Content-Encoding"))
	if strings.Contains(contentEncoding, "gzip") {
		gzReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzReader.Close()
		reader = gzReader
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}
