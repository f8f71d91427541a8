package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/zoro-md/zoro/internal/domain"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "Zoro/1.0"
	maxErrBody     = 512
)

// HeaderFunc supplies per-request headers, typically auth headers. It
// runs after token validation so an expired session surfaces before
// the request leaves the process.
type HeaderFunc func(ctx context.Context) (map[string]string, error)

// REST performs authenticated JSON requests against one provider and
// maps failures onto the domain error kinds the retry policy keys on.
type REST struct {
	source  domain.Source
	base    string
	headers HeaderFunc
	httpc   *http.Client
	logger  *slog.Logger
}

// NewREST creates a REST helper for source rooted at base. A nil
// httpc gets the default 30s-timeout client; a nil headers func sends
// no extra headers.
func NewREST(source domain.Source, base string, headers HeaderFunc, httpc *http.Client, logger *slog.Logger) *REST {
	if httpc == nil {
		httpc = &http.Client{Timeout: defaultTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &REST{
		source:  source,
		base:    strings.TrimRight(base, "/"),
		headers: headers,
		httpc:   httpc,
		logger:  logger,
	}
}

// Get issues a GET and decodes the JSON response into dest
func (r *REST) Get(ctx context.Context, path string, query url.Values, dest any) error {
	return r.do(ctx, http.MethodGet, path, query, "", nil, dest)
}

// PostForm issues a form-encoded POST and decodes the response into dest
func (r *REST) PostForm(ctx context.Context, path string, form url.Values, dest any) error {
	body := strings.NewReader(form.Encode())
	return r.do(ctx, http.MethodPost, path, nil, "application/x-www-form-urlencoded", body, dest)
}

// PatchForm issues a form-encoded PATCH and decodes the response into dest
func (r *REST) PatchForm(ctx context.Context, path string, form url.Values, dest any) error {
	body := strings.NewReader(form.Encode())
	return r.do(ctx, http.MethodPatch, path, nil, "application/x-www-form-urlencoded", body, dest)
}

// PostJSON issues a JSON POST and decodes the response into dest
func (r *REST) PostJSON(ctx context.Context, path string, payload any, dest any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return r.do(ctx, http.MethodPost, path, nil, "application/json", bytes.NewReader(raw), dest)
}

// Delete issues a DELETE; most providers answer with an empty body
func (r *REST) Delete(ctx context.Context, path string, query url.Values) error {
	return r.do(ctx, http.MethodDelete, path, query, "", nil, nil)
}

func (r *REST) do(ctx context.Context, method, path string, query url.Values, contentType string, body io.Reader, dest any) error {
	reqURL := r.base + path
	if len(query) > 0 {
		reqURL = reqURL + "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if r.headers != nil {
		extra, err := r.headers(ctx)
		if err != nil {
			return err
		}
		for k, v := range extra {
			req.Header.Set(k, v)
		}
	}

	r.logger.Debug("provider request", "source", r.source, "method", method, "path", path)

	resp, err := r.httpc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &domain.NetworkError{Source: r.source, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.NetworkError{Source: r.source, Err: err}
	}

	if err := r.checkStatus(resp, raw, method, path); err != nil {
		return err
	}

	if dest == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return &domain.ParseError{Source: r.source, Err: err}
	}
	return nil
}

func (r *REST) checkStatus(resp *http.Response, body []byte, method, path string) error {
	code := resp.StatusCode
	if code >= 200 && code < 300 {
		return nil
	}

	r.logger.Debug("provider error response",
		"source", r.source, "method", method, "path", path,
		"status", code, "body", truncate(body, maxErrBody))

	if code == http.StatusTooManyRequests {
		return &domain.RateLimitError{Source: r.source, RetryAfter: retryAfter(resp)}
	}
	return ErrorFromStatus(r.source, code, body, path)
}

// retryAfter reads the Retry-After header, seconds form only
func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
