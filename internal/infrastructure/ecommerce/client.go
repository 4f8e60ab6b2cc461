package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/erp/listingsync/internal/domain/integration"
)

const (
	// maxResponseSize is the maximum allowed response size from a marketplace API (10MB)
	maxResponseSize = 10 * 1024 * 1024
	// maxErrorDetailLength bounds the upstream detail copied into display messages
	maxErrorDetailLength = 300
)

// authorizer decorates an outbound request with credentials
type authorizer func(ctx context.Context, req *http.Request) error

// apiClient is the JSON-over-HTTP client shared by the marketplace adapters
type apiClient struct {
	platform   integration.PlatformCode
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	authorize  authorizer
	// secrets are scrubbed from every display message
	secrets []string
}

// apiRequest describes one call. path is relative to the base URL unless it
// starts with a scheme.
type apiRequest struct {
	method  string
	path    string
	query   url.Values
	body    any
	headers map[string]string
	// raw is sent as is with contentType instead of a JSON body
	raw         []byte
	contentType string
}

func newHTTPClient(cfg PlatformConfig) *http.Client {
	return &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
}

// do executes the request and decodes a JSON response into out (if non-nil).
// Every failure is an *integration.UpstreamError with a redacted message.
func (c *apiClient) do(ctx context.Context, r apiRequest, out any) (int, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, c.upstreamError(0, fmt.Errorf("%w: %v", integration.ErrPlatformRateLimited, err), "")
		}
	}

	var body io.Reader
	contentType := "application/json"
	switch {
	case r.raw != nil:
		body = bytes.NewReader(r.raw)
		contentType = r.contentType
	case r.body != nil:
		data, err := json.Marshal(r.body)
		if err != nil {
			return 0, fmt.Errorf("%s: failed to encode request: %w", c.platform, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.resolve(r.path, r.query), body)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to create request: %w", c.platform, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	if c.authorize != nil {
		if err := c.authorize(ctx, req); err != nil {
			return 0, err
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, c.upstreamError(0, fmt.Errorf("%w: %v", integration.ErrPlatformUnavailable, err), "")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, c.upstreamError(resp.StatusCode, fmt.Errorf("%s: failed to read response: %w", c.platform, err), "")
	}

	if resp.StatusCode >= 400 {
		sentinel := integration.ErrPlatformRequestFailed
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			sentinel = integration.ErrPlatformAuthFailed
		case http.StatusTooManyRequests:
			sentinel = integration.ErrPlatformRateLimited
		}
		return resp.StatusCode, c.upstreamError(resp.StatusCode, fmt.Errorf("%w: HTTP %d", sentinel, resp.StatusCode), extractErrorDetail(data))
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, c.upstreamError(resp.StatusCode, fmt.Errorf("%w: failed to parse response: %v", integration.ErrPlatformInvalidResponse, err), "")
		}
	}
	return resp.StatusCode, nil
}

func (c *apiClient) get(ctx context.Context, path string, query url.Values, out any) error {
	_, err := c.do(ctx, apiRequest{method: http.MethodGet, path: path, query: query}, out)
	return err
}

func (c *apiClient) send(ctx context.Context, method, path string, body, out any) error {
	_, err := c.do(ctx, apiRequest{method: method, path: path, body: body}, out)
	return err
}

// fetch downloads a public asset such as a product image. The request carries
// no credentials and is not rate limited.
func (c *apiClient) fetch(ctx context.Context, assetURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%s: invalid asset url: %w", c.platform, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", c.upstreamError(0, fmt.Errorf("%w: %v", integration.ErrPlatformUnavailable, err), "")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, "", c.upstreamError(resp.StatusCode, fmt.Errorf("%w: HTTP %d", integration.ErrPlatformRequestFailed, resp.StatusCode), "image download failed")
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, "", c.upstreamError(resp.StatusCode, fmt.Errorf("%s: failed to read asset: %w", c.platform, err), "")
	}
	if len(data) > maxResponseSize {
		return nil, "", c.upstreamError(resp.StatusCode, fmt.Errorf("%w: asset exceeds %d bytes", integration.ErrPlatformRequestFailed, maxResponseSize), "image is too large")
	}

	name := path.Base(req.URL.Path)
	if name == "." || name == "/" {
		name = "image"
	}
	return data, name, nil
}

// multipartFile encodes fields and a single file part as multipart/form-data
func multipartFile(fields map[string]string, field, filename string, data []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func (c *apiClient) resolve(path string, query url.Values) string {
	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = c.baseURL + "/" + strings.TrimLeft(path, "/")
	}
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + query.Encode()
	}
	return target
}

func (c *apiClient) upstreamError(status int, cause error, detail string) *integration.UpstreamError {
	msg := "marketplace is unreachable"
	if status > 0 {
		msg = fmt.Sprintf("HTTP %d", status)
		if detail != "" {
			msg += ": " + detail
		}
	}
	return &integration.UpstreamError{
		Platform:   c.platform,
		StatusCode: status,
		Message:    redact(msg, c.secrets...),
		Err:        cause,
	}
}

// extractErrorDetail pulls a human-readable message out of an error body
func extractErrorDetail(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return truncateRunes(string(body), maxErrorDetailLength)
	}
	if detail := findMessage(payload); detail != "" {
		return truncateRunes(detail, maxErrorDetailLength)
	}
	return truncateRunes(string(body), maxErrorDetailLength)
}

func findMessage(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		var parts []string
		for _, item := range t {
			if m := findMessage(item); m != "" {
				parts = append(parts, m)
			}
		}
		return strings.Join(parts, "; ")
	case map[string]any:
		for _, key := range []string{"message", "longMessage", "error_description", "error", "errors", "title", "detail", "issues"} {
			if inner, ok := t[key]; ok {
				if m := findMessage(inner); m != "" {
					return m
				}
			}
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// staticHeader sets a fixed credential header
func staticHeader(header, value string) authorizer {
	return func(_ context.Context, req *http.Request) error {
		req.Header.Set(header, value)
		return nil
	}
}

// basicAuth sets HTTP basic credentials
func basicAuth(username, password string) authorizer {
	return func(_ context.Context, req *http.Request) error {
		req.SetBasicAuth(username, password)
		return nil
	}
}

// chainAuthorizers applies each authorizer in order
func chainAuthorizers(auths ...authorizer) authorizer {
	return func(ctx context.Context, req *http.Request) error {
		for _, auth := range auths {
			if err := auth(ctx, req); err != nil {
				return err
			}
		}
		return nil
	}
}
