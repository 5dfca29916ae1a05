// Package client provides the upstream HTTP client for the Tapis Files API.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tapis-file-proxy/internal/config"
	"tapis-file-proxy/internal/metrics"
	"tapis-file-proxy/internal/model"
)

// Tapis Files API operations, used as URL segments and metric labels.
const (
	OpInfo    = "ops"
	OpContent = "content"
)

// TokenHeader carries the bearer credential on every Tapis request.
const TokenHeader = "X-Tapis-Token"

const userAgent = "tapis-file-proxy/1.0"

// TapisClient sends requests to the Tapis Files API.
type TapisClient struct {
	httpClient *http.Client
	baseURL    *url.URL
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewTapisClient creates a TapisClient with connection pooling and timeouts.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
//
// No overall http.Client timeout is set because it would also bound the
// content body. Waiting for response headers is bounded by
// upstream.timeout_seconds; body reads are bounded by the request context.
//
// Redirects are never followed: the token header would be replayed to the
// redirect target. A 3xx is returned to the caller like any other status.
func NewTapisClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*TapisClient, error) {
	u, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base_url: %w", err)
	}

	timeout := time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost:   cfg.Upstream.IdleConnections,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &TapisClient{
		httpClient: &http.Client{
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL:    u,
		logger:     logger.With("component", "tapis_client"),
		metrics:    m,
	}, nil
}

// FileInfo requests the descriptor of filePath from the file-ops endpoint.
// The caller is responsible for closing the response body.
func (c *TapisClient) FileInfo(ctx context.Context, filePath, token string) (*model.UpstreamResponse, error) {
	return c.get(ctx, OpInfo, filePath, token)
}

// FileContent requests the bytes of filePath. The body is returned unread so
// it can be streamed; the caller is responsible for closing it.
func (c *TapisClient) FileContent(ctx context.Context, filePath, token string) (*model.UpstreamResponse, error) {
	return c.get(ctx, OpContent, filePath, token)
}

func (c *TapisClient) get(ctx context.Context, op, filePath, token string) (*model.UpstreamResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(op, filePath), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set(TokenHeader, token)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("User-Agent", userAgent)

	c.logger.Debug("upstream request",
		"op", op,
		"path", req.URL.Path,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req) //nolint:bodyclose // body ownership transfers to caller via UpstreamResponse
	duration := time.Since(start).Seconds()

	if c.metrics != nil {
		c.metrics.UpstreamDuration.WithLabelValues(op).Observe(duration)
	}
	if err != nil {
		return nil, fmt.Errorf("tapis %s request: %w", op, err)
	}
	if c.metrics != nil {
		c.metrics.UpstreamResponses.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()
	}

	return &model.UpstreamResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}

// endpoint builds {base}/v3/files/{op}/{filePath}, escaping each path segment.
func (c *TapisClient) endpoint(op, filePath string) string {
	segs := strings.Split(strings.TrimPrefix(filePath, "/"), "/")
	escaped := make([]string, len(segs))
	for i, s := range segs {
		escaped[i] = url.PathEscape(s)
	}

	prefix := strings.TrimRight(c.baseURL.Path, "/") + "/v3/files/" + op + "/"
	u := *c.baseURL
	u.Path = prefix + strings.Join(segs, "/")
	u.RawPath = prefix + strings.Join(escaped, "/")
	u.RawQuery = ""
	return u.String()
}
