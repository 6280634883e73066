// Package predict turns a metric snapshot into a request to the prediction
// service and the service's answer into an outcome.
package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Joserraldo/diabetes/internal/domain"
)

const (
	PredictPath = "/predict"

	maxResponseBytes = 1 << 20
)

type Client struct {
	httpClient *http.Client
	logger     *zap.Logger
}

type Option func(*Client)

// WithTimeout bounds a whole request/response cycle. Zero, the default,
// waits for as long as the peer takes.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL builds the prediction endpoint for a target. Host and port are used
// verbatim.
func URL(t domain.Target) string {
	return fmt.Sprintf("http://%s:%s%s", t.Host, t.Port, PredictPath)
}

// Submit sends one prediction request. It always returns an outcome that is
// either Success or Failure; on Failure the error explains why and is a
// *Error. There are no retries.
func (c *Client) Submit(ctx context.Context, snap domain.Snapshot, target domain.Target) (domain.Outcome, error) {
	body := Translate(snap)
	raw, err := json.Marshal(body)
	if err != nil {
		return c.fail(transportError(fmt.Errorf("marshal: %w", err)))
	}

	u := URL(target)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(raw))
	if err != nil {
		return c.fail(transportError(err))
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("sending prediction request", zap.String("url", u), zap.Int("bytes", len(raw)))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.fail(transportError(err))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return c.fail(transportError(err))
	}

	// The status code is not consulted: an error body without prediction
	// fields is rejected by ParseResponse anyway.
	parsed, err := ParseResponse(payload)
	if err != nil {
		c.logger.Warn("invalid prediction response",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", truncateBody(payload)),
		)
		return c.fail(invalidResponse())
	}

	out := parsed.Outcome()
	c.logger.Debug("prediction received",
		zap.Int("status", resp.StatusCode),
		zap.String("message", out.Message),
		zap.String("probability", FormatProbability(out.Probability)),
	)
	return out, nil
}

func (c *Client) fail(e *Error) (domain.Outcome, error) {
	c.logger.Debug("prediction failed", zap.String("kind", string(e.Kind)), zap.Error(e.Err))
	return domain.Failure(e.Error()), e
}

func truncateBody(b []byte) []byte {
	const limit = 512
	if len(b) > limit {
		return b[:limit]
	}
	return b
}
