package yclients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mkondr/salonbot/internal/metrics"
)

const (
	retryAttempts = 3
	retryDelay    = time.Second

	acceptHeader      = "application/vnd.api.v2+json"
	contentTypeHeader = "application/json"
)

// do issues one logical API call: limiter first, then up to retryAttempts
// HTTP attempts for retryable failures. Returns the raw response body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}) (json.RawMessage, error) {
	if c.cfg.PartnerToken == "" {
		return nil, &ConfigError{Reason: "partner token is not set"}
	}

	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, &TransportError{Err: err}
	}

	reqURL := fmt.Sprintf("%s/%s", c.cfg.BaseURL, path)
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	var out json.RawMessage
	attempt := func() error {
		data, err := c.roundTrip(ctx, method, reqURL, payload)
		if err != nil {
			return err
		}
		out = data
		return nil
	}

	if err := withRetry(ctx, retryAttempts, retryDelay, c.sleep, attempt); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) roundTrip(ctx context.Context, method, reqURL string, payload []byte) (json.RawMessage, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	c.setHeaders(req)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveAPIRequest(method, "transport_error", time.Since(start))
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveAPIRequest(method, "transport_error", time.Since(start))
		return nil, &TransportError{Err: err}
	}
	metrics.ObserveAPIRequest(method, fmt.Sprintf("%d", resp.StatusCode), time.Since(start))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitError{Message: "too many requests"}
	case resp.StatusCode == http.StatusInternalServerError:
		return nil, &ServerError{Status: resp.StatusCode, Message: remoteMessage(data, resp.StatusCode)}
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, &ClientError{Status: resp.StatusCode, Message: remoteMessage(data, resp.StatusCode)}
	}

	return data, nil
}

// Authentication is a fixed header set derived from the configured
// tokens; without a user token only the partner token is sent.
func (c *Client) setHeaders(req *http.Request) {
	auth := fmt.Sprintf("Bearer %s", c.cfg.PartnerToken)
	if c.cfg.UserToken != "" {
		auth = fmt.Sprintf("Bearer %s, User %s", c.cfg.PartnerToken, c.cfg.UserToken)
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Content-Type", contentTypeHeader)
}

// withRetry runs fn up to attempts times, pausing delay between
// attempts, retrying only failures classified as retryable. The last
// error is surfaced unchanged.
func withRetry(ctx context.Context, attempts int, delay time.Duration, sleep func(context.Context, time.Duration) error, fn func() error) error {
	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(); err == nil || !retryable(err) {
			return err
		}
		if i < attempts {
			if serr := sleep(ctx, delay); serr != nil {
				return &TransportError{Err: serr}
			}
		}
	}
	return err
}

func retryable(err error) bool {
	var serverErr *ServerError
	var transportErr *TransportError
	return errors.As(err, &serverErr) || errors.As(err, &transportErr)
}

func remoteMessage(data []byte, status int) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Message != "" {
		return body.Message
	}
	return fmt.Sprintf("HTTP %d", status)
}
