// Package signal reports completion to CloudFormation wait-condition handles.
package signal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"

	"github.com/superwerker/superwerker/internal/helpers"
)

const (
	StatusSuccess = "SUCCESS"
	StatusFailure = "FAILURE"

	// uniqueID is constant: every superwerker wait condition waits for a single signal.
	uniqueID = "doesthisreallyhavetobeunique"
)

// Document is the wait-condition signal body.
type Document struct {
	Status   string `json:"Status"`
	Reason   string `json:"Reason"`
	UniqueID string `json:"UniqueId"`
	Data     string `json:"Data"`
}

// StatusError is returned when the signal URL rejects the document.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("signal rejected with status %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	http   *retryablehttp.Client
	logger *slog.Logger
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger.With("component", "signal")
	}
}

// WithRetryMax sets the number of retries of a failed signal.
func WithRetryMax(n int) Option {
	return func(c *Client) {
		c.http.RetryMax = n
	}
}

// WithRetryWait bounds the wait between retries.
func WithRetryWait(minWait, maxWait time.Duration) Option {
	return func(c *Client) {
		c.http.RetryWaitMin = minWait
		c.http.RetryWaitMax = maxWait
	}
}

func New(opts ...Option) *Client {
	_inst := &Client{
		http:   retryablehttp.NewClient(),
		logger: helpers.NewNoopLogger(),
	}
	_inst.http.Logger = nil
	_inst.http.RetryMax = 5
	for _, opt := range opts {
		opt(_inst)
	}
	_inst.http.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			_inst.logger.Warn("retrying signal", slog.String("host", req.URL.Host), slog.Int("attempt", attempt))
		}
	}
	return _inst
}

// Success signals a successful completion with reason.
func (c *Client) Success(ctx context.Context, url, reason string) error {
	return c.Send(ctx, url, Document{Status: StatusSuccess, Reason: reason, UniqueID: uniqueID, Data: reason})
}

// Send uploads doc to the pre-signed wait-condition URL.
func (c *Client) Send(ctx context.Context, url string, doc Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to encode signal")
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to create signal request")
	}
	// the pre-signed URL is signed without a content type
	req.Header.Set("Content-Type", "")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send signal")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(msg)}
	}
	c.logger.Info("signal sent", slog.String("status", doc.Status), slog.String("reason", doc.Reason))
	return nil
}
