// Package chatapi is the wire contract between the panel and the remote
// SQL-agent chat service: the request body, the tagged reply decoder and a
// resty-backed client that issues exactly one POST per send.
package chatapi

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"chatpanel/internal/logging"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrRequestFailed wraps every transport or HTTP status failure.
var ErrRequestFailed = errors.New("chat request failed")

// Request is the JSON body the service expects.
type Request struct {
	UserQuery    []string `json:"user_query"`
	ModelName    string   `json:"model_name"`
	SystemPrompt string   `json:"system_prompt"`
}

// Options configures a Client.
type Options struct {
	Endpoint     string
	ModelName    string
	SystemPrompt string
	// Timeout bounds one request. Zero means no timeout.
	Timeout time.Duration
}

// NewRequest builds the body for one send. The query is passed through as typed.
func NewRequest(query string, opts Options) Request {
	return Request{
		UserQuery:    []string{query},
		ModelName:    opts.ModelName,
		SystemPrompt: opts.SystemPrompt,
	}
}

// Sender issues one chat request. *Client implements it; tests substitute
// fakes.
type Sender interface {
	Send(ctx context.Context, query string) (Reply, error)
}

var _ Sender = (*Client)(nil)

// Client posts user queries to the chat service.
type Client struct {
	mu   sync.RWMutex
	http *resty.Client
	opts Options
}

// NewClient creates a client. Retries are left at resty's default of zero:
// a send is exactly one request. resty's own log output goes to the api log
// file, never the terminal.
func NewClient(opts Options) (*Client, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("endpoint required")
	}
	rc := resty.New().SetLogger(logging.Get(logging.CategoryAPI).Sugar())
	return &Client{http: rc, opts: opts}, nil
}

// Reconfigure swaps endpoint, model, prompt and timeout for later sends.
// Requests already in flight keep the settings they started with.
func (c *Client) Reconfigure(opts Options) error {
	if opts.Endpoint == "" {
		return fmt.Errorf("endpoint required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts = opts
	return nil
}

// Options returns the current settings.
func (c *Client) Options() Options {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.opts
}

// Send posts one query and decodes the reply. Transport failures and non-2xx
// statuses are returned as errors wrapping ErrRequestFailed; a 2xx body that
// cannot be decoded is returned as a Malformed reply.
func (c *Client) Send(ctx context.Context, query string) (Reply, error) {
	opts := c.Options()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	log := logging.Get(logging.CategoryAPI)
	requestID := uuid.NewString()
	start := time.Now()

	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("X-Request-ID", requestID).
		SetBody(NewRequest(query, opts)).
		Post(opts.Endpoint)

	if err != nil {
		log.Warn("chat request failed",
			zap.String("request_id", requestID),
			zap.String("endpoint", opts.Endpoint),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	if !res.IsSuccess() {
		log.Warn("chat service returned error status",
			zap.String("request_id", requestID),
			zap.Int("status", res.StatusCode()),
			zap.String("body", res.String()))
		return nil, fmt.Errorf("%w: status %d", ErrRequestFailed, res.StatusCode())
	}

	reply := Decode(res.Body())
	fields := []zap.Field{
		zap.String("request_id", requestID),
		zap.Int("status", res.StatusCode()),
		zap.Duration("elapsed", time.Since(start)),
	}
	switch r := reply.(type) {
	case Tabular:
		fields = append(fields, zap.Int("rows", len(r.Rows)), zap.Strings("columns", r.Columns()))
		if !r.Consistent() {
			log.Warn("result rows do not share the header's columns; rendering positionally", fields...)
		}
	case Textual:
		if r.ServiceError != "" {
			fields = append(fields, zap.String("service_error", r.ServiceError))
		}
	case Malformed:
		fields = append(fields, zap.Error(r.Err))
	}
	log.Info("chat reply", fields...)

	return reply, nil
}
