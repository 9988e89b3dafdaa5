package paypal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxResponseBytes = 1 << 20 // 1MB

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient returns a traced client with a hard per-call timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

type ClientConfig struct {
	BaseURL    string
	HTTPClient Doer
	Logger     *slog.Logger

	// BreakerFailures is the number of consecutive transport or 5xx failures
	// that opens the circuit. Zero disables the breaker.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	// OnBreakerChange is called after each breaker state transition.
	OnBreakerChange func(to gobreaker.State)
}

// Client is the low-level provider transport shared by TokenCache and
// OrderGateway.
type Client struct {
	baseURL string
	doer    Doer
	breaker *gobreaker.CircuitBreaker[*rawResponse]
	logger  *slog.Logger
}

type rawResponse struct {
	StatusCode int
	Body       []byte
}

func (r *rawResponse) ok() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// errUpstream marks a 5xx answer so the breaker counts it as a failure. It
// never escapes the package.
var errUpstream = errors.New("provider returned a server error")

// callerGone marks a failure caused by the caller's own context ending. It
// does not count against the provider.
type callerGone struct {
	err error
}

func (e *callerGone) Error() string { return e.err.Error() }
func (e *callerGone) Unwrap() error { return e.err }

func NewClient(cfg ClientConfig) *Client {
	doer := cfg.HTTPClient
	if doer == nil {
		doer = NewHTTPClient(15 * time.Second)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		doer:    doer,
		logger:  logger,
	}

	if cfg.BreakerFailures > 0 {
		timeout := cfg.BreakerTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		failures := cfg.BreakerFailures
		c.breaker = gobreaker.NewCircuitBreaker[*rawResponse](gobreaker.Settings{
			Name:        "paypal",
			MaxRequests: 1,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			IsSuccessful: func(err error) bool {
				var gone *callerGone
				return err == nil || errors.As(err, &gone)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state changed",
					slog.String("breaker", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()))
				if cfg.OnBreakerChange != nil {
					cfg.OnBreakerChange(to)
				}
			},
		})
	}

	return c
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s request: %w", method, path, err)
	}
	return req, nil
}

// do sends req and reads the whole body. A non-nil error means no usable
// response was received.
func (c *Client) do(req *http.Request) (*rawResponse, error) {
	if c.breaker == nil {
		return c.roundTrip(req)
	}
	if err := req.Context().Err(); err != nil {
		return nil, err
	}

	resp, err := c.breaker.Execute(func() (*rawResponse, error) {
		resp, err := c.roundTrip(req)
		if err != nil {
			if req.Context().Err() != nil {
				return nil, &callerGone{err: err}
			}
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, errUpstream
		}
		return resp, nil
	})
	if errors.Is(err, errUpstream) {
		return resp, nil
	}
	var gone *callerGone
	if errors.As(err, &gone) {
		return nil, gone.err
	}
	return resp, err
}

func (c *Client) roundTrip(req *http.Request) (*rawResponse, error) {
	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if len(body) > maxResponseBytes {
		return nil, fmt.Errorf("%w: status %d, over %d bytes", ErrResponseTooLarge, resp.StatusCode, maxResponseBytes)
	}

	return &rawResponse{StatusCode: resp.StatusCode, Body: body}, nil
}
