package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"herhaven/internal/config"
	"herhaven/internal/logging"
	"herhaven/internal/queue"
)

const (
	userAgent       = "herhaven-queue/1"
	maxErrorBodyLen = 512
)

// Options configures a Client.
type Options struct {
	BaseURL            string
	Token              string
	SOSPath            string
	ContactPath        string
	Timeout            time.Duration
	RateLimitPerMinute int
	RateBurst          int
	BreakerEnabled     bool
	BreakerFailures    int
	BreakerCooldown    time.Duration
	HTTPClient         *http.Client
}

// OptionsFromConfig maps the api section of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BaseURL:            cfg.API.BaseURL,
		Token:              cfg.API.Token,
		SOSPath:            cfg.API.SOSPath,
		ContactPath:        cfg.API.ContactPath,
		Timeout:            cfg.APITimeout(),
		RateLimitPerMinute: cfg.API.RateLimitPerMinute,
		RateBurst:          cfg.API.RateBurst,
		BreakerEnabled:     cfg.API.BreakerEnabled,
		BreakerFailures:    cfg.API.BreakerFailures,
		BreakerCooldown:    time.Duration(cfg.API.BreakerCooldown) * time.Second,
	}
}

// Client posts queue payloads to the remote API.
type Client struct {
	baseURL string
	token   string
	paths   map[queue.Kind]string
	http    *http.Client
	limiter *rate.Limiter
	breaker CircuitBreaker
	logger  *slog.Logger
}

// New constructs a Client.
func New(opts Options, logger *slog.Logger) *Client {
	logger = logging.NewComponentLogger(logger, "submit")
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	failures := opts.BreakerFailures
	if failures <= 0 {
		failures = 5
	}
	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		paths: map[queue.Kind]string{
			queue.KindSOS:     opts.SOSPath,
			queue.KindContact: opts.ContactPath,
		},
		http:   httpClient,
		logger: logger,
	}
	if opts.RateLimitPerMinute > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimitPerMinute)/60, burst)
	}
	c.breaker = newBreaker(opts.BreakerEnabled, failures, opts.BreakerCooldown, func(from, to string) {
		logging.WarnWithContext(logger, "api circuit breaker state changed", "breaker_state_changed",
			logging.String("from", from),
			logging.String("to", to),
			logging.String(logging.FieldErrorHint, "check api.base_url reachability"),
			logging.String(logging.FieldImpact, "submissions fail fast while the breaker is open"),
		)
	})
	return c
}

// BreakerState reports the circuit breaker state (closed, half-open, open, disabled).
func (c *Client) BreakerState() string {
	return c.breaker.State()
}

// Submit posts payload to the endpoint for kind. It returns nil only when the
// server confirmed delivery.
func (c *Client) Submit(ctx context.Context, kind queue.Kind, payload json.RawMessage) error {
	path, ok := c.paths[kind]
	if !ok || path == "" {
		return fmt.Errorf("%w: no endpoint for %q", queue.ErrUnknownKind, kind)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}
	err := c.breaker.Execute(func() error {
		return c.post(ctx, kind, path, payload)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("api circuit open: %w", err)
	}
	return err
}

func (c *Client) post(ctx context.Context, kind queue.Kind, path string, payload json.RawMessage) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		return &Error{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	if !kind.RequiresSuccessFlag() {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	var envelope struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%w: unreadable response body: %v", ErrRejected, err)
	}
	if !envelope.Success {
		if envelope.Message == "" {
			return ErrRejected
		}
		return fmt.Errorf("%w: %s", ErrRejected, envelope.Message)
	}
	c.logger.Debug("submission accepted", logging.String(logging.FieldQueue, string(kind)))
	return nil
}
