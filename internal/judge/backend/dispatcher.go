package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"codearena/internal/common/metrics"
	"codearena/internal/judge/harness"
	pkgerrors "codearena/pkg/errors"
	"codearena/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	defaultSubmitTimeout = 5 * time.Second
	defaultPollTimeout   = 10 * time.Second
)

// EndpointConfig describes one execution backend endpoint.
type EndpointConfig struct {
	Name       string `yaml:"name"`
	URL        string `yaml:"url"`
	AuthHeader string `yaml:"authHeader"`
	AuthToken  string `yaml:"authToken"`
}

// Config lists endpoints in priority order.
type Config struct {
	Endpoints     []EndpointConfig `yaml:"endpoints"`
	SubmitTimeout time.Duration    `yaml:"submitTimeout"`
	PollTimeout   time.Duration    `yaml:"pollTimeout"`
	// LanguageIDs overrides the backend language id per language name.
	LanguageIDs map[string]int `yaml:"languageIds"`
}

// Handle identifies a submission on the endpoint that accepted it.
type Handle struct {
	Token    string
	Endpoint string
}

// Dispatcher submits programs to the first endpoint that accepts them.
type Dispatcher struct {
	clients       []*Client
	byURL         map[string]*Client
	transport     http.RoundTripper
	submitTimeout time.Duration
	pollTimeout   time.Duration
	languageIDs   map[string]int
	metrics       *metrics.Metrics
}

// NewDispatcher creates a dispatcher. A nil transport uses http.DefaultTransport.
func NewDispatcher(cfg Config, transport http.RoundTripper, m *metrics.Metrics) (*Dispatcher, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("at least one backend endpoint is required")
	}
	if transport == nil {
		transport = http.DefaultTransport
	}
	d := &Dispatcher{
		byURL:         make(map[string]*Client, len(cfg.Endpoints)),
		transport:     transport,
		submitTimeout: durationOr(cfg.SubmitTimeout, defaultSubmitTimeout),
		pollTimeout:   durationOr(cfg.PollTimeout, defaultPollTimeout),
		languageIDs:   make(map[string]int, len(cfg.LanguageIDs)),
		metrics:       m,
	}
	for name, id := range cfg.LanguageIDs {
		lang, err := harness.ParseLanguage(name)
		if err != nil {
			return nil, fmt.Errorf("backend language ids: %w", err)
		}
		d.languageIDs[lang.String()] = id
	}
	for _, ep := range cfg.Endpoints {
		if ep.URL == "" {
			return nil, fmt.Errorf("backend endpoint %q has no url", ep.Name)
		}
		client := NewClient(ep, transport)
		d.clients = append(d.clients, client)
		d.byURL[client.URL()] = client
	}
	return d, nil
}

// Submit tries each endpoint in order. A 4xx reply stops immediately with BackendRejected;
// 5xx replies, timeouts and transport errors move on to the next endpoint. When every
// endpoint fails the result is BackendUnavailable wrapping the last error.
func (d *Dispatcher) Submit(ctx context.Context, program string, languageID int) (Handle, error) {
	var lastErr error
	for _, client := range d.clients {
		if err := ctx.Err(); err != nil {
			return Handle{}, err
		}
		attemptCtx, cancel := context.WithTimeout(ctx, d.submitTimeout)
		token, err := client.Submit(attemptCtx, program, languageID, "")
		cancel()
		if err == nil {
			d.metrics.IncDispatchAttempt(client.Name(), "accepted")
			return Handle{Token: token, Endpoint: client.URL()}, nil
		}

		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.ClientClass() {
			d.metrics.IncDispatchAttempt(client.Name(), "rejected")
			logger.Warn(ctx, "backend rejected submission", zap.String("endpoint", client.Name()), zap.Int("status", httpErr.StatusCode))
			return Handle{}, pkgerrors.Wrapf(err, pkgerrors.BackendRejected, "backend %s rejected submission: %s", client.Name(), httpErr.Body).
				WithDetail("endpoint", client.Name())
		}
		if ctx.Err() != nil {
			return Handle{}, ctx.Err()
		}
		d.metrics.IncDispatchAttempt(client.Name(), "failed")
		logger.Warn(ctx, "backend unavailable, trying next endpoint", zap.String("endpoint", client.Name()), zap.Error(err))
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("all backends unavailable")
	}
	return Handle{}, pkgerrors.Wrapf(lastErr, pkgerrors.BackendUnavailable, "all backends unavailable: %v", lastErr)
}

// Poll fetches the status of a submission from the endpoint that accepted it.
func (d *Dispatcher) Poll(ctx context.Context, handle Handle) (Status, error) {
	if handle.Token == "" || handle.Endpoint == "" {
		return Status{}, pkgerrors.New(pkgerrors.InvalidParams).WithMessage("backend handle is incomplete")
	}
	client, ok := d.byURL[handle.Endpoint]
	if !ok {
		// The endpoint may have been removed from config after the job was dispatched.
		client = NewClient(EndpointConfig{URL: handle.Endpoint}, d.transport)
	}
	pollCtx, cancel := context.WithTimeout(ctx, d.pollTimeout)
	defer cancel()
	status, err := client.Get(pollCtx, handle.Token)
	if err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.ClientClass() {
			return Status{}, pkgerrors.Wrapf(err, pkgerrors.BackendBadResponse, "backend %s does not know token %s", client.Name(), handle.Token)
		}
		return Status{}, pkgerrors.Wrapf(err, pkgerrors.BackendUnavailable, "poll %s failed", client.Name())
	}
	return status, nil
}

// Endpoints returns endpoint names in priority order.
func (d *Dispatcher) Endpoints() []string {
	names := make([]string, len(d.clients))
	for i, c := range d.clients {
		names[i] = c.Name()
	}
	return names
}

// LanguageID is the backend language id for lang.
func (d *Dispatcher) LanguageID(lang harness.Language) int {
	if id, ok := d.languageIDs[lang.String()]; ok && id > 0 {
		return id
	}
	return lang.DefaultBackendID()
}
