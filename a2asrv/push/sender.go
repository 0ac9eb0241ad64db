// Package push implements the push-notification sender (C6): best-effort,
// parallel-per-config HTTP delivery of task snapshots to configured
// webhooks, with an optional bearer token carried via
// golang.org/x/oauth2's static token source — the same library the
// teacher stack uses for its own outbound auth, here reused for webhook
// auth instead of a model backend.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/a2aserver/a2acore/a2a"
	"github.com/a2aserver/a2acore/internal/telemetry"
)

// DefaultSendTimeout bounds a single webhook POST (§5).
const DefaultSendTimeout = 10 * time.Second

// ConfigStore is the narrow registry of PushNotificationConfig per task
// this sender consults. A concurrency-safe in-memory implementation is
// provided by NewInMemoryConfigStore; transports may substitute a durable
// one.
type ConfigStore interface {
	ListConfigs(ctx context.Context, taskID a2a.TaskID) ([]a2a.PushNotificationConfig, error)
}

// Sender delivers task snapshots to configured webhooks. NotifyEvent
// launches one delivery per matching config in parallel and returns once
// every attempt for this call has finished or timed out; it is meant to
// be invoked from a bus-owned worker goroutine (eventqueue.MainEventBus's
// async pool) rather than the producer's own goroutine, per §4.6/§5.
type Sender struct {
	configs    ConfigStore
	httpClient *http.Client
	timeout    time.Duration
	metrics    *telemetry.Metrics
}

// Option customizes a Sender.
type Option func(*Sender)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Sender) { s.httpClient = client }
}

// WithTimeout overrides DefaultSendTimeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Sender) { s.timeout = d }
}

// WithMetrics records push outcomes against m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Sender) { s.metrics = m }
}

// NewSender constructs a Sender backed by configs.
func NewSender(configs ConfigStore, opts ...Option) *Sender {
	s := &Sender{
		configs:    configs,
		httpClient: http.DefaultClient,
		timeout:    DefaultSendTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NotifyEvent renders task as JSON and POSTs it to every registered config
// whose event filter matches event's kind, in parallel, best-effort.
func (s *Sender) NotifyEvent(ctx context.Context, task *a2a.Task, event a2a.Event) {
	if task == nil {
		return
	}
	configs, err := s.configs.ListConfigs(ctx, task.ID)
	if err != nil {
		telemetry.Warn(ctx, "push.list_configs_failed", telemetry.Str("taskId", string(task.ID)), telemetry.Err(err))
		return
	}
	if len(configs) == 0 {
		return
	}

	body, err := json.Marshal(task)
	if err != nil {
		telemetry.Warn(ctx, "push.marshal_failed", telemetry.Str("taskId", string(task.ID)), telemetry.Err(err))
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, cfg := range configs {
		if !cfg.Matches(event.Kind()) {
			continue
		}
		cfg := cfg
		g.Go(func() error {
			s.deliver(gctx, task.ID, cfg, body)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Sender) deliver(ctx context.Context, taskID a2a.TaskID, cfg a2a.PushNotificationConfig, body []byte) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ctx, span := telemetry.StartSpan(ctx, "push.deliver", trace.SpanKindClient)
	span.SetAttributes(attribute.String("taskId", string(taskID)), attribute.String("url", cfg.URL))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.recordFailure(ctx, taskID, cfg, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"})
		tok, err := ts.Token()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.recordFailure(ctx, taskID, cfg, err)
			return
		}
		tok.SetAuthHeader(req)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.recordFailure(ctx, taskID, cfg, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		err := fmt.Errorf("webhook returned status %d", resp.StatusCode)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.recordFailure(ctx, taskID, cfg, err)
		return
	}
	if s.metrics != nil {
		s.metrics.RecordPushOutcome(ctx, "delivered")
	}
}

func (s *Sender) recordFailure(ctx context.Context, taskID a2a.TaskID, cfg a2a.PushNotificationConfig, err error) {
	telemetry.Warn(ctx, "push.delivery_failed",
		telemetry.Str("taskId", string(taskID)), telemetry.Str("url", cfg.URL), telemetry.Err(err))
	if s.metrics != nil {
		s.metrics.RecordPushOutcome(ctx, "failed")
	}
}
