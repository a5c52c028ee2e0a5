package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nftmarket/native/marketplace"
	"nftmarket/observability/logging"
	"nftmarket/observability/metrics"
)

const (
	// SignatureHeader carries the hex HMAC-SHA256 of the request body.
	SignatureHeader = "X-Market-Signature"
	// DeliveryHeader carries the delivery id, stable across retries.
	DeliveryHeader = "X-Market-Delivery"

	defaultMaxAttempts = 5
	defaultBackoff     = time.Second
	maxBackoff         = 5 * time.Minute
	defaultQueueSize   = 1024
)

var (
	// ErrUnknownHook is returned when a registered hook has no endpoint.
	ErrUnknownHook = errors.New("webhook: no endpoint for hook")
	// ErrQueueFull is returned when the pending queue is at capacity.
	ErrQueueFull = errors.New("webhook: queue full")
)

// Endpoint maps a hook address onto the HTTP receiver that handles it.
type Endpoint struct {
	Address   string
	URL       string
	Secret    string
	RateLimit int
}

// Payload is the JSON body posted to receivers.
type Payload struct {
	ID           string                   `json:"id"`
	Hook         string                   `json:"hook"`
	Kind         string                   `json:"kind"`
	Attempt      int                      `json:"attempt"`
	Timestamp    string                   `json:"timestamp"`
	Notification marketplace.Notification `json:"notification"`
}

type task struct {
	id           string
	endpoint     Endpoint
	notification marketplace.Notification
	attempt      int
	notBefore    time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		if client != nil {
			d.client = client
		}
	}
}

// WithMaxAttempts bounds retries per delivery.
func WithMaxAttempts(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

// WithBackoff sets the base of the exponential retry delay.
func WithBackoff(base time.Duration) Option {
	return func(d *Dispatcher) {
		if base > 0 {
			d.backoff = base
		}
	}
}

// WithQueueSize bounds the number of pending deliveries.
func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queueSize = n
		}
	}
}

// WithAuditLog records every attempt.
func WithAuditLog(log *AuditLog) Option {
	return func(d *Dispatcher) { d.audit = log }
}

// WithRateLimiter overrides the per-hook limiter.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(d *Dispatcher) {
		if rl != nil {
			d.limiter = rl
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// Dispatcher delivers hook notifications over HTTP. Notify only enqueues;
// Run performs deliveries until its context is cancelled.
type Dispatcher struct {
	endpoints map[string]Endpoint

	mu    sync.Mutex
	tasks []task
	wake  chan struct{}

	client      *http.Client
	limiter     *RateLimiter
	audit       *AuditLog
	logger      *slog.Logger
	tracer      trace.Tracer
	metrics     *metrics.RPCMetrics
	maxAttempts int
	backoff     time.Duration
	queueSize   int
	nowFn       func() time.Time
}

// NewDispatcher constructs a dispatcher for the given endpoints.
func NewDispatcher(endpoints []Endpoint, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		endpoints: make(map[string]Endpoint, len(endpoints)),
		wake:      make(chan struct{}, 1),
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter:     NewRateLimiter(),
		logger:      slog.Default(),
		tracer:      otel.Tracer("nftmarket/webhook"),
		metrics:     metrics.RPC(),
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
		queueSize:   defaultQueueSize,
		nowFn:       time.Now,
	}
	for _, ep := range endpoints {
		d.endpoints[ep.Address] = ep
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var _ marketplace.Notifier = (*Dispatcher)(nil)

// Notify enqueues a delivery to hook's endpoint.
func (d *Dispatcher) Notify(_ context.Context, hook string, n marketplace.Notification) error {
	ep, ok := d.endpoints[hook]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHook, hook)
	}
	if err := d.enqueue(task{id: uuid.NewString(), endpoint: ep, notification: n}); err != nil {
		d.metrics.ObserveWebhook(n.Kind.String(), "dropped")
		return err
	}
	return nil
}

// Pending returns the number of queued deliveries.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tasks)
}

func (d *Dispatcher) enqueue(t task) error {
	d.mu.Lock()
	if len(d.tasks) >= d.queueSize {
		d.mu.Unlock()
		return ErrQueueFull
	}
	d.tasks = append(d.tasks, t)
	d.mu.Unlock()
	select {
	case d.wake <- struct{}{}:
	default:
	}
	return nil
}

// next pops the first task that is due. Otherwise it reports how long until
// the earliest task becomes due, or zero when the queue is empty.
func (d *Dispatcher) next(now time.Time) (task, time.Duration, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var wait time.Duration
	for i, t := range d.tasks {
		if !t.notBefore.After(now) {
			d.tasks = append(d.tasks[:i], d.tasks[i+1:]...)
			return t, 0, true
		}
		if delay := t.notBefore.Sub(now); wait == 0 || delay < wait {
			wait = delay
		}
	}
	return task{}, wait, false
}

// Run delivers queued notifications until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		t, wait, ok := d.next(d.nowFn())
		if ok {
			d.deliver(ctx, t)
			continue
		}
		var timer *time.Timer
		var due <-chan time.Time
		if wait > 0 {
			timer = time.NewTimer(wait)
			due = timer.C
		}
		select {
		case <-ctx.Done():
		case <-d.wake:
		case <-due:
		}
		if timer != nil {
			timer.Stop()
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, t task) {
	kind := t.notification.Kind.String()
	now := d.nowFn()
	if delay := d.limiter.Delay(t.endpoint.Address, t.endpoint.RateLimit, now); delay > 0 {
		t.notBefore = now.Add(delay)
		d.metrics.ObserveWebhook(kind, "throttled")
		if err := d.enqueue(t); err != nil {
			d.drop(ctx, t, now, err)
		}
		return
	}
	t.attempt++

	ctx, span := d.tracer.Start(ctx, "webhook.deliver", trace.WithAttributes(
		attribute.String("hook", t.endpoint.Address),
		attribute.String("kind", kind),
		attribute.Int("attempt", t.attempt),
	))
	defer span.End()

	err := d.post(ctx, t, now)
	status := "success"
	errMsg := ""
	if err != nil {
		status = "failed"
		errMsg = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, errMsg)
	}
	d.metrics.ObserveWebhook(kind, status)
	d.record(ctx, t, status, errMsg, now)
	if err == nil {
		return
	}

	if t.attempt >= d.maxAttempts {
		d.logger.Warn("webhook delivery abandoned",
			"hook", t.endpoint.Address,
			logging.MaskField("url", t.endpoint.URL),
			"attempts", t.attempt,
			"error", err,
		)
		return
	}
	t.notBefore = now.Add(d.backoffDuration(t.attempt))
	if qerr := d.enqueue(t); qerr != nil {
		d.drop(ctx, t, now, qerr)
	}
}

// drop accounts for a delivery that could not be re-queued.
func (d *Dispatcher) drop(ctx context.Context, t task, now time.Time, err error) {
	d.logger.Warn("webhook delivery dropped",
		"hook", t.endpoint.Address,
		logging.MaskField("url", t.endpoint.URL),
		"delivery", t.id,
		"error", err,
	)
	d.metrics.ObserveWebhook(t.notification.Kind.String(), "dropped")
	d.record(ctx, t, "dropped", err.Error(), now)
}

func (d *Dispatcher) record(ctx context.Context, t task, status, errMsg string, now time.Time) {
	if d.audit == nil {
		return
	}
	if err := d.audit.Record(ctx, Attempt{
		DeliveryID: t.id,
		Hook:       t.endpoint.Address,
		Kind:       t.notification.Kind.String(),
		Attempt:    t.attempt,
		Status:     status,
		Error:      errMsg,
		CreatedAt:  now,
	}); err != nil {
		d.logger.Warn("webhook audit write failed", "error", err)
	}
}

func (d *Dispatcher) post(ctx context.Context, t task, now time.Time) error {
	body, err := json.Marshal(Payload{
		ID:           t.id,
		Hook:         t.endpoint.Address,
		Kind:         t.notification.Kind.String(),
		Attempt:      t.attempt,
		Timestamp:    now.UTC().Format(time.RFC3339Nano),
		Notification: t.notification,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(DeliveryHeader, t.id)
	req.Header.Set(SignatureHeader, Sign(t.endpoint.Secret, body))

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: receiver returned %s", resp.Status)
	}
	return nil
}

func (d *Dispatcher) backoffDuration(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	delay := d.backoff * time.Duration(1<<uint(attempt-1))
	if delay > maxBackoff || delay <= 0 {
		return maxBackoff
	}
	return delay
}

// Sign returns the hex HMAC-SHA256 of payload under secret.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches payload under secret.
func Verify(secret string, payload []byte, signature string) bool {
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expected)
}
