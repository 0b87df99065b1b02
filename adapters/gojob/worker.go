package gojob

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-formchimp/core"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	defaultPollInterval = time.Second
	defaultRetryDelay   = 30 * time.Second
)

// MaintenanceHandler executes one dequeued maintenance job.
type MaintenanceHandler interface {
	HandleMaintenanceJob(ctx context.Context, msg *core.JobExecutionMessage) error
}

type WorkerOption func(*MaintenanceWorker)

func WithWorkerHook(hook core.JobWorkerHook) WorkerOption {
	return func(w *MaintenanceWorker) {
		w.hook = hook
	}
}

func WithPollInterval(interval time.Duration) WorkerOption {
	return func(w *MaintenanceWorker) {
		if interval > 0 {
			w.pollInterval = interval
		}
	}
}

// WithRetryPolicy bounds retries by attempt count and delay.
func WithRetryPolicy(policy RetryPolicy) WorkerOption {
	return func(w *MaintenanceWorker) {
		w.policy = policy
	}
}

func WithRetryDelay(delay time.Duration) WorkerOption {
	return func(w *MaintenanceWorker) {
		if delay >= 0 {
			w.retryDelay = delay
		}
	}
}

// MaintenanceWorker pulls maintenance jobs from a queue and runs them against
// the service. Failed jobs are nacked with the retry delay until the retry
// policy gives up on them. Client errors go straight to the dead letter queue.
type MaintenanceWorker struct {
	dequeuer     core.JobDequeuer
	handler      MaintenanceHandler
	hook         core.JobWorkerHook
	policy       RetryPolicy
	pollInterval time.Duration
	retryDelay   time.Duration
	now          func() time.Time

	mu       sync.Mutex
	attempts map[string]int
}

func NewMaintenanceWorker(dequeuer core.JobDequeuer, handler MaintenanceHandler, opts ...WorkerOption) (*MaintenanceWorker, error) {
	if dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("gojob: maintenance handler is required")
	}
	w := &MaintenanceWorker{
		dequeuer:     dequeuer,
		handler:      handler,
		pollInterval: defaultPollInterval,
		retryDelay:   defaultRetryDelay,
		now:          time.Now,
		attempts:     map[string]int{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w, nil
}

// Run processes jobs until ctx is cancelled.
func (w *MaintenanceWorker) Run(ctx context.Context) error {
	for {
		processed, err := w.ProcessNext(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if processed && err == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(w.pollInterval):
		}
	}
}

// ProcessNext handles at most one delivery. It reports false when the queue
// had nothing to hand out.
func (w *MaintenanceWorker) ProcessNext(ctx context.Context) (bool, error) {
	if w == nil {
		return false, fmt.Errorf("gojob: maintenance worker is nil")
	}
	delivery, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if delivery == nil {
		return false, nil
	}
	msg := delivery.Message()
	if msg == nil {
		return true, delivery.Ack(ctx)
	}

	attempt := w.nextAttempt(msg)
	event := core.JobWorkerEvent{Message: msg, Attempt: attempt, StartedAt: w.now().UTC()}
	if w.hook != nil {
		w.hook.OnStart(ctx, event)
	}

	handleErr := w.handler.HandleMaintenanceJob(ctx, msg)
	event.Duration = w.now().UTC().Sub(event.StartedAt)
	if handleErr == nil {
		w.clearAttempts(msg)
		if w.hook != nil {
			w.hook.OnSuccess(ctx, event)
		}
		return true, delivery.Ack(ctx)
	}

	event.Err = handleErr
	opts := core.JobNackOptions{
		Delay:   w.retryDelay,
		Requeue: true,
		Reason:  handleErr.Error(),
	}
	if isPermanent(handleErr) {
		opts.Requeue = false
		opts.DeadLetter = true
	}

	opts = w.policy.NormalizeAttempt(opts, attempt)
	err = delivery.Nack(ctx, opts)
	if opts.Requeue {
		event.Delay = opts.Delay
		if w.hook != nil {
			w.hook.OnRetry(ctx, event)
		}
	} else {
		w.clearAttempts(msg)
		if w.hook != nil {
			w.hook.OnFailure(ctx, event)
		}
	}
	if err != nil {
		return true, err
	}
	return true, handleErr
}

func (w *MaintenanceWorker) nextAttempt(msg *core.JobExecutionMessage) int {
	key := attemptKey(msg)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts[key]++
	return w.attempts[key]
}

func (w *MaintenanceWorker) clearAttempts(msg *core.JobExecutionMessage) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.attempts, attemptKey(msg))
}

func attemptKey(msg *core.JobExecutionMessage) string {
	if key := strings.TrimSpace(msg.IdempotencyKey); key != "" {
		return key
	}
	return strings.TrimSpace(msg.JobID)
}

// isPermanent reports errors that will fail the same way on every retry.
func isPermanent(err error) bool {
	status := 0
	var remote core.RemoteStatusError
	var rich *goerrors.Error
	switch {
	case errors.As(err, &remote):
		status = remote.HTTPStatus()
	case goerrors.As(err, &rich):
		status = rich.Code
	}
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}

// LoggingHook writes worker lifecycle events to a glog logger.
type LoggingHook struct {
	logger glog.Logger
}

func NewLoggingHook(logger glog.Logger) *LoggingHook {
	return &LoggingHook{logger: glog.Ensure(logger)}
}

func (h *LoggingHook) OnStart(_ context.Context, event core.JobWorkerEvent) {
	h.logger.Debug("formchimp job started", eventFields(event)...)
}

func (h *LoggingHook) OnSuccess(_ context.Context, event core.JobWorkerEvent) {
	h.logger.Info("formchimp job completed", eventFields(event)...)
}

func (h *LoggingHook) OnFailure(_ context.Context, event core.JobWorkerEvent) {
	h.logger.Error("formchimp job failed", append(eventFields(event), "error", event.Err)...)
}

func (h *LoggingHook) OnRetry(_ context.Context, event core.JobWorkerEvent) {
	h.logger.Warn("formchimp job scheduled for retry", append(eventFields(event), "error", event.Err, "delay", event.Delay.String())...)
}

func eventFields(event core.JobWorkerEvent) []any {
	fields := []any{"attempt", event.Attempt, "duration_ms", event.Duration.Milliseconds()}
	if event.Message != nil {
		fields = append(fields, "job_id", event.Message.JobID, "idempotency_key", event.Message.IdempotencyKey)
	}
	return fields
}
