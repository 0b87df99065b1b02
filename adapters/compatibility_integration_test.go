package adapters_test

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-formchimp/adapters/gocommand"
	"github.com/goliatone/go-formchimp/adapters/gojob"
	"github.com/goliatone/go-formchimp/adapters/gologger"
	formchimpcommand "github.com/goliatone/go-formchimp/command"
	"github.com/goliatone/go-formchimp/core"
	"github.com/goliatone/go-formchimp/devkit"
	"github.com/goliatone/go-formchimp/mailchimp"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	glog "github.com/goliatone/go-logger/glog"
)

func TestRuntimeCompatibility_QueuedAudienceTagMaintenance(t *testing.T) {
	ctx := context.Background()

	fake := devkit.NewFakeTransportAdapter("rest").
		Route(http.MethodGet, "/lists/aud_1/segments", devkit.JSONResponse(http.StatusOK, map[string]any{
			"segments": []map[string]any{{"id": 1, "name": "web", "type": "static"}},
		}))
	jobQueue := &compatQueue{}

	opts := gologger.ServiceOptions("formchimp", &compatProvider{logger: compatLogger{}}, nil)
	opts = append(opts,
		core.WithMailchimpClientFactory(mailchimp.NewClientFactory(core.DefaultConfig().Mailchimp, mailchimp.WithTransport(fake))),
		core.WithJobEnqueuer(gojob.NewEnqueuerAdapter(jobQueue)),
	)
	svc, err := core.NewService(core.DefaultConfig(), opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	adapter := gocommand.NewRegistryAdapter(command.NewRegistry())
	subs, err := gocommand.RegisterService(adapter, svc)
	if err != nil {
		t.Fatalf("register service: %v", err)
	}
	defer subs.Unsubscribe()

	key := "abc123-us6"
	ready := true
	if err := commanddispatcher.Dispatch(ctx, formchimpcommand.SaveModuleSettingsMessage{Patch: core.ModuleSettingsPatch{
		APIKey:   &key,
		APIReady: &ready,
	}}); err != nil {
		t.Fatalf("dispatch save settings: %v", err)
	}
	if err := commanddispatcher.Dispatch(ctx, formchimpcommand.SaveFormConfigurationMessage{
		FormName: "newsletter",
		Settings: core.ProcessorSettings{
			core.AudienceIDKey:     "aud_1",
			"aud_1__email_address": "email",
			"aud_1__audience_tags": []string{"web", "newsletter"},
		},
	}); err != nil {
		t.Fatalf("dispatch save form configuration: %v", err)
	}
	if jobQueue.size() != 1 {
		t.Fatalf("expected one queued maintenance job, got %d", jobQueue.size())
	}
	if fake.RequestCount(http.MethodGet, "/lists/aud_1/segments") != 0 {
		t.Fatalf("expected maintenance to wait for the worker")
	}

	worker, err := gojob.NewMaintenanceWorker(
		gojob.NewDequeuerAdapter(jobQueue, gojob.RetryPolicy{MaxAttempts: 3}),
		svc,
		gojob.WithWorkerHook(gojob.NewLoggingHook(compatLogger{})),
	)
	if err != nil {
		t.Fatalf("new maintenance worker: %v", err)
	}
	processed, err := worker.ProcessNext(ctx)
	if err != nil || !processed {
		t.Fatalf("expected processed maintenance job, got %v %v", processed, err)
	}
	if jobQueue.acked != 1 {
		t.Fatalf("expected queue delivery ack, got %d", jobQueue.acked)
	}

	settings, err := svc.GetModuleSettings(ctx)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if len(settings.LocalAudienceTags) != 1 || settings.LocalAudienceTags[0] != "newsletter" {
		t.Fatalf("expected tag missing remotely to be stored, got %#v", settings.LocalAudienceTags)
	}
}

func TestRuntimeCompatibility_CommandsMirrorIntoQueueRegistry(t *testing.T) {
	queueRegistry := jobqueuecommand.NewRegistry()
	adapter := gocommand.NewRegistryAdapter(command.NewRegistry())
	if err := adapter.MirrorToQueue(queueRegistry); err != nil {
		t.Fatalf("mirror to queue: %v", err)
	}
	if err := adapter.RegisterCommand(command.CommandFunc[compatMessage](func(context.Context, compatMessage) error {
		return nil
	})); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize command registry: %v", err)
	}
	if _, ok := queueRegistry.Get("formchimp.compat.command"); !ok {
		t.Fatalf("expected command resolver hook to mirror command into go-job queue registry")
	}

	_, _, jobProvider, jobLogger := gologger.ResolveForJob("formchimp", &compatProvider{logger: compatLogger{}}, nil)
	if jobProvider == nil || jobLogger == nil {
		t.Fatalf("expected go-job logger bridges")
	}
}

type compatMessage struct{}

func (compatMessage) Type() string { return "formchimp.compat.command" }

type compatQueue struct {
	mu       sync.Mutex
	messages []*job.ExecutionMessage
	acked    int
	nacked   int
}

func (q *compatQueue) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append(q.messages, msg)
	return nil
}

func (q *compatQueue) Dequeue(context.Context) (queue.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.messages) == 0 {
		return nil, nil
	}
	next := q.messages[0]
	q.messages = q.messages[1:]
	return &compatDelivery{queue: q, msg: next}, nil
}

func (q *compatQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

type compatDelivery struct {
	queue *compatQueue
	msg   *job.ExecutionMessage
}

func (d *compatDelivery) Message() *job.ExecutionMessage {
	return d.msg
}

func (d *compatDelivery) Ack(context.Context) error {
	d.queue.mu.Lock()
	defer d.queue.mu.Unlock()
	d.queue.acked++
	return nil
}

func (d *compatDelivery) Nack(context.Context, queue.NackOptions) error {
	d.queue.mu.Lock()
	defer d.queue.mu.Unlock()
	d.queue.nacked++
	return nil
}

type compatProvider struct {
	logger glog.Logger
}

func (p *compatProvider) GetLogger(string) glog.Logger {
	if p == nil || p.logger == nil {
		return glog.Nop()
	}
	return p.logger
}

type compatLogger struct{}

func (compatLogger) Trace(string, ...any)                    {}
func (compatLogger) Debug(string, ...any)                    {}
func (compatLogger) Info(string, ...any)                     {}
func (compatLogger) Warn(string, ...any)                     {}
func (compatLogger) Error(string, ...any)                    {}
func (compatLogger) Fatal(string, ...any)                    {}
func (compatLogger) WithContext(context.Context) glog.Logger { return compatLogger{} }
