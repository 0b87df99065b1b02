package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Metadata             map[string]any
	Timeout              time.Duration
	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

// MailchimpAPI is the subset of the Mailchimp Marketing API the service uses.
type MailchimpAPI interface {
	GetAudiences(ctx context.Context) ([]Audience, error)
	GetMergeFields(ctx context.Context, audienceID string) ([]MergeField, error)
	GetTags(ctx context.Context, audienceID string) ([]Segment, error)
	GetInterestCategories(ctx context.Context, audienceID string) ([]InterestCategory, error)
	Subscribe(ctx context.Context, audienceID string, payload MemberPayload) (Member, error)
	SubscribeOrUpdate(ctx context.Context, audienceID string, payload MemberPayload) (Member, error)
}

type MailchimpClientFactory func(apiKey string) (MailchimpAPI, error)

type SettingsStore interface {
	Load(ctx context.Context) (ModuleSettings, error)
	Save(ctx context.Context, settings ModuleSettings) error
}

type FormConfigStore interface {
	Load(ctx context.Context, formName string) (ProcessorSettings, error)
	Save(ctx context.Context, formName string, settings ProcessorSettings) error
	ListForms(ctx context.Context) ([]string, error)
}

type ActivitySink interface {
	Record(ctx context.Context, entry ActivityEntry) error
	List(ctx context.Context, filter ActivityFilter) (ActivityPage, error)
}

// StoreProvider exposes the persistence-backed stores built by a repository
// factory.
type StoreProvider interface {
	SettingsStore() SettingsStore
	FormConfigStore() FormConfigStore
	ActivitySink() ActivitySink
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

// PageResolver turns a page reference submitted by a Page field into its title.
type PageResolver interface {
	PageTitle(ctx context.Context, reference string) (string, error)
}

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}
