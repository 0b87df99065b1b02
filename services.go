package formchimp

import (
	"fmt"

	"github.com/goliatone/go-formchimp/core"
	"github.com/goliatone/go-formchimp/mailchimp"
	sqlstore "github.com/goliatone/go-formchimp/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

type Config = core.Config

type MailchimpConfig = core.MailchimpConfig

type ActivityConfig = core.ActivityConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type SettingsStore = core.SettingsStore
type FormConfigStore = core.FormConfigStore
type ActivitySink = core.ActivitySink
type PageResolver = core.PageResolver
type JobEnqueuer = core.JobEnqueuer
type MailchimpClientFactory = core.MailchimpClientFactory

type Form = core.Form
type FormField = core.FormField
type Submission = core.Submission
type ModuleSettings = core.ModuleSettings
type ModuleSettingsPatch = core.ModuleSettingsPatch
type ProcessorSettings = core.ProcessorSettings

type ProcessSubmissionRequest = core.ProcessSubmissionRequest

type ProcessResult = core.ProcessResult

type BuildConfigurationRequest = core.BuildConfigurationRequest

type ConfigurationForm = core.ConfigurationForm

type MemberPayload = core.MemberPayload

var (
	WithLogger                 = core.WithLogger
	WithLoggerProvider         = core.WithLoggerProvider
	WithMetricsRecorder        = core.WithMetricsRecorder
	WithErrorFactory           = core.WithErrorFactory
	WithErrorMapper            = core.WithErrorMapper
	WithPersistenceClient      = core.WithPersistenceClient
	WithRepositoryFactory      = core.WithRepositoryFactory
	WithConfigProvider         = core.WithConfigProvider
	WithOptionsResolver        = core.WithOptionsResolver
	WithMailchimpClientFactory = core.WithMailchimpClientFactory
	WithSettingsStore          = core.WithSettingsStore
	WithFormConfigStore        = core.WithFormConfigStore
	WithActivitySink           = core.WithActivitySink
	WithPageResolver           = core.WithPageResolver
	WithJobEnqueuer            = core.WithJobEnqueuer
	WithClock                  = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

// Setup builds a service talking to the live Mailchimp API. Caller options
// are applied last and win over the defaults.
func Setup(cfg Config, opts ...Option) (*Service, error) {
	base := []Option{WithMailchimpClientFactory(mailchimp.NewClientFactory(cfg.Mailchimp))}
	return core.NewService(cfg, append(base, opts...)...)
}

type PersistenceOption func(*persistenceSetup)

type persistenceSetup struct {
	formConfigCache repositorycache.CacheService
	activityBuffer  int
	activityBackup  ActivitySink
}

// WithFormConfigCache fronts stored form configurations with cacheService.
func WithFormConfigCache(cacheService repositorycache.CacheService) PersistenceOption {
	return func(setup *persistenceSetup) {
		setup.formConfigCache = cacheService
	}
}

// WithBufferedActivity records activity through a queue of size entries so
// the SQL write happens off the submission path. Entries that overflow the
// queue or fail to persist go to fallback when it is set. Call Service.Close
// to drain the queue.
func WithBufferedActivity(size int, fallback ActivitySink) PersistenceOption {
	return func(setup *persistenceSetup) {
		setup.activityBuffer = size
		setup.activityBackup = fallback
	}
}

// SetupWithPersistence is Setup backed by the SQL stores. The schema must
// already be migrated, see the migrations package.
func SetupWithPersistence(
	cfg Config,
	client *persistence.Client,
	persistenceOpts []PersistenceOption,
	opts ...Option,
) (*Service, error) {
	if client == nil {
		return nil, fmt.Errorf("formchimp: persistence client is required")
	}
	setup := persistenceSetup{}
	for _, opt := range persistenceOpts {
		if opt == nil {
			continue
		}
		opt(&setup)
	}

	factory := sqlstore.NewRepositoryFactory()
	if setup.formConfigCache != nil {
		factory.WithFormConfigCache(setup.formConfigCache)
	}
	base := []Option{
		WithPersistenceClient(client),
		WithRepositoryFactory(factory),
	}
	var buffered *core.BufferedActivitySink
	if setup.activityBuffer > 0 {
		if _, err := factory.BuildStores(client); err != nil {
			return nil, err
		}
		sink, err := core.NewBufferedActivitySink(
			factory.ActivityStore(),
			setup.activityBackup,
			core.RetentionPolicyFromConfig(cfg.Activity),
			setup.activityBuffer,
		)
		if err != nil {
			return nil, err
		}
		buffered = sink
		base = append(base, WithActivitySink(sink))
	}
	svc, err := Setup(cfg, append(base, opts...)...)
	if err != nil {
		buffered.Close()
		return nil, err
	}
	return svc, nil
}
