package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	clientFactory     MailchimpClientFactory
	settingsStore     SettingsStore
	formConfigStore   FormConfigStore
	activitySink      ActivitySink
	pageResolver      PageResolver
	jobEnqueuer       JobEnqueuer
	mapper            SubmissionMapper
	now               func() time.Time
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	ClientFactory     MailchimpClientFactory
	SettingsStore     SettingsStore
	FormConfigStore   FormConfigStore
	ActivitySink      ActivitySink
	PageResolver      PageResolver
	JobEnqueuer       JobEnqueuer
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve(DefaultServiceName, builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger(DefaultServiceName); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.now == nil {
		builder.now = func() time.Time {
			return time.Now().UTC()
		}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.repoFactory != nil {
		var stores StoreProvider
		switch factory := builder.repoFactory.(type) {
		case RepositoryStoreFactory:
			built, buildErr := factory.BuildStores(builder.persistence)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			stores = built
		case StoreProvider:
			stores = factory
		}
		if stores != nil {
			if builder.settingsStore == nil {
				builder.settingsStore = stores.SettingsStore()
			}
			if builder.formConfigStore == nil {
				builder.formConfigStore = stores.FormConfigStore()
			}
			if builder.activitySink == nil {
				builder.activitySink = stores.ActivitySink()
			}
		}
	}
	if builder.settingsStore == nil {
		builder.settingsStore = NewMemorySettingsStore()
	}
	if builder.formConfigStore == nil {
		builder.formConfigStore = NewMemoryFormConfigStore()
	}
	if builder.activitySink == nil {
		builder.activitySink = NewMemoryActivitySink()
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		persistenceClient: builder.persistence,
		repositoryFactory: builder.repoFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		clientFactory:     builder.clientFactory,
		settingsStore:     builder.settingsStore,
		formConfigStore:   builder.formConfigStore,
		activitySink:      builder.activitySink,
		pageResolver:      builder.pageResolver,
		jobEnqueuer:       builder.jobEnqueuer,
		mapper:            SubmissionMapper{Pages: builder.pageResolver},
		now:               builder.now,
	}, nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorFactory:      s.errorFactory,
		ErrorMapper:       s.errorMapper,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		ClientFactory:     s.clientFactory,
		SettingsStore:     s.settingsStore,
		FormConfigStore:   s.formConfigStore,
		ActivitySink:      s.activitySink,
		PageResolver:      s.pageResolver,
		JobEnqueuer:       s.jobEnqueuer,
	}
}

// Close flushes and stops an activity sink that buffers writes.
func (s *Service) Close() {
	if s == nil || s.activitySink == nil {
		return
	}
	if closer, ok := s.activitySink.(interface{ Close() }); ok {
		closer.Close()
	}
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

// mailchimpClient builds a client for one operation. Metadata memoized by the
// client lives only as long as that operation.
func (s *Service) mailchimpClient(apiKey string) (MailchimpAPI, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("core: mailchimp api key is required")
	}
	if s.clientFactory == nil {
		return nil, ErrClientFactoryNeeded
	}
	return s.clientFactory(apiKey)
}

// recordActivity writes to the activity channel. Failures are logged only.
func (s *Service) recordActivity(ctx context.Context, entry ActivityEntry) {
	if s == nil || s.activitySink == nil {
		return
	}
	if strings.TrimSpace(entry.ID) == "" {
		entry.ID = uuid.NewString()
	}
	if strings.TrimSpace(entry.Channel) == "" {
		entry.Channel = s.config.ActivityChannel
	}
	if strings.TrimSpace(entry.Actor) == "" {
		entry.Actor = s.config.ServiceName
	}
	if entry.Status == "" {
		entry.Status = ActivityStatusOK
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	entry.Metadata = RedactSensitiveMap(entry.Metadata)
	if err := s.activitySink.Record(ctx, entry); err != nil {
		s.logWarn(ctx, "activity record failed", map[string]any{
			"action": entry.Action,
			"error":  err.Error(),
		})
	}
}

func (s *Service) ListActivity(ctx context.Context, filter ActivityFilter) (page ActivityPage, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"form_name":   filter.FormName,
		"audience_id": filter.AudienceID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "list_activity", err, fields)
	}()
	if strings.TrimSpace(filter.Channel) == "" {
		filter.Channel = s.config.ActivityChannel
	}
	page, err = s.activitySink.List(ctx, filter)
	if err != nil {
		err = s.mapError(err)
		return ActivityPage{}, err
	}
	return page, nil
}

func (s *Service) GetFormConfiguration(ctx context.Context, formName string) (settings ProcessorSettings, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"form_name": formName}
	defer func() {
		s.observeOperation(ctx, startedAt, "get_form_configuration", err, fields)
	}()

	formName = strings.TrimSpace(formName)
	if formName == "" {
		err = s.mapError(fmt.Errorf("core: form name is required"))
		return nil, err
	}
	settings, err = s.formConfigStore.Load(ctx, formName)
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}
	if settings == nil {
		settings = ProcessorSettings{}
	}
	fields["audience_id"] = settings.AudienceID()
	return settings, nil
}

// SaveFormConfiguration replaces the stored processor configuration for a
// form and schedules audience tag maintenance.
func (s *Service) SaveFormConfiguration(ctx context.Context, formName string, settings ProcessorSettings) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"form_name":   formName,
		"audience_id": settings.AudienceID(),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "save_form_configuration", err, fields)
	}()

	formName = strings.TrimSpace(formName)
	if formName == "" {
		err = s.mapError(fmt.Errorf("core: form name is required"))
		return err
	}
	if err = s.formConfigStore.Save(ctx, formName, settings.Clone()); err != nil {
		err = s.mapError(err)
		return err
	}
	s.scheduleAudienceTagMaintenance(ctx, settings.AudienceID())
	return nil
}

// UpdateFormConfiguration merges values into the stored processor
// configuration. Nil values delete keys.
func (s *Service) UpdateFormConfiguration(ctx context.Context, formName string, values map[string]any) (ProcessorSettings, error) {
	current, err := s.GetFormConfiguration(ctx, formName)
	if err != nil {
		return nil, err
	}
	next := current.Clone()
	for key, value := range values {
		if value == nil {
			delete(next, key)
			continue
		}
		next[key] = value
	}
	if err := s.SaveFormConfiguration(ctx, formName, next); err != nil {
		return nil, err
	}
	return next, nil
}
