package core

import (
	"context"
	"testing"
	"time"
)

type fixedConfigProvider struct {
	cfg Config
}

func (p fixedConfigProvider) Load(context.Context, Config) (Config, error) {
	return p.cfg, nil
}

type fixedOptionsResolver struct {
	cfg Config
}

func (r fixedOptionsResolver) Resolve(Config, Config, Config) (Config, error) {
	return r.cfg, nil
}

type fixedStoreProvider struct {
	settings SettingsStore
	forms    FormConfigStore
	activity ActivitySink
}

func (p fixedStoreProvider) SettingsStore() SettingsStore     { return p.settings }
func (p fixedStoreProvider) FormConfigStore() FormConfigStore { return p.forms }
func (p fixedStoreProvider) ActivitySink() ActivitySink       { return p.activity }

type fixedStoreFactory struct {
	provider StoreProvider
	seen     *any
}

func (f fixedStoreFactory) BuildStores(persistenceClient any) (StoreProvider, error) {
	if f.seen != nil {
		*f.seen = persistenceClient
	}
	return f.provider, nil
}

func TestNewService_DefaultDependencies(t *testing.T) {
	svc, err := NewService(Config{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	deps := svc.Dependencies()
	if deps.Logger == nil {
		t.Fatalf("expected default logger")
	}
	if deps.LoggerProvider == nil {
		t.Fatalf("expected default logger provider")
	}
	if deps.ErrorFactory == nil || deps.ErrorMapper == nil {
		t.Fatalf("expected default error factory and mapper")
	}
	if deps.ConfigProvider == nil || deps.OptionsResolver == nil {
		t.Fatalf("expected default config provider and options resolver")
	}
	if deps.SettingsStore == nil || deps.FormConfigStore == nil || deps.ActivitySink == nil {
		t.Fatalf("expected in-memory stores by default")
	}
	if deps.ClientFactory != nil {
		t.Fatalf("expected no mailchimp client factory by default")
	}
	if svc.Config().ServiceName != "formchimp" {
		t.Fatalf("expected default service name, got %q", svc.Config().ServiceName)
	}
	if svc.Config().ActivityChannel != "fb-mailchimp" {
		t.Fatalf("expected default activity channel, got %q", svc.Config().ActivityChannel)
	}
	if svc.Config().Mailchimp.PageSize != 1000 {
		t.Fatalf("expected default page size, got %d", svc.Config().Mailchimp.PageSize)
	}
}

func TestNewService_WithOverrides(t *testing.T) {
	logger := stubLogger{}
	provider := stubLoggerProvider{logger: logger}
	configProvider := fixedConfigProvider{cfg: DefaultConfig()}
	resolved := DefaultConfig()
	resolved.ServiceName = "override"
	resolver := fixedOptionsResolver{cfg: resolved}
	settings := NewMemorySettingsStore()
	forms := NewMemoryFormConfigStore()
	activity := NewMemoryActivitySink()
	enqueuer := &recordingEnqueuer{}

	svc, err := NewService(
		Config{},
		WithLogger(logger),
		WithLoggerProvider(provider),
		WithConfigProvider(configProvider),
		WithOptionsResolver(resolver),
		WithSettingsStore(settings),
		WithFormConfigStore(forms),
		WithActivitySink(activity),
		WithJobEnqueuer(enqueuer),
		WithPageResolver(stubPageResolver{}),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	deps := svc.Dependencies()
	if deps.Logger == nil || deps.LoggerProvider == nil {
		t.Fatalf("expected logger overrides")
	}
	if deps.SettingsStore != settings {
		t.Fatalf("expected settings store override")
	}
	if deps.FormConfigStore != forms {
		t.Fatalf("expected form config store override")
	}
	if deps.ActivitySink != activity {
		t.Fatalf("expected activity sink override")
	}
	if deps.JobEnqueuer != enqueuer {
		t.Fatalf("expected job enqueuer override")
	}
	if deps.PageResolver == nil {
		t.Fatalf("expected page resolver override")
	}
	if svc.Config().ServiceName != "override" {
		t.Fatalf("expected resolver config, got %q", svc.Config().ServiceName)
	}
}

func TestNewService_BuildsStoresFromRepositoryFactory(t *testing.T) {
	provider := fixedStoreProvider{
		settings: NewMemorySettingsStore(),
		forms:    NewMemoryFormConfigStore(),
		activity: NewMemoryActivitySink(),
	}
	var seen any
	client := struct{ name string }{name: "db"}

	svc, err := NewService(Config{},
		WithPersistenceClient(client),
		WithRepositoryFactory(fixedStoreFactory{provider: provider, seen: &seen}),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if seen != client {
		t.Fatalf("expected persistence client passed to factory, got %#v", seen)
	}
	deps := svc.Dependencies()
	if deps.SettingsStore != provider.settings || deps.FormConfigStore != provider.forms || deps.ActivitySink != provider.activity {
		t.Fatalf("expected stores from repository factory")
	}

	explicit := NewMemorySettingsStore()
	svc, err = NewService(Config{},
		WithRepositoryFactory(provider),
		WithSettingsStore(explicit),
	)
	if err != nil {
		t.Fatalf("new service with store provider: %v", err)
	}
	if svc.Dependencies().SettingsStore != explicit {
		t.Fatalf("expected explicit settings store to win over factory store")
	}
	if svc.Dependencies().FormConfigStore != provider.forms {
		t.Fatalf("expected factory form config store")
	}
}

func TestNewService_ConfigLayeringPrecedence(t *testing.T) {
	loader := mapRawLoader{values: map[string]any{
		"service_name":     "from-config",
		"activity_channel": "config-channel",
		"mailchimp": map[string]any{
			"page_size": 250,
		},
	}}
	runtime := Config{
		ServiceName: "from-runtime",
		Mailchimp: MailchimpConfig{
			Timeout: 5 * time.Second,
		},
	}

	svc, err := NewService(runtime, WithConfigProvider(NewCfgxConfigProvider(loader)))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	cfg := svc.Config()
	if cfg.ServiceName != "from-runtime" {
		t.Fatalf("expected runtime service name precedence, got %q", cfg.ServiceName)
	}
	if cfg.ActivityChannel != "config-channel" {
		t.Fatalf("expected config activity channel, got %q", cfg.ActivityChannel)
	}
	if cfg.Mailchimp.PageSize != 250 {
		t.Fatalf("expected config page size, got %d", cfg.Mailchimp.PageSize)
	}
	if cfg.Mailchimp.Timeout != 5*time.Second {
		t.Fatalf("expected runtime timeout, got %s", cfg.Mailchimp.Timeout)
	}
	if cfg.Mailchimp.BaseURL != DefaultMailchimpBaseURL {
		t.Fatalf("expected default base url, got %q", cfg.Mailchimp.BaseURL)
	}
}

func TestNewService_RejectsInvalidConfig(t *testing.T) {
	loader := mapRawLoader{values: map[string]any{
		"mailchimp": map[string]any{
			"page_size": 5000,
		},
	}}
	if _, err := NewService(Config{}, WithConfigProvider(NewCfgxConfigProvider(loader))); err == nil {
		t.Fatalf("expected page size validation error")
	}
}
