package gocommand

import (
	"context"
	"testing"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	formchimpcommand "github.com/goliatone/go-formchimp/command"
	"github.com/goliatone/go-formchimp/core"
	formchimpquery "github.com/goliatone/go-formchimp/query"
)

func TestRegisterService_DispatchesThroughService(t *testing.T) {
	ctx := context.Background()
	svc, err := core.NewService(core.DefaultConfig())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	adapter := NewRegistryAdapter(command.NewRegistry())
	subs, err := RegisterService(adapter, svc)
	if err != nil {
		t.Fatalf("register service: %v", err)
	}
	defer subs.Unsubscribe()
	if len(subs) != 10 {
		t.Fatalf("expected five commands and five queries, got %d", len(subs))
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	key := "abcdef123456-us6"
	tags := []string{"web", "events"}
	if err := commanddispatcher.Dispatch(ctx, formchimpcommand.SaveModuleSettingsMessage{Patch: core.ModuleSettingsPatch{
		APIKey:            &key,
		LocalAudienceTags: &tags,
	}}); err != nil {
		t.Fatalf("dispatch save settings: %v", err)
	}

	settings, err := commanddispatcher.Query[formchimpquery.GetModuleSettingsMessage, core.ModuleSettings](ctx, formchimpquery.GetModuleSettingsMessage{})
	if err != nil {
		t.Fatalf("query settings: %v", err)
	}
	if settings.APIKey != "********3456-us6" || len(settings.LocalAudienceTags) != 2 {
		t.Fatalf("unexpected settings %#v", settings)
	}
}

func TestRegisterService_RequiresDependencies(t *testing.T) {
	if _, err := RegisterService(nil, nil); err == nil {
		t.Fatalf("expected missing registry error")
	}
	if _, err := RegisterService(NewRegistryAdapter(nil), nil); err == nil {
		t.Fatalf("expected missing service error")
	}
}
