package core

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestSaveModuleSettings_KeyChangeResetsReady(t *testing.T) {
	ctx := context.Background()
	svc := readyService(t, newStubMailchimp())

	tags := []string{"web", "web", "vip"}
	settings, err := svc.SaveModuleSettings(ctx, ModuleSettingsPatch{LocalAudienceTags: &tags})
	if err != nil {
		t.Fatalf("save tags: %v", err)
	}
	if !settings.APIReady || len(settings.LocalAudienceTags) != 2 {
		t.Fatalf("expected tags update to keep ready flag, got %#v", settings)
	}

	same := "abc123-us6"
	settings, err = svc.SaveModuleSettings(ctx, ModuleSettingsPatch{APIKey: &same})
	if err != nil {
		t.Fatalf("save same key: %v", err)
	}
	if !settings.APIReady {
		t.Fatalf("expected unchanged key to keep ready flag")
	}

	next := "def456-us9"
	settings, err = svc.SaveModuleSettings(ctx, ModuleSettingsPatch{APIKey: &next})
	if err != nil {
		t.Fatalf("save new key: %v", err)
	}
	if settings.APIReady {
		t.Fatalf("expected new key to reset ready flag")
	}
	stored, err := svc.GetModuleSettings(ctx)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if stored.APIKey != "def456-us9" || stored.APIReady {
		t.Fatalf("unexpected stored settings %#v", stored)
	}
}

func TestValidateAPIKey_Outcomes(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		ready   bool
		status  int
		message string
	}{
		{name: "valid", ready: true, status: http.StatusOK},
		{name: "unauthorized", err: testStatusError{status: http.StatusUnauthorized}, status: http.StatusUnauthorized, message: MessageAPIKeyInvalid},
		{name: "server error", err: testStatusError{status: http.StatusServiceUnavailable}, status: http.StatusServiceUnavailable, message: MessageAPIKeyCheckFailed},
	}
	for _, tc := range cases {
		ctx := context.Background()
		client := newStubMailchimp()
		client.audiencesErr = tc.err
		svc := readyService(t, client)

		result, err := svc.ValidateAPIKey(ctx)
		if err != nil {
			t.Fatalf("%s: validate: %v", tc.name, err)
		}
		if result.Ready != tc.ready || result.StatusCode != tc.status || result.Message != tc.message {
			t.Fatalf("%s: unexpected result %#v", tc.name, result)
		}
		settings, _ := svc.GetModuleSettings(ctx)
		if settings.APIReady != tc.ready {
			t.Fatalf("%s: expected stored ready=%v", tc.name, tc.ready)
		}
		page, _ := svc.ListActivity(ctx, ActivityFilter{Action: ActionAPIKeyValidated})
		if page.Total != 1 {
			t.Fatalf("%s: expected validation activity entry, got %d", tc.name, page.Total)
		}
	}
}

func TestValidateAPIKey_TransportFailureKeepsReadyFlag(t *testing.T) {
	ctx := context.Background()
	client := newStubMailchimp()
	client.audiencesErr = errors.New("dial tcp: connection refused")
	svc := readyService(t, client)

	result, err := svc.ValidateAPIKey(ctx)
	if err == nil {
		t.Fatalf("expected transport error")
	}
	if !result.Ready {
		t.Fatalf("expected ready flag to be reported unchanged")
	}
	settings, _ := svc.GetModuleSettings(ctx)
	if !settings.APIReady {
		t.Fatalf("expected stored ready flag to stay set")
	}
	page, _ := svc.ListActivity(ctx, ActivityFilter{Status: ActivityStatusError})
	if page.Total != 1 {
		t.Fatalf("expected error activity entry, got %d", page.Total)
	}
}

func TestService_BuildsClientPerOperation(t *testing.T) {
	ctx := context.Background()
	built := 0
	client := newStubMailchimp()
	svc, err := NewService(DefaultConfig(), WithMailchimpClientFactory(func(string) (MailchimpAPI, error) {
		built++
		return client, nil
	}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	key := "abc123-us6"
	ready := true
	if _, err := svc.SaveModuleSettings(ctx, ModuleSettingsPatch{APIKey: &key, APIReady: &ready}); err != nil {
		t.Fatalf("save settings: %v", err)
	}

	if _, err := svc.BuildFormConfiguration(ctx, BuildConfigurationRequest{Form: testForm(), Settings: testSettings()}); err != nil {
		t.Fatalf("build configuration: %v", err)
	}
	if _, err := svc.BuildFormConfiguration(ctx, BuildConfigurationRequest{Form: testForm(), Settings: testSettings()}); err != nil {
		t.Fatalf("build configuration: %v", err)
	}
	if built != 2 {
		t.Fatalf("expected one client per operation, built %d", built)
	}
	if _, err := svc.ValidateAPIKey(ctx); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if built != 3 {
		t.Fatalf("expected validation to build its own client, built %d", built)
	}
}

func TestValidateAPIKey_RequiresKeyAndFactory(t *testing.T) {
	ctx := context.Background()
	svc, err := NewService(DefaultConfig())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := svc.ValidateAPIKey(ctx); err == nil {
		t.Fatalf("expected missing key error")
	}
	key := "abc123-us6"
	if _, err := svc.SaveModuleSettings(ctx, ModuleSettingsPatch{APIKey: &key}); err != nil {
		t.Fatalf("save key: %v", err)
	}
	if _, err := svc.ValidateAPIKey(ctx); err == nil {
		t.Fatalf("expected missing client factory error")
	}
}
