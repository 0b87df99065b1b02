package core

import (
	"context"
	"errors"
	"testing"
)

func TestUpdateAudienceTags_StoresTagsMissingRemotely(t *testing.T) {
	ctx := context.Background()
	client := newStubMailchimp()
	client.tags["aud_1"] = []Segment{{ID: 1, Name: "web", Type: SegmentTypeStatic}}
	client.tags["aud_2"] = []Segment{{ID: 2, Name: "events", Type: SegmentTypeStatic}}
	forms := NewMemoryFormConfigStore()
	_ = forms.Save(ctx, "newsletter", ProcessorSettings{
		AudienceIDKey:          "aud_1",
		"aud_1__audience_tags": []string{"web", "newsletter"},
	})
	_ = forms.Save(ctx, "rsvp", ProcessorSettings{
		AudienceIDKey:          "aud_2",
		"aud_2__audience_tags": []any{"events", "rsvp"},
	})
	_ = forms.Save(ctx, "contact", ProcessorSettings{})
	svc := readyService(t, client, WithFormConfigStore(forms))

	result, err := svc.UpdateAudienceTags(ctx, "")
	if err != nil {
		t.Fatalf("update audience tags: %v", err)
	}
	if len(result.AudienceIDs) != 2 {
		t.Fatalf("expected both audiences, got %#v", result.AudienceIDs)
	}
	if len(result.LocalTags) != 2 || result.LocalTags[0] != "newsletter" || result.LocalTags[1] != "rsvp" {
		t.Fatalf("expected tags missing remotely, got %#v", result.LocalTags)
	}
	settings, _ := svc.GetModuleSettings(ctx)
	if len(settings.LocalAudienceTags) != 2 {
		t.Fatalf("expected stored local tags, got %#v", settings.LocalAudienceTags)
	}

	// Once Mailchimp knows the tag it is dropped from the local list.
	client.tags["aud_1"] = append(client.tags["aud_1"], Segment{ID: 3, Name: "newsletter", Type: SegmentTypeStatic})
	result, err = svc.UpdateAudienceTags(ctx, "aud_1")
	if err != nil {
		t.Fatalf("update audience tags for aud_1: %v", err)
	}
	if len(result.LocalTags) != 0 {
		t.Fatalf("expected no local tags for aud_1, got %#v", result.LocalTags)
	}
	settings, _ = svc.GetModuleSettings(ctx)
	if len(settings.LocalAudienceTags) != 1 || settings.LocalAudienceTags[0] != "rsvp" {
		t.Fatalf("expected other audience tags to be kept, got %#v", settings.LocalAudienceTags)
	}

	page, _ := svc.ListActivity(ctx, ActivityFilter{Action: ActionAudienceTagsUpdated})
	if page.Total < 2 {
		t.Fatalf("expected maintenance activity entries, got %d", page.Total)
	}
}

func TestUpdateAudienceTags_PropagatesRemoteErrors(t *testing.T) {
	client := newStubMailchimp()
	client.metadataErr = errors.New("mailchimp unavailable")
	forms := NewMemoryFormConfigStore()
	_ = forms.Save(context.Background(), "newsletter", testSettings())
	svc := readyService(t, client, WithFormConfigStore(forms))

	if _, err := svc.UpdateAudienceTags(context.Background(), ""); err == nil {
		t.Fatalf("expected remote tags error")
	}
	if err := svc.ExecuteMaintenance(context.Background()); err == nil {
		t.Fatalf("expected maintenance error")
	}
}

func TestSaveFormConfiguration_EnqueuesMaintenanceJob(t *testing.T) {
	ctx := context.Background()
	client := newStubMailchimp()
	enqueuer := &recordingEnqueuer{}
	svc := readyService(t, client, WithJobEnqueuer(enqueuer))

	if err := svc.SaveFormConfiguration(ctx, "newsletter", testSettings()); err != nil {
		t.Fatalf("save form configuration: %v", err)
	}
	if len(enqueuer.messages) != 1 {
		t.Fatalf("expected one queued maintenance job, got %d", len(enqueuer.messages))
	}
	msg := enqueuer.messages[0]
	if msg.JobID != JobIDAudienceTags || msg.IdempotencyKey != JobIDAudienceTags+":aud_1" || msg.DedupPolicy != "drop" {
		t.Fatalf("unexpected job message %#v", msg)
	}
	if client.callCount("tags") != 0 {
		t.Fatalf("expected no inline maintenance when a queue is configured")
	}

	if err := svc.HandleMaintenanceJob(ctx, msg); err != nil {
		t.Fatalf("handle maintenance job: %v", err)
	}
	if client.callCount("tags") != 1 {
		t.Fatalf("expected queued job to fetch remote tags")
	}
}

func TestSaveFormConfiguration_RunsMaintenanceInlineWithoutQueue(t *testing.T) {
	ctx := context.Background()
	client := newStubMailchimp()
	svc := readyService(t, client)

	settings := testSettings()
	if err := svc.SaveFormConfiguration(ctx, "newsletter", settings); err != nil {
		t.Fatalf("save form configuration: %v", err)
	}
	if client.callCount("tags") != 1 {
		t.Fatalf("expected inline maintenance, got %d tag calls", client.callCount("tags"))
	}
	module, _ := svc.GetModuleSettings(ctx)
	if len(module.LocalAudienceTags) != 2 {
		t.Fatalf("expected configured tags stored locally, got %#v", module.LocalAudienceTags)
	}

	updated, err := svc.UpdateFormConfiguration(ctx, "newsletter", map[string]any{
		"aud_1__mark_vip":      true,
		"aud_1__audience_tags": nil,
	})
	if err != nil {
		t.Fatalf("update form configuration: %v", err)
	}
	if !updated.Bool("aud_1__mark_vip") {
		t.Fatalf("expected merged value")
	}
	if _, ok := updated["aud_1__audience_tags"]; ok {
		t.Fatalf("expected nil value to delete the key")
	}
}

func TestHandleMaintenanceJob_RejectsUnknownJobs(t *testing.T) {
	svc := readyService(t, newStubMailchimp())
	if err := svc.HandleMaintenanceJob(context.Background(), nil); err == nil {
		t.Fatalf("expected nil message error")
	}
	if err := svc.HandleMaintenanceJob(context.Background(), &JobExecutionMessage{JobID: "other"}); err == nil {
		t.Fatalf("expected unsupported job error")
	}
}

func TestMaintenanceJob_IdempotencyKey(t *testing.T) {
	if key := MaintenanceJob("").IdempotencyKey; key != JobIDAudienceTags {
		t.Fatalf("expected bare job id key, got %q", key)
	}
	msg := MaintenanceJob(" aud_9 ")
	if msg.Parameters["audience_id"] != "aud_9" {
		t.Fatalf("expected trimmed audience parameter, got %#v", msg.Parameters)
	}
}

func TestHandleMaintenanceJob_ScopedRunPurgesUnusedTags(t *testing.T) {
	ctx := context.Background()
	client := newStubMailchimp()
	forms := NewMemoryFormConfigStore()
	_ = forms.Save(ctx, "newsletter", ProcessorSettings{
		AudienceIDKey:          "aud_1",
		"aud_1__audience_tags": []string{"old-tag"},
	})
	_ = forms.Save(ctx, "rsvp", ProcessorSettings{
		AudienceIDKey:          "aud_2",
		"aud_2__audience_tags": []string{"rsvp"},
	})
	_ = forms.Save(ctx, "survey", ProcessorSettings{
		AudienceIDKey:          "aud_2",
		"aud_2__audience_tags": []string{"survey"},
	})
	svc := readyService(t, client, WithFormConfigStore(forms))

	if _, err := svc.UpdateAudienceTags(ctx, ""); err != nil {
		t.Fatalf("update audience tags: %v", err)
	}
	settings, _ := svc.GetModuleSettings(ctx)
	if len(settings.LocalAudienceTags) != 3 {
		t.Fatalf("expected three local tags, got %#v", settings.LocalAudienceTags)
	}

	_ = forms.Save(ctx, "newsletter", ProcessorSettings{
		AudienceIDKey:          "aud_1",
		"aud_1__audience_tags": []string{"fresh"},
	})
	_ = forms.Save(ctx, "survey", ProcessorSettings{AudienceIDKey: "aud_2"})

	if err := svc.HandleMaintenanceJob(ctx, MaintenanceJob("aud_1")); err != nil {
		t.Fatalf("handle maintenance job: %v", err)
	}
	settings, _ = svc.GetModuleSettings(ctx)
	if len(settings.LocalAudienceTags) != 2 || settings.LocalAudienceTags[0] != "fresh" || settings.LocalAudienceTags[1] != "rsvp" {
		t.Fatalf("expected unused tags to be purged, got %#v", settings.LocalAudienceTags)
	}
}

func TestExecuteMaintenance_EnforcesActivityRetention(t *testing.T) {
	ctx := context.Background()
	client := newStubMailchimp()
	cfg := DefaultConfig()
	cfg.Activity.RowCap = 1
	svc, err := NewService(cfg, WithMailchimpClientFactory(func(string) (MailchimpAPI, error) {
		return client, nil
	}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	key := "abc123-us6"
	ready := true
	if _, err := svc.SaveModuleSettings(ctx, ModuleSettingsPatch{APIKey: &key, APIReady: &ready}); err != nil {
		t.Fatalf("save module settings: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := svc.UpdateAudienceTags(ctx, ""); err != nil {
			t.Fatalf("update audience tags: %v", err)
		}
	}

	if err := svc.ExecuteMaintenance(ctx); err != nil {
		t.Fatalf("execute maintenance: %v", err)
	}
	page, _ := svc.ListActivity(ctx, ActivityFilter{})
	if page.Total != 1 {
		t.Fatalf("expected activity capped at one entry, got %d", page.Total)
	}
}
