package devkit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-formchimp/core"
)

func ValidateTransportAdapterConformance(
	ctx context.Context,
	adapter core.TransportAdapter,
	request core.TransportRequest,
) error {
	if adapter == nil {
		return fmt.Errorf("devkit: transport adapter is required")
	}
	if strings.TrimSpace(adapter.Kind()) == "" {
		return fmt.Errorf("devkit: transport adapter kind is required")
	}
	_, err := adapter.Do(ctx, request)
	return err
}

// ValidateSettingsStoreConformance checks that module settings survive a save
// and load cycle with duplicate tags collapsed.
func ValidateSettingsStoreConformance(ctx context.Context, store core.SettingsStore) error {
	if store == nil {
		return fmt.Errorf("devkit: settings store is required")
	}
	if _, err := store.Load(ctx); err != nil {
		return fmt.Errorf("devkit: load empty settings: %w", err)
	}
	want := core.ModuleSettings{
		APIKey:            "0123456789abcdef-us6",
		APIReady:          true,
		LocalAudienceTags: []string{"web", "web", "events"},
	}
	if err := store.Save(ctx, want); err != nil {
		return fmt.Errorf("devkit: save settings: %w", err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("devkit: load settings: %w", err)
	}
	if got.APIKey != want.APIKey || got.APIReady != want.APIReady {
		return fmt.Errorf("devkit: settings mismatch: got %+v", got)
	}
	if len(got.LocalAudienceTags) != 2 {
		return fmt.Errorf("devkit: expected 2 unique local tags, got %v", got.LocalAudienceTags)
	}

	want.APIReady = false
	want.LocalAudienceTags = nil
	if err := store.Save(ctx, want); err != nil {
		return fmt.Errorf("devkit: overwrite settings: %w", err)
	}
	got, err = store.Load(ctx)
	if err != nil {
		return fmt.Errorf("devkit: reload settings: %w", err)
	}
	if got.APIReady || len(got.LocalAudienceTags) != 0 {
		return fmt.Errorf("devkit: expected overwrite to clear ready flag and tags, got %+v", got)
	}
	return nil
}

// ValidateFormConfigStoreConformance checks per-form isolation, value types
// used by processor settings and form listing.
func ValidateFormConfigStoreConformance(ctx context.Context, store core.FormConfigStore, formName string) error {
	if store == nil {
		return fmt.Errorf("devkit: form config store is required")
	}
	formName = strings.TrimSpace(formName)
	if formName == "" {
		return fmt.Errorf("devkit: form name is required")
	}
	empty, err := store.Load(ctx, formName+"_missing")
	if err != nil {
		return fmt.Errorf("devkit: load missing form: %w", err)
	}
	if len(empty) != 0 {
		return fmt.Errorf("devkit: expected empty settings for missing form, got %v", empty)
	}

	settings := core.ProcessorSettings{
		core.AudienceIDKey:          "aud_conformance",
		"aud_conformance__mark_vip": true,
		"aud_conformance__audience_tags": []string{
			"web",
			"events",
		},
		"aud_conformance_merge_tag__FNAME": "first_name",
	}
	if err := store.Save(ctx, formName, settings); err != nil {
		return fmt.Errorf("devkit: save form settings: %w", err)
	}
	got, err := store.Load(ctx, formName)
	if err != nil {
		return fmt.Errorf("devkit: load form settings: %w", err)
	}
	if got.AudienceID() != "aud_conformance" {
		return fmt.Errorf("devkit: audience mismatch: %q", got.AudienceID())
	}
	if !got.Bool("aud_conformance__mark_vip") {
		return fmt.Errorf("devkit: expected boolean setting to survive")
	}
	if tags := got.Strings("aud_conformance__audience_tags"); len(tags) != 2 || tags[0] != "web" {
		return fmt.Errorf("devkit: expected list setting to survive, got %v", tags)
	}

	forms, err := store.ListForms(ctx)
	if err != nil {
		return fmt.Errorf("devkit: list forms: %w", err)
	}
	for _, name := range forms {
		if name == formName {
			return nil
		}
	}
	return fmt.Errorf("devkit: saved form %q missing from %v", formName, forms)
}

// ValidateActivitySinkConformance records two entries and checks filtering
// and newest first ordering.
func ValidateActivitySinkConformance(ctx context.Context, sink core.ActivitySink, channel string) error {
	if sink == nil {
		return fmt.Errorf("devkit: activity sink is required")
	}
	now := time.Now().UTC().Truncate(time.Second)
	entries := []core.ActivityEntry{
		{
			Channel:   channel,
			Action:    core.ActionSubmissionProcessed,
			Object:    "member",
			FormName:  "conformance",
			Status:    core.ActivityStatusOK,
			Metadata:  map[string]any{"member_id": "m_1"},
			CreatedAt: now.Add(-time.Minute),
		},
		{
			Channel:   channel,
			Action:    core.ActionSubmissionFailed,
			Object:    "submission",
			FormName:  "conformance",
			Status:    core.ActivityStatusError,
			Message:   "Mailchimp rejected the member",
			CreatedAt: now,
		},
	}
	for _, entry := range entries {
		if err := sink.Record(ctx, entry); err != nil {
			return fmt.Errorf("devkit: record activity: %w", err)
		}
	}

	page, err := sink.List(ctx, core.ActivityFilter{Channel: channel, FormName: "conformance"})
	if err != nil {
		return fmt.Errorf("devkit: list activity: %w", err)
	}
	if page.Total != 2 || len(page.Items) != 2 {
		return fmt.Errorf("devkit: expected 2 entries, got %d", page.Total)
	}
	if page.Items[0].Action != core.ActionSubmissionFailed {
		return fmt.Errorf("devkit: expected newest entry first, got %q", page.Items[0].Action)
	}
	if strings.TrimSpace(page.Items[0].ID) == "" {
		return fmt.Errorf("devkit: expected entry id to be assigned")
	}

	page, err = sink.List(ctx, core.ActivityFilter{Channel: channel, Status: core.ActivityStatusError})
	if err != nil {
		return fmt.Errorf("devkit: list failed activity: %w", err)
	}
	if page.Total != 1 {
		return fmt.Errorf("devkit: expected 1 failed entry, got %d", page.Total)
	}
	return nil
}
