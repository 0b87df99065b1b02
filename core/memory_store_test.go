package core

import (
	"context"
	"testing"
	"time"
)

func TestMemorySettingsStore_RoundTripDeduplicatesTags(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySettingsStore()

	initial, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if initial.APIReady || initial.APIKey != "" || initial.LocalAudienceTags == nil {
		t.Fatalf("unexpected initial settings %#v", initial)
	}

	if err := store.Save(ctx, ModuleSettings{
		APIKey:            "abc123-us6",
		APIReady:          true,
		LocalAudienceTags: []string{"web", " web ", "", "vip"},
	}); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !loaded.APIReady || loaded.APIKey != "abc123-us6" {
		t.Fatalf("unexpected settings %#v", loaded)
	}
	if len(loaded.LocalAudienceTags) != 2 || loaded.LocalAudienceTags[0] != "web" || loaded.LocalAudienceTags[1] != "vip" {
		t.Fatalf("expected deduplicated tags, got %#v", loaded.LocalAudienceTags)
	}

	loaded.LocalAudienceTags[0] = "mutated"
	again, _ := store.Load(ctx)
	if again.LocalAudienceTags[0] != "web" {
		t.Fatalf("expected load to return a copy")
	}
}

func TestMemoryFormConfigStore_SaveLoadList(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryFormConfigStore()

	missing, err := store.Load(ctx, "unknown")
	if err != nil {
		t.Fatalf("load missing: %v", err)
	}
	if missing == nil || len(missing) != 0 {
		t.Fatalf("expected empty settings for unknown form, got %#v", missing)
	}

	if err := store.Save(ctx, "", ProcessorSettings{}); err == nil {
		t.Fatalf("expected form name error")
	}
	settings := testSettings()
	if err := store.Save(ctx, "newsletter", settings); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, "contact", ProcessorSettings{AudienceIDKey: "aud_2"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	settings[AudienceIDKey] = "mutated"
	loaded, err := store.Load(ctx, "newsletter")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.AudienceID() != "aud_1" {
		t.Fatalf("expected stored copy, got %q", loaded.AudienceID())
	}

	forms, err := store.ListForms(ctx)
	if err != nil {
		t.Fatalf("list forms: %v", err)
	}
	if len(forms) != 2 || forms[0] != "contact" || forms[1] != "newsletter" {
		t.Fatalf("expected sorted form names, got %#v", forms)
	}
}

func TestMemoryActivitySink_FiltersAndPaginatesNewestFirst(t *testing.T) {
	ctx := context.Background()
	sink := NewMemoryActivitySink()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		formName := "newsletter"
		if i%2 == 1 {
			formName = "contact"
		}
		if err := sink.Record(ctx, ActivityEntry{
			Channel:   DefaultActivityChannel,
			Action:    ActionSubmissionProcessed,
			FormName:  formName,
			Status:    ActivityStatusOK,
			Metadata:  map[string]any{"api_key": "abc123-us6"},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	page, err := sink.List(ctx, ActivityFilter{FormName: "newsletter", PerPage: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 3 || len(page.Items) != 2 || !page.HasNext {
		t.Fatalf("unexpected first page %#v", page)
	}
	if !page.Items[0].CreatedAt.Equal(base.Add(4 * time.Minute)) {
		t.Fatalf("expected newest entry first, got %s", page.Items[0].CreatedAt)
	}
	if page.Items[0].ID == "" {
		t.Fatalf("expected generated entry id")
	}
	if page.Items[0].Metadata["api_key"] != RedactedValue {
		t.Fatalf("expected redacted metadata, got %#v", page.Items[0].Metadata)
	}

	page, err = sink.List(ctx, ActivityFilter{FormName: "newsletter", Page: 2, PerPage: 2})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(page.Items) != 1 || page.HasNext {
		t.Fatalf("unexpected second page %#v", page)
	}

	from := base.Add(2 * time.Minute)
	page, _ = sink.List(ctx, ActivityFilter{From: &from})
	if page.Total != 3 {
		t.Fatalf("expected 3 entries from %s, got %d", from, page.Total)
	}
}

func TestMemoryActivitySink_PruneAppliesTTLAndRowCap(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sink := NewMemoryActivitySink()
	sink.now = func() time.Time { return now }

	ages := []time.Duration{72 * time.Hour, 30 * time.Hour, 3 * time.Hour, 2 * time.Hour, time.Hour}
	for _, age := range ages {
		if err := sink.Record(ctx, ActivityEntry{Action: ActionSubmissionProcessed, CreatedAt: now.Add(-age)}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	deleted, err := sink.Prune(ctx, ActivityRetentionPolicy{TTL: 24 * time.Hour, RowCap: 2})
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("expected 3 deleted entries, got %d", deleted)
	}
	page, _ := sink.List(ctx, ActivityFilter{})
	if page.Total != 2 {
		t.Fatalf("expected 2 remaining entries, got %d", page.Total)
	}
	if !page.Items[1].CreatedAt.Equal(now.Add(-2 * time.Hour)) {
		t.Fatalf("expected the newest rows to survive, got %s", page.Items[1].CreatedAt)
	}
}
