package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type MemorySettingsStore struct {
	mu       sync.RWMutex
	settings ModuleSettings
}

func NewMemorySettingsStore() *MemorySettingsStore {
	return &MemorySettingsStore{settings: ModuleSettings{LocalAudienceTags: []string{}}}
}

func (s *MemorySettingsStore) Load(context.Context) (ModuleSettings, error) {
	if s == nil {
		return ModuleSettings{}, fmt.Errorf("core: settings store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.settings
	out.LocalAudienceTags = append([]string{}, s.settings.LocalAudienceTags...)
	return out, nil
}

func (s *MemorySettingsStore) Save(_ context.Context, settings ModuleSettings) error {
	if s == nil {
		return fmt.Errorf("core: settings store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	settings.LocalAudienceTags = uniqueStrings(settings.LocalAudienceTags)
	s.settings = settings
	return nil
}

type MemoryFormConfigStore struct {
	mu    sync.RWMutex
	forms map[string]ProcessorSettings
}

func NewMemoryFormConfigStore() *MemoryFormConfigStore {
	return &MemoryFormConfigStore{forms: map[string]ProcessorSettings{}}
}

func (s *MemoryFormConfigStore) Load(_ context.Context, formName string) (ProcessorSettings, error) {
	if s == nil {
		return nil, fmt.Errorf("core: form config store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	settings, ok := s.forms[strings.TrimSpace(formName)]
	if !ok {
		return ProcessorSettings{}, nil
	}
	return settings.Clone(), nil
}

func (s *MemoryFormConfigStore) Save(_ context.Context, formName string, settings ProcessorSettings) error {
	if s == nil {
		return fmt.Errorf("core: form config store is nil")
	}
	formName = strings.TrimSpace(formName)
	if formName == "" {
		return fmt.Errorf("core: form name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forms[formName] = settings.Clone()
	return nil
}

func (s *MemoryFormConfigStore) ListForms(context.Context) ([]string, error) {
	if s == nil {
		return nil, fmt.Errorf("core: form config store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.forms), nil
}

// MemoryActivitySink keeps activity entries in insertion order.
type MemoryActivitySink struct {
	mu      sync.RWMutex
	entries []ActivityEntry
	now     func() time.Time
}

func NewMemoryActivitySink() *MemoryActivitySink {
	return &MemoryActivitySink{
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (s *MemoryActivitySink) Record(_ context.Context, entry ActivityEntry) error {
	if s == nil {
		return fmt.Errorf("core: activity sink is nil")
	}
	if strings.TrimSpace(entry.ID) == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	entry.Metadata = RedactSensitiveMap(entry.Metadata)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *MemoryActivitySink) List(_ context.Context, filter ActivityFilter) (ActivityPage, error) {
	if s == nil {
		return ActivityPage{}, fmt.Errorf("core: activity sink is nil")
	}
	page, perPage := normalizeActivityPaging(filter.Page, filter.PerPage)

	s.mu.RLock()
	matched := make([]ActivityEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		if activityMatches(entry, filter) {
			matched = append(matched, entry)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return ActivityPage{
		Items:   append([]ActivityEntry(nil), matched[start:end]...),
		Page:    page,
		PerPage: perPage,
		Total:   total,
		HasNext: end < total,
	}, nil
}

func (s *MemoryActivitySink) Prune(_ context.Context, policy ActivityRetentionPolicy) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("core: activity sink is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.entries)
	kept := s.entries[:0]
	cutoff := time.Time{}
	if policy.TTL > 0 {
		cutoff = s.now().Add(-policy.TTL)
	}
	for _, entry := range s.entries {
		if !cutoff.IsZero() && entry.CreatedAt.Before(cutoff) {
			continue
		}
		kept = append(kept, entry)
	}
	if policy.RowCap > 0 && len(kept) > policy.RowCap {
		kept = kept[len(kept)-policy.RowCap:]
	}
	s.entries = append([]ActivityEntry(nil), kept...)
	return before - len(s.entries), nil
}

func activityMatches(entry ActivityEntry, filter ActivityFilter) bool {
	if filter.Channel != "" && entry.Channel != filter.Channel {
		return false
	}
	if filter.Action != "" && entry.Action != filter.Action {
		return false
	}
	if filter.FormName != "" && entry.FormName != filter.FormName {
		return false
	}
	if filter.AudienceID != "" && entry.AudienceID != filter.AudienceID {
		return false
	}
	if filter.Status != "" && entry.Status != filter.Status {
		return false
	}
	if filter.From != nil && entry.CreatedAt.Before(*filter.From) {
		return false
	}
	if filter.To != nil && entry.CreatedAt.After(*filter.To) {
		return false
	}
	return true
}

func normalizeActivityPaging(page int, perPage int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 50
	}
	if perPage > 500 {
		perPage = 500
	}
	return page, perPage
}

var (
	_ SettingsStore           = (*MemorySettingsStore)(nil)
	_ FormConfigStore         = (*MemoryFormConfigStore)(nil)
	_ ActivitySink            = (*MemoryActivitySink)(nil)
	_ ActivityRetentionPruner = (*MemoryActivitySink)(nil)
)
