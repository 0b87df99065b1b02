package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

type testStatusError struct {
	status int
}

func (e testStatusError) Error() string {
	return fmt.Sprintf("mailchimp: request failed with status %d", e.status)
}

func (e testStatusError) HTTPStatus() int {
	return e.status
}

type subscribeCall struct {
	audienceID string
	upsert     bool
	payload    MemberPayload
}

type stubMailchimp struct {
	mu sync.Mutex

	audiences   []Audience
	mergeFields map[string][]MergeField
	tags        map[string][]Segment
	categories  map[string][]InterestCategory

	audiencesErr  error
	metadataErr   error
	categoriesErr error
	subscribeErr  error

	calls      map[string]int
	subscribed []subscribeCall
}

func newStubMailchimp() *stubMailchimp {
	return &stubMailchimp{
		mergeFields: map[string][]MergeField{},
		tags:        map[string][]Segment{},
		categories:  map[string][]InterestCategory{},
		calls:       map[string]int{},
	}
}

func (s *stubMailchimp) count(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[name]++
}

func (s *stubMailchimp) callCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *stubMailchimp) GetAudiences(context.Context) ([]Audience, error) {
	s.count("audiences")
	if s.audiencesErr != nil {
		return nil, s.audiencesErr
	}
	return append([]Audience(nil), s.audiences...), nil
}

func (s *stubMailchimp) GetMergeFields(_ context.Context, audienceID string) ([]MergeField, error) {
	s.count("merge_fields")
	if s.metadataErr != nil {
		return nil, s.metadataErr
	}
	return append([]MergeField(nil), s.mergeFields[audienceID]...), nil
}

func (s *stubMailchimp) GetTags(_ context.Context, audienceID string) ([]Segment, error) {
	s.count("tags")
	if s.metadataErr != nil {
		return nil, s.metadataErr
	}
	return append([]Segment(nil), s.tags[audienceID]...), nil
}

func (s *stubMailchimp) GetInterestCategories(_ context.Context, audienceID string) ([]InterestCategory, error) {
	s.count("interest_categories")
	if s.categoriesErr != nil {
		return nil, s.categoriesErr
	}
	return append([]InterestCategory(nil), s.categories[audienceID]...), nil
}

func (s *stubMailchimp) Subscribe(_ context.Context, audienceID string, payload MemberPayload) (Member, error) {
	return s.recordSubscribe(audienceID, false, payload)
}

func (s *stubMailchimp) SubscribeOrUpdate(_ context.Context, audienceID string, payload MemberPayload) (Member, error) {
	return s.recordSubscribe(audienceID, true, payload)
}

func (s *stubMailchimp) recordSubscribe(audienceID string, upsert bool, payload MemberPayload) (Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if upsert {
		s.calls["subscribe_or_update"]++
	} else {
		s.calls["subscribe"]++
	}
	if s.subscribeErr != nil {
		return Member{}, s.subscribeErr
	}
	s.subscribed = append(s.subscribed, subscribeCall{audienceID: audienceID, upsert: upsert, payload: payload})
	return Member{
		ID:           "member_1",
		EmailAddress: payload.EmailAddress,
		Status:       string(payload.Status),
		ListID:       audienceID,
	}, nil
}

func (s *stubMailchimp) subscriptions() []subscribeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]subscribeCall(nil), s.subscribed...)
}

var _ MailchimpAPI = (*stubMailchimp)(nil)

type stubPageResolver struct {
	titles map[string]string
}

func (r stubPageResolver) PageTitle(_ context.Context, reference string) (string, error) {
	title, ok := r.titles[reference]
	if !ok {
		return "", fmt.Errorf("page %s not found", reference)
	}
	return title, nil
}

type recordingEnqueuer struct {
	mu       sync.Mutex
	messages []*JobExecutionMessage
	err      error
}

func (e *recordingEnqueuer) Enqueue(_ context.Context, msg *JobExecutionMessage) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.messages = append(e.messages, msg)
	return nil
}

func testForm() Form {
	return Form{
		Name: "newsletter",
		Fields: []FormField{
			{Name: "email", Label: "Email", Type: FieldTypeEmail},
			{Name: "first_name", Label: "First name", Type: FieldTypeText},
			{Name: "birthday", Label: "Birthday", Type: FieldTypeDatetime},
			{Name: "source_page", Label: "Source page", Type: FieldTypePage},
			{Name: "topics", Label: "Topics", Type: FieldTypeCheckboxes},
			{Name: "opt_in", Label: "Opt in", Type: FieldTypeCheckbox},
			{Name: "street", Label: "Street", Type: FieldTypeText},
			{Name: "city", Label: "City", Type: FieldTypeText},
			{Name: "language", Label: "Language", Type: FieldTypeSelect},
			{Name: "resume", Label: "Resume", Type: FieldTypeFormBuilderFile},
		},
	}
}

func testSettings() ProcessorSettings {
	return ProcessorSettings{
		AudienceIDKey:              "aud_1",
		"aud_1__email_address":     "email",
		"aud_1_merge_tag__FNAME":   "first_name",
		"aud_1__audience_tags":     []string{"web", "newsletter"},
		"aud_1__subscriber_status": "subscribed",
	}
}

func readyService(t *testing.T, client *stubMailchimp, opts ...Option) *Service {
	t.Helper()
	base := []Option{
		WithMailchimpClientFactory(func(string) (MailchimpAPI, error) {
			return client, nil
		}),
	}
	svc, err := NewService(DefaultConfig(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	apiKey := "abc123-us6"
	ready := true
	if _, err := svc.SaveModuleSettings(context.Background(), ModuleSettingsPatch{
		APIKey:   &apiKey,
		APIReady: &ready,
	}); err != nil {
		t.Fatalf("save module settings: %v", err)
	}
	return svc
}
