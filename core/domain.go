package core

import (
	"encoding/json"
	"strings"
	"time"
)

// Form field types reported by the form builder.
const (
	FieldTypeText            = "Text"
	FieldTypeEmail           = "Email"
	FieldTypeTextarea        = "Textarea"
	FieldTypeCheckbox        = "Checkbox"
	FieldTypeCheckboxes      = "Checkboxes"
	FieldTypeSelect          = "Select"
	FieldTypeSelectMultiple  = "SelectMultiple"
	FieldTypeRadios          = "Radios"
	FieldTypePage            = "Page"
	FieldTypeDatetime        = "Datetime"
	FieldTypeHidden          = "Hidden"
	FieldTypeFormBuilderFile = "FormBuilderFile"
)

type FormField struct {
	Name  string
	Label string
	Type  string
}

type Form struct {
	Name   string
	Fields []FormField
}

// Field returns the form field with the given name.
func (f Form) Field(name string) (FormField, bool) {
	name = strings.TrimSpace(name)
	for _, field := range f.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return FormField{}, false
}

// FieldsOfType returns fields matching one of the given types, in form order.
func (f Form) FieldsOfType(types ...string) []FormField {
	out := make([]FormField, 0, len(f.Fields))
	for _, field := range f.Fields {
		for _, fieldType := range types {
			if field.Type == fieldType {
				out = append(out, field)
				break
			}
		}
	}
	return out
}

// Submission is one posted form entry. Values hold strings, string slices, or
// booleans keyed by form field name.
type Submission struct {
	FormName string
	Values   map[string]any
	RemoteIP string
}

type ModuleSettings struct {
	APIKey            string
	APIReady          bool
	LocalAudienceTags []string
}

// ModuleSettingsPatch carries a partial settings update. Nil members are left
// unchanged.
type ModuleSettingsPatch struct {
	APIKey            *string
	APIReady          *bool
	LocalAudienceTags *[]string
}

func (s ModuleSettings) Apply(patch ModuleSettingsPatch) ModuleSettings {
	out := s
	if patch.APIKey != nil {
		out.APIKey = strings.TrimSpace(*patch.APIKey)
	}
	if patch.APIReady != nil {
		out.APIReady = *patch.APIReady
	}
	if patch.LocalAudienceTags != nil {
		out.LocalAudienceTags = uniqueStrings(*patch.LocalAudienceTags)
	}
	return out
}

type SubscriptionAction string

const (
	SubscriptionActionAdd       SubscriptionAction = "add"
	SubscriptionActionAddUpdate SubscriptionAction = "add_update"
)

type SubscriberStatus string

const (
	SubscriberStatusSubscribed    SubscriberStatus = "subscribed"
	SubscriberStatusPending       SubscriberStatus = "pending"
	SubscriberStatusUnsubscribed  SubscriberStatus = "unsubscribed"
	SubscriberStatusCleaned       SubscriberStatus = "cleaned"
	SubscriberStatusTransactional SubscriberStatus = "transactional"
	SubscriberStatusArchived      SubscriberStatus = "archived"
)

// Configurable reports whether the status can be chosen for submissions.
func (s SubscriberStatus) Configurable() bool {
	switch s {
	case SubscriberStatusSubscribed, SubscriberStatusPending, SubscriberStatusUnsubscribed:
		return true
	default:
		return false
	}
}

type LanguageMode string

const (
	LanguageModeOmit      LanguageMode = "omit"
	LanguageModePreSelect LanguageMode = "pre_select"
	LanguageModeFormField LanguageMode = "form_field"
)

// Mailchimp date formats for date and birthday merge fields.
const (
	DateFormatMonthDay     = "MM/DD"
	DateFormatDayMonth     = "DD/MM"
	DateFormatMonthDayYear = "MM/DD/YYYY"
	DateFormatDayMonthYear = "DD/MM/YYYY"
)

// Mailchimp merge field types.
const (
	MergeFieldTypeText     = "text"
	MergeFieldTypeNumber   = "number"
	MergeFieldTypeAddress  = "address"
	MergeFieldTypePhone    = "phone"
	MergeFieldTypeDate     = "date"
	MergeFieldTypeURL      = "url"
	MergeFieldTypeImageURL = "imageurl"
	MergeFieldTypeRadio    = "radio"
	MergeFieldTypeDropdown = "dropdown"
	MergeFieldTypeBirthday = "birthday"
	MergeFieldTypeZip      = "zip"
	MergeFieldTypeEmail    = "email"
)

const SegmentTypeStatic = "static"

const (
	addressMaxLength          = 45
	defaultSubscriberStatus   = SubscriberStatusSubscribed
	defaultSubscriptionAction = SubscriptionActionAdd
)

type AudienceStats struct {
	MemberCount int `json:"member_count"`
}

type Audience struct {
	ID    string        `json:"id"`
	WebID int           `json:"web_id"`
	Name  string        `json:"name"`
	Stats AudienceStats `json:"stats"`
}

type MergeFieldOptions struct {
	DefaultCountry int      `json:"default_country,omitempty"`
	PhoneFormat    string   `json:"phone_format,omitempty"`
	DateFormat     string   `json:"date_format,omitempty"`
	Choices        []string `json:"choices,omitempty"`
	Size           int      `json:"size,omitempty"`
}

type MergeField struct {
	MergeID      int               `json:"merge_id"`
	Tag          string            `json:"tag"`
	Name         string            `json:"name"`
	Type         string            `json:"type"`
	Required     bool              `json:"required"`
	DefaultValue string            `json:"default_value"`
	Public       bool              `json:"public"`
	DisplayOrder int               `json:"display_order"`
	Options      MergeFieldOptions `json:"options"`
	HelpText     string            `json:"help_text"`
	ListID       string            `json:"list_id"`
}

// Segment is a Mailchimp audience segment. Tags are static segments.
type Segment struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	MemberCount int    `json:"member_count"`
	Type        string `json:"type"`
	ListID      string `json:"list_id"`
}

type Interest struct {
	ID              string `json:"id"`
	CategoryID      string `json:"category_id"`
	ListID          string `json:"list_id"`
	Name            string `json:"name"`
	SubscriberCount string `json:"subscriber_count"`
	DisplayOrder    int    `json:"display_order"`
}

type InterestCategory struct {
	ID           string     `json:"id"`
	ListID       string     `json:"list_id"`
	Title        string     `json:"title"`
	DisplayOrder int        `json:"display_order"`
	Type         string     `json:"type"`
	Interests    []Interest `json:"interests"`
}

// ResolveInterest matches a submitted value against the category interests by
// id first, then by case-insensitive name.
func (c InterestCategory) ResolveInterest(value string) (Interest, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Interest{}, false
	}
	for _, interest := range c.Interests {
		if interest.ID == value {
			return interest, true
		}
	}
	for _, interest := range c.Interests {
		if strings.EqualFold(strings.TrimSpace(interest.Name), value) {
			return interest, true
		}
	}
	return Interest{}, false
}

// Member is the subset of a Mailchimp list member returned by subscribe calls.
type Member struct {
	ID            string         `json:"id"`
	EmailAddress  string         `json:"email_address"`
	UniqueEmailID string         `json:"unique_email_id"`
	Status        string         `json:"status"`
	MergeFields   map[string]any `json:"merge_fields"`
	VIP           bool           `json:"vip"`
	IPSignup      string         `json:"ip_signup"`
	Language      string         `json:"language"`
	ListID        string         `json:"list_id"`
}

// MemberPayload is the request body for member create and upsert calls.
type MemberPayload struct {
	EmailAddress string
	Status       SubscriberStatus
	StatusIfNew  SubscriberStatus
	MergeFields  map[string]any
	Interests    map[string]bool
	Tags         []string
	IPSignup     string
	VIP          bool
	Language     string
}

// Body renders the payload with empty members dropped.
func (p MemberPayload) Body() map[string]any {
	body := map[string]any{}
	if email := strings.TrimSpace(p.EmailAddress); email != "" {
		body["email_address"] = email
	}
	if p.Status != "" {
		body["status"] = string(p.Status)
	}
	if p.StatusIfNew != "" {
		body["status_if_new"] = string(p.StatusIfNew)
	}
	if len(p.MergeFields) > 0 {
		body["merge_fields"] = copyAnyMap(p.MergeFields)
	}
	if len(p.Interests) > 0 {
		interests := make(map[string]bool, len(p.Interests))
		for key, value := range p.Interests {
			interests[key] = value
		}
		body["interests"] = interests
	}
	if len(p.Tags) > 0 {
		body["tags"] = append([]string(nil), p.Tags...)
	}
	if ip := strings.TrimSpace(p.IPSignup); ip != "" {
		body["ip_signup"] = ip
	}
	if p.VIP {
		body["vip"] = true
	}
	if language := strings.TrimSpace(p.Language); language != "" {
		body["language"] = language
	}
	return body
}

func (p MemberPayload) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Body())
}

type ActivityStatus string

const (
	ActivityStatusOK    ActivityStatus = "ok"
	ActivityStatusWarn  ActivityStatus = "warn"
	ActivityStatusError ActivityStatus = "error"
)

// Activity actions recorded on the activity channel.
const (
	ActionSubmissionProcessed = "submission.processed"
	ActionSubmissionSkipped   = "submission.skipped"
	ActionSubmissionFailed    = "submission.failed"
	ActionAPIKeyValidated     = "settings.api_key.validated"
	ActionConfigMetadataError = "configuration.metadata_failed"
	ActionAudienceTagsUpdated = "maintenance.audience_tags.updated"
)

type ActivityEntry struct {
	ID         string
	Channel    string
	Action     string
	Object     string
	FormName   string
	AudienceID string
	Actor      string
	Status     ActivityStatus
	Message    string
	Metadata   map[string]any
	CreatedAt  time.Time
}

type ActivityFilter struct {
	Channel    string
	Action     string
	FormName   string
	AudienceID string
	Status     ActivityStatus
	From       *time.Time
	To         *time.Time
	Page       int
	PerPage    int
}

type ActivityPage struct {
	Items      []ActivityEntry
	Page       int
	PerPage    int
	Total      int
	HasNext    bool
	NextCursor string
}

type ProcessStatus string

const (
	ProcessStatusSubmitted ProcessStatus = "submitted"
	ProcessStatusSkipped   ProcessStatus = "skipped"
	ProcessStatusFailed    ProcessStatus = "failed"
)

// Skip reasons reported by ProcessSubmission.
const (
	SkipReasonNoAudience    = "no_audience"
	SkipReasonNotReady      = "api_not_ready"
	SkipReasonNoMergeTags   = "no_merge_tags"
	SkipReasonOptInMissing  = "opt_in_missing"
	SkipReasonOptInDeclined = "opt_in_declined"
	SkipReasonEmailMissing  = "email_missing"
)

type ProcessSubmissionRequest struct {
	Form       Form
	Submission Submission
	// Settings overrides the stored processor configuration for the form.
	Settings ProcessorSettings
}

type ProcessResult struct {
	Status     ProcessStatus
	Reason     string
	AudienceID string
	Action     SubscriptionAction
	Payload    MemberPayload
	Member     Member
	Error      string
}

type BuildConfigurationRequest struct {
	Form     Form
	Settings ProcessorSettings
}

type APIKeyValidation struct {
	Ready      bool
	StatusCode int
	Message    string
}

type AudienceTagsResult struct {
	TagsInUse   []string
	RemoteTags  []string
	LocalTags   []string
	AudienceIDs []string
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func uniqueStrings(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
