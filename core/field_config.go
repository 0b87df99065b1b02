package core

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// AudienceIDKey is the processor setting holding the selected audience.
const AudienceIDKey = "mailchimp_audience_id"

// Address components accepted by Mailchimp address merge fields, in display order.
var AddressParts = []string{"addr1", "addr2", "city", "state", "zip", "country"}

// ProcessorSettings is the persisted key/value configuration of one form's
// Mailchimp processor.
type ProcessorSettings map[string]any

func (s ProcessorSettings) AudienceID() string {
	return s.String(AudienceIDKey)
}

func (s ProcessorSettings) String(key string) string {
	if s == nil {
		return ""
	}
	value, _ := stringValue(s[key])
	return value
}

func (s ProcessorSettings) Bool(key string) bool {
	if s == nil {
		return false
	}
	return truthy(s[key])
}

func (s ProcessorSettings) Strings(key string) []string {
	if s == nil {
		return nil
	}
	return stringSlice(s[key])
}

func (s ProcessorSettings) Clone() ProcessorSettings {
	out := make(ProcessorSettings, len(s))
	for key, value := range s {
		switch typed := value.(type) {
		case []string:
			out[key] = append([]string(nil), typed...)
		case []any:
			out[key] = append([]any(nil), typed...)
		default:
			out[key] = value
		}
	}
	return out
}

// NonEmptyWithPrefix returns the string values of keys starting with prefix,
// skipping empty values.
func (s ProcessorSettings) NonEmptyWithPrefix(prefix string) map[string]string {
	out := map[string]string{}
	if prefix == "" {
		return out
	}
	for key, raw := range s {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		value, ok := stringValue(raw)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		out[key] = strings.TrimSpace(value)
	}
	return out
}

// Fields returns the key scheme bound to the selected audience.
func (s ProcessorSettings) Fields() FieldConfig {
	return NewFieldConfig(s.AudienceID(), s)
}

// ConfigEntry describes one configuration key. Prefix is only set for keyed
// families such as merge tags.
type ConfigEntry struct {
	Name   string
	Prefix string
	Value  any
}

func (e ConfigEntry) String() string {
	value, _ := stringValue(e.Value)
	return strings.TrimSpace(value)
}

func (e ConfigEntry) Bool() bool {
	return truthy(e.Value)
}

func (e ConfigEntry) Strings() []string {
	return stringSlice(e.Value)
}

type FieldConfig struct {
	audienceID string
	settings   ProcessorSettings
}

func NewFieldConfig(audienceID string, settings ProcessorSettings) FieldConfig {
	if settings == nil {
		settings = ProcessorSettings{}
	}
	return FieldConfig{audienceID: strings.TrimSpace(audienceID), settings: settings}
}

func (c FieldConfig) AudienceID() string {
	return c.audienceID
}

func (c FieldConfig) keyed(family string, identifier string) ConfigEntry {
	prefix := fmt.Sprintf("%s_%s__", c.audienceID, family)
	name := prefix + identifier
	return ConfigEntry{Name: name, Prefix: prefix, Value: c.settings[name]}
}

func (c FieldConfig) single(suffix string) ConfigEntry {
	name := fmt.Sprintf("%s__%s", c.audienceID, suffix)
	return ConfigEntry{Name: name, Value: c.settings[name]}
}

func (c FieldConfig) InterestCategory(categoryID string) ConfigEntry {
	return c.keyed("interest_category", categoryID)
}

func (c FieldConfig) MergeTag(tag string) ConfigEntry {
	return c.keyed("merge_tag", tag)
}

func (c FieldConfig) FieldIncluded(identifier string) ConfigEntry {
	return c.keyed("field_included", identifier)
}

// Included reports whether a merge tag or interest category is enabled. A
// missing include flag counts as enabled.
func (c FieldConfig) Included(identifier string) bool {
	entry := c.FieldIncluded(identifier)
	if _, ok := c.settings[entry.Name]; !ok {
		return true
	}
	return entry.Bool()
}

func (c FieldConfig) AddressPrefix() string {
	return fmt.Sprintf("%s_address_merge_tag-", c.audienceID)
}

func (c FieldConfig) AddressPart(tag string, part string) ConfigEntry {
	prefix := c.AddressPrefix()
	name := fmt.Sprintf("%s%s-%s", prefix, tag, part)
	return ConfigEntry{Name: name, Prefix: prefix, Value: c.settings[name]}
}

func (c FieldConfig) DateFormats() ConfigEntry        { return c.single("date_formats") }
func (c FieldConfig) AudienceTags() ConfigEntry       { return c.single("audience_tags") }
func (c FieldConfig) OptInCheckbox() ConfigEntry      { return c.single("form_opt_in_checkbox") }
func (c FieldConfig) EmailAddress() ConfigEntry       { return c.single("email_address") }
func (c FieldConfig) CollectIP() ConfigEntry          { return c.single("collect_ip") }
func (c FieldConfig) MarkVIP() ConfigEntry            { return c.single("mark_vip") }
func (c FieldConfig) SubscriptionAction() ConfigEntry { return c.single("subscription_action") }
func (c FieldConfig) SubscriberStatus() ConfigEntry   { return c.single("subscriber_status") }

func (c FieldConfig) SubscriberUpdateStatus() ConfigEntry {
	return c.single("subscriber_update_status")
}

func (c FieldConfig) SubscriberLanguage() ConfigEntry {
	return c.single("subscriber_language")
}

func (c FieldConfig) SubscriberLanguagePreset() ConfigEntry {
	return c.single("subscriber_language_preset")
}

func (c FieldConfig) SubscriberLanguageField() ConfigEntry {
	return c.single("subscriber_language_field")
}

// MergeTagFields maps merge tags to the form field names configured for them.
func (c FieldConfig) MergeTagFields() map[string]string {
	prefix := c.MergeTag("").Prefix
	out := map[string]string{}
	for key, fieldName := range c.settings.NonEmptyWithPrefix(prefix) {
		tag := strings.TrimPrefix(key, prefix)
		if tag == "" {
			continue
		}
		out[tag] = fieldName
	}
	return out
}

// InterestCategoryFields maps interest category ids to form field names.
func (c FieldConfig) InterestCategoryFields() map[string]string {
	prefix := c.InterestCategory("").Prefix
	out := map[string]string{}
	for key, fieldName := range c.settings.NonEmptyWithPrefix(prefix) {
		categoryID := strings.TrimPrefix(key, prefix)
		if categoryID == "" {
			continue
		}
		out[categoryID] = fieldName
	}
	return out
}

// AddressFields maps address merge tags to part names and their form fields.
func (c FieldConfig) AddressFields() map[string]map[string]string {
	prefix := c.AddressPrefix()
	out := map[string]map[string]string{}
	for key, fieldName := range c.settings.NonEmptyWithPrefix(prefix) {
		rest := strings.TrimPrefix(key, prefix)
		split := strings.LastIndex(rest, "-")
		if split <= 0 || split == len(rest)-1 {
			continue
		}
		tag, part := rest[:split], rest[split+1:]
		if !isAddressPart(part) {
			continue
		}
		if out[tag] == nil {
			out[tag] = map[string]string{}
		}
		out[tag][part] = fieldName
	}
	return out
}

func (c FieldConfig) SubscriptionActionValue() SubscriptionAction {
	switch SubscriptionAction(c.SubscriptionAction().String()) {
	case SubscriptionActionAddUpdate:
		return SubscriptionActionAddUpdate
	default:
		return defaultSubscriptionAction
	}
}

func (c FieldConfig) SubscriberStatusValue() SubscriberStatus {
	status := SubscriberStatus(c.SubscriberStatus().String())
	if status.Configurable() {
		return status
	}
	return defaultSubscriberStatus
}

// SubscriberUpdateStatusValue returns the configured status for existing
// members, or empty when none is set.
func (c FieldConfig) SubscriberUpdateStatusValue() SubscriberStatus {
	status := SubscriberStatus(c.SubscriberUpdateStatus().String())
	if status.Configurable() {
		return status
	}
	return ""
}

func (c FieldConfig) LanguageModeValue() LanguageMode {
	switch LanguageMode(c.SubscriberLanguage().String()) {
	case LanguageModePreSelect:
		return LanguageModePreSelect
	case LanguageModeFormField:
		return LanguageModeFormField
	default:
		return LanguageModeOmit
	}
}

// DateFormatMap decodes the stored merge tag to date format JSON object.
func (c FieldConfig) DateFormatMap() (map[string]string, error) {
	raw := c.DateFormats().String()
	if raw == "" {
		return map[string]string{}, nil
	}
	formats := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &formats); err != nil {
		return nil, fmt.Errorf("core: invalid date formats configuration: %w", err)
	}
	return formats, nil
}

func isAddressPart(part string) bool {
	for _, candidate := range AddressParts {
		if candidate == part {
			return true
		}
	}
	return false
}

func sortedKeys[V any](in map[string]V) []string {
	keys := make([]string, 0, len(in))
	for key := range in {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
