package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Output layouts keyed by Mailchimp date format.
var mailchimpDateLayouts = map[string]string{
	DateFormatMonthDay:     "01/02",
	DateFormatDayMonth:     "02/01",
	DateFormatMonthDayYear: "01/02/2006",
	DateFormatDayMonthYear: "02/01/2006",
}

// Layouts accepted from Datetime form fields, tried in order.
var submittedDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006",
}

// IsSubmittable reports whether a submission qualifies for Mailchimp under the
// given processor settings.
func IsSubmittable(settings ProcessorSettings, values map[string]any) bool {
	ok, _ := submittable(settings, values)
	return ok
}

func submittable(settings ProcessorSettings, values map[string]any) (bool, string) {
	fields := settings.Fields()
	if len(fields.MergeTagFields()) == 0 {
		return false, SkipReasonNoMergeTags
	}
	optIn := fields.OptInCheckbox().String()
	if optIn == "" {
		return true, ""
	}
	value, ok := values[optIn]
	if !ok {
		return false, SkipReasonOptInMissing
	}
	if !truthy(value) {
		return false, SkipReasonOptInDeclined
	}
	return true, ""
}

// ConvertDate reformats a submitted date for the merge tag's configured
// Mailchimp date format.
func ConvertDate(tag string, raw string, formats map[string]string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	format := strings.TrimSpace(formats[tag])
	if format == "" {
		return "", fmt.Errorf("%w for %s", ErrDateFormatMissing, tag)
	}
	layout, ok := mailchimpDateLayouts[format]
	if !ok {
		return "", fmt.Errorf("core: unsupported mailchimp date format %q for %s", format, tag)
	}
	parsed, err := parseSubmittedDate(raw)
	if err != nil {
		return "", err
	}
	return parsed.Format(layout), nil
}

func parseSubmittedDate(raw string) (time.Time, error) {
	for _, layout := range submittedDateLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	if seconds, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(seconds, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("core: invalid date value %q", raw)
}

type MapperInput struct {
	Form       Form
	Settings   ProcessorSettings
	Submission Submission
	// InterestCategories is the audience metadata used to resolve selected
	// interest labels into interest ids.
	InterestCategories []InterestCategory
}

// SubmissionMapper assembles member payloads from submitted form values.
type SubmissionMapper struct {
	Pages PageResolver
}

func (m SubmissionMapper) BuildPayload(ctx context.Context, input MapperInput) (MemberPayload, error) {
	fields := input.Settings.Fields()
	values := input.Submission.Values
	if values == nil {
		values = map[string]any{}
	}

	email, _ := stringValue(values[fields.EmailAddress().String()])
	email = strings.TrimSpace(email)
	if email == "" {
		return MemberPayload{}, ErrEmailRequired
	}

	mergeFields, err := m.mergeFieldValues(ctx, input.Form, fields, values)
	if err != nil {
		return MemberPayload{}, err
	}
	for tag, address := range addressValues(fields, values) {
		mergeFields[tag] = address
	}

	payload := MemberPayload{
		EmailAddress: email,
		MergeFields:  mergeFields,
		Interests:    interestValues(fields, values, input.InterestCategories),
		Tags:         uniqueStrings(fields.AudienceTags().Strings()),
		VIP:          fields.MarkVIP().Bool(),
		Language:     languageValue(fields, values),
	}
	if fields.CollectIP().Bool() {
		payload.IPSignup = strings.TrimSpace(input.Submission.RemoteIP)
	}

	status := fields.SubscriberStatusValue()
	if fields.SubscriptionActionValue() == SubscriptionActionAddUpdate {
		payload.StatusIfNew = status
		payload.Status = fields.SubscriberUpdateStatusValue()
		if payload.Status == "" {
			payload.Status = status
		}
	} else {
		payload.Status = status
	}
	return payload, nil
}

func (m SubmissionMapper) mergeFieldValues(ctx context.Context, form Form, fields FieldConfig, values map[string]any) (map[string]any, error) {
	out := map[string]any{}
	tagFields := fields.MergeTagFields()
	if len(tagFields) == 0 {
		return out, nil
	}

	var formats map[string]string
	for _, tag := range sortedKeys(tagFields) {
		if !fields.Included(tag) {
			continue
		}
		field, ok := form.Field(tagFields[tag])
		if !ok {
			continue
		}
		raw, present := values[field.Name]
		if !present {
			continue
		}
		value, _ := stringValue(raw)
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}

		switch field.Type {
		case FieldTypePage:
			if m.Pages != nil {
				title, err := m.Pages.PageTitle(ctx, value)
				if err != nil {
					return nil, fmt.Errorf("core: resolve page for %s: %w", tag, err)
				}
				value = title
			}
		case FieldTypeDatetime:
			if formats == nil {
				loaded, err := fields.DateFormatMap()
				if err != nil {
					return nil, err
				}
				formats = loaded
			}
			converted, err := ConvertDate(tag, value, formats)
			if err != nil {
				return nil, err
			}
			value = converted
		}

		if value = strings.TrimSpace(value); value != "" {
			out[tag] = value
		}
	}
	return out, nil
}

func addressValues(fields FieldConfig, values map[string]any) map[string]map[string]any {
	out := map[string]map[string]any{}
	for tag, parts := range fields.AddressFields() {
		address := map[string]any{}
		for part, fieldName := range parts {
			raw, present := values[fieldName]
			if !present {
				continue
			}
			value, _ := stringValue(raw)
			value = truncateRunes(strings.TrimSpace(value), addressMaxLength)
			if value != "" {
				address[part] = value
			}
		}
		if len(address) > 0 {
			out[tag] = address
		}
	}
	return out
}

func interestValues(fields FieldConfig, values map[string]any, categories []InterestCategory) map[string]bool {
	out := map[string]bool{}
	for categoryID, fieldName := range fields.InterestCategoryFields() {
		if !fields.Included(categoryID) {
			continue
		}
		raw, present := values[fieldName]
		if !present {
			continue
		}
		selected := stringSlice(raw)
		category, known := findInterestCategory(categories, categoryID)
		for _, value := range selected {
			if !known {
				out[value] = true
				continue
			}
			if interest, ok := category.ResolveInterest(value); ok {
				out[interest.ID] = true
			}
		}
	}
	return out
}

func findInterestCategory(categories []InterestCategory, categoryID string) (InterestCategory, bool) {
	for _, category := range categories {
		if category.ID == categoryID {
			return category, true
		}
	}
	return InterestCategory{}, false
}

func languageValue(fields FieldConfig, values map[string]any) string {
	switch fields.LanguageModeValue() {
	case LanguageModePreSelect:
		return fields.SubscriberLanguagePreset().String()
	case LanguageModeFormField:
		fieldName := fields.SubscriberLanguageField().String()
		if fieldName == "" {
			return ""
		}
		value, _ := stringValue(values[fieldName])
		return strings.TrimSpace(value)
	default:
		return ""
	}
}
