package core

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

type ConfigInputKind string

const (
	ConfigInputMarkup      ConfigInputKind = "markup"
	ConfigInputSelect      ConfigInputKind = "select"
	ConfigInputMultiSelect ConfigInputKind = "multi_select"
	ConfigInputCheckbox    ConfigInputKind = "checkbox"
	ConfigInputFieldset    ConfigInputKind = "fieldset"
	ConfigInputHidden      ConfigInputKind = "hidden"
	ConfigInputSpacer      ConfigInputKind = "spacer"
)

const (
	columnThird = 100.0 / 3
	columnHalf  = 50.0
)

// Messages shown by the configuration builder.
const (
	NoticeAPINotReady     = "Add a valid Mailchimp API key on the FormBuilderProcessorMailchimp module configuration page to get started"
	noteNoAudiences       = "At least one Audience must be created in Mailchimp to receive submissions"
	noteSelectAudience    = "Select a Mailchimp audience, save, then return here to configure"
	noteOptInValues       = "The checked value must be one of: true, 'true', '1', 1, 'on', or 'yes'"
	noteOptInNoCheckboxes = "Add one or more checkbox fields to define an opt-in checkbox"
	noteRequiredByMC      = "Required by Mailchimp"
	noteVIPLimit          = "5000 VIP subscriber limit per account. Overage may cause unexpected behavior. [Read more here](https://mailchimp.com/help/designate-and-send-to-vip-contacts/)."
	noteLanguageField     = "Ensure this field provides a language code Mailchimp recognizes. Blank and incorrect language codes will be ignored."
	descAddressLimit      = "Address fields are limited to 45 characters."
)

const usageNotes = `Mailchimp Audience
The Audience (aka List) is the destination for the entries sent from this form.

Audience Tags
Audience tags are configured in Mailchimp and can assist with segmenting incoming entries. Choose one or more tags to further organize information received by Mailchimp from form submissions.

Opt-in Checkbox Field
Specify a checkbox to let users opt-in to email communications, optional.

Mailchimp Fields
Choose a form field to associate with a Mailchimp field. Selections may be left blank if submission to Mailchimp is not desired. Fields that are required in Mailchimp are reflected in the fields below. Notes below fields describe formatting, expected values and maximum length where Mailchimp provides them.

Addresses are configured as groups of fields. If an address is required in Mailchimp, the fields for that address are marked as required below.

It is not possible to process image/file upload fields.

NOTE: If merge tags are changed in Mailchimp their corresponding field associations must be updated here.

Mailchimp Groups/Interests
Group fields may be dropdowns, checkboxes or radio buttons. Ensure that options in your form fields match the interest names noted below each group.

Test Your Form Configuration
Always test your Mailchimp integrations.`

type ConfigOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// ConfigInput is one UI-agnostic configuration control. Fieldsets carry their
// controls in Children.
type ConfigInput struct {
	Name        string          `json:"name,omitempty"`
	Kind        ConfigInputKind `json:"kind"`
	Label       string          `json:"label,omitempty"`
	Description string          `json:"description,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	Required    bool            `json:"required,omitempty"`
	ShowIf      string          `json:"show_if,omitempty"`
	RequiredIf  string          `json:"required_if,omitempty"`
	Value       any             `json:"value,omitempty"`
	Options     []ConfigOption  `json:"options,omitempty"`
	ColumnWidth float64         `json:"column_width,omitempty"`
	Hidden      bool            `json:"hidden,omitempty"`
	Children    []ConfigInput   `json:"children,omitempty"`
}

type ConfigSection struct {
	Name        string        `json:"name"`
	Label       string        `json:"label"`
	Description string        `json:"description,omitempty"`
	Collapsed   bool          `json:"collapsed,omitempty"`
	Inputs      []ConfigInput `json:"inputs"`
}

type ConfigurationForm struct {
	Ready    bool            `json:"ready"`
	Notice   string          `json:"notice,omitempty"`
	Errors   []string        `json:"errors,omitempty"`
	Sections []ConfigSection `json:"sections"`
}

// Values collects the current value of every named input, including hidden
// internal inputs such as the date formats.
func (f ConfigurationForm) Values() ProcessorSettings {
	out := ProcessorSettings{}
	for _, section := range f.Sections {
		collectInputValues(section.Inputs, out)
	}
	return out
}

func collectInputValues(inputs []ConfigInput, out ProcessorSettings) {
	for _, input := range inputs {
		if len(input.Children) > 0 {
			collectInputValues(input.Children, out)
		}
		if input.Name == "" || input.Value == nil {
			continue
		}
		out[input.Name] = input.Value
	}
}

// AudienceMetadata is the remote data the builder renders options from.
type AudienceMetadata struct {
	Audiences          []Audience
	MergeFields        []MergeField
	Tags               []Segment
	InterestCategories []InterestCategory
}

type configurationBuilder struct {
	form      Form
	settings  ProcessorSettings
	fields    FieldConfig
	module    ModuleSettings
	metadata  AudienceMetadata
	formInput []ConfigOption
}

func notReadyConfiguration() ConfigurationForm {
	return ConfigurationForm{
		Ready:  false,
		Notice: NoticeAPINotReady,
		Sections: []ConfigSection{{
			Name:   "mailchimp_not_ready",
			Label:  "Mailchimp",
			Inputs: []ConfigInput{{Kind: ConfigInputMarkup, Value: NoticeAPINotReady}},
		}},
	}
}

// BuildConfiguration renders the processor configuration tree for a form.
func BuildConfiguration(form Form, settings ProcessorSettings, module ModuleSettings, metadata AudienceMetadata) ConfigurationForm {
	if !module.APIReady {
		return notReadyConfiguration()
	}
	b := configurationBuilder{
		form:      form,
		settings:  settings,
		fields:    settings.Fields(),
		module:    module,
		metadata:  metadata,
		formInput: FormFieldOptions(form),
	}

	out := ConfigurationForm{Ready: true}
	out.Sections = append(out.Sections, ConfigSection{
		Name:      "usage",
		Label:     "How to configure this form for use with Mailchimp",
		Collapsed: true,
		Inputs:    []ConfigInput{{Kind: ConfigInputMarkup, Value: usageNotes}},
	})

	integration := ConfigSection{
		Name:        "integration",
		Label:       "Mailchimp integration",
		Description: "Configuration details for where subscriptions will be submitted to and processing options",
	}
	integration.Inputs = append(integration.Inputs, b.audienceSelect())
	if b.fields.AudienceID() == "" {
		out.Sections = append(out.Sections, integration)
		return out
	}
	integration.Inputs = append(integration.Inputs, b.integrationInputs()...)
	out.Sections = append(out.Sections,
		integration,
		b.includedFieldsSection(),
		b.fieldAssociationSection(),
		ConfigSection{
			Name:  "internal",
			Label: "Internal",
			Inputs: []ConfigInput{{
				Name:        b.fields.DateFormats().Name,
				Kind:        ConfigInputHidden,
				Label:       "Mailchimp merge field date formats",
				Description: "For internal use only",
				Value:       DateFormatsFromMergeFields(metadata.MergeFields),
				Hidden:      true,
			}},
		},
	)
	return out
}

func (b configurationBuilder) audienceSelect() ConfigInput {
	input := ConfigInput{
		Name:        AudienceIDKey,
		Kind:        ConfigInputSelect,
		Label:       "Mailchimp audience",
		Description: "Choose the Audience (list) subscribers will be added to",
		Required:    true,
		ColumnWidth: columnThird,
		Value:       nonEmptyValue(b.fields.AudienceID()),
	}
	for _, audience := range b.metadata.Audiences {
		input.Options = append(input.Options, ConfigOption{Value: audience.ID, Label: audience.Name})
	}
	if len(b.metadata.Audiences) == 0 {
		input.Required = false
		input.Notes = noteNoAudiences
	}
	if b.fields.AudienceID() == "" {
		input.Notes = noteSelectAudience
	}
	return input
}

func (b configurationBuilder) integrationInputs() []ConfigInput {
	audienceSelected := AudienceIDKey + "!=''"

	tagNames := make([]string, 0, len(b.metadata.Tags)+len(b.module.LocalAudienceTags))
	for _, tag := range b.metadata.Tags {
		tagNames = append(tagNames, tag.Name)
	}
	tagNames = append(tagNames, b.module.LocalAudienceTags...)
	tagNames = append(tagNames, b.fields.AudienceTags().Strings()...)
	tags := ConfigInput{
		Name:        b.fields.AudienceTags().Name,
		Kind:        ConfigInputMultiSelect,
		Label:       "Audience tags",
		Description: "Optional Mailchimp tags assigned to submissions from this form",
		ShowIf:      audienceSelected,
		ColumnWidth: columnThird,
		Options:     labelledOptions(uniqueStrings(tagNames)),
	}
	if selected := b.fields.AudienceTags().Strings(); len(selected) > 0 {
		tags.Value = selected
	}

	optIn := ConfigInput{
		Name:        b.fields.OptInCheckbox().Name,
		Kind:        ConfigInputSelect,
		Label:       "Opt-in checkbox field",
		Description: "Leave blank to send all submissions to Mailchimp",
		ShowIf:      audienceSelected,
		ColumnWidth: columnThird,
		Value:       nonEmptyValue(b.fields.OptInCheckbox().String()),
		Notes:       noteOptInValues,
	}
	checkboxes := b.form.FieldsOfType(FieldTypeCheckbox)
	for _, field := range checkboxes {
		optIn.Options = append(optIn.Options, ConfigOption{Value: field.Name, Label: field.Label})
	}
	if len(checkboxes) == 0 {
		optIn.Notes = noteOptInNoCheckboxes
	}

	statusOptions := []ConfigOption{
		{Value: string(SubscriberStatusSubscribed), Label: "Subscribed"},
		{Value: string(SubscriberStatusPending), Label: "Pending (double opt-in)"},
		{Value: string(SubscriberStatusUnsubscribed), Label: "Unsubscribed"},
	}
	actionName := b.fields.SubscriptionAction().Name
	addUpdate := fmt.Sprintf("%s=%s", actionName, SubscriptionActionAddUpdate)
	languageName := b.fields.SubscriberLanguage().Name

	return []ConfigInput{
		tags,
		optIn,
		{
			Name:        b.fields.MarkVIP().Name,
			Kind:        ConfigInputCheckbox,
			Label:       "VIP subscriptions",
			Description: "Mark subscribers as VIP",
			Notes:       noteVIPLimit,
			Value:       b.fields.MarkVIP().Bool(),
			ColumnWidth: columnHalf,
		},
		{
			Name:        b.fields.CollectIP().Name,
			Kind:        ConfigInputCheckbox,
			Label:       "Subscriber IP address",
			Description: "Capture IP address",
			Value:       b.fields.CollectIP().Bool(),
			ColumnWidth: columnHalf,
		},
		{
			Name:        actionName,
			Kind:        ConfigInputSelect,
			Label:       "Subscription action",
			Required:    true,
			ColumnWidth: columnThird,
			Value:       string(b.fields.SubscriptionActionValue()),
			Options: []ConfigOption{
				{Value: string(SubscriptionActionAdd), Label: "Add new subscribers only"},
				{Value: string(SubscriptionActionAddUpdate), Label: "Add new subscribers, update if already subscribed"},
			},
		},
		{
			Name:        b.fields.SubscriberStatus().Name,
			Kind:        ConfigInputSelect,
			Label:       "New subscriber status",
			Required:    true,
			ColumnWidth: columnThird,
			Value:       string(b.fields.SubscriberStatusValue()),
			Options:     statusOptions,
		},
		{
			Name:        b.fields.SubscriberUpdateStatus().Name,
			Kind:        ConfigInputSelect,
			Label:       "Existing subscriber status",
			Required:    true,
			ShowIf:      addUpdate,
			RequiredIf:  addUpdate,
			ColumnWidth: columnThird,
			Value:       nonEmptyValue(string(b.fields.SubscriberUpdateStatusValue())),
			Options:     statusOptions,
		},
		{
			Name:        languageName,
			Kind:        ConfigInputSelect,
			Label:       "Include subscriber language",
			Required:    true,
			ColumnWidth: columnThird,
			Value:       string(b.fields.LanguageModeValue()),
			Options: []ConfigOption{
				{Value: string(LanguageModeOmit), Label: "Do not include in submission"},
				{Value: string(LanguageModePreSelect), Label: "Pre-select a language"},
				{Value: string(LanguageModeFormField), Label: "Choose a field"},
			},
		},
		{
			Name:        b.fields.SubscriberLanguagePreset().Name,
			Kind:        ConfigInputSelect,
			Label:       "Subscriber language",
			Required:    true,
			ShowIf:      fmt.Sprintf("%s=%s", languageName, LanguageModePreSelect),
			RequiredIf:  fmt.Sprintf("%s=%s", languageName, LanguageModePreSelect),
			ColumnWidth: columnThird,
			Value:       nonEmptyValue(b.fields.SubscriberLanguagePreset().String()),
			Options:     SubscriberLanguages(),
		},
		b.formFieldSelect(b.fields.SubscriberLanguageField().Name, "Subscriber language field", ConfigInput{
			Required:    true,
			ShowIf:      fmt.Sprintf("%s=%s", languageName, LanguageModeFormField),
			RequiredIf:  fmt.Sprintf("%s=%s", languageName, LanguageModeFormField),
			Notes:       noteLanguageField,
			ColumnWidth: columnThird,
		}),
	}
}

func (b configurationBuilder) includedFieldsSection() ConfigSection {
	section := ConfigSection{
		Name:        "included_fields",
		Label:       "Mailchimp fields to submit",
		Description: "Select the fields that form data should be sent to and then choose which form field value should be submitted below",
	}
	for _, mergeField := range b.metadata.MergeFields {
		if mergeField.Type == MergeFieldTypeAddress {
			continue
		}
		section.Inputs = append(section.Inputs, ConfigInput{
			Name:        b.fields.FieldIncluded(mergeField.Tag).Name,
			Kind:        ConfigInputCheckbox,
			Label:       mergeField.Name,
			Required:    mergeField.Required,
			Value:       mergeField.Required || b.fields.Included(mergeField.Tag),
			ColumnWidth: columnThird,
		})
	}
	for _, category := range b.metadata.InterestCategories {
		section.Inputs = append(section.Inputs, ConfigInput{
			Name:        b.fields.FieldIncluded(category.ID).Name,
			Kind:        ConfigInputCheckbox,
			Label:       category.Title,
			Value:       b.fields.Included(category.ID),
			ColumnWidth: columnThird,
		})
	}
	return section
}

func (b configurationBuilder) fieldAssociationSection() ConfigSection {
	section := ConfigSection{
		Name:        "field_associations",
		Label:       "Mailchimp/form field associations",
		Description: "Choose a form field to associate with each Mailchimp field. Information provided by Mailchimp may be noted below fields.",
	}
	section.Inputs = append(section.Inputs, b.formFieldSelect(b.fields.EmailAddress().Name, "Email Address", ConfigInput{
		Required:    true,
		Notes:       noteRequiredByMC,
		Description: "Mailchimp merge tag: EMAIL",
		ColumnWidth: columnThird,
	}))

	added := 1
	for _, mergeField := range b.metadata.MergeFields {
		if mergeField.Type == MergeFieldTypeAddress {
			continue
		}
		included := fmt.Sprintf("%s=1", b.fields.FieldIncluded(mergeField.Tag).Name)
		section.Inputs = append(section.Inputs, b.formFieldSelect(b.fields.MergeTag(mergeField.Tag).Name, mergeField.Name, ConfigInput{
			Required:    mergeField.Required,
			Description: "Mailchimp merge tag: " + mergeField.Tag,
			Notes:       MergeFieldNotes(mergeField.Options),
			ShowIf:      included,
			RequiredIf:  included,
			ColumnWidth: columnThird,
		}))
		added++
	}
	for _, category := range b.metadata.InterestCategories {
		section.Inputs = append(section.Inputs, b.formFieldSelect(b.fields.InterestCategory(category.ID).Name, category.Title, ConfigInput{
			Description: "Interest list",
			Notes:       InterestCategoryNotes(category),
			ShowIf:      fmt.Sprintf("%s=1", b.fields.FieldIncluded(category.ID).Name),
			ColumnWidth: columnThird,
		}))
		added++
	}
	for filler := (3 - added%3) % 3; filler > 0; filler-- {
		section.Inputs = append(section.Inputs, ConfigInput{Kind: ConfigInputSpacer, ColumnWidth: columnThird, Hidden: true})
	}

	for _, mergeField := range b.metadata.MergeFields {
		if mergeField.Type != MergeFieldTypeAddress {
			continue
		}
		section.Inputs = append(section.Inputs, b.addressFieldset(mergeField))
	}
	return section
}

// Address part labels in display order. Parts marked required carry the
// Mailchimp requirement note.
var addressPartLabels = []struct {
	part  string
	label string
	noted bool
}{
	{part: "addr1", label: "Street Address", noted: true},
	{part: "addr2", label: "Address Line 2"},
	{part: "city", label: "City", noted: true},
	{part: "state", label: "State/Prov/Region", noted: true},
	{part: "zip", label: "Postal/Zip", noted: true},
	{part: "country", label: "Country"},
}

func (b configurationBuilder) addressFieldset(mergeField MergeField) ConfigInput {
	fieldset := ConfigInput{
		Kind:        ConfigInputFieldset,
		Label:       fmt.Sprintf("%s - %s", mergeField.Name, mergeField.Tag),
		Description: descAddressLimit,
		Notes:       MergeFieldNotes(mergeField.Options),
	}
	for _, part := range addressPartLabels {
		overrides := ConfigInput{ColumnWidth: columnThird}
		if part.part != "addr2" {
			overrides.Required = mergeField.Required
		}
		if part.noted {
			overrides.Notes = noteRequiredByMC
		}
		fieldset.Children = append(fieldset.Children,
			b.formFieldSelect(b.fields.AddressPart(mergeField.Tag, part.part).Name, part.label, overrides),
		)
	}
	return fieldset
}

// formFieldSelect builds a select over the form's fields. Presentation
// attributes are taken from overrides.
func (b configurationBuilder) formFieldSelect(name string, label string, overrides ConfigInput) ConfigInput {
	input := overrides
	input.Name = name
	input.Kind = ConfigInputSelect
	input.Label = label
	input.Options = append([]ConfigOption(nil), b.formInput...)
	input.Value = nonEmptyValue(b.settings.String(name))
	return input
}

// FormFieldOptions lists the form fields usable as Mailchimp sources. File
// upload fields are excluded.
func FormFieldOptions(form Form) []ConfigOption {
	out := make([]ConfigOption, 0, len(form.Fields))
	for _, field := range form.Fields {
		if field.Type == FieldTypeFormBuilderFile {
			continue
		}
		label := field.Label
		if strings.TrimSpace(label) == "" {
			label = field.Name
		}
		out = append(out, ConfigOption{Value: field.Name, Label: label})
	}
	return out
}

// MergeFieldNotes renders merge field options as "Name: value" pairs joined
// by ". ".
func MergeFieldNotes(options MergeFieldOptions) string {
	pairs := make([]string, 0, 5)
	add := func(name string, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		pairs = append(pairs, fmt.Sprintf("%s: %s", noteName(name), value))
	}
	if options.DefaultCountry != 0 {
		add("default_country", fmt.Sprint(options.DefaultCountry))
	}
	add("phone_format", options.PhoneFormat)
	add("date_format", options.DateFormat)
	add("choices", strings.Join(options.Choices, ", "))
	if options.Size != 0 {
		add("size", fmt.Sprint(options.Size))
	}
	return strings.Join(pairs, ". ")
}

func InterestCategoryNotes(category InterestCategory) string {
	names := make([]string, 0, len(category.Interests))
	for _, interest := range category.Interests {
		names = append(names, interest.Name)
	}
	return strings.Join([]string{
		"Type: " + category.Type,
		"Values: " + strings.Join(names, ", "),
	}, ". ")
}

func noteName(name string) string {
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	first, size := utf8.DecodeRuneInString(name)
	if first == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(first)) + name[size:]
}

// DateFormatsFromMergeFields returns the JSON object mapping date and birthday
// merge tags to their Mailchimp date format.
func DateFormatsFromMergeFields(fields []MergeField) string {
	formats := map[string]string{}
	for _, field := range fields {
		if field.Type != MergeFieldTypeDate && field.Type != MergeFieldTypeBirthday {
			continue
		}
		if format := strings.TrimSpace(field.Options.DateFormat); format != "" {
			formats[field.Tag] = format
		}
	}
	encoded, err := json.Marshal(formats)
	if err != nil {
		return "{}"
	}
	return string(encoded)
}

func labelledOptions(values []string) []ConfigOption {
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)
	out := make([]ConfigOption, 0, len(sorted))
	for _, value := range sorted {
		out = append(out, ConfigOption{Value: value, Label: value})
	}
	return out
}

func nonEmptyValue(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

// SubscriberLanguages lists the language codes Mailchimp accepts for members.
func SubscriberLanguages() []ConfigOption {
	return append([]ConfigOption(nil), subscriberLanguages...)
}

var subscriberLanguages = []ConfigOption{
	{Value: "ar", Label: "Arabic"},
	{Value: "af", Label: "Afrikaans"},
	{Value: "be", Label: "Belarusian"},
	{Value: "bg", Label: "Bulgarian"},
	{Value: "ca", Label: "Catalan"},
	{Value: "zh", Label: "Chinese"},
	{Value: "hr", Label: "Croatian"},
	{Value: "cs", Label: "Czech"},
	{Value: "da", Label: "Danish"},
	{Value: "nl", Label: "Dutch"},
	{Value: "en", Label: "English"},
	{Value: "et", Label: "Estonian"},
	{Value: "fa", Label: "Farsi"},
	{Value: "fi", Label: "Finnish"},
	{Value: "fr", Label: "French (France)"},
	{Value: "fr_CA", Label: "French (Canada)"},
	{Value: "de", Label: "German"},
	{Value: "el", Label: "Greek"},
	{Value: "he", Label: "Hebrew"},
	{Value: "hi", Label: "Hindi"},
	{Value: "hu", Label: "Hungarian"},
	{Value: "is", Label: "Icelandic"},
	{Value: "id", Label: "Indonesian"},
	{Value: "ga", Label: "Irish"},
	{Value: "it", Label: "Italian"},
	{Value: "ja", Label: "Japanese"},
	{Value: "km", Label: "Khmer"},
	{Value: "ko", Label: "Korean"},
	{Value: "lv", Label: "Latvian"},
	{Value: "lt", Label: "Lithuanian"},
	{Value: "mt", Label: "Maltese"},
	{Value: "ms", Label: "Malay"},
	{Value: "mk", Label: "Macedonian"},
	{Value: "no", Label: "Norwegian"},
	{Value: "pl", Label: "Polish"},
	{Value: "pt", Label: "Portuguese (Brazil)"},
	{Value: "pt_PT", Label: "Portuguese (Portugal)"},
	{Value: "ro", Label: "Romanian"},
	{Value: "ru", Label: "Russian"},
	{Value: "sr", Label: "Serbian"},
	{Value: "sk", Label: "Slovak"},
	{Value: "sl", Label: "Slovenian"},
	{Value: "es", Label: "Spanish (Mexico)"},
	{Value: "es_ES", Label: "Spanish (Spain)"},
	{Value: "sw", Label: "Swahili"},
	{Value: "sv", Label: "Swedish"},
	{Value: "ta", Label: "Tamil"},
	{Value: "th", Label: "Thai"},
	{Value: "tr", Label: "Turkish"},
	{Value: "uk", Label: "Ukrainian"},
	{Value: "vi", Label: "Vietnamese"},
}
