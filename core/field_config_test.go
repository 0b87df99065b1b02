package core

import "testing"

func TestFieldConfig_KeyScheme(t *testing.T) {
	fields := NewFieldConfig("aud_1", nil)

	cases := map[string]string{
		fields.MergeTag("FNAME").Name:             "aud_1_merge_tag__FNAME",
		fields.InterestCategory("cat_1").Name:     "aud_1_interest_category__cat_1",
		fields.FieldIncluded("FNAME").Name:        "aud_1_field_included__FNAME",
		fields.AddressPart("ADDRESS", "zip").Name: "aud_1_address_merge_tag-ADDRESS-zip",
		fields.DateFormats().Name:                 "aud_1__date_formats",
		fields.AudienceTags().Name:                "aud_1__audience_tags",
		fields.OptInCheckbox().Name:               "aud_1__form_opt_in_checkbox",
		fields.EmailAddress().Name:                "aud_1__email_address",
		fields.CollectIP().Name:                   "aud_1__collect_ip",
		fields.MarkVIP().Name:                     "aud_1__mark_vip",
		fields.SubscriptionAction().Name:          "aud_1__subscription_action",
		fields.SubscriberStatus().Name:            "aud_1__subscriber_status",
		fields.SubscriberUpdateStatus().Name:      "aud_1__subscriber_update_status",
		fields.SubscriberLanguage().Name:          "aud_1__subscriber_language",
		fields.SubscriberLanguagePreset().Name:    "aud_1__subscriber_language_preset",
		fields.SubscriberLanguageField().Name:     "aud_1__subscriber_language_field",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("expected key %q, got %q", want, got)
		}
	}
	if prefix := fields.MergeTag("FNAME").Prefix; prefix != "aud_1_merge_tag__" {
		t.Fatalf("unexpected merge tag prefix %q", prefix)
	}
}

func TestFieldConfig_CollectsConfiguredFamilies(t *testing.T) {
	settings := ProcessorSettings{
		AudienceIDKey:                           "aud_1",
		"aud_1_merge_tag__FNAME":                "first_name",
		"aud_1_merge_tag__LNAME":                "",
		"aud_2_merge_tag__OTHER":                "other",
		"aud_1_interest_category__cat_1":        "topics",
		"aud_1_address_merge_tag-ADDRESS-addr1": "street",
		"aud_1_address_merge_tag-ADDRESS-city":  "city",
		"aud_1_address_merge_tag-ADDRESS-bogus": "ignored",
		"aud_1_address_merge_tag-HOME-ADDR-zip": "zip",
	}
	fields := settings.Fields()

	tags := fields.MergeTagFields()
	if len(tags) != 1 || tags["FNAME"] != "first_name" {
		t.Fatalf("expected only configured merge tags of the audience, got %#v", tags)
	}
	categories := fields.InterestCategoryFields()
	if len(categories) != 1 || categories["cat_1"] != "topics" {
		t.Fatalf("unexpected interest categories %#v", categories)
	}
	addresses := fields.AddressFields()
	if len(addresses["ADDRESS"]) != 2 || addresses["ADDRESS"]["addr1"] != "street" || addresses["ADDRESS"]["city"] != "city" {
		t.Fatalf("unexpected address parts %#v", addresses["ADDRESS"])
	}
	if addresses["HOME-ADDR"]["zip"] != "zip" {
		t.Fatalf("expected merge tags containing dashes to split on the last dash, got %#v", addresses)
	}
}

func TestFieldConfig_IncludedDefaultsToTrue(t *testing.T) {
	fields := ProcessorSettings{
		AudienceIDKey:                 "aud_1",
		"aud_1_field_included__LNAME": false,
		"aud_1_field_included__PHONE": "1",
	}.Fields()
	if !fields.Included("FNAME") {
		t.Fatalf("expected missing include flag to count as included")
	}
	if fields.Included("LNAME") {
		t.Fatalf("expected explicit false include flag to exclude")
	}
	if !fields.Included("PHONE") {
		t.Fatalf("expected truthy include flag to include")
	}
}

func TestFieldConfig_EnumDefaults(t *testing.T) {
	fields := ProcessorSettings{
		AudienceIDKey:                     "aud_1",
		"aud_1__subscription_action":      "bogus",
		"aud_1__subscriber_status":        "cleaned",
		"aud_1__subscriber_update_status": "pending",
		"aud_1__subscriber_language":      "form_field",
	}.Fields()
	if fields.SubscriptionActionValue() != SubscriptionActionAdd {
		t.Fatalf("expected add action fallback, got %q", fields.SubscriptionActionValue())
	}
	if fields.SubscriberStatusValue() != SubscriberStatusSubscribed {
		t.Fatalf("expected subscribed fallback for non-configurable status, got %q", fields.SubscriberStatusValue())
	}
	if fields.SubscriberUpdateStatusValue() != SubscriberStatusPending {
		t.Fatalf("expected pending update status, got %q", fields.SubscriberUpdateStatusValue())
	}
	if fields.LanguageModeValue() != LanguageModeFormField {
		t.Fatalf("expected form field language mode, got %q", fields.LanguageModeValue())
	}
	if (ProcessorSettings{}).Fields().LanguageModeValue() != LanguageModeOmit {
		t.Fatalf("expected omit language mode by default")
	}
}

func TestFieldConfig_DateFormatMap(t *testing.T) {
	fields := ProcessorSettings{
		AudienceIDKey:         "aud_1",
		"aud_1__date_formats": `{"BIRTHDAY":"MM/DD","JOINED":"DD/MM/YYYY"}`,
	}.Fields()
	formats, err := fields.DateFormatMap()
	if err != nil {
		t.Fatalf("date format map: %v", err)
	}
	if formats["BIRTHDAY"] != DateFormatMonthDay || formats["JOINED"] != DateFormatDayMonthYear {
		t.Fatalf("unexpected formats %#v", formats)
	}

	broken := ProcessorSettings{AudienceIDKey: "aud_1", "aud_1__date_formats": "{"}.Fields()
	if _, err := broken.DateFormatMap(); err == nil {
		t.Fatalf("expected invalid json error")
	}
}

func TestProcessorSettings_ValueHelpers(t *testing.T) {
	settings := ProcessorSettings{
		"list":   []any{"a", " ", 2},
		"flag":   "on",
		"number": 3,
		"joined": []string{"x", "y"},
	}
	if got := settings.Strings("list"); len(got) != 2 || got[0] != "a" || got[1] != "2" {
		t.Fatalf("unexpected strings %#v", got)
	}
	if !settings.Bool("flag") || settings.Bool("missing") {
		t.Fatalf("unexpected bool values")
	}
	if settings.String("number") != "3" {
		t.Fatalf("expected number rendered as text, got %q", settings.String("number"))
	}
	if settings.String("joined") != "x, y" {
		t.Fatalf("expected joined list, got %q", settings.String("joined"))
	}

	clone := settings.Clone()
	clone["joined"].([]string)[0] = "mutated"
	if settings.String("joined") != "x, y" {
		t.Fatalf("expected clone to copy slices")
	}
}
