package query

import (
	"strings"

	"github.com/goliatone/go-formchimp/core"
)

const (
	TypeGetModuleSettings      = "formchimp.query.settings.get"
	TypeGetFormConfiguration   = "formchimp.query.form_configuration.get"
	TypeBuildFormConfiguration = "formchimp.query.form_configuration.build"
	TypePreviewPayload         = "formchimp.query.submission.preview"
	TypeListActivity           = "formchimp.query.activity.list"
)

type GetModuleSettingsMessage struct{}

func (GetModuleSettingsMessage) Type() string { return TypeGetModuleSettings }

func (GetModuleSettingsMessage) Validate() error { return nil }

type GetFormConfigurationMessage struct {
	FormName string
}

func (GetFormConfigurationMessage) Type() string { return TypeGetFormConfiguration }

func (m GetFormConfigurationMessage) Validate() error {
	if strings.TrimSpace(m.FormName) == "" {
		return queryValidationError("form_name", "form name is required")
	}
	return nil
}

type BuildFormConfigurationMessage struct {
	Request core.BuildConfigurationRequest
}

func (BuildFormConfigurationMessage) Type() string { return TypeBuildFormConfiguration }

func (m BuildFormConfigurationMessage) Validate() error {
	if strings.TrimSpace(m.Request.Form.Name) == "" {
		return queryValidationError("form_name", "form name is required")
	}
	return nil
}

// PreviewPayloadMessage maps a submission without sending it to Mailchimp.
type PreviewPayloadMessage struct {
	Form       core.Form
	Settings   core.ProcessorSettings
	Submission core.Submission
}

func (PreviewPayloadMessage) Type() string { return TypePreviewPayload }

func (m PreviewPayloadMessage) Validate() error {
	if strings.TrimSpace(m.Form.Name) == "" {
		return queryValidationError("form_name", "form name is required")
	}
	if m.Settings.AudienceID() == "" {
		return queryValidationError(core.AudienceIDKey, "audience id is required")
	}
	return nil
}

type ListActivityMessage struct {
	Filter core.ActivityFilter
}

func (ListActivityMessage) Type() string { return TypeListActivity }

func (m ListActivityMessage) Validate() error {
	if m.Filter.Page < 0 {
		return queryValidationError("page", "page must be >= 0")
	}
	if m.Filter.PerPage < 0 {
		return queryValidationError("per_page", "per_page must be >= 0")
	}
	if m.Filter.From != nil && m.Filter.To != nil && m.Filter.To.Before(*m.Filter.From) {
		return queryValidationError("to", "to must not be before from")
	}
	return nil
}
