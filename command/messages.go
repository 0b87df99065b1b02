package command

import (
	"strings"

	"github.com/goliatone/go-formchimp/core"
)

const (
	TypeProcessSubmission     = "formchimp.command.submission.process"
	TypeSaveModuleSettings    = "formchimp.command.settings.save"
	TypeValidateAPIKey        = "formchimp.command.settings.validate_api_key"
	TypeSaveFormConfiguration = "formchimp.command.form_configuration.save"
	TypeUpdateAudienceTags    = "formchimp.command.maintenance.audience_tags"
)

type ProcessSubmissionMessage struct {
	Request core.ProcessSubmissionRequest
}

func (ProcessSubmissionMessage) Type() string { return TypeProcessSubmission }

func (m ProcessSubmissionMessage) Validate() error {
	if strings.TrimSpace(m.Request.Form.Name) == "" && strings.TrimSpace(m.Request.Submission.FormName) == "" {
		return commandValidationError("form_name", "form name is required")
	}
	return nil
}

type SaveModuleSettingsMessage struct {
	Patch core.ModuleSettingsPatch
}

func (SaveModuleSettingsMessage) Type() string { return TypeSaveModuleSettings }

func (m SaveModuleSettingsMessage) Validate() error {
	if m.Patch.APIKey == nil && m.Patch.APIReady == nil && m.Patch.LocalAudienceTags == nil {
		return commandValidationError("settings", "at least one setting must be provided")
	}
	if m.Patch.APIKey != nil {
		key := strings.TrimSpace(*m.Patch.APIKey)
		if key != "" && !strings.Contains(key, "-") {
			return commandValidationError("api_key", "api key must end with the data center suffix, e.g. -us6")
		}
	}
	return nil
}

type ValidateAPIKeyMessage struct{}

func (ValidateAPIKeyMessage) Type() string { return TypeValidateAPIKey }

func (ValidateAPIKeyMessage) Validate() error { return nil }

type SaveFormConfigurationMessage struct {
	FormName string
	Settings core.ProcessorSettings
	// Merge applies Settings on top of the stored configuration instead of
	// replacing it. Nil values delete keys.
	Merge bool
}

func (SaveFormConfigurationMessage) Type() string { return TypeSaveFormConfiguration }

func (m SaveFormConfigurationMessage) Validate() error {
	if strings.TrimSpace(m.FormName) == "" {
		return commandValidationError("form_name", "form name is required")
	}
	if !m.Merge && m.Settings.AudienceID() == "" {
		return commandValidationError(core.AudienceIDKey, "audience id is required")
	}
	return nil
}

// UpdateAudienceTagsMessage refreshes the local tag list. An empty
// AudienceID covers every configured audience.
type UpdateAudienceTagsMessage struct {
	AudienceID string
}

func (UpdateAudienceTagsMessage) Type() string { return TypeUpdateAudienceTags }

func (UpdateAudienceTagsMessage) Validate() error { return nil }
