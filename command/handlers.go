package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-formchimp/core"
)

type MutatingService interface {
	ProcessSubmission(ctx context.Context, req core.ProcessSubmissionRequest) (core.ProcessResult, error)
	SaveModuleSettings(ctx context.Context, patch core.ModuleSettingsPatch) (core.ModuleSettings, error)
	ValidateAPIKey(ctx context.Context) (core.APIKeyValidation, error)
	SaveFormConfiguration(ctx context.Context, formName string, settings core.ProcessorSettings) error
	UpdateFormConfiguration(ctx context.Context, formName string, values map[string]any) (core.ProcessorSettings, error)
	UpdateAudienceTags(ctx context.Context, audienceID string) (core.AudienceTagsResult, error)
}

type ProcessSubmissionCommand struct {
	service MutatingService
}

func NewProcessSubmissionCommand(service MutatingService) *ProcessSubmissionCommand {
	return &ProcessSubmissionCommand{service: service}
}

func (c *ProcessSubmissionCommand) Execute(ctx context.Context, msg ProcessSubmissionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: submission service is required")
	}
	out, err := c.service.ProcessSubmission(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SaveModuleSettingsCommand struct {
	service MutatingService
}

func NewSaveModuleSettingsCommand(service MutatingService) *SaveModuleSettingsCommand {
	return &SaveModuleSettingsCommand{service: service}
}

func (c *SaveModuleSettingsCommand) Execute(ctx context.Context, msg SaveModuleSettingsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: settings service is required")
	}
	out, err := c.service.SaveModuleSettings(ctx, msg.Patch)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ValidateAPIKeyCommand struct {
	service MutatingService
}

func NewValidateAPIKeyCommand(service MutatingService) *ValidateAPIKeyCommand {
	return &ValidateAPIKeyCommand{service: service}
}

func (c *ValidateAPIKeyCommand) Execute(ctx context.Context, _ ValidateAPIKeyMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: settings service is required")
	}
	out, err := c.service.ValidateAPIKey(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SaveFormConfigurationCommand struct {
	service MutatingService
}

func NewSaveFormConfigurationCommand(service MutatingService) *SaveFormConfigurationCommand {
	return &SaveFormConfigurationCommand{service: service}
}

// Execute stores the resulting configuration in the result collector.
func (c *SaveFormConfigurationCommand) Execute(ctx context.Context, msg SaveFormConfigurationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: form configuration service is required")
	}
	if msg.Merge {
		out, err := c.service.UpdateFormConfiguration(ctx, msg.FormName, msg.Settings)
		if err != nil {
			return err
		}
		storeResult(ctx, out)
		return nil
	}
	if err := c.service.SaveFormConfiguration(ctx, msg.FormName, msg.Settings); err != nil {
		return err
	}
	storeResult(ctx, msg.Settings.Clone())
	return nil
}

type UpdateAudienceTagsCommand struct {
	service MutatingService
}

func NewUpdateAudienceTagsCommand(service MutatingService) *UpdateAudienceTagsCommand {
	return &UpdateAudienceTagsCommand{service: service}
}

func (c *UpdateAudienceTagsCommand) Execute(ctx context.Context, msg UpdateAudienceTagsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: maintenance service is required")
	}
	out, err := c.service.UpdateAudienceTags(ctx, msg.AudienceID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
