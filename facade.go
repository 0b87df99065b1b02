package formchimp

import (
	"fmt"

	formchimpcommand "github.com/goliatone/go-formchimp/command"
	formchimpquery "github.com/goliatone/go-formchimp/query"
)

type CommandQueryService interface {
	formchimpcommand.MutatingService
	formchimpquery.SettingsReader
	formchimpquery.FormConfigurationReader
	formchimpquery.PayloadBuilder
	formchimpquery.ActivityReader
}

type Commands struct {
	ProcessSubmission     *formchimpcommand.ProcessSubmissionCommand
	SaveModuleSettings    *formchimpcommand.SaveModuleSettingsCommand
	ValidateAPIKey        *formchimpcommand.ValidateAPIKeyCommand
	SaveFormConfiguration *formchimpcommand.SaveFormConfigurationCommand
	UpdateAudienceTags    *formchimpcommand.UpdateAudienceTagsCommand
}

type Queries struct {
	GetModuleSettings      *formchimpquery.GetModuleSettingsQuery
	GetFormConfiguration   *formchimpquery.GetFormConfigurationQuery
	BuildFormConfiguration *formchimpquery.BuildFormConfigurationQuery
	PreviewPayload         *formchimpquery.PreviewPayloadQuery
	ListActivity           *formchimpquery.ListActivityQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	activityReader formchimpquery.ActivityReader
}

// WithActivityReader lists activity from reader instead of the service sink.
func WithActivityReader(reader formchimpquery.ActivityReader) FacadeOption {
	return func(options *facadeOptions) {
		options.activityReader = reader
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("formchimp: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	var reader formchimpquery.ActivityReader = service
	if cfg.activityReader != nil {
		reader = cfg.activityReader
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		ProcessSubmission:     formchimpcommand.NewProcessSubmissionCommand(service),
		SaveModuleSettings:    formchimpcommand.NewSaveModuleSettingsCommand(service),
		ValidateAPIKey:        formchimpcommand.NewValidateAPIKeyCommand(service),
		SaveFormConfiguration: formchimpcommand.NewSaveFormConfigurationCommand(service),
		UpdateAudienceTags:    formchimpcommand.NewUpdateAudienceTagsCommand(service),
	}
	facade.queries = Queries{
		GetModuleSettings:      formchimpquery.NewGetModuleSettingsQuery(service),
		GetFormConfiguration:   formchimpquery.NewGetFormConfigurationQuery(service),
		BuildFormConfiguration: formchimpquery.NewBuildFormConfigurationQuery(service),
		PreviewPayload:         formchimpquery.NewPreviewPayloadQuery(service),
		ListActivity:           formchimpquery.NewListActivityQuery(reader),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

var _ CommandQueryService = (*Service)(nil)
