package query

import (
	"context"

	"github.com/goliatone/go-formchimp/core"
)

type SettingsReader interface {
	GetModuleSettings(ctx context.Context) (core.ModuleSettings, error)
}

type FormConfigurationReader interface {
	GetFormConfiguration(ctx context.Context, formName string) (core.ProcessorSettings, error)
	BuildFormConfiguration(ctx context.Context, req core.BuildConfigurationRequest) (core.ConfigurationForm, error)
}

type PayloadBuilder interface {
	BuildPayload(ctx context.Context, form core.Form, settings core.ProcessorSettings, submission core.Submission) (core.MemberPayload, error)
}

type ActivityReader interface {
	ListActivity(ctx context.Context, filter core.ActivityFilter) (core.ActivityPage, error)
}

type GetModuleSettingsQuery struct {
	reader SettingsReader
}

func NewGetModuleSettingsQuery(reader SettingsReader) *GetModuleSettingsQuery {
	return &GetModuleSettingsQuery{reader: reader}
}

// Query never exposes the stored API key in full.
func (q *GetModuleSettingsQuery) Query(ctx context.Context, _ GetModuleSettingsMessage) (core.ModuleSettings, error) {
	if q == nil || q.reader == nil {
		return core.ModuleSettings{}, queryDependencyError("query: settings reader is required")
	}
	settings, err := q.reader.GetModuleSettings(ctx)
	if err != nil {
		return core.ModuleSettings{}, err
	}
	settings.APIKey = core.MaskAPIKey(settings.APIKey)
	return settings, nil
}

type GetFormConfigurationQuery struct {
	reader FormConfigurationReader
}

func NewGetFormConfigurationQuery(reader FormConfigurationReader) *GetFormConfigurationQuery {
	return &GetFormConfigurationQuery{reader: reader}
}

func (q *GetFormConfigurationQuery) Query(
	ctx context.Context,
	msg GetFormConfigurationMessage,
) (core.ProcessorSettings, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: form configuration reader is required")
	}
	return q.reader.GetFormConfiguration(ctx, msg.FormName)
}

type BuildFormConfigurationQuery struct {
	reader FormConfigurationReader
}

func NewBuildFormConfigurationQuery(reader FormConfigurationReader) *BuildFormConfigurationQuery {
	return &BuildFormConfigurationQuery{reader: reader}
}

func (q *BuildFormConfigurationQuery) Query(
	ctx context.Context,
	msg BuildFormConfigurationMessage,
) (core.ConfigurationForm, error) {
	if q == nil || q.reader == nil {
		return core.ConfigurationForm{}, queryDependencyError("query: form configuration reader is required")
	}
	return q.reader.BuildFormConfiguration(ctx, msg.Request)
}

type PreviewPayloadQuery struct {
	builder PayloadBuilder
}

func NewPreviewPayloadQuery(builder PayloadBuilder) *PreviewPayloadQuery {
	return &PreviewPayloadQuery{builder: builder}
}

func (q *PreviewPayloadQuery) Query(ctx context.Context, msg PreviewPayloadMessage) (core.MemberPayload, error) {
	if q == nil || q.builder == nil {
		return core.MemberPayload{}, queryDependencyError("query: payload builder is required")
	}
	return q.builder.BuildPayload(ctx, msg.Form, msg.Settings, msg.Submission)
}

type ListActivityQuery struct {
	reader ActivityReader
}

func NewListActivityQuery(reader ActivityReader) *ListActivityQuery {
	return &ListActivityQuery{reader: reader}
}

func (q *ListActivityQuery) Query(ctx context.Context, msg ListActivityMessage) (core.ActivityPage, error) {
	if q == nil || q.reader == nil {
		return core.ActivityPage{}, queryDependencyError("query: activity reader is required")
	}
	return q.reader.ListActivity(ctx, msg.Filter)
}
