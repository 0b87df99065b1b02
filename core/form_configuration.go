package core

import (
	"context"
	"strings"
	"time"
)

// BuildFormConfiguration fetches audience metadata and renders the processor
// configuration for a form. Mailchimp failures are logged, recorded and
// reported on the returned form instead of as an error.
func (s *Service) BuildFormConfiguration(ctx context.Context, req BuildConfigurationRequest) (form ConfigurationForm, err error) {
	startedAt := time.Now().UTC()
	settings := req.Settings
	fields := map[string]any{"form_name": req.Form.Name}
	defer func() {
		fields["ready"] = form.Ready
		s.observeOperation(ctx, startedAt, "build_form_configuration", err, fields)
	}()

	if settings == nil && strings.TrimSpace(req.Form.Name) != "" {
		settings, err = s.formConfigStore.Load(ctx, req.Form.Name)
		if err != nil {
			err = s.mapError(err)
			return ConfigurationForm{}, err
		}
	}
	if settings == nil {
		settings = ProcessorSettings{}
	}
	fields["audience_id"] = settings.AudienceID()

	module, err := s.loadModuleSettings(ctx)
	if err != nil {
		err = s.mapError(err)
		return ConfigurationForm{}, err
	}
	if !module.APIReady {
		return notReadyConfiguration(), nil
	}

	client, err := s.mailchimpClient(module.APIKey)
	if err != nil {
		err = s.mapError(err)
		return ConfigurationForm{}, err
	}
	metadata, fetchErr := s.fetchAudienceMetadata(ctx, client, settings.AudienceID())
	if fetchErr != nil {
		mapped := s.mapError(fetchErr)
		s.logError(ctx, "mailchimp metadata fetch failed", map[string]any{
			"form_name":   req.Form.Name,
			"audience_id": settings.AudienceID(),
			"error":       mapped.Error(),
		})
		s.recordActivity(ctx, ActivityEntry{
			Action:     ActionConfigMetadataError,
			Object:     "form_configuration",
			FormName:   req.Form.Name,
			AudienceID: settings.AudienceID(),
			Status:     ActivityStatusError,
			Message:    mapped.Error(),
		})
		return ConfigurationForm{
			Ready:  true,
			Notice: "Mailchimp error: " + mapped.Error(),
			Errors: []string{mapped.Error()},
		}, nil
	}

	return BuildConfiguration(req.Form, settings, module, metadata), nil
}

func (s *Service) fetchAudienceMetadata(ctx context.Context, client MailchimpAPI, audienceID string) (AudienceMetadata, error) {
	var metadata AudienceMetadata
	audiences, err := client.GetAudiences(ctx)
	if err != nil {
		return AudienceMetadata{}, err
	}
	metadata.Audiences = audiences
	if strings.TrimSpace(audienceID) == "" {
		return metadata, nil
	}
	if metadata.MergeFields, err = client.GetMergeFields(ctx, audienceID); err != nil {
		return AudienceMetadata{}, err
	}
	if metadata.Tags, err = client.GetTags(ctx, audienceID); err != nil {
		return AudienceMetadata{}, err
	}
	if metadata.InterestCategories, err = client.GetInterestCategories(ctx, audienceID); err != nil {
		return AudienceMetadata{}, err
	}
	return metadata, nil
}
