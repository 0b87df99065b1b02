package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Messages reported by API key validation.
const (
	MessageAPIKeyInvalid     = "Mailchimp API key invalid"
	MessageAPIKeyCheckFailed = "An error occured while attempting to validate the API key"
)

func (s *Service) GetModuleSettings(ctx context.Context) (settings ModuleSettings, err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observeOperation(ctx, startedAt, "get_module_settings", err, map[string]any{
			"api_ready": settings.APIReady,
		})
	}()
	settings, err = s.loadModuleSettings(ctx)
	if err != nil {
		err = s.mapError(err)
		return ModuleSettings{}, err
	}
	return settings, nil
}

// SaveModuleSettings merges patch over the stored settings. Changing the API
// key clears the ready flag until the key is validated again.
func (s *Service) SaveModuleSettings(ctx context.Context, patch ModuleSettingsPatch) (settings ModuleSettings, err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observeOperation(ctx, startedAt, "save_module_settings", err, map[string]any{
			"api_key_changed": patch.APIKey != nil,
			"api_ready":       settings.APIReady,
		})
	}()

	current, err := s.loadModuleSettings(ctx)
	if err != nil {
		err = s.mapError(err)
		return ModuleSettings{}, err
	}
	settings = current.Apply(patch)
	if patch.APIKey != nil && settings.APIKey != current.APIKey {
		if patch.APIReady == nil {
			settings.APIReady = false
		}
	}
	if err = s.settingsStore.Save(ctx, settings); err != nil {
		err = s.mapError(err)
		return ModuleSettings{}, err
	}
	return settings, nil
}

// ValidateAPIKey checks the stored key against the audiences endpoint and
// persists the resulting ready flag. Transport failures leave the flag as is.
func (s *Service) ValidateAPIKey(ctx context.Context) (result APIKeyValidation, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		fields["api_ready"] = result.Ready
		fields["remote_status"] = result.StatusCode
		s.observeOperation(ctx, startedAt, "validate_api_key", err, fields)
	}()

	settings, err := s.loadModuleSettings(ctx)
	if err != nil {
		err = s.mapError(err)
		return APIKeyValidation{}, err
	}
	if strings.TrimSpace(settings.APIKey) == "" {
		err = s.mapError(fmt.Errorf("core: mailchimp api key is required"))
		return APIKeyValidation{Ready: settings.APIReady}, err
	}
	if s.clientFactory == nil {
		err = s.mapError(ErrClientFactoryNeeded)
		return APIKeyValidation{Ready: settings.APIReady}, err
	}

	client, err := s.clientFactory(settings.APIKey)
	if err != nil {
		err = s.mapError(err)
		return APIKeyValidation{Ready: settings.APIReady}, err
	}
	_, callErr := client.GetAudiences(ctx)

	var remote RemoteStatusError
	switch {
	case callErr == nil:
		result = APIKeyValidation{Ready: true, StatusCode: http.StatusOK}
	case errors.As(callErr, &remote) && remote.HTTPStatus() == http.StatusUnauthorized:
		result = APIKeyValidation{StatusCode: http.StatusUnauthorized, Message: MessageAPIKeyInvalid}
	case errors.As(callErr, &remote):
		result = APIKeyValidation{StatusCode: remote.HTTPStatus(), Message: MessageAPIKeyCheckFailed}
	default:
		s.logError(ctx, "mailchimp api key validation failed", map[string]any{"error": callErr.Error()})
		s.recordActivity(ctx, ActivityEntry{
			Action:  ActionAPIKeyValidated,
			Object:  "module_settings",
			Status:  ActivityStatusError,
			Message: callErr.Error(),
		})
		err = s.mapError(callErr)
		return APIKeyValidation{Ready: settings.APIReady, Message: callErr.Error()}, err
	}

	settings.APIReady = result.Ready
	if err = s.settingsStore.Save(ctx, settings); err != nil {
		err = s.mapError(err)
		return result, err
	}
	status := ActivityStatusOK
	if !result.Ready {
		status = ActivityStatusWarn
	}
	s.recordActivity(ctx, ActivityEntry{
		Action:  ActionAPIKeyValidated,
		Object:  "module_settings",
		Status:  status,
		Message: result.Message,
		Metadata: map[string]any{
			"remote_status": result.StatusCode,
			"api_ready":     result.Ready,
		},
	})
	return result, nil
}

func (s *Service) loadModuleSettings(ctx context.Context) (ModuleSettings, error) {
	if s == nil || s.settingsStore == nil {
		return ModuleSettings{}, fmt.Errorf("core: settings store is required")
	}
	settings, err := s.settingsStore.Load(ctx)
	if err != nil {
		return ModuleSettings{}, err
	}
	if settings.LocalAudienceTags == nil {
		settings.LocalAudienceTags = []string{}
	}
	return settings, nil
}
