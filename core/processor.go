package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ProcessSubmission maps a form submission into a Mailchimp member and
// subscribes it. Skipped and remotely failed submissions are reported through
// the result. Only local configuration problems return an error.
func (s *Service) ProcessSubmission(ctx context.Context, req ProcessSubmissionRequest) (result ProcessResult, err error) {
	startedAt := time.Now().UTC()
	formName := strings.TrimSpace(req.Submission.FormName)
	if formName == "" {
		formName = strings.TrimSpace(req.Form.Name)
	}
	fields := map[string]any{"form_name": formName}
	defer func() {
		fields["process_status"] = string(result.Status)
		if result.Reason != "" {
			fields["reason"] = result.Reason
		}
		s.observeOperation(ctx, startedAt, "process_submission", err, fields)
	}()

	settings := req.Settings
	if settings == nil && formName != "" {
		settings, err = s.formConfigStore.Load(ctx, formName)
		if err != nil {
			err = s.mapError(err)
			return ProcessResult{}, err
		}
	}
	audienceID := settings.AudienceID()
	fields["audience_id"] = audienceID
	result = ProcessResult{AudienceID: audienceID}

	module, err := s.loadModuleSettings(ctx)
	if err != nil {
		err = s.mapError(err)
		return ProcessResult{}, err
	}
	if audienceID == "" {
		return s.skipSubmission(result, SkipReasonNoAudience), nil
	}
	if !module.APIReady {
		return s.skipSubmission(result, SkipReasonNotReady), nil
	}
	if ok, reason := submittable(settings, req.Submission.Values); !ok {
		return s.skipSubmission(result, reason), nil
	}

	client, err := s.mailchimpClient(module.APIKey)
	if err != nil {
		err = s.mapError(err)
		return ProcessResult{}, err
	}

	result.Action = settings.Fields().SubscriptionActionValue()
	fields["subscription_action"] = string(result.Action)

	payload, err := s.buildPayload(ctx, client, req.Form, settings, req.Submission)
	if errors.Is(err, ErrEmailRequired) {
		err = nil
		result = s.skipSubmission(result, SkipReasonEmailMissing)
		s.recordActivity(ctx, ActivityEntry{
			Action:     ActionSubmissionSkipped,
			Object:     "submission",
			FormName:   formName,
			AudienceID: audienceID,
			Status:     ActivityStatusWarn,
			Message:    "submission has no email address",
		})
		return result, nil
	}
	if err != nil {
		err = s.mapError(err)
		return ProcessResult{}, err
	}
	result.Payload = payload

	member, subscribeErr := subscribe(ctx, client, audienceID, result.Action, payload)
	if subscribeErr != nil {
		mapped := s.mapError(subscribeErr)
		result.Status = ProcessStatusFailed
		result.Error = mapped.Error()
		s.logError(ctx, "mailchimp subscription failed", map[string]any{
			"form_name":   formName,
			"audience_id": audienceID,
			"error":       mapped.Error(),
		})
		s.recordActivity(ctx, ActivityEntry{
			Action:     ActionSubmissionFailed,
			Object:     "submission",
			FormName:   formName,
			AudienceID: audienceID,
			Status:     ActivityStatusError,
			Message:    mapped.Error(),
			Metadata:   subscribeErrorMetadata(subscribeErr, result.Action),
		})
		return result, nil
	}

	result.Status = ProcessStatusSubmitted
	result.Member = member
	s.recordActivity(ctx, ActivityEntry{
		Action:     ActionSubmissionProcessed,
		Object:     "member",
		FormName:   formName,
		AudienceID: audienceID,
		Status:     ActivityStatusOK,
		Message:    fmt.Sprintf("member %s", strings.TrimSpace(member.Status)),
		Metadata: map[string]any{
			"member_id":           member.ID,
			"subscription_action": string(result.Action),
			"merge_fields":        len(payload.MergeFields),
			"interests":           len(payload.Interests),
			"tags":                len(payload.Tags),
		},
	})
	return result, nil
}

// BuildPayload maps a submission without sending it.
func (s *Service) BuildPayload(ctx context.Context, form Form, settings ProcessorSettings, submission Submission) (payload MemberPayload, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"form_name":   form.Name,
		"audience_id": settings.AudienceID(),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "build_payload", err, fields)
	}()

	var client MailchimpAPI
	if len(settings.Fields().InterestCategoryFields()) > 0 {
		module, loadErr := s.loadModuleSettings(ctx)
		if loadErr == nil && module.APIReady {
			client, _ = s.mailchimpClient(module.APIKey)
		}
	}
	payload, err = s.buildPayload(ctx, client, form, settings, submission)
	if err != nil {
		err = s.mapError(err)
		return MemberPayload{}, err
	}
	return payload, nil
}

func (s *Service) buildPayload(ctx context.Context, client MailchimpAPI, form Form, settings ProcessorSettings, submission Submission) (MemberPayload, error) {
	input := MapperInput{
		Form:       form,
		Settings:   settings,
		Submission: submission,
	}
	if client != nil && len(settings.Fields().InterestCategoryFields()) > 0 {
		categories, err := client.GetInterestCategories(ctx, settings.AudienceID())
		if err != nil {
			s.logWarn(ctx, "interest categories unavailable, using submitted values as interest ids", map[string]any{
				"audience_id": settings.AudienceID(),
				"error":       err.Error(),
			})
		} else {
			input.InterestCategories = categories
		}
	}
	return s.mapper.BuildPayload(ctx, input)
}

// Subscribe sends a prepared payload to the audience using the configured
// subscription action.
func (s *Service) Subscribe(ctx context.Context, audienceID string, action SubscriptionAction, payload MemberPayload) (member Member, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"audience_id":         audienceID,
		"subscription_action": string(action),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "subscribe", err, fields)
	}()

	if strings.TrimSpace(audienceID) == "" {
		err = s.mapError(fmt.Errorf("core: audience id is required"))
		return Member{}, err
	}
	if strings.TrimSpace(payload.EmailAddress) == "" {
		err = s.mapError(ErrEmailRequired)
		return Member{}, err
	}
	module, err := s.loadModuleSettings(ctx)
	if err != nil {
		err = s.mapError(err)
		return Member{}, err
	}
	client, err := s.mailchimpClient(module.APIKey)
	if err != nil {
		err = s.mapError(err)
		return Member{}, err
	}
	member, err = subscribe(ctx, client, audienceID, action, payload)
	if err != nil {
		err = s.mapError(err)
		return Member{}, err
	}
	return member, nil
}

func subscribe(ctx context.Context, client MailchimpAPI, audienceID string, action SubscriptionAction, payload MemberPayload) (Member, error) {
	if action == SubscriptionActionAddUpdate {
		return client.SubscribeOrUpdate(ctx, audienceID, payload)
	}
	return client.Subscribe(ctx, audienceID, payload)
}

func (s *Service) skipSubmission(result ProcessResult, reason string) ProcessResult {
	result.Status = ProcessStatusSkipped
	result.Reason = reason
	return result
}

func subscribeErrorMetadata(err error, action SubscriptionAction) map[string]any {
	metadata := map[string]any{"subscription_action": string(action)}
	var remote RemoteStatusError
	if errors.As(err, &remote) {
		metadata["remote_status"] = remote.HTTPStatus()
	}
	return metadata
}
