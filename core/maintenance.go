package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	JobIDAudienceTags = "formchimp.maintenance.audience_tags"

	// Dedup policy name understood by go-job queues.
	jobDedupPolicyDrop = "drop"
)

// ExecuteMaintenance runs every maintenance task: audience tag reconciliation,
// then activity retention.
func (s *Service) ExecuteMaintenance(ctx context.Context) error {
	if _, err := s.UpdateAudienceTags(ctx, ""); err != nil {
		return err
	}
	if _, err := s.EnforceActivityRetention(ctx); err != nil {
		return err
	}
	return nil
}

type activityRetentionEnforcer interface {
	EnforceRetention(ctx context.Context) (int, error)
}

// EnforceActivityRetention prunes the activity sink with the configured
// policy. Sinks without retention support are left alone.
func (s *Service) EnforceActivityRetention(ctx context.Context) (deleted int, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		fields["deleted"] = deleted
		s.observeOperation(ctx, startedAt, "enforce_activity_retention", err, fields)
	}()

	switch sink := s.activitySink.(type) {
	case activityRetentionEnforcer:
		deleted, err = sink.EnforceRetention(ctx)
	case ActivityRetentionPruner:
		deleted, err = sink.Prune(ctx, RetentionPolicyFromConfig(s.config.Activity))
	}
	if err != nil {
		err = s.mapError(err)
		return 0, err
	}
	return deleted, nil
}

// UpdateAudienceTags stores, as local audience tags, the tags configured on
// forms that do not exist in Mailchimp yet. Mailchimp only creates a tag on
// the first subscription that uses it. An empty audienceID rebuilds the list
// from every audience referenced by a form. A specific audienceID reconciles
// the forms of that audience and keeps only those other local tags still used
// by forms of other audiences. Tags no form uses are purged either way.
func (s *Service) UpdateAudienceTags(ctx context.Context, audienceID string) (result AudienceTagsResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"audience_id": audienceID}
	defer func() {
		fields["local_tags"] = len(result.LocalTags)
		s.observeOperation(ctx, startedAt, "update_audience_tags", err, fields)
	}()

	module, err := s.loadModuleSettings(ctx)
	if err != nil {
		err = s.mapError(err)
		return AudienceTagsResult{}, err
	}
	client, err := s.mailchimpClient(module.APIKey)
	if err != nil {
		err = s.mapError(err)
		return AudienceTagsResult{}, err
	}

	formNames, err := s.formConfigStore.ListForms(ctx)
	if err != nil {
		err = s.mapError(err)
		return AudienceTagsResult{}, err
	}

	audienceID = strings.TrimSpace(audienceID)
	inUse := []string{}
	inUseElsewhere := map[string]struct{}{}
	audiences := []string{}
	for _, formName := range formNames {
		settings, loadErr := s.formConfigStore.Load(ctx, formName)
		if loadErr != nil {
			err = s.mapError(loadErr)
			return AudienceTagsResult{}, err
		}
		formAudience := settings.AudienceID()
		if formAudience == "" {
			continue
		}
		tags := settings.Fields().AudienceTags().Strings()
		if audienceID != "" && formAudience != audienceID {
			for _, name := range tags {
				inUseElsewhere[name] = struct{}{}
			}
			continue
		}
		inUse = append(inUse, tags...)
		audiences = append(audiences, formAudience)
	}
	if audienceID != "" {
		audiences = []string{audienceID}
	}
	result.TagsInUse = sortedUnique(inUse)
	result.AudienceIDs = sortedUnique(audiences)

	remote := []string{}
	for _, id := range result.AudienceIDs {
		tags, tagsErr := client.GetTags(ctx, id)
		if tagsErr != nil {
			err = s.mapError(tagsErr)
			return AudienceTagsResult{}, err
		}
		for _, tag := range tags {
			remote = append(remote, tag.Name)
		}
	}
	result.RemoteTags = sortedUnique(remote)

	remoteSet := make(map[string]struct{}, len(result.RemoteTags))
	for _, name := range result.RemoteTags {
		remoteSet[name] = struct{}{}
	}
	result.LocalTags = []string{}
	for _, name := range result.TagsInUse {
		if _, ok := remoteSet[name]; !ok {
			result.LocalTags = append(result.LocalTags, name)
		}
	}

	// Tags local to other audiences survive a scoped run only while a form of
	// that audience still uses them.
	stored := append([]string(nil), result.LocalTags...)
	for _, name := range module.LocalAudienceTags {
		if _, ok := inUseElsewhere[name]; ok {
			stored = append(stored, name)
		}
	}
	module.LocalAudienceTags = sortedUnique(stored)
	if err = s.settingsStore.Save(ctx, module); err != nil {
		err = s.mapError(err)
		return AudienceTagsResult{}, err
	}
	s.recordActivity(ctx, ActivityEntry{
		Action:     ActionAudienceTagsUpdated,
		Object:     "module_settings",
		AudienceID: audienceID,
		Status:     ActivityStatusOK,
		Message:    fmt.Sprintf("%d local audience tags", len(result.LocalTags)),
		Metadata: map[string]any{
			"local_tags":  append([]string(nil), result.LocalTags...),
			"tags_in_use": len(result.TagsInUse),
		},
	})
	return result, nil
}

// MaintenanceJob describes the queued audience tag maintenance run.
func MaintenanceJob(audienceID string) *JobExecutionMessage {
	audienceID = strings.TrimSpace(audienceID)
	key := JobIDAudienceTags
	if audienceID != "" {
		key = key + ":" + audienceID
	}
	return &JobExecutionMessage{
		JobID:          JobIDAudienceTags,
		Parameters:     map[string]any{"audience_id": audienceID},
		IdempotencyKey: key,
		DedupPolicy:    jobDedupPolicyDrop,
	}
}

// HandleMaintenanceJob executes a queued maintenance message.
func (s *Service) HandleMaintenanceJob(ctx context.Context, msg *JobExecutionMessage) error {
	if msg == nil {
		return s.mapError(fmt.Errorf("core: job message is required"))
	}
	switch strings.TrimSpace(msg.JobID) {
	case JobIDAudienceTags:
		audienceID, _ := stringValue(msg.Parameters["audience_id"])
		_, err := s.UpdateAudienceTags(ctx, strings.TrimSpace(audienceID))
		return err
	default:
		return s.mapError(fmt.Errorf("core: unsupported job %q", msg.JobID))
	}
}

// scheduleAudienceTagMaintenance queues tag maintenance when a job enqueuer is
// configured, otherwise runs it inline. Failures are logged only.
func (s *Service) scheduleAudienceTagMaintenance(ctx context.Context, audienceID string) {
	if strings.TrimSpace(audienceID) == "" || s.clientFactory == nil {
		return
	}
	if s.jobEnqueuer != nil {
		if err := s.jobEnqueuer.Enqueue(ctx, MaintenanceJob(audienceID)); err != nil {
			s.logWarn(ctx, "audience tag maintenance enqueue failed", map[string]any{
				"audience_id": audienceID,
				"error":       err.Error(),
			})
		}
		return
	}
	module, err := s.loadModuleSettings(ctx)
	if err != nil || !module.APIReady {
		return
	}
	if _, err := s.UpdateAudienceTags(ctx, ""); err != nil {
		s.logWarn(ctx, "audience tag maintenance failed", map[string]any{
			"audience_id": audienceID,
			"error":       err.Error(),
		})
	}
}

func sortedUnique(values []string) []string {
	out := uniqueStrings(values)
	sort.Strings(out)
	return out
}
