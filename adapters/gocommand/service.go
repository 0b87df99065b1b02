package gocommand

import (
	"fmt"

	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	formchimpcommand "github.com/goliatone/go-formchimp/command"
	"github.com/goliatone/go-formchimp/core"
	formchimpquery "github.com/goliatone/go-formchimp/query"
)

// Subscriptions holds the dispatcher subscriptions created by RegisterService.
type Subscriptions []commanddispatcher.Subscription

func (s Subscriptions) Unsubscribe() {
	for _, subscription := range s {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
}

// RegisterService registers every formchimp command and query backed by svc
// and subscribes them on the global dispatcher. On error the subscriptions
// made so far are removed.
func RegisterService(adapter *RegistryAdapter, svc *core.Service, runnerOpts ...runner.Option) (Subscriptions, error) {
	if err := adapter.configured(); err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, fmt.Errorf("gocommand: formchimp service is required")
	}

	var subs Subscriptions
	register := func(sub commanddispatcher.Subscription, err error) error {
		if err != nil {
			subs.Unsubscribe()
			return err
		}
		subs = append(subs, sub)
		return nil
	}

	if err := register(RegisterAndSubscribe[formchimpcommand.ProcessSubmissionMessage](adapter, formchimpcommand.NewProcessSubmissionCommand(svc), runnerOpts...)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribe[formchimpcommand.SaveModuleSettingsMessage](adapter, formchimpcommand.NewSaveModuleSettingsCommand(svc), runnerOpts...)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribe[formchimpcommand.ValidateAPIKeyMessage](adapter, formchimpcommand.NewValidateAPIKeyCommand(svc), runnerOpts...)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribe[formchimpcommand.SaveFormConfigurationMessage](adapter, formchimpcommand.NewSaveFormConfigurationCommand(svc), runnerOpts...)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribe[formchimpcommand.UpdateAudienceTagsMessage](adapter, formchimpcommand.NewUpdateAudienceTagsCommand(svc), runnerOpts...)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribeQuery[formchimpquery.GetModuleSettingsMessage, core.ModuleSettings](adapter, formchimpquery.NewGetModuleSettingsQuery(svc), runnerOpts...)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribeQuery[formchimpquery.GetFormConfigurationMessage, core.ProcessorSettings](adapter, formchimpquery.NewGetFormConfigurationQuery(svc), runnerOpts...)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribeQuery[formchimpquery.BuildFormConfigurationMessage, core.ConfigurationForm](adapter, formchimpquery.NewBuildFormConfigurationQuery(svc), runnerOpts...)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribeQuery[formchimpquery.PreviewPayloadMessage, core.MemberPayload](adapter, formchimpquery.NewPreviewPayloadQuery(svc), runnerOpts...)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribeQuery[formchimpquery.ListActivityMessage, core.ActivityPage](adapter, formchimpquery.NewListActivityQuery(svc), runnerOpts...)); err != nil {
		return nil, err
	}
	return subs, nil
}
