package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-formchimp/core"
)

var (
	_ gocmd.Commander[ProcessSubmissionMessage]     = (*ProcessSubmissionCommand)(nil)
	_ gocmd.Commander[SaveModuleSettingsMessage]    = (*SaveModuleSettingsCommand)(nil)
	_ gocmd.Commander[ValidateAPIKeyMessage]        = (*ValidateAPIKeyCommand)(nil)
	_ gocmd.Commander[SaveFormConfigurationMessage] = (*SaveFormConfigurationCommand)(nil)
	_ gocmd.Commander[UpdateAudienceTagsMessage]    = (*UpdateAudienceTagsCommand)(nil)

	_ MutatingService = (*core.Service)(nil)
)
