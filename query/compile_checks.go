package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-formchimp/core"
)

var (
	_ gocmd.Querier[GetModuleSettingsMessage, core.ModuleSettings]         = (*GetModuleSettingsQuery)(nil)
	_ gocmd.Querier[GetFormConfigurationMessage, core.ProcessorSettings]   = (*GetFormConfigurationQuery)(nil)
	_ gocmd.Querier[BuildFormConfigurationMessage, core.ConfigurationForm] = (*BuildFormConfigurationQuery)(nil)
	_ gocmd.Querier[PreviewPayloadMessage, core.MemberPayload]             = (*PreviewPayloadQuery)(nil)
	_ gocmd.Querier[ListActivityMessage, core.ActivityPage]                = (*ListActivityQuery)(nil)

	_ SettingsReader          = (*core.Service)(nil)
	_ FormConfigurationReader = (*core.Service)(nil)
	_ PayloadBuilder          = (*core.Service)(nil)
	_ ActivityReader          = (*core.Service)(nil)
)
