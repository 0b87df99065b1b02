package sqlstore

import "github.com/goliatone/go-formchimp/core"

var (
	_ core.SettingsStore           = (*SettingsStore)(nil)
	_ core.FormConfigStore         = (*FormConfigStore)(nil)
	_ core.FormConfigStore         = (*CachedFormConfigStore)(nil)
	_ core.ActivitySink            = (*ActivityStore)(nil)
	_ core.ActivityRetentionPruner = (*ActivityStore)(nil)
	_ core.StoreProvider           = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory  = (*RepositoryFactory)(nil)
)
