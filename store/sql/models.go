package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type moduleSettingsRecord struct {
	bun.BaseModel `bun:"table:formchimp_module_settings,alias:fms"`

	ID                string    `bun:"id,pk"`
	APIKey            string    `bun:"api_key,notnull"`
	APIReady          bool      `bun:"api_ready,notnull"`
	LocalAudienceTags []string  `bun:"local_audience_tags,type:jsonb,notnull"`
	CreatedAt         time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type formConfigRecord struct {
	bun.BaseModel `bun:"table:formchimp_form_configs,alias:ffc"`

	ID         string         `bun:"id,pk"`
	FormName   string         `bun:"form_name,notnull"`
	AudienceID string         `bun:"audience_id,notnull"`
	Settings   map[string]any `bun:"settings,type:jsonb,notnull"`
	CreatedAt  time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type activityEntryRecord struct {
	bun.BaseModel `bun:"table:formchimp_activity_entries,alias:fae"`

	ID         string         `bun:"id,pk"`
	Channel    string         `bun:"channel,notnull"`
	Action     string         `bun:"action,notnull"`
	Object     string         `bun:"object,notnull"`
	FormName   string         `bun:"form_name,notnull"`
	AudienceID string         `bun:"audience_id,notnull"`
	Actor      string         `bun:"actor,notnull"`
	Status     string         `bun:"status,notnull"`
	Message    string         `bun:"message,notnull"`
	Metadata   map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt  time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
