package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-formchimp/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// moduleSettingsID is the fixed key of the single module settings row.
var moduleSettingsID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("go-formchimp.module_settings")).String()

type SettingsStore struct {
	db   *bun.DB
	repo repository.Repository[*moduleSettingsRecord]
}

func NewSettingsStore(db *bun.DB) (*SettingsStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*moduleSettingsRecord](db, moduleSettingsHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid module settings repository wiring: %w", err)
		}
	}
	return &SettingsStore{db: db, repo: repo}, nil
}

// Load returns the stored settings, or the defaults when nothing was saved.
func (s *SettingsStore) Load(ctx context.Context) (core.ModuleSettings, error) {
	if s == nil || s.repo == nil {
		return core.ModuleSettings{}, fmt.Errorf("sqlstore: settings store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("id", "=", moduleSettingsID),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.ModuleSettings{}, err
	}
	if len(records) == 0 || records[0] == nil {
		return core.ModuleSettings{LocalAudienceTags: []string{}}, nil
	}
	return records[0].toDomain(), nil
}

func (s *SettingsStore) Save(ctx context.Context, settings core.ModuleSettings) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: settings store is not configured")
	}
	now := time.Now().UTC()
	tags := normalizeTags(settings.LocalAudienceTags)

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &moduleSettingsRecord{}
		err := tx.NewSelect().
			Model(record).
			Where("?TableAlias.id = ?", moduleSettingsID).
			Limit(1).
			Scan(ctx)
		created := false
		if err != nil {
			if err != sql.ErrNoRows {
				return err
			}
			created = true
			record = &moduleSettingsRecord{ID: moduleSettingsID, CreatedAt: now}
		}
		record.APIKey = strings.TrimSpace(settings.APIKey)
		record.APIReady = settings.APIReady
		record.LocalAudienceTags = tags
		record.UpdatedAt = now

		if created {
			_, err = tx.NewInsert().Model(record).Exec(ctx)
			return err
		}
		_, err = tx.NewUpdate().
			Model(record).
			Where("id = ?", record.ID).
			Exec(ctx)
		return err
	})
}

func (r *moduleSettingsRecord) toDomain() core.ModuleSettings {
	if r == nil {
		return core.ModuleSettings{LocalAudienceTags: []string{}}
	}
	return core.ModuleSettings{
		APIKey:            r.APIKey,
		APIReady:          r.APIReady,
		LocalAudienceTags: normalizeTags(r.LocalAudienceTags),
	}
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
