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

// FormConfigStore persists the processor settings of each form as one JSON
// document keyed by form name.
type FormConfigStore struct {
	db   *bun.DB
	repo repository.Repository[*formConfigRecord]
}

func NewFormConfigStore(db *bun.DB) (*FormConfigStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*formConfigRecord](db, formConfigHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid form config repository wiring: %w", err)
		}
	}
	return &FormConfigStore{db: db, repo: repo}, nil
}

func (s *FormConfigStore) Load(ctx context.Context, formName string) (core.ProcessorSettings, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: form config store is not configured")
	}
	formName = strings.TrimSpace(formName)
	if formName == "" {
		return nil, fmt.Errorf("sqlstore: form name is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("form_name", "=", formName),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 || records[0] == nil {
		return core.ProcessorSettings{}, nil
	}
	return core.ProcessorSettings(copyAnyMap(records[0].Settings)), nil
}

func (s *FormConfigStore) Save(ctx context.Context, formName string, settings core.ProcessorSettings) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: form config store is not configured")
	}
	formName = strings.TrimSpace(formName)
	if formName == "" {
		return fmt.Errorf("sqlstore: form name is required")
	}
	now := time.Now().UTC()

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := findFormConfigTx(ctx, tx, formName)
		if err != nil {
			return err
		}
		created := false
		if record == nil {
			created = true
			record = &formConfigRecord{
				ID:        uuid.NewString(),
				FormName:  formName,
				CreatedAt: now,
			}
		}
		record.AudienceID = settings.AudienceID()
		record.Settings = copyAnyMap(settings)
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

func (s *FormConfigStore) ListForms(ctx context.Context) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: form config store is not configured")
	}
	var names []string
	if err := s.db.NewSelect().
		Model((*formConfigRecord)(nil)).
		Column("form_name").
		OrderExpr("form_name ASC").
		Scan(ctx, &names); err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// ListByAudience returns the names of forms sending to audienceID.
func (s *FormConfigStore) ListByAudience(ctx context.Context, audienceID string) ([]string, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: form config store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("audience_id", "=", strings.TrimSpace(audienceID)),
		repository.OrderBy("form_name ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(records))
	for _, record := range records {
		out = append(out, record.FormName)
	}
	return out, nil
}

func (s *FormConfigStore) Delete(ctx context.Context, formName string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: form config store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*formConfigRecord)(nil)).
		Where("form_name = ?", strings.TrimSpace(formName)).
		Exec(ctx)
	return err
}

func findFormConfigTx(ctx context.Context, tx bun.Tx, formName string) (*formConfigRecord, error) {
	record := &formConfigRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.form_name = ?", formName).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
