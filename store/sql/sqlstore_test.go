package sqlstore_test

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"testing"
	"time"

	"github.com/goliatone/go-formchimp/core"
	"github.com/goliatone/go-formchimp/devkit"
	formchimpmigrations "github.com/goliatone/go-formchimp/migrations"
	sqlstore "github.com/goliatone/go-formchimp/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "go-formchimp-tests"
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	for _, table := range []string{"formchimp_module_settings", "formchimp_form_configs", "formchimp_activity_entries"} {
		var tableName string
		if err := client.DB().NewRaw(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
			table,
		).Scan(context.Background(), &tableName); err != nil {
			t.Fatalf("query sqlite master for %s: %v", table, err)
		}
		if tableName != table {
			t.Fatalf("expected %s table, got %q", table, tableName)
		}
	}
}

func TestRepositoryFactory_StoresPassConformance(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	if factory.DB() == nil {
		t.Fatalf("expected bun db on factory")
	}
	if err := devkit.ValidateSettingsStoreConformance(ctx, factory.SettingsStore()); err != nil {
		t.Fatalf("settings store conformance: %v", err)
	}
	if err := devkit.ValidateFormConfigStoreConformance(ctx, factory.FormConfigStore(), "newsletter"); err != nil {
		t.Fatalf("form config store conformance: %v", err)
	}
	if err := devkit.ValidateActivitySinkConformance(ctx, factory.ActivitySink(), core.DefaultActivityChannel); err != nil {
		t.Fatalf("activity sink conformance: %v", err)
	}
}

func TestSettingsStore_SingletonRow(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	store, err := sqlstore.NewSettingsStore(client.DB())
	if err != nil {
		t.Fatalf("new settings store: %v", err)
	}
	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if loaded.APIKey != "" || loaded.APIReady || loaded.LocalAudienceTags == nil {
		t.Fatalf("expected empty defaults, got %#v", loaded)
	}

	for _, key := range []string{"first-us1", "second-us2"} {
		if err := store.Save(ctx, core.ModuleSettings{APIKey: key, APIReady: true}); err != nil {
			t.Fatalf("save settings %s: %v", key, err)
		}
	}
	var count int
	if err := client.DB().NewRaw("SELECT COUNT(*) FROM formchimp_module_settings").Scan(ctx, &count); err != nil {
		t.Fatalf("count settings rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected single settings row, got %d", count)
	}
	loaded, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if loaded.APIKey != "second-us2" || !loaded.APIReady {
		t.Fatalf("expected latest settings, got %#v", loaded)
	}
}

func TestFormConfigStore_ListByAudienceAndDelete(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	store, err := sqlstore.NewFormConfigStore(client.DB())
	if err != nil {
		t.Fatalf("new form config store: %v", err)
	}
	if err := store.Save(ctx, "newsletter", core.ProcessorSettings{core.AudienceIDKey: "aud_1"}); err != nil {
		t.Fatalf("save newsletter: %v", err)
	}
	if err := store.Save(ctx, "rsvp", core.ProcessorSettings{core.AudienceIDKey: "aud_1"}); err != nil {
		t.Fatalf("save rsvp: %v", err)
	}
	if err := store.Save(ctx, "contact", core.ProcessorSettings{core.AudienceIDKey: "aud_2"}); err != nil {
		t.Fatalf("save contact: %v", err)
	}
	// Moving a form to a new audience updates the indexed column.
	if err := store.Save(ctx, "rsvp", core.ProcessorSettings{core.AudienceIDKey: "aud_2"}); err != nil {
		t.Fatalf("update rsvp: %v", err)
	}

	forms, err := store.ListByAudience(ctx, "aud_2")
	if err != nil {
		t.Fatalf("list by audience: %v", err)
	}
	if len(forms) != 2 || forms[0] != "contact" || forms[1] != "rsvp" {
		t.Fatalf("expected contact and rsvp, got %#v", forms)
	}

	if err := store.Delete(ctx, "contact"); err != nil {
		t.Fatalf("delete contact: %v", err)
	}
	all, err := store.ListForms(ctx)
	if err != nil {
		t.Fatalf("list forms: %v", err)
	}
	if len(all) != 2 || all[0] != "newsletter" || all[1] != "rsvp" {
		t.Fatalf("expected remaining forms, got %#v", all)
	}
}

func TestActivityStore_FiltersRedactsAndPrunes(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	store, err := sqlstore.NewActivityStore(client.DB())
	if err != nil {
		t.Fatalf("new activity store: %v", err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		metadata := map[string]any{
			"email_address": "ada@example.com",
			"api_key":       "abc-us1",
		}
		if err := store.Record(ctx, core.ActivityEntry{
			Action:     core.ActionSubmissionProcessed,
			FormName:   "newsletter",
			AudienceID: "aud_1",
			Metadata:   metadata,
			CreatedAt:  now.Add(-time.Duration(i) * time.Hour),
		}); err != nil {
			t.Fatalf("record entry %d: %v", i, err)
		}
	}
	if err := store.Record(ctx, core.ActivityEntry{}); err == nil {
		t.Fatalf("expected missing action error")
	}

	page, err := store.List(ctx, core.ActivityFilter{FormName: "newsletter", PerPage: 2})
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	if page.Total != 5 || len(page.Items) != 2 || !page.HasNext || page.NextCursor != "2" {
		t.Fatalf("unexpected first page %#v", page)
	}
	first := page.Items[0]
	if first.Channel != core.DefaultActivityChannel || first.Actor != "system" || first.Status != core.ActivityStatusOK {
		t.Fatalf("expected defaults applied, got %#v", first)
	}
	if first.Metadata["api_key"] != core.RedactedValue {
		t.Fatalf("expected api key redacted, got %#v", first.Metadata["api_key"])
	}
	if first.Metadata["email_address"] != "a***@example.com" {
		t.Fatalf("expected masked email, got %#v", first.Metadata["email_address"])
	}

	from := now.Add(-90 * time.Minute)
	recent, err := store.List(ctx, core.ActivityFilter{From: &from})
	if err != nil {
		t.Fatalf("list recent activity: %v", err)
	}
	if recent.Total != 2 {
		t.Fatalf("expected two entries in the window, got %d", recent.Total)
	}

	deleted, err := store.Prune(ctx, core.ActivityRetentionPolicy{TTL: 150 * time.Minute, RowCap: 2})
	if err != nil {
		t.Fatalf("prune activity: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("expected three pruned entries, got %d", deleted)
	}
	remaining, err := store.List(ctx, core.ActivityFilter{})
	if err != nil {
		t.Fatalf("list remaining activity: %v", err)
	}
	if remaining.Total != 2 || remaining.HasNext {
		t.Fatalf("expected two remaining entries, got %#v", remaining)
	}
}

func TestRepositoryFactory_FormConfigCache(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	cacheService, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	factory := sqlstore.NewRepositoryFactory().WithFormConfigCache(cacheService)
	if _, err := factory.BuildStores(client); err != nil {
		t.Fatalf("build stores: %v", err)
	}
	if _, ok := factory.FormConfigStore().(*sqlstore.CachedFormConfigStore); !ok {
		t.Fatalf("expected cached form config store, got %T", factory.FormConfigStore())
	}
	if err := devkit.ValidateFormConfigStoreConformance(ctx, factory.FormConfigStore(), "cached"); err != nil {
		t.Fatalf("cached form config store conformance: %v", err)
	}
}

func TestResolveDB_RejectsUnsupportedClients(t *testing.T) {
	if _, err := sqlstore.NewRepositoryFactory().BuildStores(nil); err == nil {
		t.Fatalf("expected nil client error")
	}
	if _, err := sqlstore.NewRepositoryFactory().BuildStores("db"); err == nil {
		t.Fatalf("expected unsupported client error")
	}
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:formchimp-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	_, err = formchimpmigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != formchimpmigrations.DialectSQLite {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, formchimpmigrations.WithValidationTargets(formchimpmigrations.DialectSQLite))
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}
