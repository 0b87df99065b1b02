package sqlstore

import (
	"fmt"

	"github.com/goliatone/go-formchimp/core"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db *bun.DB

	cache repositorycache.CacheService

	settingsStore   *SettingsStore
	formConfigStore *FormConfigStore
	cachedForms     *CachedFormConfigStore
	activityStore   *ActivityStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

// WithFormConfigCache fronts the form configuration store with the given
// cache service. Call it before BuildStores.
func (f *RepositoryFactory) WithFormConfigCache(cacheService repositorycache.CacheService) *RepositoryFactory {
	if f == nil {
		return nil
	}
	f.cache = cacheService
	return f
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.settingsStore != nil && f.formConfigStore != nil && f.activityStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) SettingsStore() core.SettingsStore {
	if f == nil || f.settingsStore == nil {
		return nil
	}
	return f.settingsStore
}

// FormConfigStore returns the cached store when a cache service was
// configured.
func (f *RepositoryFactory) FormConfigStore() core.FormConfigStore {
	if f == nil {
		return nil
	}
	if f.cachedForms != nil {
		return f.cachedForms
	}
	if f.formConfigStore == nil {
		return nil
	}
	return f.formConfigStore
}

func (f *RepositoryFactory) ActivitySink() core.ActivitySink {
	if f == nil || f.activityStore == nil {
		return nil
	}
	return f.activityStore
}

func (f *RepositoryFactory) ActivityStore() *ActivityStore {
	if f == nil {
		return nil
	}
	return f.activityStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	settingsStore, err := NewSettingsStore(f.db)
	if err != nil {
		return err
	}
	f.settingsStore = settingsStore

	formConfigStore, err := NewFormConfigStore(f.db)
	if err != nil {
		return err
	}
	f.formConfigStore = formConfigStore
	if f.cache != nil {
		cached, err := NewCachedFormConfigStore(formConfigStore, f.cache)
		if err != nil {
			return err
		}
		f.cachedForms = cached
	}

	activityStore, err := NewActivityStore(f.db)
	if err != nil {
		return err
	}
	f.activityStore = activityStore

	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
