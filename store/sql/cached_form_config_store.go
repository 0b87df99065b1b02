package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-formchimp/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const formConfigCacheKeyPrefix = "go-formchimp::form_config::v1"

// CachedFormConfigStore serves form configuration reads from cache. Saves go
// to the base store and drop the cached entry.
type CachedFormConfigStore struct {
	base  core.FormConfigStore
	cache repositorycache.CacheService
}

func NewCachedFormConfigStore(
	base core.FormConfigStore,
	cacheService repositorycache.CacheService,
) (*CachedFormConfigStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base form config store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: form config cache service is required")
	}
	return &CachedFormConfigStore{base: base, cache: cacheService}, nil
}

// FormConfigCacheKey returns go-formchimp::form_config::v1::<form_name> with
// the form name URL-path escaped.
func FormConfigCacheKey(formName string) (string, error) {
	formName = strings.TrimSpace(formName)
	if formName == "" {
		return "", fmt.Errorf("sqlstore: form name is required")
	}
	return formConfigCacheKeyPrefix + "::" + url.PathEscape(formName), nil
}

func (s *CachedFormConfigStore) Load(ctx context.Context, formName string) (core.ProcessorSettings, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached form config store is not configured")
	}
	cacheKey, err := FormConfigCacheKey(formName)
	if err != nil {
		return nil, err
	}
	settings, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.ProcessorSettings, error) {
		fetched, fetchErr := s.base.Load(ctx, strings.TrimSpace(formName))
		if fetchErr != nil {
			return nil, fetchErr
		}
		return fetched.Clone(), nil
	})
	if err != nil {
		return nil, err
	}
	return settings.Clone(), nil
}

func (s *CachedFormConfigStore) Save(ctx context.Context, formName string, settings core.ProcessorSettings) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached form config store is not configured")
	}
	cacheKey, err := FormConfigCacheKey(formName)
	if err != nil {
		return err
	}
	if err := s.base.Save(ctx, formName, settings.Clone()); err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

func (s *CachedFormConfigStore) ListForms(ctx context.Context) ([]string, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached form config store is not configured")
	}
	return s.base.ListForms(ctx)
}
