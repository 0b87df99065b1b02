package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	formchimp "github.com/goliatone/go-formchimp"
	"github.com/goliatone/go-formchimp/adapters/gologger"
	sqlstore "github.com/goliatone/go-formchimp/store/sql"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     Config
	configErr  error

	// serviceOptions are appended after the defaults; tests use them to swap
	// the Mailchimp client factory.
	serviceOptions []formchimp.Option
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := loadConfig(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// runtime is everything a command needs for one invocation.
type runtime struct {
	config  Config
	service *formchimp.Service
	facade  *formchimp.Facade
	stores  *sqlstore.RepositoryFactory
}

// withRuntime opens the database, builds the service, and closes the
// connection once fn returns.
func (c *commandContext) withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *runtime) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := newLogger(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	client, err := openPersistence(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	var persistenceOpts []formchimp.PersistenceOption
	if cfg.Cache.FormConfigTTLSeconds > 0 {
		cacheCfg := repositorycache.DefaultConfig()
		cacheCfg.TTL = time.Duration(cfg.Cache.FormConfigTTLSeconds) * time.Second
		cacheService, err := repositorycache.NewCacheService(cacheCfg)
		if err != nil {
			return fmt.Errorf("form config cache: %w", err)
		}
		persistenceOpts = append(persistenceOpts, formchimp.WithFormConfigCache(cacheService))
	}

	if cfg.Activity.BufferSize > 0 {
		persistenceOpts = append(persistenceOpts, formchimp.WithBufferedActivity(cfg.Activity.BufferSize, logActivitySink{logger: logger}))
	}

	opts := gologger.ServiceOptions(formchimp.DefaultConfig().ServiceName, loggerProvider{root: logger}, logger)
	opts = append(opts, formchimp.WithPageResolver(pageCatalog(cfg.Pages)))
	opts = append(opts, c.serviceOptions...)

	svc, err := formchimp.SetupWithPersistence(cfg.ServiceConfig(), client, persistenceOpts, opts...)
	if err != nil {
		return err
	}
	defer svc.Close()
	facade, err := formchimp.NewFacade(svc)
	if err != nil {
		return err
	}
	stores, ok := svc.Dependencies().RepositoryFactory.(*sqlstore.RepositoryFactory)
	if !ok {
		return fmt.Errorf("unexpected repository factory %T", svc.Dependencies().RepositoryFactory)
	}

	return fn(ctx, &runtime{
		config:  cfg,
		service: svc,
		facade:  facade,
		stores:  stores,
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
