package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danghamo/groupwatch/internal/app/handler"
	"github.com/danghamo/groupwatch/internal/app/query"
	"github.com/danghamo/groupwatch/internal/groupapi"
	"github.com/danghamo/groupwatch/internal/store"
	"github.com/danghamo/groupwatch/pkg/config"
	"github.com/danghamo/groupwatch/pkg/logger"
	"github.com/danghamo/groupwatch/pkg/redisx"
)

// app holds what every command shares
type app struct {
	cfg *config.Config
	log *logger.Logger

	kv       store.Store
	identity *store.IdentityStore
	meta     *store.GroupMetaStore
	api      *groupapi.Client
	commands *handler.GroupCommandHandler
	sessions *query.SessionQueryHandler

	closers []func() error
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, log, err := config.Initialize()
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		if log, err = config.NewLogger(cfg); err != nil {
			return err
		}
		logger.SetGlobalLogger(log)
	}
	a.cfg, a.log = cfg, log
	a.closers = append(a.closers, func() error {
		_ = log.Sync()
		return nil
	})

	if err := a.openStore(); err != nil {
		return err
	}

	a.identity = store.NewIdentityStore(a.kv)
	a.meta = store.NewGroupMetaStore(a.kv)
	a.api = groupapi.NewClient(groupapi.Config{
		BaseURL:           cfg.API.BaseURL,
		Timeout:           cfg.API.Timeout,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Burst:             cfg.API.Burst,
	}, log)
	a.commands = handler.NewGroupCommandHandler(a.api, a.identity, a.meta, log)
	a.sessions = query.NewSessionQueryHandler(a.identity, a.meta)

	log.Debug("Initialized",
		zap.String("api_base_url", cfg.API.BaseURL),
		zap.String("store_driver", cfg.Store.Driver))
	return nil
}

// applyFlags overrides config values with explicitly set persistent flags
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.API.BaseURL, _ = flags.GetString("api-url")
	}
	if flags.Changed("store") {
		cfg.Store.Driver, _ = flags.GetString("store")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (a *app) openStore() error {
	switch a.cfg.Store.Driver {
	case "memory":
		a.kv = store.NewMemoryStore()
	case "sqlite":
		db, err := store.OpenSQLite(a.cfg.Store.SQLitePath)
		if err != nil {
			return err
		}
		a.kv = db
		a.closers = append(a.closers, db.Close)
	case "redis":
		client, err := redisx.NewClient(a.cfg.Store.RedisURL, a.log)
		if err != nil {
			return err
		}
		a.kv = store.NewRedisStore(client)
		a.closers = append(a.closers, client.Close)
	default:
		return fmt.Errorf("unknown store driver: %s", a.cfg.Store.Driver)
	}
	return nil
}

// close releases resources in reverse order of acquisition
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.log != nil {
			a.log.Warn("Close failed", zap.Error(err))
		}
	}
	a.closers = nil
}
