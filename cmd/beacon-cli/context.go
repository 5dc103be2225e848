package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"beacon/internal/config"
	"beacon/internal/logger"
	"beacon/internal/messages"
	"beacon/internal/preferences"
	"beacon/pkg/bootstrap"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	redis  *redis.Client
	closer []func() error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		path := strings.TrimSpace(*c.configFlag)
		if path == "" {
			path = os.Getenv("CONFIG_FILE")
		}
		if path == "" {
			c.configErr = fmt.Errorf("config file is required: use --config or CONFIG_FILE")
			return
		}
		c.config, c.configErr = config.Load(path)
	})
	return c.config, c.configErr
}

func (c *commandContext) connector() (*bootstrap.DatabaseConnector, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return bootstrap.NewDatabaseConnector(cfg, logger.NopLogger()), nil
}

func (c *commandContext) messageStore(ctx context.Context) (*messages.SQLStore, error) {
	dc, err := c.connector()
	if err != nil {
		return nil, err
	}
	store, err := dc.InitMessages(ctx)
	if err != nil {
		return nil, err
	}
	c.closer = append(c.closer, store.Close)
	return store, nil
}

func (c *commandContext) preferenceStore(ctx context.Context) (preferences.Store, error) {
	dc, err := c.connector()
	if err != nil {
		return nil, err
	}
	if c.redis == nil {
		rdb, err := dc.InitRedis(ctx)
		if err != nil {
			return nil, err
		}
		if rdb != nil {
			c.redis = rdb
			c.closer = append(c.closer, rdb.Close)
		}
	}
	if b := c.config.Preferences.Backend; b == "" || b == "memory" {
		fmt.Fprintln(os.Stderr, "warning: memory preference backend does not persist; changes are lost on exit")
	}
	prefs, err := preferences.New(c.config.Preferences, c.redis)
	if err != nil {
		return nil, err
	}
	c.closer = append(c.closer, prefs.Close)
	return prefs, nil
}

func (c *commandContext) close() {
	for i := len(c.closer) - 1; i >= 0; i-- {
		_ = c.closer[i]()
	}
	c.closer = nil
}
