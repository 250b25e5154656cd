// ABOUTME: Shared state for vistly-admin commands
// ABOUTME: Resolves the config file and opens the configured store once per invocation

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/vistly/vistly-bot/internal/app"
	"github.com/vistly/vistly-bot/internal/config"
	"github.com/vistly/vistly-bot/internal/store"
)

// opener opens the store named by a config file path
type opener func(ctx context.Context, configPath string) (store.Store, error)

type commandContext struct {
	configFlag string
	open       opener
	store      store.Store
}

func newCommandContext(open opener) *commandContext {
	if open == nil {
		open = openConfiguredStore
	}
	return &commandContext{open: open}
}

func openConfiguredStore(ctx context.Context, configPath string) (store.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return app.OpenStore(ctx, cfg.Database)
}

// withStore runs fn against the store, opening it on first use
func (c *commandContext) withStore(ctx context.Context, fn func(store.Store) error) error {
	if c.store == nil {
		s, err := c.open(ctx, config.ResolvePath(strings.TrimSpace(c.configFlag)))
		if err != nil {
			return err
		}
		c.store = s
	}
	return fn(c.store)
}

func (c *commandContext) close() error {
	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	return err
}
