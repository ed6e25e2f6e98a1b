package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"mediaflow/internal/config"
	"mediaflow/internal/logging"
	"mediaflow/internal/queue"
	"mediaflow/internal/scheduler"
	"mediaflow/internal/store"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withStore opens the entity store for the duration of fn.
func (c *commandContext) withStore(fn func(*config.Config, *store.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	return fn(cfg, st)
}

// withScheduler opens the store and execution queue and builds a scheduler
// over them. Admission from the CLI enqueues first stages the daemon picks up.
func (c *commandContext) withScheduler(fn func(*store.Store, *scheduler.Scheduler) error) error {
	return c.withStore(func(cfg *config.Config, st *store.Store) error {
		q, err := queue.Open(cfg)
		if err != nil {
			return fmt.Errorf("open queue: %w", err)
		}
		err = fn(st, scheduler.New(cfg, st, q, logging.NewNop()))
		return errors.Join(err, q.Close())
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
