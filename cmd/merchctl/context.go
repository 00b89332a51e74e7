package main

import (
	"context"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	"brandmerch/internal/bootstrap"
	"brandmerch/internal/infra"
)

type commandContext struct {
	envFile *string

	configOnce sync.Once
	config     *infra.Config
	configErr  error
	logger     infra.Logger

	container *bootstrap.Container
}

func newCommandContext(envFile *string) *commandContext {
	return &commandContext{envFile: envFile}
}

func (c *commandContext) ensureConfig() (*infra.Config, error) {
	c.configOnce.Do(func() {
		if c.envFile != nil && strings.TrimSpace(*c.envFile) != "" {
			_ = godotenv.Load(*c.envFile)
		}
		c.config, c.configErr = infra.LoadConfig()
		if c.configErr == nil {
			c.logger = infra.NewLogger(c.config.AppEnv, c.config.LogLevel)
		}
	})
	return c.config, c.configErr
}

// withContainer runs fn against a fully wired service graph.
func (c *commandContext) withContainer(ctx context.Context, fn func(*bootstrap.Container) error) error {
	if c.container == nil {
		cfg, err := c.ensureConfig()
		if err != nil {
			return err
		}
		container, err := bootstrap.New(ctx, cfg, &c.logger)
		if err != nil {
			return err
		}
		c.container = container
	}
	return fn(c.container)
}

func (c *commandContext) close() {
	if c.container != nil {
		c.container.Close()
		c.container = nil
	}
}
