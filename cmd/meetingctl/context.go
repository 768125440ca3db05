package main

import (
	"os"
	"strings"
	"sync"

	"meeting-actions-go/internal/app"
	"meeting-actions-go/internal/config"
	"meeting-actions-go/internal/logger"
	"meeting-actions-go/internal/worker"
)

type commandContext struct {
	configFlag *string

	appOnce sync.Once
	app     *app.App
	appErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// ensureApp loads configuration and opens the store on first use, so
// commands that do not touch meetings never need a database.
func (c *commandContext) ensureApp() (*app.App, error) {
	c.appOnce.Do(func() {
		path := os.Getenv("MEETINGS_CONFIG")
		if c.configFlag != nil && strings.TrimSpace(*c.configFlag) != "" {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.appErr = err
			return
		}
		log := logger.NewWithOptions(logger.Options{
			Environment: cfg.Logging.Environment,
			Level:       cfg.Logging.Level,
			Output:      os.Stderr,
		})
		c.app, c.appErr = app.New(cfg, log)
	})
	return c.app, c.appErr
}

func (c *commandContext) queueClient() (*worker.Client, error) {
	a, err := c.ensureApp()
	if err != nil {
		return nil, err
	}
	return worker.NewClient(a.RedisOpt(), worker.ClientOptions{Queue: a.Config.Queue.Name}), nil
}

func (c *commandContext) close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	c.app = nil
	return err
}
