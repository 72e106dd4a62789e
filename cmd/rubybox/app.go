package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/michaelbrown/rubybox/internal/config"
	"github.com/michaelbrown/rubybox/internal/logger"
	"github.com/michaelbrown/rubybox/internal/runner"
	"github.com/michaelbrown/rubybox/internal/storage"
	"github.com/michaelbrown/rubybox/internal/storage/sqlite"
)

// app holds what every command needs to run code.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	runtime *runner.Runtime
	service *runner.Service
}

func loadConfig() (*config.Config, error) {
	if configFlag != "" {
		return config.LoadFile(configFlag)
	}
	return config.Load()
}

// newApp wires config, logging and the runtime.
// Terminal commands only log warnings unless --verbose is set.
func newApp(terminal bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logCfg := cfg.Log
	if terminal && !verboseFlag {
		logCfg.Level = "warn"
	}
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, err
	}

	rt, err := runner.NewRuntime(cfg, log)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		log:     log,
		runtime: rt,
		service: rt.Service,
	}, nil
}

func (a *app) Close() {
	a.runtime.Close()
	a.log.Sync()
}

func openStore() (storage.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return sqlite.Open(cfg.Storage.DBPath)
}
