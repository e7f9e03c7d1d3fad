package main

import (
	coreconfig "github.com/m3rciful/ticketbot/core/config"
	coredatabase "github.com/m3rciful/ticketbot/core/database"
)

// appConfig extends the core configuration with the settings database.
type appConfig struct {
	coreconfig.Config `yaml:",inline"`
	Database          coredatabase.Config `yaml:"database"`
}

func (c *appConfig) CoreConfig() *coreconfig.Config { return &c.Config }

func (c *appConfig) DatabaseConfig() coredatabase.Config { return c.Database }

func loadConfig(path string) (*appConfig, error) {
	var cfg appConfig
	if err := coreconfig.LoadInto(path, &cfg); err != nil {
		return nil, err
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if err := coredatabase.Normalize(&cfg.Database); err != nil {
		return nil, err
	}
	return &cfg, nil
}
