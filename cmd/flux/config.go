package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/Aleph-Alpha/flux/v1/logger"
	"github.com/Aleph-Alpha/flux/v1/metrics"
	"github.com/Aleph-Alpha/flux/v1/rabbit"
	"github.com/Aleph-Alpha/flux/v1/tracer"
)

// Config is the complete configuration of the binary.
type Config struct {
	Rabbit  rabbit.Config  `yaml:"rabbit"`
	Logger  logger.Config  `yaml:"logger"`
	Metrics metrics.Config `yaml:"metrics"`
	Tracer  tracer.Config  `yaml:"tracer"`
}

// loadConfig reads defaults and environment variables and then applies the
// YAML file at path, if any. Keys present in the file win over the
// environment.
func loadConfig(path string) (Config, error) {
	var cfg Config

	sections := []struct {
		name   string
		target interface{}
	}{
		{"rabbit", &cfg.Rabbit},
		{"logger", &cfg.Logger},
		{"metrics", &cfg.Metrics},
		{"tracer", &cfg.Tracer},
	}
	for _, s := range sections {
		if err := envconfig.Process("", s.target); err != nil {
			return cfg, fmt.Errorf("failed to load %s config from environment: %w", s.name, err)
		}
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}
