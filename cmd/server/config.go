package main

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// envConfig holds the deployment knobs read from the environment. Flags
// cover the per-run choices (address, data dir, tuning file).
type envConfig struct {
	DeployEnv   string `env:"DEPLOY_ENV"`
	ServerID    string `env:"WC_SERVER_ID" envDefault:"local"`
	EnableAdmin *bool  `env:"WC_ENABLE_ADMIN_HTTP"`
	EnablePprof bool   `env:"WC_ENABLE_PPROF_HTTP"`

	Index  indexEnv  `envPrefix:"WC_INDEX_"`
	Mirror mirrorEnv `envPrefix:"WC_MIRROR_"`
}

type indexEnv struct {
	// Backend is sqlite, ingest or none.
	Backend     string        `env:"BACKEND" envDefault:"sqlite"`
	IngestURL   string        `env:"INGEST_URL"`
	IngestToken string        `env:"INGEST_TOKEN"`
	BatchSize   int           `env:"BATCH_SIZE" envDefault:"128"`
	Flush       time.Duration `env:"FLUSH" envDefault:"500ms"`
}

type mirrorEnv struct {
	Enabled         bool   `env:"ENABLED"`
	Endpoint        string `env:"ENDPOINT"`
	Bucket          string `env:"BUCKET"`
	Region          string `env:"REGION" envDefault:"auto"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
	Prefix          string `env:"PREFIX"`
	Workers         int    `env:"WORKERS" envDefault:"2"`
}

func loadEnvConfig() (envConfig, error) {
	var cfg envConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// adminEnabled defaults to on outside staging and production.
func (c envConfig) adminEnabled() bool {
	if c.EnableAdmin != nil {
		return *c.EnableAdmin
	}
	switch c.DeployEnv {
	case "staging", "production":
		return false
	default:
		return true
	}
}
