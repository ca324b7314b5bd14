package main

import (
	"log"

	"waterchores.dev/internal/persistence/mirror"
)

// openMirror returns nil when mirroring is disabled.
func openMirror(dataDir string, cfg mirrorEnv, logger *log.Logger) (*mirror.Mirror, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	store, err := mirror.NewStore(mirror.StoreConfig{
		Endpoint:        cfg.Endpoint,
		Bucket:          cfg.Bucket,
		Region:          cfg.Region,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
	})
	if err != nil {
		return nil, err
	}
	return mirror.New(store, mirror.Config{
		DataDir: dataDir,
		Prefix:  cfg.Prefix,
		Workers: cfg.Workers,
		Logger:  logger,
	}), nil
}
