package cli

import (
	"fmt"

	"kvs/internal/config"
	"kvs/internal/engine/actor"
	"kvs/internal/engine/store"
	"kvs/pkg/fs"
)

// openActor opens a Store against cfg's resolved data directory and starts
// an Actor over it. Callers must call Close when done.
func openActor(cfg config.Config) (*actor.Actor, error) {
	durability, err := config.ParseDurability(cfg.Durability)
	if err != nil {
		return nil, err
	}

	maxLogSize, err := config.ParseMaxLogSize(cfg.MaxLogSize)
	if err != nil {
		return nil, err
	}

	s, err := store.Open(fs.NewReal(), store.Config{
		DataDir:     cfg.DataDir,
		LogFileName: cfg.LogFileName,
		Durability:  durability,
		MaxLogSize:  maxLogSize,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	return actor.Start(s), nil
}
