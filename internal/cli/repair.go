package cli

import (
	"context"
	"fmt"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"kvs/internal/config"
	"kvs/internal/engine/recovery"
	"kvs/internal/fslock"
	"kvs/pkg/fs"
)

// RepairCmd returns the repair command.
func RepairCmd(cfg config.Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("repair", flag.ContinueOnError),
		Usage: "repair",
		Short: "Force a recovery pass and report what was truncated",
		Long:  "Replay the manifest, snapshot, and log exactly as Open would, reporting a torn log tail if one was found and truncated.",
		Exec: func(_ context.Context, io *IO, args []string) error {
			return execRepair(io, cfg, args)
		},
	}
}

func execRepair(io *IO, cfg config.Config, _ []string) error {
	logFileName := cfg.LogFileName
	if logFileName == "" {
		logFileName = "data.log"
	}

	fsys := fs.NewReal()

	lock, err := fslock.Acquire(filepath.Join(cfg.DataDir, ".lock"))
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	manifestPath := filepath.Join(cfg.DataDir, "MANIFEST")
	defaultLogPath := filepath.Join(cfg.DataDir, logFileName)

	res, err := recovery.Run(fsys, manifestPath, defaultLogPath)
	if err != nil {
		return fmt.Errorf("recovery pass: %w", err)
	}

	io.Println(fmt.Sprintf("generation: %d", res.Gen))
	io.Println(fmt.Sprintf("keys: %d", len(res.Index)))
	io.Println(fmt.Sprintf("log: %s", res.LogPath))

	if res.Truncated {
		io.Println(fmt.Sprintf("truncated torn tail at offset %d", res.TruncatedAt))
	} else {
		io.Println("log tail clean, nothing truncated")
	}

	return nil
}
