package cli

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"

	"kvs/internal/config"
)

// SnapshotCmd returns the snapshot command.
func SnapshotCmd(cfg config.Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("snapshot", flag.ContinueOnError),
		Usage: "snapshot",
		Short: "Force an immediate snapshot and log rotation",
		Exec: func(_ context.Context, io *IO, args []string) error {
			return execSnapshot(io, cfg, args)
		},
	}
}

func execSnapshot(io *IO, cfg config.Config, args []string) error {
	a, err := openActor(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	gen, err := a.Snapshot()
	if err != nil {
		return err
	}

	io.Println(fmt.Sprintf("OK snapshot-%04d", gen))

	return nil
}
