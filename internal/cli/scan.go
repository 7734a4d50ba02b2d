package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"kvs/internal/config"
	"kvs/internal/kverrors"
)

// ScanCmd returns the scan command.
func ScanCmd(cfg config.Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("scan", flag.ContinueOnError),
		Usage: "scan [prefix]",
		Short: "List keys sharing a prefix",
		Exec: func(_ context.Context, io *IO, args []string) error {
			return execScan(io, cfg, args)
		},
	}
}

func execScan(io *IO, cfg config.Config, args []string) error {
	if len(args) > 1 {
		return kverrors.ErrInvalidInput
	}

	var prefix []byte
	if len(args) == 1 {
		prefix = []byte(args[0])
	}

	a, err := openActor(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, key := range a.Scan(prefix) {
		io.Println(key)
	}

	return nil
}
