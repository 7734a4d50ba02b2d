package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"kvs/internal/config"
	"kvs/internal/kverrors"
)

// SetCmd returns the set command.
func SetCmd(cfg config.Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("set", flag.ContinueOnError),
		Usage: "set <key> <value>",
		Short: "Set a key to a value",
		Exec: func(_ context.Context, io *IO, args []string) error {
			return execSet(io, cfg, args)
		},
	}
}

func execSet(io *IO, cfg config.Config, args []string) error {
	if len(args) != 2 {
		return kverrors.ErrInvalidInput
	}

	a, err := openActor(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Set([]byte(args[0]), []byte(args[1])); err != nil {
		return err
	}

	io.Println("OK")

	return nil
}
