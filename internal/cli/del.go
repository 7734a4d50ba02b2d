package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"kvs/internal/config"
	"kvs/internal/kverrors"
)

// DelCmd returns the del command.
func DelCmd(cfg config.Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("del", flag.ContinueOnError),
		Usage: "del <key>",
		Short: "Delete a key",
		Exec: func(_ context.Context, io *IO, args []string) error {
			return execDel(io, cfg, args)
		},
	}
}

func execDel(io *IO, cfg config.Config, args []string) error {
	if len(args) != 1 {
		return kverrors.ErrInvalidInput
	}

	a, err := openActor(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	present, err := a.Del([]byte(args[0]))
	if err != nil {
		return err
	}

	if present {
		io.Println("1")
	} else {
		io.Println("0")
	}

	return nil
}
