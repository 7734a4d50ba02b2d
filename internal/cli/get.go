package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"kvs/internal/config"
	"kvs/internal/kverrors"
)

// GetCmd returns the get command.
func GetCmd(cfg config.Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("get", flag.ContinueOnError),
		Usage: "get <key>",
		Short: "Get the value for a key",
		Exec: func(_ context.Context, io *IO, args []string) error {
			return execGet(io, cfg, args)
		},
	}
}

func execGet(io *IO, cfg config.Config, args []string) error {
	if len(args) != 1 {
		return kverrors.ErrInvalidInput
	}

	a, err := openActor(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	value, ok, err := a.Get([]byte(args[0]))
	if err != nil {
		return err
	}

	if !ok {
		io.Println("(nil)")
		return nil
	}

	io.Println(string(value))

	return nil
}
