package cli

import (
	"context"
	"encoding/json"
	"fmt"

	flag "github.com/spf13/pflag"

	"kvs/internal/config"
)

// ConfigCmd returns the config diagnostic command.
func ConfigCmd(cfg config.Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("config", flag.ContinueOnError),
		Usage: "config",
		Short: "Show resolved configuration",
		Long:  "Display the effective configuration after merging defaults, config file, and flags.",
		Exec: func(_ context.Context, io *IO, _ []string) error {
			return execConfig(io, cfg)
		},
	}
}

func execConfig(io *IO, cfg config.Config) error {
	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	io.Println(string(out))

	return nil
}
