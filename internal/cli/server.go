package cli

import (
	"context"
	"fmt"
	"net/http"

	flag "github.com/spf13/pflag"

	"kvs/internal/config"
	"kvs/internal/engine/actor"
	"kvs/internal/netkv"
	"kvs/internal/netkv/wsbridge"
)

// ServerCmd returns the server command.
func ServerCmd(cfg config.Config, configPath string, overrides config.Config) *Command {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	wsAddr := fs.String("ws-addr", "", "Also serve the line protocol over WebSocket at this address")

	return &Command{
		Flags: fs,
		Usage: "server [flags]",
		Short: "Run the line-protocol TCP server",
		Long: "Listen for line-protocol connections and serve them against a single Actor until interrupted. " +
			"If --config names a file, edits to it are picked up live: max_log_size and addr take effect " +
			"without a restart. durability requires a restart.",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			return execServer(ctx, io, cfg, configPath, overrides, *wsAddr)
		},
	}
}

func execServer(ctx context.Context, io *IO, cfg config.Config, configPath string, overrides config.Config, wsAddr string) error {
	a, err := openActor(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if wsAddr != "" {
		wsServer := &http.Server{Addr: wsAddr, Handler: wsbridge.Handler(a)}

		io.Println("websocket listening on " + wsAddr)

		go func() { _ = wsServer.ListenAndServe() }()

		defer func() { _ = wsServer.Close() }()
	}

	var updates <-chan config.Config

	if configPath != "" {
		watcher, err := config.WatchFile(configPath, overrides)
		if err != nil {
			return fmt.Errorf("watch config file: %w", err)
		}

		defer func() { _ = watcher.Close() }()

		updates = watcher.Updates()
	}

	// configuredAddr tracks the raw, possibly-unresolved address string
	// (e.g. "127.0.0.1:0") from the last applied Config, so a reload is
	// compared against what was configured rather than the port the OS
	// actually bound.
	configuredAddr := cfg.Addr

	bindAddr := configuredAddr
	if bindAddr == "" {
		bindAddr = "127.0.0.1:7711"
	}

	srv, serveErr, err := listenAndServe(a, bindAddr, io)
	if err != nil {
		return err
	}

	defer func() { _ = srv.Close() }()

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-serveErr:
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			return nil

		case newCfg, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}

			maxLogSize, err := config.ParseMaxLogSize(newCfg.MaxLogSize)
			if err != nil {
				io.ErrPrintln("config reload:", err)
				continue
			}

			a.SetMaxLogSize(maxLogSize)

			if newCfg.Addr != "" && newCfg.Addr != configuredAddr {
				_ = srv.Close()
				<-serveErr // the Close above makes Serve return; drain it before rebinding

				srv, serveErr, err = listenAndServe(a, newCfg.Addr, io)
				if err != nil {
					return fmt.Errorf("rebind to %s: %w", newCfg.Addr, err)
				}

				configuredAddr = newCfg.Addr
			}
		}
	}
}

func listenAndServe(a *actor.Actor, addr string, io *IO) (*netkv.Server, chan error, error) {
	srv, err := netkv.Listen(a, addr)
	if err != nil {
		return nil, nil, err
	}

	io.Println("listening on " + srv.Addr().String())

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve() }()

	return srv, serveErr, nil
}
