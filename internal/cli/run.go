package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"kvs/internal/config"
)

// Run is the main entry point. Returns the exit code.
// sigCh can be nil if signal handling is not needed (e.g., in tests).
func Run(_ io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	globalFlags := flag.NewFlagSet("kvs", flag.ContinueOnError)
	globalFlags.SetInterspersed(false)
	globalFlags.Usage = func() {}
	globalFlags.SetOutput(&strings.Builder{})

	flagHelp := globalFlags.BoolP("help", "h", false, "Show help")
	flagConfig := globalFlags.StringP("config", "c", "", "Use specified config `file`")
	flagDataDir := globalFlags.String("data-dir", "", "Override data `directory`")
	flagLogPath := globalFlags.String("log-path", "", "Override log file `name`")
	flagDurability := globalFlags.String("durability", "", "flush | fsync-always | fsync-every-n:N")
	flagMaxLogSize := globalFlags.String("max-log-size", "", "Auto-snapshot threshold, e.g. 64MB")
	flagAddr := globalFlags.String("addr", "", "Line-protocol listen `address` (server only)")

	if err := globalFlags.Parse(args[1:]); err != nil {
		fprintln(errOut, "error:", err)
		printGlobalOptions(errOut)

		return 1
	}

	overrides := config.Config{
		DataDir:     *flagDataDir,
		LogFileName: *flagLogPath,
		Durability:  *flagDurability,
		MaxLogSize:  *flagMaxLogSize,
		Addr:        *flagAddr,
	}

	if v, ok := env["KVS_CONFIG"]; ok && *flagConfig == "" {
		*flagConfig = v
	}

	cfg, err := config.Load(*flagConfig, overrides)
	if err != nil {
		fprintln(errOut, "error:", err)
		printGlobalOptions(errOut)

		return 1
	}

	commands := allCommands(cfg, *flagConfig, overrides)

	commandMap := make(map[string]*Command, len(commands))
	for _, cmd := range commands {
		commandMap[cmd.Name()] = cmd
	}

	commandAndArgs := globalFlags.Args()

	if *flagHelp || (len(commandAndArgs) == 0 && globalFlags.NFlag() == 0) {
		printUsage(out, commands)
		return 0
	}

	if len(commandAndArgs) == 0 {
		fprintln(errOut, "error: no command provided")
		printUsage(errOut, commands)

		return 1
	}

	cmdName := commandAndArgs[0]

	cmd, ok := commandMap[cmdName]
	if !ok {
		fprintln(errOut, "error: unknown command:", cmdName)
		printUsage(errOut, commands)

		return 1
	}

	cmdIO := NewIO(out, errOut)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan int, 1)

	go func() {
		done <- cmd.Run(ctx, cmdIO, commandAndArgs[1:])
	}()

	select {
	case exitCode := <-done:
		return exitCode
	case <-sigCh:
		fprintln(errOut, "shutting down with 5s timeout...")
		cancel()
	}

	select {
	case <-done:
		fprintln(errOut, "graceful shutdown ok (130)")
		return 130
	case <-time.After(5 * time.Second):
		fprintln(errOut, "graceful shutdown timed out, forced exit (130)")
		return 130
	case <-sigCh:
		fprintln(errOut, "graceful shutdown interrupted, forced exit (130)")
		return 130
	}
}

// allCommands returns all commands in display order. configPath and
// overrides are threaded through to ServerCmd so the running server can
// re-resolve its Config the same way Run did, on every config file change.
func allCommands(cfg config.Config, configPath string, overrides config.Config) []*Command {
	return []*Command{
		SetCmd(cfg),
		GetCmd(cfg),
		DelCmd(cfg),
		ScanCmd(cfg),
		SnapshotCmd(cfg),
		ServerCmd(cfg, configPath, overrides),
		ConfigCmd(cfg),
		RepairCmd(cfg),
	}
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

const globalOptionsHelp = `  -h, --help                 Show help
  -c, --config <file>        Use specified config file
  --data-dir <dir>           Override data directory
  --log-path <name>          Override log file name
  --durability <policy>      flush | fsync-always | fsync-every-n:N
  --max-log-size <size>      Auto-snapshot threshold, e.g. 64MB
  --addr <address>           Line-protocol listen address (server only)`

func printGlobalOptions(w io.Writer) {
	fprintln(w, "Usage: kvs [flags] <command> [args]")
	fprintln(w)
	fprintln(w, "Global flags:")
	fprintln(w, globalOptionsHelp)
	fprintln(w)
	fprintln(w, "Run 'kvs --help' for a list of commands.")
}

func printUsage(w io.Writer, commands []*Command) {
	fprintln(w, "kvs - an embeddable, crash-safe key-value store")
	fprintln(w)
	fprintln(w, "Usage: kvs [flags] <command> [args]")
	fprintln(w)
	fprintln(w, "Flags:")
	fprintln(w, globalOptionsHelp)
	fprintln(w)
	fprintln(w, "Commands:")

	for _, cmd := range commands {
		fprintln(w, cmd.HelpLine())
	}
}
