// kvs-shell is an interactive line-protocol REPL. It either dials a
// running kvs server or opens a data directory directly, in-process.
//
// Usage:
//
//	kvs-shell --addr HOST:PORT        Connect to a running server
//	kvs-shell --data-dir DIR          Open a data directory directly
package main

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"
	"github.com/peterh/liner"

	"kvs/internal/engine/actor"
	"kvs/internal/engine/store"
	"kvs/internal/netkv"
	"kvs/pkg/fs"
)

func main() {
	addr := flag.String("addr", "", "Connect to a running kvs server at host:port")
	dataDir := flag.String("data-dir", "", "Open a data directory directly, in-process")
	flag.Parse()

	if (*addr == "") == (*dataDir == "") {
		fmt.Fprintln(os.Stderr, "exactly one of --addr or --data-dir is required")
		os.Exit(1)
	}

	dispatch, closeFn, err := connect(*addr, *dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	defer closeFn()

	if err := repl(dispatch); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// connect returns a dispatch function that sends a line and returns the
// reply text (without a trailing newline per line), plus a cleanup func.
func connect(addr, dataDir string) (func(string) (string, error), func(), error) {
	if addr != "" {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return nil, nil, fmt.Errorf("dial %q: %w", addr, err)
		}

		r := bufio.NewReader(conn)

		dispatch := func(line string) (string, error) {
			if _, err := conn.Write([]byte(line + "\n")); err != nil {
				return "", err
			}

			return readReply(r, line)
		}

		return dispatch, func() { _ = conn.Close() }, nil
	}

	s, err := store.Open(fs.NewReal(), store.Config{DataDir: dataDir})
	if err != nil {
		return nil, nil, fmt.Errorf("open %q: %w", dataDir, err)
	}

	a := actor.Start(s)

	dispatch := func(line string) (string, error) {
		return strings.TrimRight(netkv.Dispatch(a, line), "\n"), nil
	}

	return dispatch, a.Close, nil
}

// readReply reads one reply from r, reading additional lines for SCAN's
// key-per-line-then-OK format.
func readReply(r *bufio.Reader, line string) (string, error) {
	isScan := strings.HasPrefix(strings.ToUpper(strings.TrimSpace(line)), "SCAN")

	var out []string

	for {
		text, err := r.ReadString('\n')
		if err != nil {
			return "", err
		}

		text = strings.TrimRight(text, "\n")
		out = append(out, text)

		if !isScan || text == "OK" {
			break
		}
	}

	return strings.Join(out, "\n"), nil
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".kvs_shell_history")
}

func repl(dispatch func(string) (string, error)) error {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(completer)

	if f, err := os.Open(historyFile()); err == nil {
		_, _ = line.ReadHistory(f)
		_ = f.Close()
	}

	fmt.Println("kvs-shell - type SET/GET/DEL/SCAN/SNAPSHOT commands, or 'exit'")

	for {
		text, err := line.Prompt("kvs> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println()
				break
			}

			return err
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		if strings.EqualFold(text, "exit") || strings.EqualFold(text, "quit") {
			break
		}

		line.AppendHistory(text)

		reply, err := dispatch(text)
		if err != nil {
			return fmt.Errorf("dispatch: %w", err)
		}

		fmt.Println(reply)
	}

	if f, err := os.Create(historyFile()); err == nil {
		_, _ = line.WriteHistory(f)
		_ = f.Close()
	}

	return nil
}

func completer(prefix string) []string {
	commands := []string{"SET", "GET", "DEL", "SCAN", "SNAPSHOT", "exit"}

	var out []string

	upper := strings.ToUpper(prefix)

	for _, c := range commands {
		if strings.HasPrefix(c, upper) {
			out = append(out, c)
		}
	}

	return out
}
