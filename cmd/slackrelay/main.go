package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"slackrelay/internal/app"
	"slackrelay/internal/clock"
	"slackrelay/internal/config"
)

const usage = `usage:
  slackrelay run   [--config-file PATH | --config-dir PATH] [--params-file PATH]
  slackrelay serve [--config-file PATH | --config-dir PATH]`

// main dispatches the run and serve commands.
// Params: command name followed by command flags.
// Returns: process exit code by command result.
func main() {
	os.Exit(execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// execute runs one command with explicit streams.
// Params: arguments after the binary name, input, output, and error streams.
// Returns: exit code (0 success, 1 failure, 2 usage error).
func execute(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stderr, usage)
		return 2
	}

	flags := flag.NewFlagSet(args[0], flag.ContinueOnError)
	flags.SetOutput(stderr)
	configFile := flags.String("config-file", "", "path to one TOML config file")
	configDir := flags.String("config-dir", "", "path to directory with TOML config fragments")

	switch args[0] {
	case "run":
		paramsFile := flags.String("params-file", "", "path to JSON parameters (stdin when empty)")
		if err := flags.Parse(args[1:]); err != nil {
			return 2
		}
		source, err := config.FromCLI(*configFile, *configDir)
		if err != nil {
			_, _ = fmt.Fprintln(stderr, err.Error())
			return 2
		}
		params, err := readParams(*paramsFile, stdin)
		if err != nil {
			_, _ = fmt.Fprintln(stderr, "read parameters:", err.Error())
			return 1
		}
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if err := app.RunOnce(ctx, source, params, stdout); err != nil {
			_, _ = fmt.Fprintln(stderr, err.Error())
			return 1
		}
		return 0

	case "serve":
		if err := flags.Parse(args[1:]); err != nil {
			return 2
		}
		source, err := config.FromCLI(*configFile, *configDir)
		if err != nil {
			_, _ = fmt.Fprintln(stderr, err.Error())
			return 2
		}
		service, err := app.NewService(source, clock.RealClock{})
		if err != nil {
			_, _ = fmt.Fprintln(stderr, "service init failed:", err.Error())
			return 1
		}
		if err := service.Run(context.Background()); err != nil {
			_, _ = fmt.Fprintln(stderr, "service run failed:", err.Error())
			return 1
		}
		return 0

	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n%s\n", args[0], usage)
		return 2
	}
}

func readParams(path string, stdin io.Reader) ([]byte, error) {
	if path == "" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}
