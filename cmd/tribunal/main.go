package main

import (
	"fmt"
	"log/slog"
	"os"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cmd := "serve"
	if len(args) > 0 {
		cmd = args[0]
		args = args[1:]
	}

	switch cmd {
	case "serve":
		return runServe()
	case "run":
		return runOnce(args)
	case "migrate":
		return runMigrate(args)
	case "hash-token":
		return runHashToken(args)
	case "help", "--help", "-h":
		printHelp()
		return nil
	default:
		printHelp()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func printHelp() {
	fmt.Fprintf(os.Stderr, `Usage: tribunal <command> [options]

Commands:
  serve        Start the audit API server (default)
  run          Run a single audit from the command line
  migrate      Apply or inspect database migrations
  hash-token   Generate a bcrypt hash for the API bearer token
  help         Show this help message

Examples:
  tribunal serve
  tribunal run --repo https://github.com/acme/widget.git --doc report.md --type peer
  tribunal migrate up
  tribunal hash-token
`)
}
