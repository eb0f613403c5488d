package main

import (
	"fmt"
	"os"

	"github.com/clipforge/clipforge/internal/cli"
	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	deps := &cli.Dependencies{
		Config: cfg,
		// Logs go to stderr so command output stays clean on stdout.
		Logger: logging.New(os.Stderr, cfg.LogLevel()),
	}
	return cli.NewRootCmd(deps).Execute()
}
