// Package main is the entry point for the docmine CLI application.
package main

import (
	"fmt"
	"os"

	"github.com/pavelurbanek/docmine/cmd"
	"github.com/pavelurbanek/docmine/internal/logging"
)

// main executes the root command and maps failures to a non-zero exit status.
func main() {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	logging.Info("starting docmine", "log_level", logLevel)

	if err := cmd.Execute(); err != nil {
		logging.Error("command execution failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
