package main

import (
	"log/slog"
	"os"

	"github.com/suitesync/suitesync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}
