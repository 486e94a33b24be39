package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mcpskill/mcpskill/internal/logger"
)

func main() {
	slog.SetDefault(slog.New(logger.NewColorTextHandler(os.Stderr, nil)))

	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
