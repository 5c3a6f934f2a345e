// Command isocode-server runs the HTTP server directly, without the CLI
// wrapper, for editor extensions that spawn it as a child process.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/isocode-ai/isocode/internal/config"
	"github.com/isocode-ai/isocode/internal/server"
)

func main() {
	workspace := os.Getenv("ISOCODE_WORKSPACE")
	if workspace == "" {
		var err error
		workspace, err = os.Getwd()
		if err != nil {
			fmt.Fprintln(os.Stderr, "cannot determine working directory:", err)
			os.Exit(1)
		}
	}

	store, err := config.Load(workspace)
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.New(store, workspace).Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "server error:", err)
		os.Exit(1)
	}
}
