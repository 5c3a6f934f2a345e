package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/isocode-ai/isocode/internal/config"
	"github.com/isocode-ai/isocode/internal/server"
	"github.com/isocode-ai/isocode/pkg/types"
)

var flagPort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server for the editor extension",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := config.Load(flagWorkspace)
		if err != nil {
			return err
		}
		if flagPort != 0 {
			if _, err := store.Update(partialPort(flagPort)); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return server.New(store, flagWorkspace).Start(ctx)
	},
}

func partialPort(port int) types.Settings {
	return types.Settings{Port: port}
}

func init() {
	serveCmd.Flags().IntVarP(&flagPort, "port", "p", 0, "listen port (overrides configuration)")
}
