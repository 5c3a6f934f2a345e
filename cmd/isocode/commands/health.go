package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/isocode-ai/isocode/internal/config"
	"github.com/isocode-ai/isocode/internal/llm"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe the configured LLM provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := config.Load(flagWorkspace)
		if err != nil {
			return err
		}

		health := llm.New(store.Settings()).Health(cmd.Context())
		if !health.OK {
			return fmt.Errorf("provider %s unhealthy: %s", health.Provider, health.Error)
		}
		fmt.Printf("provider %s: ok\n", health.Provider)
		return nil
	},
}
