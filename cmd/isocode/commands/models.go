package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/isocode-ai/isocode/internal/config"
	"github.com/isocode-ai/isocode/internal/llm"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models available at the configured provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := config.Load(flagWorkspace)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		models, err := llm.New(store.Settings()).ListModels(ctx)
		if err != nil {
			return err
		}
		for _, m := range models {
			fmt.Println(m.ID)
		}
		return nil
	},
}
