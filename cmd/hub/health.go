package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the content hub server",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := hubClient.Health(context.Background())
		if h == nil {
			return fmt.Errorf("checking health: %w", err)
		}

		if jsonOutput {
			printJSON(cmd.OutOrStdout(), h)
		} else {
			printHealth(cmd.OutOrStdout(), h)
		}

		if err != nil || (h.Status != "ok" && h.Status != "degraded") {
			return fmt.Errorf("unhealthy: %s", h.Status)
		}
		return nil
	},
}
