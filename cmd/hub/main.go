package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/kuhandran/Content-Hub-sub001/internal/client"
	"github.com/kuhandran/Content-Hub-sub001/internal/ui"
)

var (
	serverURL  string
	authToken  string
	jsonOutput bool

	hubClient client.HubClient
)

func defaultServerURL() string {
	if s := os.Getenv("CONTENTHUB_URL"); s != "" {
		return s
	}
	if u := activeRemoteURL(); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func defaultToken() string {
	if s := os.Getenv("CONTENTHUB_TOKEN"); s != "" {
		return s
	}
	return activeRemoteToken()
}

var rootCmd = &cobra.Command{
	Use:   "hub <command>",
	Short: "Multi-language content hub: serve, sync and query content",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		hubClient = client.NewHTTPClient(serverURL, authToken)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if hubClient != nil {
			hubClient.Close()
		}
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "url", defaultServerURL(), "content hub server URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", defaultToken(), "bearer token (static token or JWT)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "content", Title: "Content:"},
		&cobra.Group{ID: "sync", Title: "Sync:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Content
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(filesCmd)

	// Sync
	rootCmd.AddCommand(pumpCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(manifestCmd)
	rootCmd.AddCommand(watchCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	ui.Setup()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
