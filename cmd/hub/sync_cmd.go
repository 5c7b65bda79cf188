package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kuhandran/Content-Hub-sub001/internal/config"
	"github.com/kuhandran/Content-Hub-sub001/internal/model"
	contentsync "github.com/kuhandran/Content-Hub-sub001/internal/sync"
	"github.com/kuhandran/Content-Hub-sub001/internal/ui"
)

// withLocalRuntime runs fn against backends opened from CONTENTHUB_*
// configuration instead of a running server.
func withLocalRuntime(fn func(ctx context.Context, rt *runtime) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rt, err := openRuntime(ctx, cfg, cfg.Logger(os.Stderr))
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

var pumpCmd = &cobra.Command{
	Use:   "pump",
	Short: "Load the filesystem source into the content store",
	Long: `Load the filesystem source into the content store.

Every eligible file under the source root is classified, hashed and upserted;
per-file failures are collected in the report. With --changed-only, files
whose hash matches the sync manifest are skipped. With --local the pump runs
in this process against CONTENTHUB_* configuration instead of on the server.`,
	GroupID: "sync",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		local, _ := cmd.Flags().GetBool("local")
		changedOnly, _ := cmd.Flags().GetBool("changed-only")
		opts := contentsync.PumpOptions{ChangedOnly: changedOnly}

		var report *model.PumpReport
		if local {
			root, _ := cmd.Flags().GetString("root")
			err := withLocalRuntime(func(ctx context.Context, rt *runtime) error {
				if root == "" {
					root = rt.cfg.SourceRoot
				}
				var err error
				report, err = rt.pipeline.Pump(ctx, root, opts)
				return err
			})
			if err != nil {
				return err
			}
		} else {
			var err error
			report, err = hubClient.Pump(context.Background(), opts)
			if err != nil {
				return err
			}
		}

		if jsonOutput {
			printJSON(cmd.OutOrStdout(), report)
		} else {
			printPumpReport(cmd.OutOrStdout(), report)
		}
		return nil
	},
}

var diffCmd = &cobra.Command{
	Use:     "diff",
	Short:   "Compare the filesystem source against the sync manifest",
	GroupID: "sync",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		local, _ := cmd.Flags().GetBool("local")

		var diff *model.DiffReport
		if local {
			root, _ := cmd.Flags().GetString("root")
			err := withLocalRuntime(func(ctx context.Context, rt *runtime) error {
				if root == "" {
					root = rt.cfg.SourceRoot
				}
				var err error
				diff, err = rt.pipeline.Diff(ctx, root)
				return err
			})
			if err != nil {
				return err
			}
		} else {
			var err error
			diff, err = hubClient.Diff(context.Background())
			if err != nil {
				return err
			}
		}

		if jsonOutput {
			printJSON(cmd.OutOrStdout(), diff)
		} else {
			printDiff(cmd.OutOrStdout(), diff)
		}
		return nil
	},
}

var errNotConfirmed = errors.New("clear not confirmed; pass --yes to skip the prompt")

var clearCmd = &cobra.Command{
	Use:     "clear",
	Short:   "Delete every content row, manifest entry and cached item",
	GroupID: "sync",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			if !ui.IsTerminal(os.Stdin) {
				return errNotConfirmed
			}
			if !confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), "Delete ALL content from the store? Type 'yes' to continue: ") {
				return errNotConfirmed
			}
		}

		local, _ := cmd.Flags().GetBool("local")
		var report *model.ClearReport
		if local {
			err := withLocalRuntime(func(ctx context.Context, rt *runtime) error {
				var err error
				report, err = rt.pipeline.Clear(ctx)
				return err
			})
			if err != nil {
				return err
			}
		} else {
			var err error
			report, err = hubClient.Clear(context.Background())
			if err != nil {
				return err
			}
		}

		if jsonOutput {
			printJSON(cmd.OutOrStdout(), report)
		} else {
			printClear(cmd.OutOrStdout(), report)
		}
		return nil
	},
}

// confirm reads one line from in and reports whether it is "yes".
func confirm(in io.Reader, prompt io.Writer, question string) bool {
	fmt.Fprint(prompt, question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(line), "yes")
}

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show whether a pump is running and how the last one went",
	GroupID: "sync",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := hubClient.SyncStatus(context.Background())
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(cmd.OutOrStdout(), st)
			return nil
		}
		printStatus(cmd.OutOrStdout(), st)
		return nil
	},
}

var manifestCmd = &cobra.Command{
	Use:     "manifest",
	Short:   "List the sync manifest (last synced hash per source file)",
	GroupID: "sync",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := hubClient.Manifest(context.Background())
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(cmd.OutOrStdout(), entries)
			return nil
		}
		printManifest(cmd.OutOrStdout(), entries)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show row counts per table",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := hubClient.Stats(context.Background())
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(cmd.OutOrStdout(), rows)
			return nil
		}
		printCounts(cmd.OutOrStdout(), rows)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{pumpCmd, diffCmd} {
		c.Flags().Bool("local", false, "run against CONTENTHUB_* configuration instead of the server")
		c.Flags().String("root", "", "source root for --local (default CONTENTHUB_SOURCE_ROOT)")
	}
	pumpCmd.Flags().Bool("changed-only", false, "skip files whose hash matches the manifest")

	clearCmd.Flags().Bool("local", false, "run against CONTENTHUB_* configuration instead of the server")
	clearCmd.Flags().Bool("yes", false, "do not prompt for confirmation")
}
