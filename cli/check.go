package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/javanhut/contentsync/internal/colors"
	"github.com/javanhut/contentsync/internal/journal"
	"github.com/javanhut/contentsync/internal/updater"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the server for content updates",
	Long:  `Fetches the manifest and lists the blocks that would be downloaded or removed, without changing anything.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		ws, err := openWorkspace()
		if err != nil {
			return err
		}
		defer ws.Close()

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		result, _ := runCheck(ctx, ws, updater.Callbacks{})
		if result.failed {
			return fmt.Errorf("update check failed: %s", result.message)
		}
		if !result.needsUpdate {
			fmt.Println(colors.SuccessText("Content is up to date."))
			return nil
		}
		printPending(result)
		fmt.Printf("\nRun %s to apply.\n", colors.InfoText("contentsync update"))
		return nil
	},
}

type checkResult struct {
	needsUpdate bool
	failed      bool
	message     string
	download    []string
	remove      []string
}

// runCheck performs a manifest check and returns the manager so the caller
// can continue the session with ProcessUpdates.
func runCheck(ctx context.Context, ws *workspace, callbacks updater.Callbacks) (checkResult, *updater.Manager) {
	var result checkResult
	callbacks.OnUpdateChecked = func(needsUpdate, failed bool, message string) {
		result.needsUpdate = needsUpdate
		result.failed = failed
		result.message = message
	}
	m := ws.newManager(callbacks)
	m.CheckForUpdates(ctx)

	if !result.failed {
		ws.touch(journal.MetaLastCheck)
	}
	result.download, result.remove = m.Pending()
	return result, m
}

func printPending(result checkResult) {
	if len(result.download) > 0 {
		fmt.Println(colors.SectionHeader("Blocks to download:"))
		for _, id := range result.download {
			fmt.Println(colors.BlockLine("download", id, ""))
		}
	}
	if len(result.remove) > 0 {
		fmt.Println(colors.SectionHeader("Blocks to remove:"))
		for _, id := range result.remove {
			fmt.Println(colors.BlockLine("remove", id, ""))
		}
	}
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
