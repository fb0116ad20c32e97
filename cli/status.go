package cli

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/javanhut/contentsync/internal/colors"
	"github.com/javanhut/contentsync/internal/journal"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show installed content blocks",
	Long:  `Lists the blocks installed in the local content directory along with what the journal knows about them.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace()
		if err != nil {
			return err
		}
		defer ws.Close()

		server := cfg.Server.BaseURL
		if server == "" {
			server = colors.Gray("(not set)")
		}
		fmt.Printf("Server:  %s\n", server)
		fmt.Printf("Content: %s\n", absPath(cfg.Storage.Root))
		fmt.Printf("Checked: %s\n", ws.when(journal.MetaLastCheck))
		fmt.Printf("Updated: %s\n", ws.when(journal.MetaLastUpdate))
		fmt.Println()

		installed := ws.blocks.ReadLocalBlocks()
		if len(installed) == 0 {
			fmt.Println(colors.Dim("No content blocks installed."))
			return nil
		}

		fmt.Println(colors.SectionHeader(fmt.Sprintf("Installed blocks (%d):", len(installed))))
		var files int
		for _, lb := range installed {
			files += len(lb.Files)
			detail := fmt.Sprintf("%d files", len(lb.Files))
			state := "installed"
			rec, err := ws.journal.Record(lb.ID)
			switch {
			case errors.Is(err, journal.ErrNotFound):
				state = "untracked"
			case err != nil:
				return fmt.Errorf("failed to read journal: %w", err)
			default:
				detail += ", installed " + humanize.Time(rec.InstalledAt)
			}
			fmt.Println(colors.BlockLine(state, lb.ID, detail))
		}
		fmt.Printf("\n%d files in %d blocks\n", files, len(installed))
		return nil
	},
}

func (w *workspace) when(key string) string {
	t, ok := w.lastTime(key)
	if !ok {
		return colors.Gray("never")
	}
	return humanize.Time(t)
}
