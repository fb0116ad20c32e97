package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/javanhut/contentsync/internal/colors"
	"github.com/javanhut/contentsync/internal/journal"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Re-hash installed files against the install journal",
	Long: `Compares every installed file with the digest recorded when its block was
installed. Damaged blocks are marked for re-download so the next update
repairs them.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace()
		if err != nil {
			return err
		}
		defer ws.Close()

		report, err := journal.Verify(ws.journal, ws.store, ws.blocks)
		if err != nil {
			return fmt.Errorf("verify failed: %w", err)
		}

		for _, d := range report.Damaged {
			var parts []string
			if n := len(d.Missing); n > 0 {
				parts = append(parts, fmt.Sprintf("%d missing", n))
			}
			if n := len(d.Modified); n > 0 {
				parts = append(parts, fmt.Sprintf("%d modified", n))
			}
			fmt.Println(colors.BlockLine("damaged", d.Block, strings.Join(parts, ", ")))
			for _, p := range d.Missing {
				fmt.Printf("       %s %s\n", colors.Red("missing "), p)
			}
			for _, p := range d.Modified {
				fmt.Printf("       %s %s\n", colors.Yellow("modified"), p)
			}
		}
		for _, id := range report.Untracked {
			fmt.Println(colors.BlockLine("untracked", id, "no journal record"))
		}
		for _, id := range report.Stale {
			fmt.Println(colors.BlockLine("stale", id, "journal record dropped"))
		}

		if report.Healthy() {
			fmt.Printf("%s %d blocks verified\n", colors.SuccessText("OK:"), report.Checked)
			return nil
		}
		if len(report.Damaged) > 0 {
			fmt.Printf("\n%d damaged blocks will be downloaded again by %s\n",
				len(report.Damaged), colors.InfoText("contentsync update"))
			return fmt.Errorf("%d of %d blocks damaged", len(report.Damaged), report.Checked)
		}
		return nil
	},
}
