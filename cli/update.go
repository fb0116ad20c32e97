package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/javanhut/contentsync/internal/colors"
	"github.com/javanhut/contentsync/internal/journal"
	"github.com/javanhut/contentsync/internal/updater"
)

var updateQuiet bool

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Download and install content updates",
	Long: `Checks the server manifest, removes blocks it no longer lists, then downloads,
verifies and installs every changed block. Interrupting stops after the
current download; already installed blocks are kept.`,
	Args: cobra.NoArgs,
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

		p := &progressLine{quiet: updateQuiet}
		var success bool
		var transferred uint64
		callbacks := updater.Callbacks{
			OnProgress: p.update,
			OnComplete: func(ok bool, n uint64) {
				success, transferred = ok, n
			},
		}

		result, m := runCheck(ctx, ws, callbacks)
		if result.failed {
			return fmt.Errorf("update check failed: %s", result.message)
		}
		if !result.needsUpdate {
			fmt.Println(colors.SuccessText("Content is up to date."))
			return nil
		}
		if !updateQuiet {
			printPending(result)
		}

		m.ProcessUpdates(ctx)
		p.finish()

		if !success {
			return fmt.Errorf("update incomplete after %s; run again to retry the remaining blocks",
				humanize.Bytes(transferred))
		}
		ws.touch(journal.MetaLastUpdate)
		fmt.Printf("%s %s downloaded into %s\n",
			colors.SuccessText("Update complete:"),
			humanize.Bytes(transferred),
			colors.Bold(absPath(cfg.Storage.Root)))
		return nil
	},
}

func init() {
	updateCmd.Flags().BoolVarP(&updateQuiet, "quiet", "q", false, "Do not print progress")
}

// progressLine redraws a single status line on stderr.
type progressLine struct {
	quiet bool
	width int
}

func (p *progressLine) update(done, total uint64, block string) {
	if p.quiet {
		return
	}
	pct := 100.0
	if total > 0 {
		pct = float64(done) * 100 / float64(total)
	}
	line := fmt.Sprintf("  %s  %s / %s (%.0f%%)",
		colors.InfoText(block), humanize.Bytes(done), humanize.Bytes(total), pct)
	pad := ""
	if n := p.width - len(line); n > 0 {
		pad = strings.Repeat(" ", n)
	}
	p.width = len(line)
	fmt.Fprint(os.Stderr, "\r"+line+pad)
}

func (p *progressLine) finish() {
	if !p.quiet && p.width > 0 {
		fmt.Fprintln(os.Stderr)
	}
}
