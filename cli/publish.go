package cli

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/javanhut/contentsync/internal/block"
	"github.com/javanhut/contentsync/internal/colors"
	"github.com/javanhut/contentsync/internal/publish"
)

var publishAlgo string

var publishCmd = &cobra.Command{
	Use:   "publish <source-dir> <output-dir>",
	Short: "Pack a content tree into blocks and a manifest",
	Long: `Each top-level directory of source-dir becomes one block, named after the
directory in lower case. The output directory can be served with
"contentsync serve" or copied to any static file host.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		algo, err := parseAlgo(publishAlgo)
		if err != nil {
			return err
		}
		res, err := publish.Build(args[0], args[1], publish.Options{Algo: algo, Logger: log})
		if err != nil {
			return err
		}

		var total uint64
		for _, e := range res.Entries {
			total += e.Size
			fmt.Println(colors.BlockLine("new", e.ID, humanize.Bytes(e.Size)))
		}
		fmt.Printf("%s %d blocks, %s (%s compressed) into %s\n",
			colors.SuccessText("Published"),
			len(res.Entries),
			humanize.Bytes(total),
			humanize.Bytes(res.CompressedBytes),
			colors.Bold(absPath(args[1])))
		return nil
	},
}

func init() {
	publishCmd.Flags().StringVar(&publishAlgo, "compress", "gzip", "Compression: gzip, zlib or zstd")
}

func parseAlgo(name string) (block.CompressAlgo, error) {
	switch strings.ToLower(name) {
	case "gzip", "gz":
		return block.CompressGzip, nil
	case "zlib":
		return block.CompressZlib, nil
	case "zstd":
		return block.CompressZstd, nil
	}
	return 0, fmt.Errorf("unknown compression %q (want gzip, zlib or zstd)", name)
}
