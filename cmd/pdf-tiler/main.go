package main

import (
	"fmt"
	"os"

	"github.com/Lllllllleong/visionocrbatch/internal/cli"
	"github.com/Lllllllleong/visionocrbatch/internal/tiling"
	"github.com/gen2brain/go-fitz"
	"github.com/spf13/cobra"
)

// CLI flags
var (
	resolutionFlag int
	batchFlag      int
	outputFlag     string
	logLevelFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "pdf-tiler <dir>",
	Short: "Render PDF pages and stack them into PNG tiles",
	Long: `pdf-tiler renders every page of every PDF in <dir> at the chosen resolution
and stacks --batch consecutive pages vertically into one PNG, named
<file>-<dpi>-<from>-<to>.png. Pages of different PDFs are never mixed.

Examples:
  pdf-tiler ./rolls
  pdf-tiler ./rolls -r 200 -b 15 -o ./tiles`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runMain,
}

func init() {
	rootCmd.Flags().IntVarP(&resolutionFlag, "resolution", "r", tiling.DefaultDPI, fmt.Sprintf("Output resolution in DPI, one of %v", tiling.Resolutions))
	rootCmd.Flags().IntVarP(&batchFlag, "batch", "b", tiling.DefaultBatch, "Number of pages stacked in one PNG")
	rootCmd.Flags().StringVarP(&outputFlag, "output", "o", tiling.DefaultOutputDir, "Directory of PNG output files")
	rootCmd.Flags().StringVar(&logLevelFlag, "log-level", "INFO", "CRITICAL, ERROR, WARNING, INFO or DEBUG")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) error {
	sink, err := cli.StartLogging(logLevelFlag, "", false)
	if err != nil {
		return err
	}
	defer sink.Close()
	logger := sink.Logger("pdf.tiler")

	tiler, err := tiling.New(resolutionFlag, batchFlag, outputFlag, logger)
	if err != nil {
		return err
	}

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	tiles, err := tiler.TileDir(ctx, args[0], openPDF)
	logger.Info("Tiling finished.", "tiles", len(tiles))
	return err
}

func openPDF(path string) (tiling.PageSource, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return doc, nil
}
