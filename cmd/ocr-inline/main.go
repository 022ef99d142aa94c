package main

import (
	"fmt"
	"os"

	"github.com/Lllllllleong/visionocrbatch/internal/cli"
	"github.com/Lllllllleong/visionocrbatch/internal/config"
	"github.com/Lllllllleong/visionocrbatch/internal/gcp"
	"github.com/Lllllllleong/visionocrbatch/internal/logsink"
	"github.com/Lllllllleong/visionocrbatch/internal/retry"
	"github.com/Lllllllleong/visionocrbatch/internal/services"
	"github.com/spf13/cobra"
)

// CLI flags
var (
	outputFlag      string
	overwriteFlag   bool
	credentialsFlag string
	processesFlag   int
	logLevelFlag    string
	patternFlag     string
	logFileFlag     string
	envFileFlag     string
)

var rootCmd = &cobra.Command{
	Use:   "ocr-inline <dir>",
	Short: "Recognize text in scanned images with synchronous Cloud Vision calls",
	Long: `ocr-inline sends each matching image in <dir> directly to Cloud Vision
document text detection, without staging it in Cloud Storage, and writes
X.png, X.txt and X.json for every input X into the output directory.

Examples:
  ocr-inline ./scans
  ocr-inline ./scans -o ./ocr -c key.json --pattern '*.jpg'`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&outputFlag, "output", "o", "output", "Directory for the .png, .txt and .json outputs")
	rootCmd.Flags().BoolVar(&overwriteFlag, "overwritten", false, "Process files whose output already exists")
	rootCmd.Flags().StringVarP(&credentialsFlag, "credentials", "c", "", "Service account key file (default: $GOOGLE_APPLICATION_CREDENTIALS)")
	rootCmd.Flags().IntVarP(&processesFlag, "processes", "p", 1, "Number of files processed concurrently")
	rootCmd.Flags().StringVar(&logLevelFlag, "log-level", "INFO", "CRITICAL, ERROR, WARNING, INFO or DEBUG")
	rootCmd.Flags().StringVar(&patternFlag, "pattern", services.DefaultPattern, "File name pattern selecting inputs in <dir>")
	rootCmd.Flags().StringVar(&logFileFlag, "log-file", "mplog.log", "Log file, appended to")
	rootCmd.Flags().StringVar(&envFileFlag, "env-file", "", "Env file to load (default: .env when present)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) error {
	if processesFlag < 1 {
		return fmt.Errorf("--processes must be at least 1, got %d", processesFlag)
	}
	cfg, err := config.Load(envFileFlag)
	if err != nil {
		return err
	}
	if err := cfg.ResolveCredentials(credentialsFlag); err != nil {
		return err
	}
	if cmd.Flags().Changed("log-file") {
		cfg.LogFile = logFileFlag
	}

	sink, err := cli.StartLogging(logLevelFlag, cfg.LogFile, false)
	if err != nil {
		return err
	}
	defer sink.Close()
	logger := sink.Logger("ocr.inline")

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	visionClient, err := gcp.NewVisionClient(ctx, gcp.ClientOptions(cfg.CredentialsFile)...)
	if err != nil {
		return err
	}
	defer visionClient.Close()

	if err := os.MkdirAll(outputFlag, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	proc := services.NewInlineProcessor(visionClient, services.InlineConfig{
		OutputDir:     outputFlag,
		Overwrite:     overwriteFlag,
		LanguageHints: cfg.LanguageHints,
		Timeout:       cfg.InlineTimeout,
		Retry:         retry.Policy{MaxAttempts: cfg.MaxAttempts, InitialBackoff: cfg.RetryBackoff},
	})

	logger.Info("Starting inline recognition.", "dir", args[0], "output", outputFlag)
	orch := services.NewOrchestrator(proc, nil, services.OrchestratorConfig{
		InputDir: args[0],
		Pattern:  patternFlag,
		Workers:  processesFlag,
	}, logger)

	if _, err := orch.Run(ctx); err != nil {
		logger.Log(ctx, logsink.LevelCritical, "Run aborted.", "error", err)
		return err
	}
	return nil
}
