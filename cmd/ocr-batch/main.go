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
	bucketFlag      string
	credentialsFlag string
	processesFlag   int
	logLevelFlag    string
	patternFlag     string
	projectFlag     string
	logFileFlag     string
	ledgerFlag      string
	progressFlag    bool
	envFileFlag     string
)

var rootCmd = &cobra.Command{
	Use:   "ocr-batch <dir>",
	Short: "Recognize text in a directory of scanned images with Cloud Vision",
	Long: `ocr-batch stages every matching image in <dir> to Cloud Storage, runs
asynchronous document text detection on it and writes, for each input X,
X.png (the image with block, paragraph and word outlines), X.txt (the text)
and X.json (the structured result) into the output directory.

Without --bucket-name a staging bucket is created for the run and deleted
when every file has finished.

Examples:
  ocr-batch ./rolls
  ocr-batch ./rolls -o ./ocr -p 4 -c key.json
  ocr-batch ./scans --pattern '*.tif' --overwritten --progress`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&outputFlag, "output", "o", "output", "Directory for the .png, .txt and .json outputs")
	rootCmd.Flags().BoolVar(&overwriteFlag, "overwritten", false, "Process files whose output already exists")
	rootCmd.Flags().StringVarP(&bucketFlag, "bucket-name", "b", "", "Existing staging bucket (default: create a temporary one)")
	rootCmd.Flags().StringVarP(&credentialsFlag, "credentials", "c", "", "Service account key file (default: $GOOGLE_APPLICATION_CREDENTIALS)")
	rootCmd.Flags().IntVarP(&processesFlag, "processes", "p", services.DefaultWorkers, "Number of files processed concurrently")
	rootCmd.Flags().StringVar(&logLevelFlag, "log-level", "INFO", "CRITICAL, ERROR, WARNING, INFO or DEBUG")
	rootCmd.Flags().StringVar(&patternFlag, "pattern", services.DefaultPattern, "File name pattern selecting inputs in <dir>")
	rootCmd.Flags().StringVar(&projectFlag, "project", "", "Google Cloud project (default: $GOOGLE_CLOUD_PROJECT or the key's project)")
	rootCmd.Flags().StringVar(&logFileFlag, "log-file", "mplog.log", "Log file, appended to")
	rootCmd.Flags().StringVar(&ledgerFlag, "ledger-collection", "", "Firestore collection recording each file's outcome")
	rootCmd.Flags().BoolVar(&progressFlag, "progress", false, "Show a progress bar; logs then go to the log file only")
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
	if cmd.Flags().Changed("ledger-collection") {
		cfg.FirestoreCollection = ledgerFlag
	}

	sink, err := cli.StartLogging(logLevelFlag, cfg.LogFile, progressFlag)
	if err != nil {
		return err
	}
	defer sink.Close()
	logger := sink.Logger("ocr.batch")

	if err := cfg.ResolveProject(projectFlag); err != nil {
		return err
	}

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	opts := gcp.ClientOptions(cfg.CredentialsFile)
	store, err := gcp.NewStore(ctx, cfg.ProjectID, cfg.BucketLocation, opts...)
	if err != nil {
		return err
	}
	defer store.Close()

	visionClient, err := gcp.NewVisionClient(ctx, opts...)
	if err != nil {
		return err
	}
	defer visionClient.Close()

	converter, err := services.NewPDFConverter()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputFlag, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	pipeline := services.NewPipeline(store, visionClient, converter, services.PipelineConfig{
		OutputDir:        outputFlag,
		Overwrite:        overwriteFlag,
		LanguageHints:    cfg.LanguageHints,
		OperationTimeout: cfg.OperationTimeout,
		Retry:            retry.Policy{MaxAttempts: cfg.MaxAttempts, InitialBackoff: cfg.RetryBackoff},
	})

	var orchOpts []services.OrchestratorOption
	if cfg.FirestoreCollection != "" {
		fs, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID, opts...)
		if err != nil {
			return err
		}
		defer fs.Close()
		orchOpts = append(orchOpts, services.WithRecorder(services.NewFirestoreLedger(fs, cfg.FirestoreCollection)))
	}
	if progressFlag {
		orchOpts = append(orchOpts, services.WithProgress(services.NewBarProgress(os.Stderr)))
	}

	logger.Info("Starting batch.", "dir", args[0], "output", outputFlag, "processes", processesFlag,
		"project", cfg.ProjectID, "bucket", bucketFlag)
	orch := services.NewOrchestrator(pipeline, store, services.OrchestratorConfig{
		InputDir: args[0],
		Pattern:  patternFlag,
		Workers:  processesFlag,
		Bucket:   bucketFlag,
	}, logger, orchOpts...)

	if _, err := orch.Run(ctx); err != nil {
		logger.Log(ctx, logsink.LevelCritical, "Batch aborted.", "error", err)
		return err
	}
	return nil
}
