// Package photon wires the batch driver, enrichment stage, and
// vocabulary builder behind a single cobra command tree.
package photon

import (
	"github.com/spf13/cobra"

	"github.com/photon-img/photon/internal/logging"
)

type rootFlags struct {
	debug         bool
	logFilePath   string
	logMaxSizeMB  int64
	logMaxBackups int
	configPath    string
	onnxLibPath   string
}

// NewRootCmd builds the photon command tree. Logging is installed once
// in PersistentPreRunE, matching the convention that only the CLI
// entrypoint ever calls slog.SetDefault — every package underneath logs
// against whatever default got installed here.
func NewRootCmd() *cobra.Command {
	var flags rootFlags
	var closeLog func() error

	cmd := &cobra.Command{
		Use:   "photon",
		Short: "photon - zero-shot image tagging and batch ingestion",
		Long:  "photon processes directories of images into tagged, embedded JSON/JSONL records using a local SigLIP model, with an optional second-pass LLM enrichment stage.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			closer, err := logging.Setup(logging.Options{
				Debug:         flags.debug,
				LogFilePath:   flags.logFilePath,
				LogMaxSizeMB:  flags.logMaxSizeMB,
				LogMaxBackups: flags.logMaxBackups,
			})
			if err != nil {
				return err
			}
			closeLog = closer
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if closeLog != nil {
				return closeLog()
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().BoolVarP(&flags.debug, "debug", "d", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&flags.logFilePath, "log-file", "", "path to a rotating debug log file (default: stderr)")
	cmd.PersistentFlags().Int64Var(&flags.logMaxSizeMB, "log-max-size-mb", 0, "rotate the log file after it reaches this size in MB (default: logging.DefaultMaxSize)")
	cmd.PersistentFlags().IntVar(&flags.logMaxBackups, "log-max-backups", 0, "number of rotated log backups to keep (default: logging.DefaultMaxBackups)")
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "photon.toml", "path to the TOML config file")
	cmd.PersistentFlags().StringVar(&flags.onnxLibPath, "onnx-lib", "", "path to the ONNX Runtime shared library (default: platform search path)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newRunCmd(&flags))
	cmd.AddCommand(newEnrichCmd(&flags))
	cmd.AddCommand(newVocabCmd(&flags))

	cmd.AddGroup(&cobra.Group{ID: "core", Title: "Core Commands:"})

	return cmd
}
