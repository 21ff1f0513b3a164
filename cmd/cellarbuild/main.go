package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coolbeans/cellarbuild/pkg/celex"
	"github.com/coolbeans/cellarbuild/pkg/pipeline"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "cellarbuild",
		Short: "EU legal document dataset builder",
		Long: `Cellarbuild constructs research datasets from the EUR-Lex CELLAR
repository.

It selects documents by CELEX identifier, procedure number, or a
descriptive query, retrieves and parses their full text, and produces:
  - A SQLite database of works, text units, and relations
  - CSV and Parquet exports of every table
  - A README describing the finished dataset`,
		Version: version,
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(checkConfigCmd())
	rootCmd.AddCommand(celexCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build a dataset from a configuration file",
		Long: `Build a dataset from a YAML configuration file.

Example:
  cellarbuild run --config dataset.yaml
  cellarbuild run --config dataset.yaml --verbose`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			verbose, _ := cmd.Flags().GetBool("verbose")

			if configPath == "" {
				return fmt.Errorf("--config flag is required")
			}

			config, err := pipeline.LoadConfig(configPath)
			if err != nil {
				return err
			}

			// The log file lives next to the dataset, so the output
			// directory must exist before the logger does.
			if err := os.MkdirAll(config.Output.OutputDirectory, 0o755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
			log, err := newLogger(verbose, filepath.Join(config.Output.OutputDirectory, "pipeline.log"))
			if err != nil {
				return err
			}
			defer log.Sync()

			fmt.Printf("Building dataset: %s\n", config.Metadata.ProjectName)
			startTime := time.Now()

			build, err := pipeline.New(config, log)
			if err != nil {
				return err
			}
			defer build.Close()

			if err := build.Run(cmd.Context()); err != nil {
				return err
			}

			fmt.Printf("Dataset written to %s (%s)\n",
				config.Output.OutputDirectory, time.Since(startTime).Round(time.Second))
			return nil
		},
	}

	cmd.Flags().String("config", "", "Path to the YAML configuration file")
	cmd.Flags().Bool("verbose", false, "Enable debug logging")
	return cmd
}

func checkConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check-config",
		Short: "Validate a configuration file without building",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			if configPath == "" {
				return fmt.Errorf("--config flag is required")
			}

			config, err := pipeline.LoadConfig(configPath)
			if err != nil {
				return err
			}

			fmt.Printf("Configuration is valid.\n")
			fmt.Printf("  Project:   %s\n", config.Metadata.ProjectName)
			fmt.Printf("  Mode:      %s\n", config.Data.Mode)
			switch config.Data.Mode {
			case pipeline.ModeFixed:
				fmt.Printf("  Documents: %d CELEX identifiers, %d procedure numbers\n",
					len(config.Data.CelexIDs), len(config.Data.ProcedureNumbers))
			case pipeline.ModeDescriptive:
				fmt.Printf("  Types:     %s\n", strings.Join(config.Data.DocumentTypes, ", "))
				fmt.Printf("  Dates:     %s to %s\n",
					config.Data.StartDate.Format("2006-01-02"),
					config.Data.EndDate.Format("2006-01-02"))
			}
			fmt.Printf("  Output:    %s (%s)\n",
				config.Output.OutputDirectory, strings.Join(config.Output.Formats, ", "))
			return nil
		},
	}

	cmd.Flags().String("config", "", "Path to the YAML configuration file")
	return cmd
}

func celexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "celex [identifier...]",
		Short: "Validate and classify CELEX identifiers",
		Long: `Validate CELEX identifiers and report their normalized form.

Example:
  cellarbuild celex 32022r2065 02016R0679-20210101`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var firstErr error
			for _, id := range args {
				normalized, err := celex.Validate(id)
				if err != nil {
					fmt.Printf("%s: invalid\n", id)
					if firstErr == nil {
						firstErr = err
					}
					continue
				}
				if celex.IsConsolidated(normalized) {
					original, _ := celex.ToOriginal(normalized)
					fmt.Printf("%s: consolidated text of %s\n", normalized, original)
					continue
				}
				fmt.Printf("%s: valid\n", normalized)
			}
			return firstErr
		},
	}
}

// newLogger builds the process logger: human-readable on stderr plus a
// file sink next to the dataset, debug level only when verbose is set.
func newLogger(verbose bool, logPath string) (*zap.SugaredLogger, error) {
	config := zap.NewDevelopmentConfig()
	config.OutputPaths = []string{"stderr", logPath}
	if !verbose {
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := config.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
