package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdx-proptype/internal/artifact"
	"github.com/pdx-proptype/internal/audit"
	"github.com/pdx-proptype/internal/clean"
	"github.com/pdx-proptype/internal/config"
	"github.com/pdx-proptype/internal/model"
	"github.com/pdx-proptype/internal/pipeline"
	"github.com/pdx-proptype/internal/table"
	"github.com/pdx-proptype/internal/train"
	"github.com/pdx-proptype/internal/web"
)

func main() {
	config.LoadEnv()

	rootCmd := &cobra.Command{
		Use:   "proptype",
		Short: "Property type prediction pipeline",
		Long:  `Cleans raw real-estate listing exports, encodes them against fitted model artifacts, and predicts property types`,
	}

	rootCmd.AddCommand(createPredictCmd())
	rootCmd.AddCommand(createTrainCmd())
	rootCmd.AddCommand(createInspectCmd())
	rootCmd.AddCommand(createServeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func createPredictCmd() *cobra.Command {
	var artifactPath, outputPath string
	var debugOn bool

	cmd := &cobra.Command{
		Use:   "predict [input.csv]",
		Short: "Predict property types for a listing export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bundle, err := artifact.Load(artifactPath)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open input CSV: %w", err)
			}
			defer f.Close()

			raw, err := table.ReadCSV(f)
			if err != nil {
				return err
			}

			runner := pipeline.New(bundle)
			runner.Debug = debugOn
			annotated, report, err := runner.Run(raw)
			if err != nil {
				return err
			}

			printReport(report)

			out, err := os.Create(outputPath)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer out.Close()
			if err := annotated.WriteCSV(out); err != nil {
				return err
			}
			fmt.Printf("Wrote %d prediction(s) to %s\n", report.RowsOut, outputPath)

			if audit.Configured() {
				store, err := audit.Open()
				if err != nil {
					log.Printf("Warning: audit store unavailable: %v", err)
					return nil
				}
				defer store.Close()
				if _, err := store.RecordRun(args[0], report); err != nil {
					log.Printf("Warning: failed to record run audit: %v", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&artifactPath, "artifacts", "model_artifacts.gob", "path to the fitted artifact bundle")
	cmd.Flags().StringVar(&outputPath, "out", pipeline.OutputFilename, "output CSV path")
	cmd.Flags().BoolVar(&debugOn, "debug", false, "enable debug logging")
	return cmd
}

func createTrainCmd() *cobra.Command {
	var artifactPath string
	var trees, maxDepth, minSplit int
	var seed int64
	var debugOn bool

	cmd := &cobra.Command{
		Use:   "train [training.csv]",
		Short: "Fit encoders and train the classifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := model.Config{NumTrees: trees, MaxDepth: maxDepth, MinSamplesSplit: minSplit, Seed: seed}
			summary, err := train.Run(args[0], artifactPath, cfg, debugOn)
			if err != nil {
				return err
			}
			printReportWarnings(summary.CleanReport.Warnings)
			fmt.Printf("Trained on %d of %d rows (%d features)\n",
				summary.RowsTrained, summary.RowsIn, summary.Features)
			fmt.Printf("Classes: %v\n", summary.Classes)
			fmt.Printf("Artifacts written to %s\n", artifactPath)
			return nil
		},
	}

	defaults := model.DefaultConfig()
	cmd.Flags().StringVar(&artifactPath, "artifacts", "model_artifacts.gob", "output path for the artifact bundle")
	cmd.Flags().IntVar(&trees, "trees", defaults.NumTrees, "number of trees in the forest")
	cmd.Flags().IntVar(&maxDepth, "max-depth", defaults.MaxDepth, "maximum tree depth")
	cmd.Flags().IntVar(&minSplit, "min-split", defaults.MinSamplesSplit, "minimum samples to split a node")
	cmd.Flags().Int64Var(&seed, "seed", defaults.Seed, "random seed")
	cmd.Flags().BoolVar(&debugOn, "debug", false, "enable debug logging")
	return cmd
}

func createInspectCmd() *cobra.Command {
	var artifactPath string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the fitted vocabulary of an artifact bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			bundle, err := artifact.Load(artifactPath)
			if err != nil {
				return err
			}
			fmt.Printf("Features: %d\n", len(bundle.FeatureNames))
			fmt.Printf("  numeric: %d, one-hot: %d\n",
				len(bundle.NumericFeatures), len(bundle.CategoricalFeatures))
			fmt.Printf("Trees: %d\n", len(bundle.Forest.Trees))
			fmt.Printf("Class mapping: %v\n", bundle.Labels.Mapping())
			fmt.Println("Scaler:")
			for i, name := range bundle.Scaler.Features {
				fmt.Printf("  %-20s mean=%.4f scale=%.4f\n", name, bundle.Scaler.Mean[i], bundle.Scaler.Scale[i])
			}
			fmt.Println("One-hot vocabulary:")
			for i, col := range bundle.OneHot.Columns {
				fmt.Printf("  %-20s %d categories\n", col, len(bundle.OneHot.Categories[i]))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&artifactPath, "artifacts", "model_artifacts.gob", "path to the fitted artifact bundle")
	return cmd
}

func createServeCmd() *cobra.Command {
	var artifactPath, host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the CSV upload front-end",
		RunE: func(cmd *cobra.Command, args []string) error {
			bundle, err := artifact.Load(artifactPath)
			if err != nil {
				return err
			}
			var store *audit.Store
			if audit.Configured() {
				store, err = audit.Open()
				if err != nil {
					log.Printf("Warning: audit store unavailable: %v", err)
				} else {
					defer store.Close()
				}
			}
			fmt.Printf("Server: http://%s:%d\n", host, port)
			return web.NewServer(pipeline.New(bundle), store, host, port).Start()
		},
	}

	cmd.Flags().StringVar(&artifactPath, "artifacts", "model_artifacts.gob", "path to the fitted artifact bundle")
	cmd.Flags().StringVar(&host, "host", config.GetEnv("WEB_HOST", "localhost"), "listen host")
	cmd.Flags().IntVar(&port, "port", config.GetEnvInt("WEB_PORT", 8080), "listen port")
	return cmd
}

func printReport(report *pipeline.Report) {
	fmt.Printf("Rows: %d in, %d predicted\n", report.RowsIn, report.RowsOut)
	for reason, n := range report.Drops {
		fmt.Printf("  dropped %d row(s): %s\n", n, reason)
	}
	if report.UnknownCategories > 0 {
		fmt.Printf("  %d categorical value(s) unseen at training time (encoded as all-zero)\n",
			report.UnknownCategories)
	}
	printReportWarnings(report.Warnings)
}

func printReportWarnings(warnings []clean.Warning) {
	for _, w := range warnings {
		fmt.Printf("WARNING: %s\n", w.Message)
	}
}
