package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/forecast-cli/internal/model"
	"github.com/sells-group/forecast-cli/internal/questions"
)

var (
	batchInput       string
	batchOutput      string
	batchConcurrency int
	batchModel       string
	batchBreadth     int
	batchSearchType  string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Forecast every question in a file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		items, err := questions.Load(ctx, batchInput)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return eris.Errorf("no questions in %s", batchInput)
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		req := model.BatchRequest{
			Questions:  items,
			Model:      batchModel,
			SearchType: model.SearchType(batchSearchType),
		}
		if cmd.Flags().Changed("breadth") {
			req.Breadth = &batchBreadth
		}

		results := env.Batch.Run(ctx, req, batchConcurrency)
		if err := writeResults(batchOutput, results); err != nil {
			return err
		}
		zap.L().Info("batch results written", zap.String("output", batchOutput), zap.Int("results", len(results)))
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchInput, "input", "", "question file (.json, .jsonl, .csv or .xlsx)")
	batchCmd.Flags().StringVar(&batchOutput, "output", "-", "result file, - for stdout")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "questions in flight (default from config)")
	batchCmd.Flags().StringVar(&batchModel, "model", "", "model identifier (default from config)")
	batchCmd.Flags().IntVar(&batchBreadth, "breadth", 0, "search queries per question (default from config)")
	batchCmd.Flags().StringVar(&batchSearchType, "search-type", "", "search vertical: news or search")
	_ = batchCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(batchCmd)
}

func writeResults(path string, results []model.ForecastResult) error {
	out := os.Stdout
	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "create %s", path)
		}
		defer f.Close() //nolint:errcheck
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return eris.Wrap(err, "encode batch results")
	}
	return nil
}
