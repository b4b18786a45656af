package main

import (
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/forecast-cli/internal/forecast"
	"github.com/sells-group/forecast-cli/internal/model"
)

var (
	forecastModel      string
	forecastBreadth    int
	forecastBefore     int64
	forecastSearchType string
	forecastRaw        bool
)

var forecastCmd = &cobra.Command{
	Use:   "forecast <question>",
	Short: "Run one forecast and stream it to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		req := model.ForecastRequest{
			Model:      forecastModel,
			Messages:   []model.Message{{Role: "user", Content: args[0]}},
			SearchType: model.SearchType(forecastSearchType),
		}
		if cmd.Flags().Changed("breadth") {
			req.Breadth = &forecastBreadth
		}
		if forecastBefore > 0 {
			req.BeforeTimestamp = &forecastBefore
		}

		events, err := env.Orchestrator.Run(ctx, req)
		if err != nil {
			return err
		}
		if forecastRaw {
			return forecast.WriteTo(cmd.OutOrStdout(), events, nil)
		}
		return printPretty(cmd.OutOrStdout(), cmd.ErrOrStderr(), events)
	},
}

func init() {
	forecastCmd.Flags().StringVar(&forecastModel, "model", "", "model identifier (default from config)")
	forecastCmd.Flags().IntVar(&forecastBreadth, "breadth", 0, "number of search queries to plan (default from config)")
	forecastCmd.Flags().Int64Var(&forecastBefore, "before", 0, "unix timestamp (s or ms) used as the knowledge cutoff")
	forecastCmd.Flags().StringVar(&forecastSearchType, "search-type", "", "search vertical: news or search")
	forecastCmd.Flags().BoolVar(&forecastRaw, "raw", true, "print the raw stream protocol")
	rootCmd.AddCommand(forecastCmd)
}

// printPretty writes the report to out and retrieval progress to progress.
func printPretty(out, progress io.Writer, events <-chan forecast.Event) error {
	for ev := range events {
		switch ev.Type {
		case forecast.EventQueries:
			fmt.Fprintf(progress, "Queries (%d):\n", len(ev.Queries))
			for i, q := range ev.Queries {
				fmt.Fprintf(progress, "  %d. %s\n", i+1, q)
			}
			if ev.Err != nil {
				fmt.Fprintf(progress, "  planner failed: %v\n", ev.Err)
			}
		case forecast.EventSources:
			fmt.Fprintf(progress, "\rSources: %d", len(ev.Sources))
		case forecast.EventForecastStart:
			fmt.Fprintln(progress)
			fmt.Fprintln(progress, strings.Repeat("-", 40))
		case forecast.EventChunk:
			if _, err := io.WriteString(out, ev.Chunk); err != nil {
				for range events {
				}
				return err
			}
		case forecast.EventForecastEnd:
			fmt.Fprintln(out)
			if ev.Err != nil {
				fmt.Fprintf(progress, "publisher failed: %v\n", ev.Err)
			}
		}
	}
	return nil
}

