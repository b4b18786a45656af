package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

var relatedCmd = &cobra.Command{
	Use:   "related <question>",
	Short: "Suggest related forecasting questions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(env.Related.Suggest(cmd.Context(), args[0]))
	},
}

func init() {
	rootCmd.AddCommand(relatedCmd)
}
