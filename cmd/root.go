// Package cmd implements the command-line interface: a one-shot digest run
// and the long-running tracker/archive server.
package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "ai-news",
	Short: "AI news digest pipeline and click tracker",
	Long:  `Fetches RSS feeds, scores articles with an LLM, and publishes a ranked daily digest with tracked links.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yml)")
	rootCmd.AddCommand(newDigestCmd())
	rootCmd.AddCommand(newRankCmd())
	rootCmd.AddCommand(newServeCmd())
}
