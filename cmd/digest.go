package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/strzhao/ai-news/internal/digest"
	"github.com/strzhao/ai-news/internal/logger"
)

func newDigestCmd() *cobra.Command {
	var (
		date      string
		timezone  string
		topN      int
		outputDir string
		syncFlomo bool
	)

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Run the daily digest pipeline once",
		Long:  `Fetches all configured feeds, evaluates articles, and writes the digest and analysis reports. The process exit code identifies the failing stage.`,
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := loadConfig()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(digest.ExitConfigError)
			}
			a, err := buildApp(cfg, false)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(digest.ExitConfigError)
			}
			defer a.Close()

			result, err := a.runner.Run(cmd.Context(), digest.Options{
				Date:      date,
				Timezone:  timezone,
				TopN:      topN,
				OutputDir: outputDir,
				SyncFlomo: syncFlomo,
			})
			if err != nil {
				a.log.Error("digest run failed",
					logger.Int("exit_code", result.ExitCode), logger.Error(err))
			}
			if result.ExitCode != digest.ExitOK {
				a.Close()
				os.Exit(result.ExitCode)
			}
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "report date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&timezone, "tz", "", "report timezone (default from config)")
	cmd.Flags().IntVar(&topN, "top-n", 0, "maximum highlights (default from config)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "report output directory (default from config)")
	cmd.Flags().BoolVar(&syncFlomo, "sync-flomo", true, "post the digest to the flomo webhook")
	return cmd
}
