package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/strzhao/ai-news/internal/digest"
	"github.com/strzhao/ai-news/internal/domain"
	"github.com/strzhao/ai-news/internal/feed"
	"github.com/strzhao/ai-news/internal/logger"
	"github.com/strzhao/ai-news/internal/process"
	"github.com/strzhao/ai-news/internal/quality"
)

func newRankCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Preview today's articles with the keyword ranker",
		Long:  `Fetches all configured feeds and prints a heuristic ranking without calling the LLM. Useful for checking sources and scoring config before a full digest run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(digest.ExitConfigError)
			}
			log, err := logger.New(cfg.Logging)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer func() { _ = log.Sync() }()

			fetcher := feed.NewFetcher(cfg.Fetch.Timeout, log)
			limits := quality.BuildSourceFetchLimits(cfg.Sources)

			fetched := fetcher.FetchArticles(cmd.Context(), cfg.Sources, limits)
			normalized := process.NormalizeArticles(fetched)
			deduped, _ := process.DedupeArticles(normalized, cfg.Fetch.TitleSimilarity)

			sourceWeights := make(map[string]float64, len(cfg.Sources))
			for _, source := range cfg.Sources {
				sourceWeights[source.ID] = source.Weight
			}
			ranked := process.RankArticles(deduped, cfg.Scoring, sourceWeights, time.Now().UTC())
			if limit > 0 && len(ranked) > limit {
				ranked = ranked[:limit]
			}

			printRanked(cmd, ranked)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum articles to print (0 for all)")
	return cmd
}

func printRanked(cmd *cobra.Command, ranked []domain.ScoredArticle) {
	if len(ranked) == 0 {
		cmd.Println("no articles fetched")
		return
	}
	for i, article := range ranked {
		cmd.Printf("%2d. [%5.1f %-13s] %s\n", i+1, article.Score, article.Worth, article.Title)
		cmd.Printf("    %s | %s\n", article.SourceID, article.URL)
	}
}
