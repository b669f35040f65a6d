package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/strzhao/ai-news/internal/api"
	"github.com/strzhao/ai-news/internal/archive"
	"github.com/strzhao/ai-news/internal/clicks"
	"github.com/strzhao/ai-news/internal/digest"
	"github.com/strzhao/ai-news/internal/logger"
	"github.com/strzhao/ai-news/internal/metrics"
	"github.com/strzhao/ai-news/internal/tracking"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the tracker and archive HTTP server",
		Long:  `Serves the click redirect, tracker stats, digest archive, and cron trigger endpoints. With a cron schedule configured the digest also runs in-process.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := buildApp(cfg, true)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			m := metrics.New()
			server := api.NewServer(cfg, api.Deps{
				Runner:   a.runner,
				Signer:   tracking.NewSigner(cfg.Tracker.SigningSecret),
				Recorder: clicks.NewRecorder(a.rdb),
				Reader:   clicks.NewReader(a.rdb),
				Archive:  archive.NewStore(a.rdb),
				Metrics:  m,
			}, a.log)

			scheduler, err := startCron(ctx, cfg.Server.CronSchedule, a.runner, a.log)
			if err != nil {
				return err
			}
			if scheduler != nil {
				defer scheduler.Stop()
			}

			return server.Run(ctx)
		},
	}
}

// startCron schedules in-process digest runs. An empty schedule disables
// them; deployments with an external scheduler hit /api/cron/digest instead.
func startCron(ctx context.Context, schedule string, runner *digest.Runner, log logger.Logger) (*cron.Cron, error) {
	if schedule == "" {
		return nil, nil
	}
	scheduler := cron.New()
	_, err := scheduler.AddFunc(schedule, func() {
		result, err := runner.Run(ctx, digest.Options{SyncFlomo: true})
		if err != nil {
			log.Error("scheduled digest run failed",
				logger.Int("exit_code", result.ExitCode), logger.Error(err))
			return
		}
		log.Info("scheduled digest run finished",
			logger.String("report_date", result.ReportDate),
			logger.Int("highlights", len(result.Digest.Highlights)))
	})
	if err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	scheduler.Start()
	return scheduler, nil
}
