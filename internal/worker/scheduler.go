// Package worker はバックグラウンドジョブの定期実行を提供する。
package worker

import (
	"context"
	"log/slog"
	"time"
)

// Job は定期実行されるジョブ。
type Job interface {
	// Name はログ用のジョブ名を返す。
	Name() string
	// Run はジョブを1回実行する。
	Run(ctx context.Context) error
}

// Scheduler はジョブを一定間隔で実行する。
type Scheduler struct {
	job    Job
	logger *slog.Logger
}

// NewScheduler はSchedulerを生成する。
func NewScheduler(job Job, logger *slog.Logger) *Scheduler {
	return &Scheduler{job: job, logger: logger}
}

// Start はティッカーでジョブを起動する。
// 起動直後に1回実行し、コンテキストがキャンセルされるまで継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("ジョブスケジューラを開始しました",
		slog.String("job", s.job.Name()),
		slog.Duration("interval", interval),
	)

	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("ジョブスケジューラを停止しました",
				slog.String("job", s.job.Name()),
			)
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce はジョブを1回実行する。失敗はログに記録し、次回の実行を妨げない。
func (s *Scheduler) RunOnce(ctx context.Context) {
	if err := s.job.Run(ctx); err != nil {
		s.logger.Error("ジョブの実行に失敗しました",
			slog.String("job", s.job.Name()),
			slog.String("error", err.Error()),
		)
	}
}
