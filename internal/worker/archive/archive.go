// Package archive は完了済み書類申請とクローズ済み問い合わせの自動アーカイブジョブを提供する。
// 自動アーカイブの有効/無効と経過日数は設定シングルトンから毎回読み込む。
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/schoolportal/internal/metrics"
	"github.com/hitoshi/schoolportal/internal/model"
	"github.com/hitoshi/schoolportal/internal/notify"
)

// DocumentArchiver は完了済み書類申請の一括アーカイブを抽象化する。
type DocumentArchiver interface {
	ArchiveCompleted(ctx context.Context, archivedBy *string, before time.Time) (int64, error)
}

// InquiryArchiver はクローズ済み問い合わせの一括アーカイブを抽象化する。
type InquiryArchiver interface {
	ArchiveClosed(ctx context.Context, archivedBy *string) (int64, error)
}

// SettingsReader は設定の読み取りを抽象化する。
type SettingsReader interface {
	Get(ctx context.Context) (*model.Settings, error)
}

// ArchiveJob は自動アーカイブジョブ。冪等で、対象がなければ何もしない。
// システムによるアーカイブのためarchived_byはNULLで記録される。
type ArchiveJob struct {
	documents DocumentArchiver
	inquiries InquiryArchiver
	settings  SettingsReader
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	now       func() time.Time
}

// NewArchiveJob は新しいArchiveJobを生成する。
func NewArchiveJob(
	documents DocumentArchiver,
	inquiries InquiryArchiver,
	settings SettingsReader,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *ArchiveJob {
	return &ArchiveJob{
		documents: documents,
		inquiries: inquiries,
		settings:  settings,
		metrics:   collector,
		logger:    logger,
		now:       time.Now,
	}
}

// Name はジョブ名を返す。
func (j *ArchiveJob) Name() string { return "archive" }

// Run は自動アーカイブを1回実行する。
// autoArchiveCompletedRequestsが有効な場合のみ、完了からautoArchiveDays日を超えた申請を
// アーカイブする。クローズ済み問い合わせは設定に関わらずアーカイブする。
func (j *ArchiveJob) Run(ctx context.Context) error {
	start := j.now()

	s, err := j.settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("設定の取得に失敗: %w", err)
	}

	var documentCount int64
	if s.AutoArchiveCompletedRequests {
		before := start.AddDate(0, 0, -s.AutoArchiveDays)
		documentCount, err = j.documents.ArchiveCompleted(ctx, nil, before)
		if err != nil {
			j.logger.Error("完了済み申請の自動アーカイブに失敗しました",
				slog.String("error", err.Error()),
				slog.Int("auto_archive_days", s.AutoArchiveDays),
			)
			return fmt.Errorf("完了済み申請の自動アーカイブに失敗: %w", err)
		}
		if documentCount > 0 {
			j.metrics.RecordArchived(notify.KindDocument, documentCount)
		}
	}

	inquiryCount, err := j.inquiries.ArchiveClosed(ctx, nil)
	if err != nil {
		j.logger.Error("クローズ済み問い合わせのアーカイブに失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("クローズ済み問い合わせのアーカイブに失敗: %w", err)
	}
	if inquiryCount > 0 {
		j.metrics.RecordArchived(notify.KindInquiry, inquiryCount)
	}

	duration := j.now().Sub(start)
	j.logger.Info("自動アーカイブジョブが完了しました",
		slog.Bool("auto_archive_enabled", s.AutoArchiveCompletedRequests),
		slog.Int("auto_archive_days", s.AutoArchiveDays),
		slog.Int64("document_count", documentCount),
		slog.Int64("inquiry_count", inquiryCount),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
	return nil
}
