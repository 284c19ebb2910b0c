// Package cleanup は期限切れデータの自動削除ジョブを提供する。
// 有効期限切れのセッションと、締切から保持期間（デフォルト30日）を
// 超過した奨学金を定期バッチで削除する。奨学金の選択行はCASCADE削除される。
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// SessionPurger は期限切れセッションの削除インターフェース。
type SessionPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// ScholarshipPurger は締切超過奨学金の削除インターフェース。
type ScholarshipPurger interface {
	DeleteDeadlinePassedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// DefaultRetentionDays は締切後に奨学金を残す日数。
const DefaultRetentionDays = 30

// CleanupJob は期限切れデータの自動削除ジョブ。
// 冪等であり、削除対象がなくてもエラーにならない。
type CleanupJob struct {
	sessions      SessionPurger
	scholarships  ScholarshipPurger
	logger        *slog.Logger
	now           func() time.Time
	RetentionDays int
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(sessions SessionPurger, scholarships ScholarshipPurger, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		sessions:      sessions,
		scholarships:  scholarships,
		logger:        logger,
		now:           time.Now,
		RetentionDays: DefaultRetentionDays,
	}
}

// Run はセッションと奨学金の削除を実行する。
// 一方が失敗してももう一方は実行し、エラーはまとめて返す。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := j.now()

	var errs []error
	sessions, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("期限切れセッションの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		errs = append(errs, fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err))
	}

	cutoff := start.AddDate(0, 0, -j.RetentionDays)
	scholarships, err := j.scholarships.DeleteDeadlinePassedBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("締切超過奨学金の削除に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		errs = append(errs, fmt.Errorf("奨学金クリーンアップの実行に失敗: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_sessions", sessions),
		slog.Int64("deleted_scholarships", scholarships),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start はintervalごとにRunを実行する。ctxがキャンセルされるまでブロックする。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
