// Package cleanup はステータスの期限切れスイープと古い通知の削除を行うバックグラウンドジョブを提供する。
// いずれも冪等で、対象がない場合でもエラーにならない。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Recorder はジョブの処理件数を記録する。
type Recorder interface {
	RecordStatusesExpired(count int64)
	RecordNotificationsPurged(count int64)
}

// StatusSweepJob はexpired_atを過ぎたステータスのis_expiredフラグを立てる。
// 一覧取得は読み取り時刻で期限を判定するため、このジョブは保存値を実態に揃える役割を持つ。
type StatusSweepJob struct {
	db       Executor
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
}

// NewStatusSweepJob は新しいStatusSweepJobを生成する。recorderはnilでもよい。
func NewStatusSweepJob(db Executor, logger *slog.Logger, recorder Recorder) *StatusSweepJob {
	return &StatusSweepJob{db: db, logger: logger, recorder: recorder, now: time.Now}
}

// Name はジョブ名を返す。
func (j *StatusSweepJob) Name() string { return "status_sweep" }

// Run は期限を過ぎた未処理のステータスを期限切れにする。
func (j *StatusSweepJob) Run(ctx context.Context) error {
	start := time.Now()

	query := `UPDATE statuses SET is_expired = TRUE WHERE is_expired = FALSE AND expired_at <= $1`
	result, err := j.db.ExecContext(ctx, query, j.now().UTC())
	if err != nil {
		j.logger.Error("ステータススイープの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("ステータススイープの実行に失敗: %w", err)
	}

	expired, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新件数の取得に失敗: %w", err)
	}
	if j.recorder != nil {
		j.recorder.RecordStatusesExpired(expired)
	}

	j.logger.Info("ステータススイープが完了しました",
		slog.Int64("expired_count", expired),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// NotificationPurgeJob は保持期間を過ぎた通知を削除する。
type NotificationPurgeJob struct {
	db       Executor
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
	// RetentionDays は通知の保持日数（デフォルト: 30）。
	RetentionDays int
}

// NewNotificationPurgeJob は新しいNotificationPurgeJobを生成する。
// retentionDaysが0以下の場合はデフォルト値30を使用する。
func NewNotificationPurgeJob(db Executor, logger *slog.Logger, recorder Recorder, retentionDays int) *NotificationPurgeJob {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &NotificationPurgeJob{
		db:            db,
		logger:        logger,
		recorder:      recorder,
		now:           time.Now,
		RetentionDays: retentionDays,
	}
}

// Name はジョブ名を返す。
func (j *NotificationPurgeJob) Name() string { return "notification_purge" }

// Run はcreated_atが保持期間より古い通知を削除する。
func (j *NotificationPurgeJob) Run(ctx context.Context) error {
	start := time.Now()
	cutoff := j.now().UTC().AddDate(0, 0, -j.RetentionDays)

	query := `DELETE FROM notifications WHERE created_at < $1`
	result, err := j.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		j.logger.Error("通知削除ジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("通知削除の実行に失敗: %w", err)
	}

	purged, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	if j.recorder != nil {
		j.recorder.RecordNotificationsPurged(purged)
	}

	j.logger.Info("通知削除ジョブが完了しました",
		slog.Int64("deleted_count", purged),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}
