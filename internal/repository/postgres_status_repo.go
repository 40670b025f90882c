package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/kizuna/internal/model"
)

const statusColumns = `id, user_id, content_public_id, content_url, caption, privacy, is_expired, created_at, expired_at`

// PostgresStatusRepo はPostgreSQLを使用したステータスリポジトリ。
type PostgresStatusRepo struct {
	db *sql.DB
}

// NewPostgresStatusRepo はPostgresStatusRepoを生成する。
func NewPostgresStatusRepo(db *sql.DB) *PostgresStatusRepo {
	return &PostgresStatusRepo{db: db}
}

func scanStatus(row rowScanner) (*model.Status, error) {
	status := &model.Status{}
	var privacy string
	err := row.Scan(
		&status.ID, &status.UserID, &status.Content.PublicID, &status.Content.SecureURL,
		&status.Caption, &privacy, &status.IsExpiredFlag, &status.CreatedAt, &status.ExpiredAt,
	)
	if err != nil {
		return nil, err
	}
	status.Privacy = model.Privacy(privacy)
	return status, nil
}

// FindByID は指定IDのステータスを取得する。見つからない場合はnilを返す。
// 期限切れのステータスも返すため、呼び出し側でIsExpiredを確認すること。
func (r *PostgresStatusRepo) FindByID(ctx context.Context, id string) (*model.Status, error) {
	status, err := scanStatus(r.db.QueryRowContext(ctx,
		`SELECT `+statusColumns+` FROM statuses WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ステータスの取得に失敗しました: %w", err)
	}
	return status, nil
}

// Create はステータスを作成する。
func (r *PostgresStatusRepo) Create(ctx context.Context, status *model.Status) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO statuses (`+statusColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		status.ID, status.UserID, status.Content.PublicID, status.Content.SecureURL,
		status.Caption, string(status.Privacy), status.IsExpiredFlag, status.CreatedAt, status.ExpiredAt,
	)
	if err != nil {
		return fmt.Errorf("ステータスの作成に失敗しました: %w", err)
	}
	return nil
}

// ListActiveByUserID はnow時点で期限切れでないステータスをcreated_at降順で取得する。
func (r *PostgresStatusRepo) ListActiveByUserID(ctx context.Context, userID string, now time.Time, offset, limit int) ([]*model.Status, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+statusColumns+` FROM statuses
		 WHERE user_id = $1 AND is_expired = FALSE AND expired_at > $2
		 ORDER BY created_at DESC, id
		 LIMIT $3 OFFSET $4`,
		userID, now, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("ステータス一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var statuses []*model.Status
	for rows.Next() {
		status, err := scanStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("ステータスのスキャンに失敗しました: %w", err)
		}
		statuses = append(statuses, status)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ステータス一覧の走査に失敗しました: %w", err)
	}
	return statuses, nil
}

// CountActiveByUserID はnow時点で期限切れでないステータス数を返す。
func (r *PostgresStatusRepo) CountActiveByUserID(ctx context.Context, userID string, now time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM statuses WHERE user_id = $1 AND is_expired = FALSE AND expired_at > $2`,
		userID, now,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ステータス数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// DeleteByID は指定IDのステータスを削除する。
func (r *PostgresStatusRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM statuses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ステータスの削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ StatusRepository = (*PostgresStatusRepo)(nil)
