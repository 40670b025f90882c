package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/kizuna/internal/model"
	"github.com/lib/pq"
)

// pgUniqueViolation はPostgreSQLのユニーク制約違反エラーコード。
const pgUniqueViolation = "23505"

const userColumns = `id, name, username, password_hash, phone_number, email, bio, avatar, gender,
	links, followers, followings, created_at, updated_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	var links, followers, followings []byte
	err := row.Scan(
		&user.ID, &user.Name, &user.Username, &user.PasswordHash, &user.PhoneNumber,
		&user.Email, &user.Bio, &user.Avatar, &user.Gender,
		&links, &followers, &followings, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(links, &user.Links); err != nil {
		return nil, fmt.Errorf("failed to decode links: %w", err)
	}
	if err := json.Unmarshal(followers, &user.Followers); err != nil {
		return nil, fmt.Errorf("failed to decode followers: %w", err)
	}
	if err := json.Unmarshal(followings, &user.Followings); err != nil {
		return nil, fmt.Errorf("failed to decode followings: %w", err)
	}
	return user, nil
}

// encodeJSONB はnilスライスを空配列としてエンコードする。
func encodeJSONB[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	return json.Marshal(items)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByUsername はusernameでユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`,
		username,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by username: %w", err)
	}
	return user, nil
}

// List はユーザー一覧をcreated_at昇順で取得する。
func (r *PostgresUserRepo) List(ctx context.Context, offset, limit int) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at, id LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// Count は全ユーザー数を返す。
func (r *PostgresUserRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// Create はユーザーを作成する。usernameが重複する場合はErrUsernameTakenを返す。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	links, err := encodeJSONB(user.Links)
	if err != nil {
		return fmt.Errorf("failed to encode links: %w", err)
	}
	followers, err := encodeJSONB(user.Followers)
	if err != nil {
		return fmt.Errorf("failed to encode followers: %w", err)
	}
	followings, err := encodeJSONB(user.Followings)
	if err != nil {
		return fmt.Errorf("failed to encode followings: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, username, password_hash, phone_number, email, bio, avatar, gender,
		                    links, followers, followings, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		user.ID, user.Name, user.Username, user.PasswordHash, user.PhoneNumber, user.Email,
		user.Bio, user.Avatar, user.Gender, links, followers, followings, user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrUsernameTaken
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// UpdateProfile はプロフィール項目を更新する。followers/followingsは変更しない。
func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, user *model.User) error {
	links, err := encodeJSONB(user.Links)
	if err != nil {
		return fmt.Errorf("failed to encode links: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE users
		 SET name = $2, username = $3, password_hash = $4, phone_number = $5, email = $6,
		     bio = $7, avatar = $8, gender = $9, links = $10, updated_at = $11
		 WHERE id = $1`,
		user.ID, user.Name, user.Username, user.PasswordHash, user.PhoneNumber, user.Email,
		user.Bio, user.Avatar, user.Gender, links, user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrUsernameTaken
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// sameUUID はaとbが同じUUIDを指すかどうかを返す。
// DBは正規形で返すため、大文字や波括弧付きの入力もここで同一視する。
func sameUUID(a, b string) bool {
	ua, err := uuid.Parse(a)
	if err != nil {
		return a == b
	}
	ub, err := uuid.Parse(b)
	if err != nil {
		return false
	}
	return ua == ub
}

// MutateFollowEdge はactorとtargetの行をid順にFOR UPDATEでロックしてからmutateを適用する。
// 同じ2ユーザー間の同時操作はロック順が揃うためデッドロックしない。
func (r *PostgresUserRepo) MutateFollowEdge(ctx context.Context, actorID, targetID string, mutate FollowMutation) (*model.User, *model.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ANY($1::uuid[]) ORDER BY id FOR UPDATE`,
		pq.Array([]string{actorID, targetID}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock users: %w", err)
	}

	var actor, target *model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("failed to scan user: %w", err)
		}
		switch {
		case sameUUID(user.ID, actorID):
			actor = user
		case sameUUID(user.ID, targetID):
			target = user
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	rows.Close()

	if actor == nil {
		return nil, nil, nil
	}

	if err := mutate(actor, target); err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	for _, user := range []*model.User{actor, target} {
		if user == nil {
			continue
		}
		user.UpdatedAt = now
		if err := updateFollowLists(ctx, tx, user); err != nil {
			return nil, nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return actor, target, nil
}

func updateFollowLists(ctx context.Context, tx *sql.Tx, user *model.User) error {
	followers, err := encodeJSONB(user.Followers)
	if err != nil {
		return fmt.Errorf("failed to encode followers: %w", err)
	}
	followings, err := encodeJSONB(user.Followings)
	if err != nil {
		return fmt.Errorf("failed to encode followings: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE users SET followers = $2, followings = $3, updated_at = $4 WHERE id = $1`,
		user.ID, followers, followings, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update follow lists: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのユーザーを削除し、他ユーザーのfollowers/followingsから
// 当該ユーザーのIdentityを取り除く。ユーザー宛ての通知も削除する。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return false, nil
	}

	for _, column := range []string{"followers", "followings"} {
		_, err := tx.ExecContext(ctx,
			`UPDATE users
			 SET `+column+` = COALESCE((
			         SELECT jsonb_agg(e ORDER BY i)
			         FROM jsonb_array_elements(`+column+`) WITH ORDINALITY AS t(e, i)
			         WHERE e->>'user_id' <> $1
			     ), '[]'::jsonb),
			     updated_at = now()
			 WHERE `+column+` @> jsonb_build_array(jsonb_build_object('user_id', $1::text))`,
			id,
		)
		if err != nil {
			return false, fmt.Errorf("failed to detach %s: %w", column, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM notifications WHERE user_id = $1`, id); err != nil {
		return false, fmt.Errorf("failed to delete notifications: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
