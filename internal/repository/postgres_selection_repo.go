package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/scholarfind/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const uniqueViolation = "23505"

// selectionTables は(kind, domain)ごとの選択テーブル名。
// テーブル名はSQLに直接埋め込むため、この表にあるものだけを使う。
var selectionTables = map[model.Kind]map[model.Domain]string{
	model.KindCompare: {
		model.DomainCourse:      "compare_courses",
		model.DomainMicrosite:   "compare_microsites",
		model.DomainScholarship: "compare_scholarships",
	},
	model.KindShortlist: {
		model.DomainCourse:      "saved_courses",
		model.DomainMicrosite:   "saved_microsites",
		model.DomainScholarship: "saved_scholarships",
	},
}

// SelectionTable は(kind, domain)に対応するテーブル名を返す。
func SelectionTable(kind model.Kind, domain model.Domain) (string, error) {
	byDomain, ok := selectionTables[kind]
	if !ok {
		return "", model.NewInvalidKindError(string(kind))
	}
	table, ok := byDomain[domain]
	if !ok {
		return "", model.NewInvalidDomainError(string(domain))
	}
	return table, nil
}

// isUniqueViolation はerrが一意制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}

// PostgresSelectionRepo はPostgreSQLを使用した選択リストリポジトリ。
type PostgresSelectionRepo struct {
	db *sql.DB
}

// NewPostgresSelectionRepo はPostgresSelectionRepoを生成する。
func NewPostgresSelectionRepo(db *sql.DB) *PostgresSelectionRepo {
	return &PostgresSelectionRepo{db: db}
}

// ListIDs は選択済みの候補IDを追加順で返す。
func (r *PostgresSelectionRepo) ListIDs(ctx context.Context, kind model.Kind, domain model.Domain, userID string) ([]int64, error) {
	table, err := SelectionTable(kind, domain)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT candidate_id FROM `+table+` WHERE user_id = $1 ORDER BY created_at, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("選択リストの取得に失敗しました（%s）: %w", table, err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("選択リストの読み取りに失敗しました（%s）: %w", table, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("選択リストの走査に失敗しました（%s）: %w", table, err)
	}
	return ids, nil
}

// Insert は候補を追加する。既に存在する場合はErrDuplicateKeyを返す。
// limitが正の場合はユーザー単位のアドバイザリロックで件数確認と追加を直列化し、
// 既にlimit件あればErrCapacityExceededを返す。
func (r *PostgresSelectionRepo) Insert(ctx context.Context, kind model.Kind, domain model.Domain, userID string, candidateID int64, limit int) error {
	table, err := SelectionTable(kind, domain)
	if err != nil {
		return err
	}
	if limit <= 0 {
		return r.insert(ctx, r.db, table, userID, candidateID)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, table+":"+userID); err != nil {
		return fmt.Errorf("選択リストのロックに失敗しました（%s）: %w", table, err)
	}

	var exists bool
	var count int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(bool_or(candidate_id = $2), false), count(*) FROM `+table+` WHERE user_id = $1`,
		userID, candidateID,
	).Scan(&exists, &count)
	if err != nil {
		return fmt.Errorf("選択リストの件数確認に失敗しました（%s）: %w", table, err)
	}
	if exists {
		return ErrDuplicateKey
	}
	if count >= limit {
		return ErrCapacityExceeded
	}

	if err := r.insert(ctx, tx, table, userID, candidateID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// execer は*sql.DBと*sql.Txの共通部分。
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *PostgresSelectionRepo) insert(ctx context.Context, db execer, table, userID string, candidateID int64) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO `+table+` (user_id, candidate_id) VALUES ($1, $2)`,
		userID, candidateID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("選択リストへの追加に失敗しました（%s）: %w", table, err)
	}
	return nil
}

// Delete は候補を削除する。存在しない場合もエラーにならない。
func (r *PostgresSelectionRepo) Delete(ctx context.Context, kind model.Kind, domain model.Domain, userID string, candidateID int64) error {
	table, err := SelectionTable(kind, domain)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`DELETE FROM `+table+` WHERE user_id = $1 AND candidate_id = $2`,
		userID, candidateID,
	)
	if err != nil {
		return fmt.Errorf("選択リストからの削除に失敗しました（%s）: %w", table, err)
	}
	return nil
}

// DeleteAll は指定リストの全候補を削除する。
func (r *PostgresSelectionRepo) DeleteAll(ctx context.Context, kind model.Kind, domain model.Domain, userID string) error {
	table, err := SelectionTable(kind, domain)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`DELETE FROM `+table+` WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("選択リストのクリアに失敗しました（%s）: %w", table, err)
	}
	return nil
}

// DeleteByUserID は全リストからユーザーの選択を同一トランザクションで削除する。
func (r *PostgresSelectionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, kind := range []model.Kind{model.KindCompare, model.KindShortlist} {
		for _, domain := range model.Domains {
			table := selectionTables[kind][domain]
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE user_id = $1`, userID); err != nil {
				return fmt.Errorf("選択リストの削除に失敗しました（%s）: %w", table, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SelectionRepository = (*PostgresSelectionRepo)(nil)
