package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/scholarfind/internal/model"
)

// MaxBatchSize はホスティング先PostgreSQLの1リクエストあたりの行数上限。
// これを超える一覧はListAfterで分割取得する。
const MaxBatchSize = 1000

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

type scanFunc func(rowScanner) (model.Candidate, error)

// queryCandidates はクエリを実行し、各行をscanで候補に変換する。
func queryCandidates(ctx context.Context, db *sql.DB, table string, scan scanFunc, query string, args ...any) ([]model.Candidate, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%sの取得に失敗しました: %w", table, err)
	}
	defer rows.Close()

	out := []model.Candidate{}
	for rows.Next() {
		c, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("%sの読み取りに失敗しました: %w", table, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%sの走査に失敗しました: %w", table, err)
	}
	return out, nil
}

// queryFeatured は注目候補を1件取得する。存在しない場合はnilを返す。
func queryFeatured(ctx context.Context, db *sql.DB, table string, scan scanFunc, query string) (model.Candidate, error) {
	c, err := scan(db.QueryRowContext(ctx, query))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%sの注目候補の取得に失敗しました: %w", table, err)
	}
	return c, nil
}

func countRows(ctx context.Context, db *sql.DB, table string) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("%sの件数取得に失敗しました: %w", table, err)
	}
	return n, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > MaxBatchSize {
		return MaxBatchSize
	}
	return limit
}
