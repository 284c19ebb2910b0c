package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/scholarfind/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindByUserID は指定ユーザーのプロフィールを取得する。未作成の場合はnilを返す。
func (r *PostgresProfileRepo) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	p := &model.Profile{}
	var states []string
	var scores []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, degree, program, states, test_scores, updated_at
		 FROM profiles WHERE user_id = $1`,
		userID,
	).Scan(&p.UserID, &p.Degree, &p.Program, pq.Array(&states), &scores, &p.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}

	p.States = states
	if len(scores) > 0 {
		if err := json.Unmarshal(scores, &p.TestScores); err != nil {
			return nil, fmt.Errorf("テストスコアの読み取りに失敗しました: %w", err)
		}
	}
	return p, nil
}

// Upsert はプロフィールを作成または上書きする。
func (r *PostgresProfileRepo) Upsert(ctx context.Context, p *model.Profile) error {
	scores := p.TestScores
	if scores == nil {
		scores = map[string]float64{}
	}
	scoresJSON, err := json.Marshal(scores)
	if err != nil {
		return fmt.Errorf("テストスコアのエンコードに失敗しました: %w", err)
	}
	states := p.States
	if states == nil {
		states = []string{}
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, degree, program, states, test_scores, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id) DO UPDATE SET
		   degree = EXCLUDED.degree,
		   program = EXCLUDED.program,
		   states = EXCLUDED.states,
		   test_scores = EXCLUDED.test_scores,
		   updated_at = EXCLUDED.updated_at`,
		p.UserID, p.Degree, p.Program, pq.Array(states), scoresJSON, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("プロフィールの保存に失敗しました: %w", err)
	}
	return nil
}

// DeleteByUserID は指定ユーザーのプロフィールを削除する。
func (r *PostgresProfileRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM profiles WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("プロフィールの削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
