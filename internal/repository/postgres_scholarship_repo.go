package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/scholarfind/internal/model"
)

const scholarshipColumns = `id, scholarship_name, organisation, eligibility, benefit, deadline, link, featured`

// PostgresScholarshipRepo はPostgreSQLを使用した奨学金リポジトリ。
type PostgresScholarshipRepo struct {
	db *sql.DB
}

// NewPostgresScholarshipRepo はPostgresScholarshipRepoを生成する。
func NewPostgresScholarshipRepo(db *sql.DB) *PostgresScholarshipRepo {
	return &PostgresScholarshipRepo{db: db}
}

func scanScholarship(row rowScanner) (model.Candidate, error) {
	var c model.ScholarshipCandidate
	var deadline sql.NullTime
	if err := row.Scan(&c.ID, &c.Name, &c.Organisation, &c.Eligibility, &c.Benefit, &deadline, &c.Link, &c.Featured); err != nil {
		return nil, err
	}
	if deadline.Valid {
		t := deadline.Time
		c.Deadline = &t
	}
	return c, nil
}

// Domain はscholarshipを返す。
func (r *PostgresScholarshipRepo) Domain() model.Domain { return model.DomainScholarship }

// List はID昇順でページングした奨学金を返す。
func (r *PostgresScholarshipRepo) List(ctx context.Context, limit, offset int) ([]model.Candidate, error) {
	return queryCandidates(ctx, r.db, "scholarships", scanScholarship,
		`SELECT `+scholarshipColumns+` FROM scholarships ORDER BY id LIMIT $1 OFFSET $2`,
		normalizeLimit(limit), max(offset, 0),
	)
}

// ListAfter はafterIDより大きいIDの奨学金をID昇順で返す。
func (r *PostgresScholarshipRepo) ListAfter(ctx context.Context, afterID int64, limit int) ([]model.Candidate, error) {
	return queryCandidates(ctx, r.db, "scholarships", scanScholarship,
		`SELECT `+scholarshipColumns+` FROM scholarships WHERE id > $1 ORDER BY id LIMIT $2`,
		afterID, normalizeLimit(limit),
	)
}

// FindByIDs は指定IDの奨学金を返す。
func (r *PostgresScholarshipRepo) FindByIDs(ctx context.Context, ids []int64) ([]model.Candidate, error) {
	if len(ids) == 0 {
		return []model.Candidate{}, nil
	}
	return queryCandidates(ctx, r.db, "scholarships", scanScholarship,
		`SELECT `+scholarshipColumns+` FROM scholarships WHERE id = ANY($1) ORDER BY id`,
		pq.Array(ids),
	)
}

// FindFeatured は注目奨学金のうちIDが最小のものを返す。
func (r *PostgresScholarshipRepo) FindFeatured(ctx context.Context) (model.Candidate, error) {
	return queryFeatured(ctx, r.db, "scholarships", scanScholarship,
		`SELECT `+scholarshipColumns+` FROM scholarships WHERE featured ORDER BY id LIMIT 1`,
	)
}

// Count は奨学金の総数を返す。
func (r *PostgresScholarshipRepo) Count(ctx context.Context) (int, error) {
	return countRows(ctx, r.db, "scholarships")
}

// UpsertByLink はリンクをキーに奨学金を作成または更新する。
func (r *PostgresScholarshipRepo) UpsertByLink(ctx context.Context, s *model.ScholarshipCandidate, sourceID string) error {
	var deadline sql.NullTime
	if s.Deadline != nil {
		deadline = sql.NullTime{Time: *s.Deadline, Valid: true}
	}
	var source sql.NullString
	if sourceID != "" {
		source = sql.NullString{String: sourceID, Valid: true}
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO scholarships (scholarship_name, organisation, eligibility, benefit, deadline, link, source_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (link) WHERE link <> '' DO UPDATE SET
		   scholarship_name = EXCLUDED.scholarship_name,
		   organisation = EXCLUDED.organisation,
		   eligibility = EXCLUDED.eligibility,
		   benefit = EXCLUDED.benefit,
		   deadline = EXCLUDED.deadline,
		   source_id = EXCLUDED.source_id,
		   updated_at = now()
		 RETURNING id`,
		s.Name, s.Organisation, s.Eligibility, s.Benefit, deadline, s.Link, source,
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("奨学金の保存に失敗しました: %w", err)
	}
	return nil
}

// DeleteDeadlinePassedBefore は締切がcutoffより前の奨学金を削除する。
// 選択テーブルの行はCASCADE削除される。
func (r *PostgresScholarshipRepo) DeleteDeadlinePassedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM scholarships WHERE deadline IS NOT NULL AND deadline < $1 AND NOT featured`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("締切超過奨学金の削除に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ ScholarshipRepository = (*PostgresScholarshipRepo)(nil)
