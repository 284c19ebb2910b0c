package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/lib/pq"

	"github.com/hitoshi/scholarfind/internal/model"
)

const courseColumns = `id, college_name, course_name, degree, city, state, course_fees, featured, attributes`

// PostgresCourseRepo はPostgreSQLを使用したコースリポジトリ。
type PostgresCourseRepo struct {
	db *sql.DB
}

// NewPostgresCourseRepo はPostgresCourseRepoを生成する。
func NewPostgresCourseRepo(db *sql.DB) *PostgresCourseRepo {
	return &PostgresCourseRepo{db: db}
}

func scanCourse(row rowScanner) (model.Candidate, error) {
	var c model.CourseCandidate
	var attrs []byte
	if err := row.Scan(&c.ID, &c.CollegeName, &c.CourseName, &c.Degree, &c.City, &c.State, &c.CourseFees, &c.Featured, &attrs); err != nil {
		return nil, err
	}
	if len(attrs) > 0 {
		// 表示専用の属性は値が文字列でない場合があるため、失敗しても候補自体は返す
		_ = json.Unmarshal(attrs, &c.Attributes)
	}
	return c, nil
}

// Domain はcourseを返す。
func (r *PostgresCourseRepo) Domain() model.Domain { return model.DomainCourse }

// List はID昇順でページングしたコースを返す。
func (r *PostgresCourseRepo) List(ctx context.Context, limit, offset int) ([]model.Candidate, error) {
	return queryCandidates(ctx, r.db, "courses", scanCourse,
		`SELECT `+courseColumns+` FROM courses ORDER BY id LIMIT $1 OFFSET $2`,
		normalizeLimit(limit), max(offset, 0),
	)
}

// ListAfter はafterIDより大きいIDのコースをID昇順で返す。
func (r *PostgresCourseRepo) ListAfter(ctx context.Context, afterID int64, limit int) ([]model.Candidate, error) {
	return queryCandidates(ctx, r.db, "courses", scanCourse,
		`SELECT `+courseColumns+` FROM courses WHERE id > $1 ORDER BY id LIMIT $2`,
		afterID, normalizeLimit(limit),
	)
}

// FindByIDs は指定IDのコースを返す。
func (r *PostgresCourseRepo) FindByIDs(ctx context.Context, ids []int64) ([]model.Candidate, error) {
	if len(ids) == 0 {
		return []model.Candidate{}, nil
	}
	return queryCandidates(ctx, r.db, "courses", scanCourse,
		`SELECT `+courseColumns+` FROM courses WHERE id = ANY($1) ORDER BY id`,
		pq.Array(ids),
	)
}

// FindFeatured は注目コースのうちIDが最小のものを返す。
func (r *PostgresCourseRepo) FindFeatured(ctx context.Context) (model.Candidate, error) {
	return queryFeatured(ctx, r.db, "courses", scanCourse,
		`SELECT `+courseColumns+` FROM courses WHERE featured ORDER BY id LIMIT 1`,
	)
}

// Count はコースの総数を返す。
func (r *PostgresCourseRepo) Count(ctx context.Context) (int, error) {
	return countRows(ctx, r.db, "courses")
}

// compile-time interface check
var _ CandidateRepository = (*PostgresCourseRepo)(nil)
