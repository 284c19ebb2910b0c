package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/scholarfind/internal/model"
)

const micrositeColumns = `id, slug, college_name, city, state, courses, featured`

// PostgresMicrositeRepo はPostgreSQLを使用したマイクロサイトリポジトリ。
type PostgresMicrositeRepo struct {
	db *sql.DB
}

// NewPostgresMicrositeRepo はPostgresMicrositeRepoを生成する。
func NewPostgresMicrositeRepo(db *sql.DB) *PostgresMicrositeRepo {
	return &PostgresMicrositeRepo{db: db}
}

func scanMicrositeRow(row rowScanner) (*model.MicrositeCandidate, error) {
	c := &model.MicrositeCandidate{}
	var courses []string
	if err := row.Scan(&c.ID, &c.Slug, &c.CollegeName, &c.City, &c.State, pq.Array(&courses), &c.Featured); err != nil {
		return nil, err
	}
	c.Courses = courses
	return c, nil
}

func scanMicrosite(row rowScanner) (model.Candidate, error) {
	c, err := scanMicrositeRow(row)
	if err != nil {
		return nil, err
	}
	return *c, nil
}

// Domain はmicrositeを返す。
func (r *PostgresMicrositeRepo) Domain() model.Domain { return model.DomainMicrosite }

// List はID昇順でページングしたマイクロサイトを返す。
func (r *PostgresMicrositeRepo) List(ctx context.Context, limit, offset int) ([]model.Candidate, error) {
	return queryCandidates(ctx, r.db, "microsites", scanMicrosite,
		`SELECT `+micrositeColumns+` FROM microsites ORDER BY id LIMIT $1 OFFSET $2`,
		normalizeLimit(limit), max(offset, 0),
	)
}

// ListAfter はafterIDより大きいIDのマイクロサイトをID昇順で返す。
func (r *PostgresMicrositeRepo) ListAfter(ctx context.Context, afterID int64, limit int) ([]model.Candidate, error) {
	return queryCandidates(ctx, r.db, "microsites", scanMicrosite,
		`SELECT `+micrositeColumns+` FROM microsites WHERE id > $1 ORDER BY id LIMIT $2`,
		afterID, normalizeLimit(limit),
	)
}

// FindByIDs は指定IDのマイクロサイトを返す。
func (r *PostgresMicrositeRepo) FindByIDs(ctx context.Context, ids []int64) ([]model.Candidate, error) {
	if len(ids) == 0 {
		return []model.Candidate{}, nil
	}
	return queryCandidates(ctx, r.db, "microsites", scanMicrosite,
		`SELECT `+micrositeColumns+` FROM microsites WHERE id = ANY($1) ORDER BY id`,
		pq.Array(ids),
	)
}

// FindFeatured は注目マイクロサイトのうちIDが最小のものを返す。
func (r *PostgresMicrositeRepo) FindFeatured(ctx context.Context) (model.Candidate, error) {
	return queryFeatured(ctx, r.db, "microsites", scanMicrosite,
		`SELECT `+micrositeColumns+` FROM microsites WHERE featured ORDER BY id LIMIT 1`,
	)
}

// Count はマイクロサイトの総数を返す。
func (r *PostgresMicrositeRepo) Count(ctx context.Context) (int, error) {
	return countRows(ctx, r.db, "microsites")
}

// FindBySlug はスラッグでマイクロサイトを取得する。見つからない場合はnilを返す。
func (r *PostgresMicrositeRepo) FindBySlug(ctx context.Context, slug string) (*model.MicrositeCandidate, error) {
	c, err := scanMicrositeRow(r.db.QueryRowContext(ctx,
		`SELECT `+micrositeColumns+` FROM microsites WHERE slug = $1`,
		slug,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("マイクロサイトの取得に失敗しました: %w", err)
	}
	return c, nil
}

// ListSections はマイクロサイトのタブ本文を表示順に返す。
func (r *PostgresMicrositeRepo) ListSections(ctx context.Context, micrositeID int64, tabs []model.MicrositeTab) ([]model.MicrositeSection, error) {
	query := `SELECT tab, title, content FROM microsite_tabs WHERE microsite_id = $1`
	args := []any{micrositeID}
	if len(tabs) > 0 {
		names := make([]string, len(tabs))
		for i, t := range tabs {
			names[i] = string(t)
		}
		query += ` AND tab = ANY($2)`
		args = append(args, pq.Array(names))
	}
	query += ` ORDER BY position, tab`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("マイクロサイトのタブ取得に失敗しました: %w", err)
	}
	defer rows.Close()

	sections := []model.MicrositeSection{}
	for rows.Next() {
		var s model.MicrositeSection
		var tab string
		if err := rows.Scan(&tab, &s.Title, &s.Content); err != nil {
			return nil, fmt.Errorf("マイクロサイトのタブ読み取りに失敗しました: %w", err)
		}
		s.Tab = model.MicrositeTab(tab)
		sections = append(sections, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("マイクロサイトのタブ走査に失敗しました: %w", err)
	}
	return sections, nil
}

// compile-time interface check
var _ MicrositeRepository = (*PostgresMicrositeRepo)(nil)
