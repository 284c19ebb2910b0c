package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/scholarfind/internal/model"
)

// PostgresIngestSourceRepo はPostgreSQLを使用した奨学金配信元リポジトリ。
type PostgresIngestSourceRepo struct {
	db *sql.DB
}

// NewPostgresIngestSourceRepo はPostgresIngestSourceRepoを生成する。
func NewPostgresIngestSourceRepo(db *sql.DB) *PostgresIngestSourceRepo {
	return &PostgresIngestSourceRepo{db: db}
}

// ListDueForFetch はフェッチ対象の配信元を取得する。
func (r *PostgresIngestSourceRepo) ListDueForFetch(ctx context.Context) ([]*model.IngestSource, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, site_url, feed_url, organisation, etag, last_modified,
		        fetch_status, consecutive_errors, error_message, next_fetch_at,
		        created_at, updated_at
		 FROM ingest_sources
		 WHERE next_fetch_at <= now()
		   AND fetch_status = 'active'
		 ORDER BY next_fetch_at ASC
		 FOR UPDATE SKIP LOCKED`,
	)
	if err != nil {
		return nil, fmt.Errorf("フェッチ対象配信元の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var sources []*model.IngestSource
	for rows.Next() {
		s := &model.IngestSource{}
		if err := rows.Scan(
			&s.ID, &s.SiteURL, &s.FeedURL, &s.Organisation, &s.ETag, &s.LastModified,
			&s.FetchStatus, &s.ConsecutiveErrors, &s.ErrorMessage, &s.NextFetchAt,
			&s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("フェッチ対象配信元の読み取りに失敗しました: %w", err)
		}
		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("フェッチ対象配信元の走査に失敗しました: %w", err)
	}
	return sources, nil
}

// UpdateFetchState は配信元のフェッチ状態を更新する。
func (r *PostgresIngestSourceRepo) UpdateFetchState(ctx context.Context, s *model.IngestSource) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE ingest_sources SET
		    feed_url = $2,
		    fetch_status = $3,
		    consecutive_errors = $4,
		    error_message = $5,
		    next_fetch_at = $6,
		    etag = $7,
		    last_modified = $8,
		    updated_at = now()
		 WHERE id = $1`,
		s.ID, s.FeedURL, s.FetchStatus, s.ConsecutiveErrors, s.ErrorMessage,
		s.NextFetchAt, s.ETag, s.LastModified,
	)
	if err != nil {
		return fmt.Errorf("配信元のフェッチ状態の更新に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ IngestSourceRepository = (*PostgresIngestSourceRepo)(nil)
