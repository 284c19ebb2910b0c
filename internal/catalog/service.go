// Package catalog は候補レコード（奨学金・コース・マイクロサイト）の読み取りを提供する。
package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/scholarfind/internal/model"
	"github.com/hitoshi/scholarfind/internal/repository"
	"github.com/hitoshi/scholarfind/internal/security"
	"github.com/hitoshi/scholarfind/internal/selection"
)

const (
	// DefaultPageSize は一覧取得の既定件数。
	DefaultPageSize = 20
	// MaxPageSize は一覧取得の最大件数。
	MaxPageSize = 100
)

// Page はページングされた候補一覧。
type Page struct {
	Items  []model.Candidate
	Total  int
	Limit  int
	Offset int
}

// Service は候補レコードのサービス層。
type Service struct {
	repos      map[model.Domain]repository.CandidateRepository
	microsites repository.MicrositeRepository
	sanitizer  security.ContentSanitizer
	logger     *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	scholarships repository.ScholarshipRepository,
	courses repository.CandidateRepository,
	microsites repository.MicrositeRepository,
	sanitizer security.ContentSanitizer,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repos: map[model.Domain]repository.CandidateRepository{
			model.DomainScholarship: scholarships,
			model.DomainCourse:      courses,
			model.DomainMicrosite:   microsites,
		},
		microsites: microsites,
		sanitizer:  sanitizer,
		logger:     logger,
	}
}

func (s *Service) repo(domain model.Domain) (repository.CandidateRepository, error) {
	r, ok := s.repos[domain]
	if !ok || r == nil {
		return nil, model.NewInvalidDomainError(string(domain))
	}
	return r, nil
}

// List はドメインの候補をID昇順でページングして返す。
func (s *Service) List(ctx context.Context, domain model.Domain, limit, offset int) (*Page, error) {
	r, err := s.repo(domain)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	items, err := r.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("候補一覧の取得に失敗しました: %w", err)
	}
	total, err := r.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("候補件数の取得に失敗しました: %w", err)
	}
	return &Page{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// ListAll はドメインの全候補を返す。
// 1リクエストの行数上限を超えないよう、ID順にMaxBatchSize件ずつ取得する。
func (s *Service) ListAll(ctx context.Context, domain model.Domain) ([]model.Candidate, error) {
	r, err := s.repo(domain)
	if err != nil {
		return nil, err
	}

	all := []model.Candidate{}
	var after int64
	for {
		batch, err := r.ListAfter(ctx, after, repository.MaxBatchSize)
		if err != nil {
			return nil, fmt.Errorf("候補の一括取得に失敗しました: %w", err)
		}
		all = append(all, batch...)
		if len(batch) < repository.MaxBatchSize {
			return all, nil
		}
		after = batch[len(batch)-1].CandidateID()
	}
}

// Find は1件の候補を返す。存在しない場合はCANDIDATE_NOT_FOUNDを返す。
func (s *Service) Find(ctx context.Context, domain model.Domain, id int64) (model.Candidate, error) {
	r, err := s.repo(domain)
	if err != nil {
		return nil, err
	}
	found, err := r.FindByIDs(ctx, []int64{id})
	if err != nil {
		return nil, fmt.Errorf("候補の取得に失敗しました: %w", err)
	}
	if len(found) == 0 {
		return nil, model.NewCandidateNotFoundError(domain, id)
	}
	return found[0], nil
}

// Featured はドメインの注目候補を返す。設定されていない場合はnilを返す。
func (s *Service) Featured(ctx context.Context, domain model.Domain) (model.Candidate, error) {
	r, err := s.repo(domain)
	if err != nil {
		return nil, err
	}
	c, err := r.FindFeatured(ctx)
	if err != nil {
		return nil, fmt.Errorf("注目候補の取得に失敗しました: %w", err)
	}
	return c, nil
}

// Resolve は選択済みIDを候補レコードに変換し、idsの順で返す。
// cacheがあれば先に参照し、見つからないIDのみデータベースから取得する。
// 削除済みなどで見つからないIDは結果から除く。
func (s *Service) Resolve(ctx context.Context, domain model.Domain, ids []int64, cache selection.CandidateCache) ([]model.Candidate, error) {
	byID := make(map[int64]model.Candidate, len(ids))

	if cache != nil {
		cached, err := cache.CachedCandidates(ctx)
		if err != nil {
			s.logger.Warn("候補キャッシュの読み込みに失敗しました",
				slog.String("domain", string(domain)),
				slog.String("error", err.Error()),
			)
		}
		for _, c := range cached {
			byID[c.CandidateID()] = c
		}
	}

	var missing []int64
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		r, err := s.repo(domain)
		if err != nil {
			return nil, err
		}
		found, err := r.FindByIDs(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("選択済み候補の取得に失敗しました: %w", err)
		}
		for _, c := range found {
			byID[c.CandidateID()] = c
		}
	}

	out := make([]model.Candidate, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}
