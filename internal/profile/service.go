// Package profile はユーザープロフィールの取得・更新を提供する。
package profile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/scholarfind/internal/model"
	"github.com/hitoshi/scholarfind/internal/repository"
)

const (
	maxFieldLength = 200
	maxStates      = 10
	maxTestScores  = 10
)

// UpdateInput はプロフィール更新の入力。
type UpdateInput struct {
	Degree     string
	Program    string
	States     []string
	TestScores map[string]float64
}

// Service はプロフィールのサービス層。
// 読み取りはCacheを経由し、更新時にキャッシュを破棄する。
type Service struct {
	repo  repository.ProfileRepository
	cache *Cache
	now   func() time.Time
}

// NewService はServiceを生成する。
func NewService(repo repository.ProfileRepository, cache *Cache) *Service {
	if cache == nil {
		cache = NewCache(DefaultCacheTTL)
	}
	return &Service{repo: repo, cache: cache, now: time.Now}
}

// Get はユーザーのプロフィールを返す。未作成の場合は空のプロフィールを返す。
func (s *Service) Get(ctx context.Context, userID string) (*model.Profile, error) {
	if p, ok := s.cache.Get(userID); ok {
		return p, nil
	}

	p, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if p == nil {
		p = &model.Profile{UserID: userID}
	}
	s.cache.Set(userID, p)
	return p, nil
}

// Update はプロフィールを検証して保存し、キャッシュを破棄する。
func (s *Service) Update(ctx context.Context, userID string, in UpdateInput) (*model.Profile, error) {
	p, err := normalize(userID, in)
	if err != nil {
		return nil, err
	}
	p.UpdatedAt = s.now()

	if err := s.repo.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("プロフィールの保存に失敗しました: %w", err)
	}
	s.cache.Invalidate(userID)
	return p, nil
}

// Delete はプロフィールを削除し、キャッシュを破棄する。
func (s *Service) Delete(ctx context.Context, userID string) error {
	if err := s.repo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("プロフィールの削除に失敗しました: %w", err)
	}
	s.cache.Invalidate(userID)
	return nil
}

func normalize(userID string, in UpdateInput) (*model.Profile, error) {
	p := &model.Profile{
		UserID:  userID,
		Degree:  strings.TrimSpace(in.Degree),
		Program: strings.TrimSpace(in.Program),
	}
	if len(p.Degree) > maxFieldLength || len(p.Program) > maxFieldLength {
		return nil, model.NewInvalidProfileError(fmt.Sprintf("学位と志望分野は%d文字以内で入力してください", maxFieldLength))
	}

	seen := map[string]bool{}
	for _, st := range in.States {
		st = strings.TrimSpace(st)
		if st == "" || seen[strings.ToLower(st)] {
			continue
		}
		seen[strings.ToLower(st)] = true
		p.States = append(p.States, st)
	}
	if len(p.States) > maxStates {
		return nil, model.NewInvalidProfileError(fmt.Sprintf("志望地域は%d件まで指定できます", maxStates))
	}

	if len(in.TestScores) > maxTestScores {
		return nil, model.NewInvalidProfileError(fmt.Sprintf("試験スコアは%d件まで指定できます", maxTestScores))
	}
	if len(in.TestScores) > 0 {
		p.TestScores = make(map[string]float64, len(in.TestScores))
		for name, score := range in.TestScores {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if score < 0 {
				return nil, model.NewInvalidProfileError("試験スコアに負の値は指定できません")
			}
			p.TestScores[name] = score
		}
	}
	return p, nil
}
