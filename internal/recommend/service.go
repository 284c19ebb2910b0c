// Package recommend はプロフィールに基づく候補の推薦リストを組み立てる。
package recommend

import (
	"context"
	"log/slog"

	"github.com/hitoshi/scholarfind/internal/model"
	"github.com/hitoshi/scholarfind/internal/scoring"
	"github.com/hitoshi/scholarfind/internal/selection"
)

// 推薦結果の種別（メトリクスのラベル）。
const (
	OutcomeScored       = "scored"
	OutcomeFeaturedOnly = "featured_only"
	OutcomeDegraded     = "degraded"
)

// ProfileReader はプロフィールの読み取りインターフェース。
type ProfileReader interface {
	Get(ctx context.Context, userID string) (*model.Profile, error)
}

// CandidateSource は推薦対象の候補プールを提供するインターフェース。
type CandidateSource interface {
	ListAll(ctx context.Context, domain model.Domain) ([]model.Candidate, error)
	Featured(ctx context.Context, domain model.Domain) (model.Candidate, error)
}

// Observer は推薦結果の種別を記録する。
type Observer interface {
	RecordRecommendation(domain, outcome string)
}

// Result は推薦リストと、縮退時に表示する通知。
// NoticeがnilでなくてもMatchesは常に表示可能なリストである。
type Result struct {
	Domain  model.Domain    `json:"domain"`
	Matches []scoring.Match `json:"matches"`
	Notice  *model.APIError `json:"-"`
}

// Service は推薦サービス。
type Service struct {
	profiles   ProfileReader
	candidates CandidateSource
	observer   Observer
	opts       scoring.Options
	logger     *slog.Logger
}

// NewService はServiceを生成する。observerとloggerはnil可。
func NewService(profiles ProfileReader, candidates CandidateSource, observer Observer, opts scoring.Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		profiles:   profiles,
		candidates: candidates,
		observer:   observer,
		opts:       opts,
		logger:     logger,
	}
}

// Recommend はidentityのプロフィールでドメインの推薦リストを返す。
//
// 匿名ユーザー、プロフィール未入力、プロフィール取得失敗の場合は
// 注目候補のみのリストとPROFILE_INCOMPLETE通知を返す。
// 候補プールの取得に失敗した場合も注目候補のみへ縮退し、エラーにはしない。
// エラーを返すのはドメインが不正な場合のみ。
func (s *Service) Recommend(ctx context.Context, id selection.Identity, domain model.Domain) (*Result, error) {
	if !validDomain(domain) {
		return nil, model.NewInvalidDomainError(string(domain))
	}

	featured, err := s.candidates.Featured(ctx, domain)
	if err != nil {
		s.logger.Warn("注目候補の取得に失敗しました",
			slog.String("domain", string(domain)),
			slog.String("error", err.Error()),
		)
		featured = nil
	}

	p := s.profile(ctx, id)
	if !p.HasProgram() {
		s.observe(domain, OutcomeFeaturedOnly)
		return &Result{
			Domain:  domain,
			Matches: scoring.FeaturedOnly(featured),
			Notice:  model.NewProfileIncompleteNotice(),
		}, nil
	}

	pool, err := s.candidates.ListAll(ctx, domain)
	if err != nil {
		s.logger.Error("候補プールの取得に失敗しました",
			slog.String("domain", string(domain)),
			slog.String("error", err.Error()),
		)
		s.observe(domain, OutcomeDegraded)
		return &Result{
			Domain:  domain,
			Matches: scoring.FeaturedOnly(featured),
			Notice:  model.NewPersistenceError("recommendations"),
		}, nil
	}

	s.observe(domain, OutcomeScored)
	return &Result{
		Domain:  domain,
		Matches: scoring.Recommend(p, featured, pool, s.opts),
	}, nil
}

// profile はログインユーザーのプロフィールを返す。取得できない場合はnil。
func (s *Service) profile(ctx context.Context, id selection.Identity) *model.Profile {
	if !id.Authenticated() || s.profiles == nil {
		return nil
	}
	p, err := s.profiles.Get(ctx, id.UserID)
	if err != nil {
		s.logger.Warn("プロフィールの取得に失敗しました",
			slog.String("user_id", id.UserID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return p
}

func (s *Service) observe(domain model.Domain, outcome string) {
	if s.observer != nil {
		s.observer.RecordRecommendation(string(domain), outcome)
	}
}

// validDomain は推薦対象のドメインかを返す。マイクロサイトは推薦しない。
func validDomain(d model.Domain) bool {
	return d == model.DomainScholarship || d == model.DomainCourse
}
