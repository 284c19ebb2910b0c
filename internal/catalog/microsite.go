package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/hitoshi/scholarfind/internal/model"
)

// Microsite はスラッグでマイクロサイトを取得し、タブ本文をサニタイズして返す。
// tabが空の場合は全タブを返す。
func (s *Service) Microsite(ctx context.Context, slug, tab string) (*model.MicrositePage, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return nil, model.NewMicrositeNotFoundError(slug)
	}
	t, ok := model.ParseMicrositeTab(tab)
	if !ok {
		return nil, model.NewInvalidTabError(tab)
	}

	m, err := s.microsites.FindBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("マイクロサイトの取得に失敗しました: %w", err)
	}
	if m == nil {
		return nil, model.NewMicrositeNotFoundError(slug)
	}

	var tabs []model.MicrositeTab
	if t != "" {
		tabs = []model.MicrositeTab{t}
	}
	sections, err := s.microsites.ListSections(ctx, m.ID, tabs)
	if err != nil {
		return nil, fmt.Errorf("マイクロサイトのタブ取得に失敗しました: %w", err)
	}
	for i := range sections {
		sections[i].Content = s.sanitizer.Sanitize(sections[i].Content)
	}

	return &model.MicrositePage{MicrositeCandidate: *m, Sections: sections}, nil
}
