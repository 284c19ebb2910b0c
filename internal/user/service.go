// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/scholarfind/internal/model"
	"github.com/hitoshi/scholarfind/internal/repository"
)

// SelectionDeleter は選択リストの一括削除インターフェース。
type SelectionDeleter interface {
	DeleteByUserID(ctx context.Context, userID string) error
}

// ProfileDeleter はプロフィール削除インターフェース。
// キャッシュの破棄も含めてprofile.Serviceが実装する。
type ProfileDeleter interface {
	Delete(ctx context.Context, userID string) error
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	selections  SelectionDeleter
	profiles    ProfileDeleter
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	selections SelectionDeleter,
	profiles ProfileDeleter,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		selections:  selections,
		profiles:    profiles,
	}
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: selections → profile → sessions → user（identitiesはCASCADE）
// 奨学金・コース・マイクロサイトは共有カタログとして残す。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	if s.selections != nil {
		if err := s.selections.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("選択リストの削除に失敗しました: %w", err)
		}
	}

	if s.profiles != nil {
		if err := s.profiles.Delete(ctx, userID); err != nil {
			return fmt.Errorf("プロフィールの削除に失敗しました: %w", err)
		}
	}

	if s.sessionRepo != nil {
		if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
	}

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)
	return nil
}
