// Package auth はOAuth認証フロー、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/scholarfind/internal/model"
	"github.com/hitoshi/scholarfind/internal/repository"
)

// ErrSessionNotFound はセッションが存在しないか期限切れの場合に返される。
var ErrSessionNotFound = errors.New("session not found or expired")

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	Provider       string
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// ProfileReader はログインユーザーのプロフィール取得インターフェース。
type ProfileReader interface {
	Get(ctx context.Context, userID string) (*model.Profile, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// CurrentUser は/auth/meで返すログインユーザーの情報。
// ProfileCompleteがfalseの場合、画面はプロフィール入力を促す。
type CurrentUser struct {
	User            *model.User
	ProfileComplete bool
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth       OAuthProvider
	userRepo    repository.UserRepository
	identRepo   repository.IdentityRepository
	sessionRepo repository.SessionRepository
	profiles    ProfileReader
	config      ServiceConfig
}

// NewService はServiceを生成する。profilesはnil可で、その場合ProfileCompleteは常にfalse。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	profiles ProfileReader,
	config ServiceConfig,
) *Service {
	return &Service{
		oauth:       oauth,
		userRepo:    userRepo,
		identRepo:   identRepo,
		sessionRepo: sessionRepo,
		profiles:    profiles,
		config:      config,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
//
// 未登録ユーザーの場合はusersレコードとidentitiesレコードを同時に作成する。
// 登録済みユーザーの場合はIdPのメールアドレスと表示名を反映してログインする。
// 匿名端末で作成した選択リストはログイン後のリストに統合しない。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	userInfo, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	userID, err := s.resolveUser(ctx, userInfo)
	if err != nil {
		return nil, err
	}

	session, err := s.createSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// resolveUser はIdPのユーザー情報に対応するユーザーIDを返す。必要ならユーザーを作成する。
func (s *Service) resolveUser(ctx context.Context, info *OAuthUserInfo) (string, error) {
	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, info.Provider, info.ProviderUserID)
	if err != nil {
		return "", fmt.Errorf("failed to find identity: %w", err)
	}

	if identity != nil {
		if err := s.userRepo.UpdateContact(ctx, identity.UserID, info.Email, info.Name); err != nil {
			// 連絡先の更新失敗ではログインを止めない
			slog.Warn("failed to update user contact",
				slog.String("user_id", identity.UserID),
				slog.String("error", err.Error()),
			)
		}
		slog.Info("existing user logged in",
			slog.String("user_id", identity.UserID),
			slog.String("provider", info.Provider),
		)
		return identity.UserID, nil
	}

	now := time.Now()
	newUser := &model.User{
		ID:        uuid.New().String(),
		Email:     info.Email,
		Name:      info.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	newIdentity := &model.Identity{
		ID:             uuid.New().String(),
		UserID:         newUser.ID,
		Provider:       info.Provider,
		ProviderUserID: info.ProviderUserID,
		CreatedAt:      now,
	}

	err = s.userRepo.CreateWithIdentity(ctx, newUser, newIdentity)
	if errors.Is(err, repository.ErrDuplicateKey) {
		// 同じアカウントの同時ログインで先に作成された
		identity, err = s.identRepo.FindByProviderAndProviderUserID(ctx, info.Provider, info.ProviderUserID)
		if err != nil || identity == nil {
			return "", fmt.Errorf("failed to find identity after duplicate create: %w", err)
		}
		return identity.UserID, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to create user and identity: %w", err)
	}

	slog.Info("new user created",
		slog.String("user_id", newUser.ID),
		slog.String("provider", info.Provider),
	)
	return newUser.ID, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

// GetCurrentUser はセッションから現在のユーザーとプロフィール入力状況を取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*CurrentUser, error) {
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	current := &CurrentUser{User: user}
	if s.profiles != nil {
		p, err := s.profiles.Get(ctx, user.ID)
		if err != nil {
			slog.Warn("failed to load profile for current user",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		} else {
			current.ProfileComplete = p.HasProgram()
		}
	}
	return current, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
