// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/hitoshi/scholarfind/internal/model"
)

// ErrDuplicateKey は一意制約違反（SQLSTATE 23505）を表す。
var ErrDuplicateKey = errors.New("duplicate key")

// ErrCapacityExceeded は上限付きリストが既に満杯であることを表す。
var ErrCapacityExceeded = errors.New("capacity exceeded")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// UpdateContact はIdPから取得したメールアドレスと表示名を反映する。
	UpdateContact(ctx context.Context, id, email, name string) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するidentities、profiles、選択テーブルはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は有効期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// ProfileRepository はユーザープロフィールの永続化インターフェース。
type ProfileRepository interface {
	// FindByUserID は指定ユーザーのプロフィールを取得する。未作成の場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)
	// Upsert はプロフィールを作成または上書きする。
	Upsert(ctx context.Context, profile *model.Profile) error
	// DeleteByUserID は指定ユーザーのプロフィールを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// SelectionRepository はログインユーザーの選択リスト（比較・保存）の永続化インターフェース。
// 対象テーブルはkindとdomainの組で決まる。
type SelectionRepository interface {
	// ListIDs は選択済みの候補IDを追加順で返す。
	ListIDs(ctx context.Context, kind model.Kind, domain model.Domain, userID string) ([]int64, error)
	// Insert は候補を追加する。既に存在する場合はErrDuplicateKeyを返す。
	// limitが正の場合、既にlimit件あればErrCapacityExceededを返す。
	Insert(ctx context.Context, kind model.Kind, domain model.Domain, userID string, candidateID int64, limit int) error
	// Delete は候補を削除する。存在しない場合もエラーにならない。
	Delete(ctx context.Context, kind model.Kind, domain model.Domain, userID string, candidateID int64) error
	// DeleteAll は指定リストの全候補を削除する。
	DeleteAll(ctx context.Context, kind model.Kind, domain model.Domain, userID string) error
	// DeleteByUserID は全リストからユーザーの選択を削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// CandidateRepository はドメインごとの候補レコードの読み取りインターフェース。
type CandidateRepository interface {
	// Domain はこのリポジトリが扱うドメインを返す。
	Domain() model.Domain
	// List はID昇順でページングした候補を返す。
	List(ctx context.Context, limit, offset int) ([]model.Candidate, error)
	// ListAfter はafterIDより大きいIDの候補をID昇順で最大limit件返す。
	ListAfter(ctx context.Context, afterID int64, limit int) ([]model.Candidate, error)
	// FindByIDs は指定IDの候補を返す。存在しないIDは無視する。
	FindByIDs(ctx context.Context, ids []int64) ([]model.Candidate, error)
	// FindFeatured は注目候補を1件返す。設定されていない場合はnilを返す。
	FindFeatured(ctx context.Context) (model.Candidate, error)
	// Count は候補の総数を返す。
	Count(ctx context.Context) (int, error)
}

// ScholarshipRepository は奨学金レコードの永続化インターフェース。
type ScholarshipRepository interface {
	CandidateRepository

	// UpsertByLink はリンクをキーに奨学金を作成または更新する。
	// 注目フラグは更新しない。
	UpsertByLink(ctx context.Context, s *model.ScholarshipCandidate, sourceID string) error

	// DeleteDeadlinePassedBefore は締切がcutoffより前の奨学金を削除し、削除件数を返す。
	// 注目候補は削除しない。
	DeleteDeadlinePassedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// MicrositeRepository はマイクロサイトの永続化インターフェース。
type MicrositeRepository interface {
	CandidateRepository

	// FindBySlug はスラッグでマイクロサイトを取得する。見つからない場合はnilを返す。
	FindBySlug(ctx context.Context, slug string) (*model.MicrositeCandidate, error)
	// ListSections はマイクロサイトのタブ本文を表示順に返す。
	// tabsが空の場合は全タブを返す。
	ListSections(ctx context.Context, micrositeID int64, tabs []model.MicrositeTab) ([]model.MicrositeSection, error)
}

// IngestSourceRepository は奨学金配信元の永続化インターフェース。
type IngestSourceRepository interface {
	// ListDueForFetch はフェッチ対象の配信元を取得する。
	// next_fetch_at <= now() かつ fetch_status = 'active' の配信元を
	// FOR UPDATE SKIP LOCKEDで排他的に取得する。
	ListDueForFetch(ctx context.Context) ([]*model.IngestSource, error)

	// UpdateFetchState は配信元のフェッチ状態を更新する。
	UpdateFetchState(ctx context.Context, source *model.IngestSource) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
