package selection

import (
	"context"
	"errors"

	"github.com/hitoshi/scholarfind/internal/model"
)

// ErrDuplicateMembership は既にリストに含まれる候補の追加を表す。
// 連打や競合で発生するため、同期器はこれを成功として扱う。
var ErrDuplicateMembership = errors.New("selection: duplicate membership")

// Store は選択リストの権威ストア。
type Store interface {
	// Load は現在のメンバーを追加順で返す。
	Load(ctx context.Context) ([]int64, error)
	// Add は候補を追加する。既に含まれる場合はErrDuplicateMembershipを返しうる。
	// 上限付きリストでは保存済みの件数で上限を確認し、
	// 満杯ならCAPACITY_EXCEEDEDのAPIErrorを返す。
	Add(ctx context.Context, id int64) error
	// Remove は候補を削除する。
	Remove(ctx context.Context, id int64) error
	// Clear は全候補を削除する。
	Clear(ctx context.Context) error
	// BestEffort がtrueのストアは書き込み失敗をロールバック対象にしない。
	BestEffort() bool
}

// CandidateCache は候補レコードをIDから引けるようにキャッシュできるストア。
type CandidateCache interface {
	// CacheCandidate は候補レコードをキャッシュに追加する。
	CacheCandidate(ctx context.Context, c model.Candidate) error
	// CachedCandidates はキャッシュ済みの候補レコードを返す。
	CachedCandidates(ctx context.Context) ([]model.Candidate, error)
}

func isParseError(err error) bool {
	var apiErr *model.APIError
	return errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeParse
}

func isCapacityExceeded(err error) bool {
	var apiErr *model.APIError
	return errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeCapacityExceeded
}
