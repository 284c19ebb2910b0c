package selection

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/hitoshi/scholarfind/internal/kvstore"
	"github.com/hitoshi/scholarfind/internal/model"
)

// LocalStore は匿名端末の選択リストを端末ローカルのキーバリューストアに保存する。
// ID配列はJSONの整数配列として<kind>_<domain>_idsに、
// 候補レコードのキャッシュは<kind>_<domain>_cacheに保存する。
type LocalStore struct {
	kv  kvstore.Store
	key Key
}

// NewLocalStore は端末ごとに名前空間を切ったkvstore.StoreからLocalStoreを生成する。
func NewLocalStore(kv kvstore.Store, key Key) *LocalStore {
	return &LocalStore{kv: kv, key: key}
}

// Load は保存済みのID配列を返す。
// 値が壊れている場合は空のリストとともにPARSE_ERRORを返す。
func (s *LocalStore) Load(ctx context.Context) ([]int64, error) {
	raw, ok, err := s.kv.Get(ctx, s.key.IDsStorageKey())
	if err != nil {
		return []int64{}, err
	}
	if !ok || len(raw) == 0 {
		return []int64{}, nil
	}
	var ids []int64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return []int64{}, model.NewParseError(s.key.IDsStorageKey())
	}
	return dedupe(ids), nil
}

// Add は保存済みのID配列を読み直してから追加する。
// 上限付きリストが既に満杯の場合はCAPACITY_EXCEEDEDを返し、書き込まない。
func (s *LocalStore) Add(ctx context.Context, id int64) error {
	ids, err := s.loadForWrite(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(ids, id) {
		return ErrDuplicateMembership
	}
	if limit := s.key.Capacity(); limit > 0 && len(ids) >= limit {
		return model.NewCapacityExceededError(limit)
	}
	return s.save(ctx, append(ids, id))
}

func (s *LocalStore) Remove(ctx context.Context, id int64) error {
	ids, err := s.loadForWrite(ctx)
	if err != nil {
		return err
	}
	return s.save(ctx, slices.DeleteFunc(ids, func(v int64) bool { return v == id }))
}

// Clear はID配列と候補キャッシュの両方を削除する。
func (s *LocalStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, s.key.IDsStorageKey()); err != nil {
		return err
	}
	return s.kv.Delete(ctx, s.key.CacheStorageKey())
}

// BestEffort はtrueを返す。端末ローカルへの書き込みは常に成功したものとして扱う。
func (s *LocalStore) BestEffort() bool { return true }

// CacheCandidate は候補レコードをキャッシュに追加する。同じIDは上書きする。
func (s *LocalStore) CacheCandidate(ctx context.Context, c model.Candidate) error {
	if c == nil || c.CandidateDomain() != s.key.Domain {
		return nil
	}
	cached, err := s.CachedCandidates(ctx)
	if err != nil {
		// 壊れたキャッシュは作り直す
		cached = nil
	}
	cached = slices.DeleteFunc(cached, func(v model.Candidate) bool {
		return v.CandidateID() == c.CandidateID()
	})
	cached = append(cached, c)

	raw, err := model.MarshalCandidates(cached)
	if err != nil {
		return fmt.Errorf("候補キャッシュのエンコードに失敗しました: %w", err)
	}
	return s.kv.Set(ctx, s.key.CacheStorageKey(), raw)
}

// CachedCandidates はキャッシュ済みの候補レコードを返す。
func (s *LocalStore) CachedCandidates(ctx context.Context) ([]model.Candidate, error) {
	raw, ok, err := s.kv.Get(ctx, s.key.CacheStorageKey())
	if err != nil {
		return nil, err
	}
	if !ok || len(raw) == 0 {
		return []model.Candidate{}, nil
	}
	list, err := model.UnmarshalCandidates(s.key.Domain, raw)
	if err != nil {
		return nil, model.NewParseError(s.key.CacheStorageKey())
	}
	return list, nil
}

// loadForWrite は書き込み前の読み込みを行う。壊れた値は空として上書きする。
func (s *LocalStore) loadForWrite(ctx context.Context) ([]int64, error) {
	ids, err := s.Load(ctx)
	if err != nil && !isParseError(err) {
		return nil, err
	}
	return ids, nil
}

func (s *LocalStore) save(ctx context.Context, ids []int64) error {
	if ids == nil {
		ids = []int64{}
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("選択リストのエンコードに失敗しました: %w", err)
	}
	return s.kv.Set(ctx, s.key.IDsStorageKey(), raw)
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

var (
	_ Store          = (*LocalStore)(nil)
	_ CandidateCache = (*LocalStore)(nil)
)
