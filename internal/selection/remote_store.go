package selection

import (
	"context"
	"errors"

	"github.com/hitoshi/scholarfind/internal/model"
	"github.com/hitoshi/scholarfind/internal/repository"
)

// RemoteStore はログインユーザーの選択リストをPostgreSQLに保存する。
type RemoteStore struct {
	repo   repository.SelectionRepository
	key    Key
	userID string
}

// NewRemoteStore はユーザーとKeyに束縛されたRemoteStoreを生成する。
func NewRemoteStore(repo repository.SelectionRepository, key Key, userID string) *RemoteStore {
	return &RemoteStore{repo: repo, key: key, userID: userID}
}

func (s *RemoteStore) Load(ctx context.Context) ([]int64, error) {
	return s.repo.ListIDs(ctx, s.key.Kind, s.key.Domain, s.userID)
}

// Add は上限付きリストの件数確認と追加をリポジトリ側で1つの操作として行う。
// 同期器のメモリ上の集合が古くても、保存済みの件数が上限を超えることはない。
func (s *RemoteStore) Add(ctx context.Context, id int64) error {
	err := s.repo.Insert(ctx, s.key.Kind, s.key.Domain, s.userID, id, s.key.Capacity())
	switch {
	case errors.Is(err, repository.ErrDuplicateKey):
		return ErrDuplicateMembership
	case errors.Is(err, repository.ErrCapacityExceeded):
		return model.NewCapacityExceededError(s.key.Capacity())
	}
	return err
}

func (s *RemoteStore) Remove(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, s.key.Kind, s.key.Domain, s.userID, id)
}

func (s *RemoteStore) Clear(ctx context.Context) error {
	return s.repo.DeleteAll(ctx, s.key.Kind, s.key.Domain, s.userID)
}

// BestEffort はfalseを返す。リモートへの書き込み失敗はロールバックされる。
func (s *RemoteStore) BestEffort() bool { return false }

var _ Store = (*RemoteStore)(nil)
