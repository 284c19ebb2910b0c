package selection

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/hitoshi/scholarfind/internal/model"
)

// State は同期器の状態。
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateMutating
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateMutating:
		return "mutating"
	default:
		return "unknown"
	}
}

// ErrClosed はClose後の操作に対して返される。
var ErrClosed = errors.New("selection: synchronizer closed")

// トグル操作の種別と結果（メトリクスのラベル値）。
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
	ActionClear  = "clear"

	ResultOK         = "ok"
	ResultDuplicate  = "duplicate"
	ResultRejected   = "capacity_exceeded"
	ResultBusy       = "busy"
	ResultRolledBack = "rolled_back"
	ResultIgnored    = "local_error_ignored"
)

// Observer は選択操作の結果を受け取る。
type Observer interface {
	RecordSelectionToggle(kind, domain, action, result string)
}

// ToggleResult はトグル操作の結果。
type ToggleResult struct {
	Added bool
	IDs   []int64
}

// Synchronizer は1つの(主体, kind, domain)の選択リストを保持し、権威ストアと同期する。
//
// 状態遷移は Uninitialized → Loading → Ready ⇄ Mutating。
// トグルは楽観的にメモリ上の集合を更新してからストアを呼び出し、
// 失敗した場合は操作前の状態にロールバックする。
// 直列化のためMutating中の操作はMUTATION_IN_PROGRESSで拒否する。
type Synchronizer struct {
	key      Key
	store    Store
	logger   *slog.Logger
	observer Observer

	mu      sync.Mutex
	state   State
	ids     []int64
	closed  bool
	loading chan struct{} // Loading中のみ非nil。読み込み完了で閉じる
}

// Option はSynchronizerの任意設定。
type Option func(*Synchronizer)

// WithObserver は操作結果の通知先を設定する。
func WithObserver(o Observer) Option {
	return func(s *Synchronizer) { s.observer = o }
}

// WithLogger はロガーを設定する。未設定の場合はslog.Default()を使う。
func WithLogger(l *slog.Logger) Option {
	return func(s *Synchronizer) { s.logger = l }
}

// NewSynchronizer は指定ストアを権威とするSynchronizerを生成する。
func NewSynchronizer(key Key, store Store, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		key:   key,
		store: store,
		state: StateUninitialized,
		ids:   []int64{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Key は同期器が扱うリストのKeyを返す。
func (s *Synchronizer) Key() Key { return s.key }

// State は現在の状態を返す。
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Load はストアから1度だけ読み込み、Readyに遷移する。
// 読み込みに失敗した場合はログを出力して空の集合でReadyになる。
// 別の呼び出しが読み込み中の場合は、その完了（またはctxのキャンセル）まで待つ。
// それ以外の状態では何もしない。
func (s *Synchronizer) Load(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	switch s.state {
	case StateLoading:
		done := s.loading
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	case StateUninitialized:
	default:
		s.mu.Unlock()
		return
	}
	s.state = StateLoading
	done := make(chan struct{})
	s.loading = done
	s.mu.Unlock()

	ids, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Warn("選択リストの読み込みに失敗しました。空のリストとして扱います",
			slog.String("list", s.key.String()),
			slog.String("error", err.Error()),
		)
		ids = []int64{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	defer close(done)
	s.loading = nil
	if s.closed {
		return
	}
	s.ids = dedupe(ids)
	s.state = StateReady
}

// Current は現在のメンバーを追加順で返す。
func (s *Synchronizer) Current() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.ids)
}

// IsMember は候補がリストに含まれるかを返す。
func (s *Synchronizer) IsMember(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.ids, id)
}

// Count は現在のメンバー数を返す。
func (s *Synchronizer) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// Toggle は候補がリストになければ追加し、あれば削除する。
//
// 上限に達したリストへの追加はCAPACITY_EXCEEDEDを返し、状態を変更しない。
// リモートストアへの書き込み失敗時はロールバックしてPERSISTENCE_ERRORを返す。
// 重複追加は成功として扱う。
func (s *Synchronizer) Toggle(ctx context.Context, c model.Candidate) (ToggleResult, error) {
	if c == nil {
		return ToggleResult{}, model.NewCandidateNotFoundError(s.key.Domain, 0)
	}
	if c.CandidateDomain() != s.key.Domain {
		return ToggleResult{}, model.NewInvalidDomainError(string(c.CandidateDomain()))
	}
	s.Load(ctx)

	id := c.CandidateID()

	s.mu.Lock()
	if err := s.beginLocked(); err != nil {
		s.mu.Unlock()
		s.observe(actionFor(s.IsMember(id)), ResultBusy)
		return ToggleResult{}, err
	}
	prev := slices.Clone(s.ids)
	member := slices.Contains(s.ids, id)

	if !member {
		if limit := s.key.Capacity(); limit > 0 && len(s.ids) >= limit {
			s.state = StateReady
			s.mu.Unlock()
			s.observe(ActionAdd, ResultRejected)
			return ToggleResult{IDs: prev}, model.NewCapacityExceededError(limit)
		}
		s.ids = append(s.ids, id)
	} else {
		s.ids = slices.DeleteFunc(s.ids, func(v int64) bool { return v == id })
	}
	s.mu.Unlock()

	action := actionFor(member)
	var err error
	if member {
		err = s.store.Remove(ctx, id)
	} else {
		err = s.store.Add(ctx, id)
	}

	result, outErr := s.finish(action, prev, err)
	if isCapacityExceeded(outErr) {
		// メモリ上の集合が保存済みの内容より古かったため読み直す
		s.Load(ctx)
		result = s.Current()
	}
	if outErr == nil && !member {
		s.cacheCandidate(ctx, c)
	}
	return ToggleResult{Added: !member && outErr == nil, IDs: result}, outErr
}

// ClearAll はリストを空にする。
// リモートストアへの削除に失敗した場合はロールバックしてPERSISTENCE_ERRORを返す。
func (s *Synchronizer) ClearAll(ctx context.Context) error {
	s.Load(ctx)

	s.mu.Lock()
	if err := s.beginLocked(); err != nil {
		s.mu.Unlock()
		s.observe(ActionClear, ResultBusy)
		return err
	}
	prev := slices.Clone(s.ids)
	s.ids = []int64{}
	s.mu.Unlock()

	_, err := s.finish(ActionClear, prev, s.store.Clear(ctx))
	return err
}

// Close は同期器を破棄する。以降に完了したストア操作の結果は反映されない。
func (s *Synchronizer) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// beginLocked はReadyからMutatingに遷移する。s.muを保持して呼ぶこと。
func (s *Synchronizer) beginLocked() error {
	if s.closed {
		return ErrClosed
	}
	if s.state != StateReady {
		return model.NewMutationInProgressError()
	}
	s.state = StateMutating
	return nil
}

// finish はストア操作の結果を反映してReadyに戻る。
func (s *Synchronizer) finish(action string, prev []int64, storeErr error) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		// 破棄後に完了した結果は捨てる
		return slices.Clone(s.ids), ErrClosed
	}
	s.state = StateReady

	switch {
	case storeErr == nil:
		s.observe(action, ResultOK)
	case errors.Is(storeErr, ErrDuplicateMembership):
		s.observe(action, ResultDuplicate)
	case isCapacityExceeded(storeErr):
		// ストア側で上限を検出した。次のLoadで保存済みの集合を読み直す
		s.ids = prev
		s.state = StateUninitialized
		s.logger.Warn("保存済みの選択リストが上限に達しているため追加を拒否しました",
			slog.String("list", s.key.String()),
		)
		s.observe(action, ResultRejected)
		return slices.Clone(s.ids), storeErr
	case s.store.BestEffort():
		s.logger.Warn("端末ローカルへの書き込みに失敗しました",
			slog.String("list", s.key.String()),
			slog.String("action", action),
			slog.String("error", storeErr.Error()),
		)
		s.observe(action, ResultIgnored)
	default:
		s.ids = prev
		s.logger.Error("選択リストの保存に失敗しました。変更をロールバックしました",
			slog.String("list", s.key.String()),
			slog.String("action", action),
			slog.String("error", storeErr.Error()),
		)
		s.observe(action, ResultRolledBack)
		return slices.Clone(s.ids), model.NewPersistenceError(actionLabel(action))
	}
	return slices.Clone(s.ids), nil
}

func (s *Synchronizer) cacheCandidate(ctx context.Context, c model.Candidate) {
	cache, ok := s.store.(CandidateCache)
	if !ok {
		return
	}
	if err := cache.CacheCandidate(ctx, c); err != nil {
		s.logger.Warn("候補キャッシュの保存に失敗しました",
			slog.String("list", s.key.String()),
			slog.String("error", err.Error()),
		)
	}
}

// observe はs.muの保持有無にかかわらず呼び出せる。
func (s *Synchronizer) observe(action, result string) {
	if s.observer != nil {
		s.observer.RecordSelectionToggle(string(s.key.Kind), string(s.key.Domain), action, result)
	}
}

func actionFor(member bool) string {
	if member {
		return ActionRemove
	}
	return ActionAdd
}

func actionLabel(action string) string {
	switch action {
	case ActionAdd:
		return "追加"
	case ActionRemove:
		return "削除"
	default:
		return "クリア"
	}
}
