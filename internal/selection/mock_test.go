package selection

import (
	"context"
	"sync"

	"github.com/hitoshi/scholarfind/internal/model"
)

// mockStore はStoreのモック実装。
type mockStore struct {
	loadFn     func(ctx context.Context) ([]int64, error)
	addFn      func(ctx context.Context, id int64) error
	removeFn   func(ctx context.Context, id int64) error
	clearFn    func(ctx context.Context) error
	bestEffort bool

	mu      sync.Mutex
	added   []int64
	removed []int64
	loads   int
}

func (m *mockStore) Load(ctx context.Context) ([]int64, error) {
	m.mu.Lock()
	m.loads++
	m.mu.Unlock()
	if m.loadFn != nil {
		return m.loadFn(ctx)
	}
	return []int64{}, nil
}

func (m *mockStore) Add(ctx context.Context, id int64) error {
	m.mu.Lock()
	m.added = append(m.added, id)
	m.mu.Unlock()
	if m.addFn != nil {
		return m.addFn(ctx, id)
	}
	return nil
}

func (m *mockStore) Remove(ctx context.Context, id int64) error {
	m.mu.Lock()
	m.removed = append(m.removed, id)
	m.mu.Unlock()
	if m.removeFn != nil {
		return m.removeFn(ctx, id)
	}
	return nil
}

func (m *mockStore) Clear(ctx context.Context) error {
	if m.clearFn != nil {
		return m.clearFn(ctx)
	}
	return nil
}

func (m *mockStore) BestEffort() bool { return m.bestEffort }

// mockSelectionRepo はrepository.SelectionRepositoryのモック実装。
type mockSelectionRepo struct {
	listIDsFn   func(ctx context.Context, kind model.Kind, domain model.Domain, userID string) ([]int64, error)
	insertFn    func(ctx context.Context, kind model.Kind, domain model.Domain, userID string, id int64, limit int) error
	deleteFn    func(ctx context.Context, kind model.Kind, domain model.Domain, userID string, id int64) error
	deleteAllFn func(ctx context.Context, kind model.Kind, domain model.Domain, userID string) error
}

func (m *mockSelectionRepo) ListIDs(ctx context.Context, kind model.Kind, domain model.Domain, userID string) ([]int64, error) {
	if m.listIDsFn != nil {
		return m.listIDsFn(ctx, kind, domain, userID)
	}
	return []int64{}, nil
}

func (m *mockSelectionRepo) Insert(ctx context.Context, kind model.Kind, domain model.Domain, userID string, id int64, limit int) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, kind, domain, userID, id, limit)
	}
	return nil
}

func (m *mockSelectionRepo) Delete(ctx context.Context, kind model.Kind, domain model.Domain, userID string, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, kind, domain, userID, id)
	}
	return nil
}

func (m *mockSelectionRepo) DeleteAll(ctx context.Context, kind model.Kind, domain model.Domain, userID string) error {
	if m.deleteAllFn != nil {
		return m.deleteAllFn(ctx, kind, domain, userID)
	}
	return nil
}

func (m *mockSelectionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	return nil
}

// recordingObserver はObserverへの通知を記録する。
type recordingObserver struct {
	mu      sync.Mutex
	results []string
}

func (o *recordingObserver) RecordSelectionToggle(kind, domain, action, result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, action+":"+result)
}

func course(id int64) model.CourseCandidate {
	return model.CourseCandidate{ID: id, CollegeName: "College", CourseName: "Course"}
}

func scholarship(id int64) model.ScholarshipCandidate {
	return model.ScholarshipCandidate{ID: id, Name: "Scholarship"}
}
