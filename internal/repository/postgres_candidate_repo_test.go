package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/scholarfind/internal/model"
)

func TestCandidateRepos_ImplementInterfaces(t *testing.T) {
	var _ ScholarshipRepository = (*PostgresScholarshipRepo)(nil)
	var _ CandidateRepository = (*PostgresCourseRepo)(nil)
	var _ MicrositeRepository = (*PostgresMicrositeRepo)(nil)
	var _ IngestSourceRepository = (*PostgresIngestSourceRepo)(nil)
}

func TestCandidateRepos_Domain(t *testing.T) {
	if d := NewPostgresScholarshipRepo(nil).Domain(); d != model.DomainScholarship {
		t.Errorf("got %s", d)
	}
	if d := NewPostgresCourseRepo(nil).Domain(); d != model.DomainCourse {
		t.Errorf("got %s", d)
	}
	if d := NewPostgresMicrositeRepo(nil).Domain(); d != model.DomainMicrosite {
		t.Errorf("got %s", d)
	}
}

func TestFindByIDs_EmptyDoesNotQuery(t *testing.T) {
	// db=nilでもクエリを発行せずに空スライスを返す
	ctx := context.Background()
	for _, repo := range []CandidateRepository{
		NewPostgresScholarshipRepo(nil),
		NewPostgresCourseRepo(nil),
		NewPostgresMicrositeRepo(nil),
	} {
		got, err := repo.FindByIDs(ctx, nil)
		if err != nil || got == nil || len(got) != 0 {
			t.Errorf("%s: got %v, %v", repo.Domain(), got, err)
		}
	}
}

func TestPostgresScholarshipRepo_UpsertListAndCleanup(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewPostgresScholarshipRepo(db)

	link := "https://example.org/scholarships/" + uuid.NewString()
	past := time.Now().Add(-400 * 24 * time.Hour)
	s := &model.ScholarshipCandidate{
		Name:         "MBA Scholarship for Finance Students",
		Organisation: "Finance Trust",
		Eligibility:  "Open to finance and accounting students",
		Deadline:     &past,
		Link:         link,
	}
	if err := repo.UpsertByLink(ctx, s, ""); err != nil {
		t.Fatalf("UpsertByLink failed: %v", err)
	}
	if s.ID == 0 {
		t.Fatal("UpsertByLinkはIDを設定するべき")
	}
	firstID := s.ID

	s.Eligibility = "Updated eligibility"
	if err := repo.UpsertByLink(ctx, s, ""); err != nil {
		t.Fatalf("2回目のUpsertByLink failed: %v", err)
	}
	if s.ID != firstID {
		t.Errorf("同じリンクは同じ行を更新するべき: %d != %d", s.ID, firstID)
	}

	found, err := repo.FindByIDs(ctx, []int64{firstID, -1})
	if err != nil {
		t.Fatalf("FindByIDs failed: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("len = %d, want 1", len(found))
	}
	got := found[0].(model.ScholarshipCandidate)
	if got.Eligibility != "Updated eligibility" || got.Deadline == nil {
		t.Errorf("unexpected: %+v", got)
	}

	page, err := repo.ListAfter(ctx, firstID-1, 1)
	if err != nil || len(page) != 1 || page[0].CandidateID() != firstID {
		t.Errorf("ListAfter = %v, %v", page, err)
	}

	n, err := repo.DeleteDeadlinePassedBefore(ctx, time.Now().Add(-365*24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteDeadlinePassedBefore failed: %v", err)
	}
	if n < 1 {
		t.Errorf("締切超過の奨学金が削除されるべき, deleted=%d", n)
	}
	found, _ = repo.FindByIDs(ctx, []int64{firstID})
	if len(found) != 0 {
		t.Error("削除後は取得できないべき")
	}
}

func TestPostgresMicrositeRepo_FindBySlugAndSections(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewPostgresMicrositeRepo(db)

	slug := "test-college-" + uuid.NewString()[:8]
	var id int64
	if err := db.QueryRow(
		`INSERT INTO microsites (slug, college_name, state, courses) VALUES ($1, 'Test College', 'Goa', '{"Data Science"}') RETURNING id`,
		slug,
	).Scan(&id); err != nil {
		t.Fatalf("マイクロサイト作成に失敗: %v", err)
	}
	t.Cleanup(func() { _, _ = db.Exec(`DELETE FROM microsites WHERE id = $1`, id) })

	if _, err := db.Exec(
		`INSERT INTO microsite_tabs (microsite_id, tab, title, content, position) VALUES
		 ($1, 'fees', 'Fees', '<p>1 lakh</p>', 0),
		 ($1, 'placement', 'Placement', '<p>95%</p>', 1)`,
		id,
	); err != nil {
		t.Fatalf("タブ作成に失敗: %v", err)
	}

	m, err := repo.FindBySlug(ctx, slug)
	if err != nil || m == nil {
		t.Fatalf("FindBySlug = %v, %v", m, err)
	}
	if m.CollegeName != "Test College" || len(m.Courses) != 1 {
		t.Errorf("unexpected: %+v", m)
	}

	missing, err := repo.FindBySlug(ctx, "no-such-slug-"+uuid.NewString())
	if err != nil || missing != nil {
		t.Errorf("存在しないスラッグはnilであるべき, got %v, %v", missing, err)
	}

	all, err := repo.ListSections(ctx, id, nil)
	if err != nil || len(all) != 2 || all[0].Tab != model.TabFees {
		t.Errorf("ListSections(all) = %v, %v", all, err)
	}
	one, err := repo.ListSections(ctx, id, []model.MicrositeTab{model.TabPlacement})
	if err != nil || len(one) != 1 || one[0].Tab != model.TabPlacement {
		t.Errorf("ListSections(placement) = %v, %v", one, err)
	}
}
