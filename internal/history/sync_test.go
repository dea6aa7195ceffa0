package history_test

import (
	"context"
	"testing"
	"time"

	"simguard/client/internal/api"
	"simguard/client/internal/apitest"
	"simguard/client/internal/config"
	"simguard/client/internal/history"
	"simguard/client/internal/log"
	"simguard/client/internal/models"
	"simguard/client/internal/session"
)

func newSync(t *testing.T, srv *apitest.Server, pageSize int) *history.Synchronizer {
	t.Helper()
	store, err := session.NewStore(t.TempDir(), "", log.Nop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := store.Persist(srv.AccessToken, srv.RefreshToken, srv.User); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	cfg := config.APIConfig{BaseURL: srv.BaseURL(), Timeout: 5 * time.Second}
	client := api.NewClient(cfg, store, "test-client", log.Nop())
	return history.New(client, pageSize, log.Nop())
}

func riskPtr(r models.RiskLevel) *models.RiskLevel { return &r }

// seedRows produces n submissions with distinct creation times, newest
// having the highest id.
func seedRows(n int) []models.SubmissionListItem {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	rows := make([]models.SubmissionListItem, 0, n)
	for i := 0; i < n; i++ {
		mode := models.ModeText
		risk := riskPtr(models.RiskLow)
		if i%2 == 1 {
			mode = models.ModeCode
			risk = riskPtr(models.RiskHigh)
		}
		rows = append(rows, models.SubmissionListItem{
			ID:        int64(i + 1),
			Mode:      mode,
			File1Name: "a.txt",
			File2Name: "b.txt",
			Status:    models.StatusCompleted,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			RiskLevel: risk,
		})
	}
	return rows
}

func TestFetchPagination(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	srv.Submissions = seedRows(10)

	sync := newSync(t, srv, 8)
	view, err := sync.Fetch(context.Background(), 2)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if view.Total != 10 || view.TotalPages != 2 {
		t.Fatalf("total=%d totalPages=%d, want 10/2", view.Total, view.TotalPages)
	}
	if len(view.Items) != 2 {
		t.Fatalf("page 2 has %d items, want 2", len(view.Items))
	}
	if view.Page != 2 {
		t.Fatalf("page = %d, want 2", view.Page)
	}
}

func TestFilterChangeResetsPage(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	srv.Submissions = seedRows(20)

	ctx := context.Background()
	sync := newSync(t, srv, 8)
	if _, err := sync.Fetch(ctx, 2); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	view, err := sync.SetMode(ctx, models.ModeCode)
	if err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if view.Page != 1 {
		t.Fatalf("mode filter left page at %d, want 1", view.Page)
	}
	for _, item := range view.Items {
		if item.Mode != models.ModeCode {
			t.Fatalf("filter leaked mode %s", item.Mode)
		}
	}

	if _, err := sync.Fetch(ctx, 2); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	view, err = sync.SetRisk(ctx, models.RiskHigh)
	if err != nil {
		t.Fatalf("SetRisk: %v", err)
	}
	if view.Page != 1 {
		t.Fatalf("risk filter left page at %d, want 1", view.Page)
	}

	if _, err := sync.Fetch(ctx, 2); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	view, err = sync.SetSort(ctx, models.SortAsc)
	if err != nil {
		t.Fatalf("SetSort: %v", err)
	}
	if view.Page != 1 {
		t.Fatalf("sort change left page at %d, want 1", view.Page)
	}
}

func TestDeleteLastItemOfLastPage(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	srv.Submissions = seedRows(9) // pages: 8 + 1

	ctx := context.Background()
	sync := newSync(t, srv, 8)
	view, err := sync.Fetch(ctx, 2)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(view.Items) != 1 {
		t.Fatalf("page 2 has %d items, want 1", len(view.Items))
	}

	view, err = sync.Delete(ctx, view.Items[0].ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if view.Total != 8 || view.TotalPages != 1 {
		t.Fatalf("total=%d totalPages=%d after delete, want 8/1", view.Total, view.TotalPages)
	}
	if view.Page < 1 || view.Page > view.TotalPages {
		t.Fatalf("page %d outside [1,%d]", view.Page, view.TotalPages)
	}
	if len(view.Items) != 8 {
		t.Fatalf("clamped page has %d items, want 8", len(view.Items))
	}
}

func TestDeleteFailureLeavesViewIntact(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	srv.Submissions = seedRows(5)

	ctx := context.Background()
	sync := newSync(t, srv, 8)
	before, err := sync.Fetch(ctx, 1)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	srv.DeleteStatus = 500
	after, err := sync.Delete(ctx, before.Items[0].ID)
	if err == nil {
		t.Fatal("delete succeeded against a failing server")
	}

	if after.Total != before.Total {
		t.Fatalf("total changed on failed delete: %d -> %d", before.Total, after.Total)
	}
	if len(after.Items) != len(before.Items) {
		t.Fatalf("items changed on failed delete: %d -> %d", len(before.Items), len(after.Items))
	}
	for i := range before.Items {
		if before.Items[i].ID != after.Items[i].ID {
			t.Fatal("item set changed on failed delete")
		}
	}
}

func TestTieBreakOrdering(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()

	created := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	for _, id := range []int64{3, 1, 5, 2, 4} {
		srv.Submissions = append(srv.Submissions, models.SubmissionListItem{
			ID:        id,
			Mode:      models.ModeText,
			Status:    models.StatusCompleted,
			CreatedAt: created,
		})
	}

	ctx := context.Background()
	sync := newSync(t, srv, 8)

	view, err := sync.Fetch(ctx, 1)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	wantDesc := []int64{5, 4, 3, 2, 1}
	for i, item := range view.Items {
		if item.ID != wantDesc[i] {
			t.Fatalf("desc tie-break order %v, want %v", idsOf(view.Items), wantDesc)
		}
	}

	view, err = sync.SetSort(ctx, models.SortAsc)
	if err != nil {
		t.Fatalf("SetSort: %v", err)
	}
	wantAsc := []int64{1, 2, 3, 4, 5}
	for i, item := range view.Items {
		if item.ID != wantAsc[i] {
			t.Fatalf("asc tie-break order %v, want %v", idsOf(view.Items), wantAsc)
		}
	}
}

func idsOf(items []models.SubmissionListItem) []int64 {
	out := make([]int64, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}
