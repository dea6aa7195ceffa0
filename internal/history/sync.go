package history

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"simguard/client/internal/api"
	"simguard/client/internal/models"
)

// View is the client's copy of one page of submission history. It is
// replaced wholesale on every fetch, never patched in place.
type View struct {
	Page       int
	PageSize   int
	Mode       models.SubmissionMode // empty means all modes
	Risk       models.RiskLevel      // empty means all risk levels
	Sort       models.SortOrder
	Items      []models.SubmissionListItem
	Total      int
	TotalPages int
}

// Synchronizer keeps a paginated, filtered, sorted view consistent with
// server truth. Deletes are confirmed by the server before the view
// changes, so a failed delete leaves every item where it was.
type Synchronizer struct {
	api *api.Client
	log zerolog.Logger

	mu   sync.Mutex
	view View
}

func New(client *api.Client, pageSize int, logger zerolog.Logger) *Synchronizer {
	if pageSize <= 0 {
		pageSize = 8
	}
	return &Synchronizer{
		api: client,
		log: logger,
		view: View{
			Page:       1,
			PageSize:   pageSize,
			Sort:       models.SortDesc,
			TotalPages: 1,
		},
	}
}

// View returns a snapshot with its own copy of the item slice.
func (s *Synchronizer) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Synchronizer) snapshotLocked() View {
	v := s.view
	v.Items = append([]models.SubmissionListItem(nil), s.view.Items...)
	return v
}

// Fetch replaces the view with the server's page. On failure the current
// view is returned untouched alongside the error.
func (s *Synchronizer) Fetch(ctx context.Context, page int) (View, error) {
	if page < 1 {
		page = 1
	}

	s.mu.Lock()
	q := api.HistoryQuery{
		Page:     page,
		PageSize: s.view.PageSize,
		Mode:     s.view.Mode,
		Risk:     s.view.Risk,
		Sort:     s.view.Sort,
	}
	s.mu.Unlock()

	resp, err := s.api.History(ctx, q)
	if err != nil {
		return s.View(), err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	items := append([]models.SubmissionListItem(nil), resp.Submissions...)
	orderItems(items, s.view.Sort)
	s.view.Page = page
	s.view.Items = items
	s.view.Total = resp.Total
	s.view.TotalPages = pageCount(resp.Total, s.view.PageSize)
	return s.snapshotLocked(), nil
}

// SetMode changes the mode filter and refetches from page 1.
func (s *Synchronizer) SetMode(ctx context.Context, mode models.SubmissionMode) (View, error) {
	s.mu.Lock()
	s.view.Mode = mode
	s.mu.Unlock()
	return s.Fetch(ctx, 1)
}

// SetRisk changes the risk filter and refetches from page 1.
func (s *Synchronizer) SetRisk(ctx context.Context, risk models.RiskLevel) (View, error) {
	s.mu.Lock()
	s.view.Risk = risk
	s.mu.Unlock()
	return s.Fetch(ctx, 1)
}

// SetSort changes the sort order and refetches from page 1.
func (s *Synchronizer) SetSort(ctx context.Context, order models.SortOrder) (View, error) {
	s.mu.Lock()
	s.view.Sort = order
	s.mu.Unlock()
	return s.Fetch(ctx, 1)
}

// Delete removes a submission: the server call goes first, and only after
// it succeeds is the view reconciled. The refetched page is clamped to
// the new last page so the view never lands on an empty page while
// earlier pages still have rows.
func (s *Synchronizer) Delete(ctx context.Context, id int64) (View, error) {
	if err := s.api.DeleteSubmission(ctx, id); err != nil {
		return s.View(), err
	}

	s.mu.Lock()
	newTotal := s.view.Total - 1
	if newTotal < 0 {
		newTotal = 0
	}
	maxPage := pageCount(newTotal, s.view.PageSize)
	page := s.view.Page
	if page > maxPage {
		page = maxPage
	}
	s.mu.Unlock()

	s.log.Debug().Int64("submission_id", id).Int("page", page).Msg("submission deleted, reconciling")
	return s.Fetch(ctx, page)
}

// orderItems enforces the pagination ordering contract: creation time per
// sort order, equal timestamps broken by id so page boundaries stay
// stable.
func orderItems(items []models.SubmissionListItem, order models.SortOrder) {
	desc := order != models.SortAsc
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if desc {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if desc {
			return a.ID > b.ID
		}
		return a.ID < b.ID
	})
}

func pageCount(total, pageSize int) int {
	if total <= 0 {
		return 1
	}
	pages := (total + pageSize - 1) / pageSize
	if pages < 1 {
		pages = 1
	}
	return pages
}
