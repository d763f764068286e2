package explore

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"cinescope/models"
	"cinescope/services/metadata"
)

//go:generate mockgen -destination=mocks/mock_catalog.go -package=mocks cinescope/services/explore Catalog

// Catalog is the slice of the metadata service a browse session needs.
type Catalog interface {
	Genres(ctx context.Context, mediaType string) ([]models.Genre, error)
	Discover(ctx context.Context, q metadata.DiscoverQuery) (*models.PagedResults, error)
}

// Snapshot is a read-only copy of a session's state.
type Snapshot struct {
	Category    Category              `json:"category"`
	Genres      []models.Genre        `json:"genres"`
	Genre       int                   `json:"genre"`
	Page        int                   `json:"page"`
	TotalPages  int                   `json:"totalPages"`
	Results     []models.MediaSummary `json:"results"`
	Status      Status                `json:"status"`
	Error       string                `json:"error,omitempty"`
	ScrollToTop int                   `json:"scrollToTop"` // bumped on every accepted page change
}

func (s Snapshot) HasPrev() bool { return s.Page > 1 }
func (s Snapshot) HasNext() bool { return s.Page < s.TotalPages }
func (s Snapshot) PrevPage() int { return s.Page - 1 }
func (s Snapshot) NextPage() int { return s.Page + 1 }

// GenreName returns the active genre's display name.
func (s Snapshot) GenreName() string {
	for _, g := range s.Genres {
		if g.ID == s.Genre {
			return g.Name
		}
	}
	return ""
}

// Session runs the effects Reduce asks for. Every fetch gets its own context;
// issuing a newer fetch cancels the previous one, and a cancelled fetch never
// reports back.
type Session struct {
	catalog Catalog

	ctx  context.Context
	stop context.CancelFunc

	mu      sync.Mutex
	state   State
	scrolls int
	cancel  context.CancelFunc
	changed chan struct{}
	wg      sync.WaitGroup
}

// NewSession starts browsing category right away.
func NewSession(catalog Catalog, category Category, pageCap int) *Session {
	return NewSessionAt(catalog, category, 0, pageCap)
}

// NewSessionAt is NewSession opening on genre when the category lists it,
// so a deep link skips the default genre's first page.
func NewSessionAt(catalog Catalog, category Category, genre, pageCap int) *Session {
	ctx, stop := context.WithCancel(context.Background())
	s := &Session{
		catalog: catalog,
		ctx:     ctx,
		stop:    stop,
		state:   NewState(pageCap),
		changed: make(chan struct{}),
	}
	s.dispatch(CategoryChanged{Category: category, Genre: genre})
	return s
}

func (s *Session) SetCategory(c Category) { s.dispatch(CategoryChanged{Category: c}) }
func (s *Session) SelectGenre(id int)     { s.dispatch(GenreSelected{GenreID: id}) }
func (s *Session) SelectPage(page int)    { s.dispatch(PageSelected{Page: page}) }

// Close tears the session down. Pending fetches are cancelled and their
// results dropped.
func (s *Session) Close() {
	s.dispatch(Closed{})
	s.stop()
}

// Wait blocks until every fetch goroutine has returned, cancelled ones
// included.
func (s *Session) Wait() {
	s.wg.Wait()
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Settle waits until no request is in flight and returns the state at that
// point.
func (s *Session) Settle(ctx context.Context) (Snapshot, error) {
	for {
		s.mu.Lock()
		if s.state.InFlight == 0 {
			snap := s.snapshotLocked()
			s.mu.Unlock()
			return snap, nil
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return s.Snapshot(), ctx.Err()
		case <-changed:
		}
	}
}

func (s *Session) snapshotLocked() Snapshot {
	st := s.state
	return Snapshot{
		Category:    st.Category,
		Genres:      append([]models.Genre(nil), st.Genres...),
		Genre:       st.Genre,
		Page:        st.Page,
		TotalPages:  st.TotalPages,
		Results:     cloneResults(st.Results),
		Status:      st.Status,
		Error:       st.Error,
		ScrollToTop: s.scrolls,
	}
}

func cloneResults(in []models.MediaSummary) []models.MediaSummary {
	if in == nil {
		return nil
	}
	return append(make([]models.MediaSummary, 0, len(in)), in...)
}

func (s *Session) dispatch(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, effects := Reduce(s.state, ev)
	s.state = next
	for _, eff := range effects {
		switch e := eff.(type) {
		case ScrollToTop:
			s.scrolls++
		case FetchGenres:
			ctx := s.supersede()
			s.wg.Add(1)
			go s.fetchGenres(ctx, e)
		case FetchPage:
			ctx := s.supersede()
			s.wg.Add(1)
			go s.fetchPage(ctx, e)
		}
	}
	if next.Closed && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}

	close(s.changed)
	s.changed = make(chan struct{})
}

// supersede cancels the running fetch and returns a context for its
// replacement. Caller holds mu.
func (s *Session) supersede() context.Context {
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.cancel = cancel
	return ctx
}

func (s *Session) fetchGenres(ctx context.Context, e FetchGenres) {
	defer s.wg.Done()
	genres, err := s.catalog.Genres(ctx, e.Category.MediaType)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		log.Printf("[explore] genres for %s failed: %v", e.Category.Key, err)
		s.dispatch(GenresFailed{Seq: e.Seq, Message: statusMessage(err)})
		return
	}
	s.dispatch(GenresLoaded{Seq: e.Seq, Genres: genres})
}

func (s *Session) fetchPage(ctx context.Context, e FetchPage) {
	defer s.wg.Done()
	res, err := s.catalog.Discover(ctx, metadata.DiscoverQuery{
		MediaType:        e.Category.MediaType,
		GenreID:          e.GenreID,
		Page:             e.Page,
		OriginalLanguage: e.Category.OriginalLanguage,
	})
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		log.Printf("[explore] %s genre=%d page=%d failed: %v", e.Category.Key, e.GenreID, e.Page, err)
		s.dispatch(PageFailed{Seq: e.Seq, Message: statusMessage(err)})
		return
	}
	if res == nil {
		res = &models.PagedResults{}
	}
	s.dispatch(PageLoaded{Seq: e.Seq, Results: res.Results, TotalPages: res.TotalPages})
}

// statusMessage extracts the human-readable message a remote error carries,
// if any.
func statusMessage(err error) string {
	var remote interface{ StatusMessage() string }
	if errors.As(err, &remote) {
		return strings.TrimSpace(remote.StatusMessage())
	}
	return ""
}
