// Package explore keeps a category browse view consistent: which genres are
// available, which one is active, the current page and its results.
//
// State changes go through Reduce, a pure function from (State, Event) to the
// next State plus the effects to run. Session runs those effects against a
// Catalog and feeds the outcomes back in as events.
package explore

import (
	"strings"

	"cinescope/models"
)

// MaxPages is the deepest page TMDB will serve for list endpoints.
const MaxPages = 500

const (
	msgNoGenres     = "No genres found."
	msgGenresFailed = "Failed to load genres or data"
	msgPageFailed   = "Failed to fetch data"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusError   Status = "error"
	StatusReady   Status = "ready"
)

// Category is one browsable section. MediaType picks the genre list and
// discover endpoint; OriginalLanguage further narrows discovery.
type Category struct {
	Key              string `json:"key"`
	Label            string `json:"label"`
	MediaType        string `json:"mediaType"`
	DefaultGenre     int    `json:"defaultGenre"`
	OriginalLanguage string `json:"originalLanguage,omitempty"`
}

// State is the full browse state of one session.
//
// Preferred is the genre to open on once genres load, used only when the
// list carries it.
//
// Seq is the last request sequence issued. InFlight is the sequence whose
// answer is awaited, zero when nothing is pending; results carrying any
// other sequence are stale and dropped.
type State struct {
	Category     Category
	Genres       []models.Genre
	GenresLoaded bool
	Genre        int
	Page         int
	TotalPages   int
	Results      []models.MediaSummary
	Status       Status
	Error        string
	Preferred    int

	PageCap  int
	Seq      uint64
	InFlight uint64
	Closed   bool
}

// NewState returns an idle state. pageCap lowers the page ceiling below
// MaxPages; zero keeps MaxPages.
func NewState(pageCap int) State {
	return State{Status: StatusIdle, PageCap: pageCap}
}

type Event interface{ isEvent() }

type (
	// CategoryChanged starts over on Category. A non-zero Genre is opened
	// instead of the category default when the loaded list has it.
	CategoryChanged struct {
		Category Category
		Genre    int
	}
	GenresLoaded struct {
		Seq    uint64
		Genres []models.Genre
	}
	GenresFailed struct {
		Seq     uint64
		Message string
	}
	GenreSelected struct{ GenreID int }
	PageSelected  struct{ Page int }
	PageLoaded    struct {
		Seq        uint64
		Results    []models.MediaSummary
		TotalPages int
	}
	PageFailed struct {
		Seq     uint64
		Message string
	}
	Closed struct{}
)

func (CategoryChanged) isEvent() {}
func (GenresLoaded) isEvent()    {}
func (GenresFailed) isEvent()    {}
func (GenreSelected) isEvent()   {}
func (PageSelected) isEvent()    {}
func (PageLoaded) isEvent()      {}
func (PageFailed) isEvent()      {}
func (Closed) isEvent()          {}

type Effect interface{ isEffect() }

type (
	FetchGenres struct {
		Seq      uint64
		Category Category
	}
	FetchPage struct {
		Seq      uint64
		Category Category
		GenreID  int
		Page     int
	}
	ScrollToTop struct{}
)

func (FetchGenres) isEffect() {}
func (FetchPage) isEffect()   {}
func (ScrollToTop) isEffect() {}

// Reduce applies ev to s. It never mutates s or the slices it holds.
func Reduce(s State, ev Event) (State, []Effect) {
	if s.Closed {
		return s, nil
	}

	switch e := ev.(type) {
	case CategoryChanged:
		next := State{
			Category:  e.Category,
			Page:      1,
			Status:    StatusLoading,
			Preferred: e.Genre,
			PageCap:   s.PageCap,
			Seq:       s.Seq + 1,
		}
		next.InFlight = next.Seq
		return next, []Effect{FetchGenres{Seq: next.Seq, Category: next.Category}}

	case GenresLoaded:
		if !s.awaiting(e.Seq) {
			return s, nil
		}
		s.GenresLoaded = true
		s.Genres = e.Genres
		if len(e.Genres) == 0 {
			s.Genres = []models.Genre{}
			s.Results = nil
			s.Status = StatusError
			s.Error = msgNoGenres
			s.InFlight = 0
			return s, nil
		}
		s.Genre = pickGenre(e.Genres, s.Category.DefaultGenre)
		if s.Preferred != 0 && hasGenre(e.Genres, s.Preferred) {
			s.Genre = s.Preferred
		}
		s.Preferred = 0
		s.Page = 1
		return s.fetchPage()

	case GenresFailed:
		if !s.awaiting(e.Seq) {
			return s, nil
		}
		s.Results = nil
		s.Status = StatusError
		s.Error = messageOr(e.Message, msgGenresFailed)
		s.InFlight = 0
		return s, nil

	case GenreSelected:
		if !s.GenresLoaded || len(s.Genres) == 0 {
			return s, nil
		}
		id := e.GenreID
		if !hasGenre(s.Genres, id) {
			id = pickGenre(s.Genres, s.Category.DefaultGenre)
		}
		if id == s.Genre {
			return s, nil
		}
		s.Genre = id
		s.Page = 1
		return s.fetchPage()

	case PageSelected:
		if e.Page < 1 || e.Page > s.TotalPages {
			return s, nil
		}
		if e.Page == s.Page {
			return s, []Effect{ScrollToTop{}}
		}
		s.Page = e.Page
		next, effects := s.fetchPage()
		return next, append([]Effect{ScrollToTop{}}, effects...)

	case PageLoaded:
		if !s.awaiting(e.Seq) {
			return s, nil
		}
		s.Results = e.Results
		if s.Results == nil {
			s.Results = []models.MediaSummary{}
		}
		s.TotalPages = s.clampPages(e.TotalPages)
		s.Status = StatusReady
		s.Error = ""
		s.InFlight = 0
		return s, nil

	case PageFailed:
		if !s.awaiting(e.Seq) {
			return s, nil
		}
		s.Results = nil
		s.TotalPages = 0
		s.Status = StatusError
		s.Error = messageOr(e.Message, msgPageFailed)
		s.InFlight = 0
		return s, nil

	case Closed:
		s.Closed = true
		s.InFlight = 0
		return s, nil
	}
	return s, nil
}

func (s State) awaiting(seq uint64) bool {
	return s.InFlight != 0 && seq == s.InFlight
}

// fetchPage issues a new sequence for the current (genre, page) pair.
// Previous results stay visible until the answer replaces them.
func (s State) fetchPage() (State, []Effect) {
	s.Seq++
	s.InFlight = s.Seq
	s.Status = StatusLoading
	s.Error = ""
	return s, []Effect{FetchPage{Seq: s.Seq, Category: s.Category, GenreID: s.Genre, Page: s.Page}}
}

func (s State) clampPages(n int) int {
	limit := MaxPages
	if s.PageCap > 0 && s.PageCap < limit {
		limit = s.PageCap
	}
	switch {
	case n < 0:
		return 0
	case n > limit:
		return limit
	}
	return n
}

// pickGenre returns def when the list carries it, else the first entry.
func pickGenre(genres []models.Genre, def int) int {
	if hasGenre(genres, def) {
		return def
	}
	return genres[0].ID
}

func hasGenre(genres []models.Genre, id int) bool {
	for _, g := range genres {
		if g.ID == id {
			return true
		}
	}
	return false
}

func messageOr(msg, fallback string) string {
	if msg = strings.TrimSpace(msg); msg != "" {
		return msg
	}
	return fallback
}
