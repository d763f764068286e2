package explore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinescope/models"
)

var (
	movieCategory = Category{Key: "movie", Label: "Movies", MediaType: "movie", DefaultGenre: 28}
	animeCategory = Category{Key: "anime", Label: "Anime", MediaType: "tv", DefaultGenre: 16, OriginalLanguage: "ja"}

	movieGenres = []models.Genre{{ID: 12, Name: "Adventure"}, {ID: 28, Name: "Action"}, {ID: 35, Name: "Comedy"}}
)

func summaries(ids ...int64) []models.MediaSummary {
	out := make([]models.MediaSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.MediaSummary{ID: id, MediaType: "movie"})
	}
	return out
}

// loaded returns a state showing page 1 of genre 28 with totalPages pages.
func loaded(t *testing.T, totalPages int) State {
	t.Helper()
	s, effects := Reduce(NewState(0), CategoryChanged{Category: movieCategory})
	s, effects = Reduce(s, GenresLoaded{Seq: effects[0].(FetchGenres).Seq, Genres: movieGenres})
	s, _ = Reduce(s, PageLoaded{Seq: effects[0].(FetchPage).Seq, Results: summaries(1, 2), TotalPages: totalPages})
	require.Equal(t, StatusReady, s.Status)
	return s
}

func TestCategoryChangedResetsAndFetchesGenres(t *testing.T) {
	prev := loaded(t, 10)
	prev.Page = 4

	s, effects := Reduce(prev, CategoryChanged{Category: animeCategory})

	assert.Equal(t, StatusLoading, s.Status)
	assert.Equal(t, 1, s.Page)
	assert.Zero(t, s.Genre)
	assert.Empty(t, s.Genres)
	assert.Empty(t, s.Results)
	assert.Zero(t, s.TotalPages)
	assert.Empty(t, s.Error)
	require.Len(t, effects, 1)
	assert.Equal(t, FetchGenres{Seq: s.Seq, Category: animeCategory}, effects[0])
	assert.Equal(t, s.Seq, s.InFlight)
	assert.Greater(t, s.Seq, prev.Seq)
}

func TestDefaultGenrePresentIsSelected(t *testing.T) {
	s, effects := Reduce(NewState(0), CategoryChanged{Category: movieCategory})
	s, effects = Reduce(s, GenresLoaded{Seq: effects[0].(FetchGenres).Seq, Genres: movieGenres})

	assert.Equal(t, 28, s.Genre)
	require.Len(t, effects, 1)
	fetch := effects[0].(FetchPage)
	assert.Equal(t, 28, fetch.GenreID)
	assert.Equal(t, 1, fetch.Page)
	assert.Equal(t, s.InFlight, fetch.Seq)
}

func TestPreferredGenreWinsWhenListed(t *testing.T) {
	s, effects := Reduce(NewState(0), CategoryChanged{Category: movieCategory, Genre: 35})
	assert.Equal(t, 35, s.Preferred)
	s, effects = Reduce(s, GenresLoaded{Seq: effects[0].(FetchGenres).Seq, Genres: movieGenres})

	assert.Equal(t, 35, s.Genre)
	assert.Zero(t, s.Preferred)
	require.Len(t, effects, 1)
	assert.Equal(t, FetchPage{Seq: s.InFlight, Category: movieCategory, GenreID: 35, Page: 1}, effects[0])
}

func TestPreferredGenreMissingFallsBackToDefault(t *testing.T) {
	s, effects := Reduce(NewState(0), CategoryChanged{Category: movieCategory, Genre: 9999})
	s, _ = Reduce(s, GenresLoaded{Seq: effects[0].(FetchGenres).Seq, Genres: movieGenres})
	assert.Equal(t, 28, s.Genre)

	s, effects = Reduce(NewState(0), CategoryChanged{Category: animeCategory, Genre: 9999})
	s, _ = Reduce(s, GenresLoaded{Seq: effects[0].(FetchGenres).Seq, Genres: []models.Genre{{ID: 35}, {ID: 99}}})
	assert.Equal(t, 35, s.Genre)
}

func TestDefaultGenreAbsentFallsBackToFirst(t *testing.T) {
	s, effects := Reduce(NewState(0), CategoryChanged{Category: animeCategory})
	s, effects = Reduce(s, GenresLoaded{Seq: effects[0].(FetchGenres).Seq, Genres: []models.Genre{{ID: 35}, {ID: 99}}})

	assert.Equal(t, 35, s.Genre)
	require.Len(t, effects, 1)
	assert.Equal(t, FetchPage{Seq: s.Seq, Category: animeCategory, GenreID: 35, Page: 1}, effects[0])
}

func TestActiveGenreIsAlwaysAMember(t *testing.T) {
	lists := [][]models.Genre{
		{{ID: 1}},
		{{ID: 99}, {ID: 28}},
		{{ID: 5}, {ID: 6}, {ID: 7}},
	}
	for _, genres := range lists {
		s, effects := Reduce(NewState(0), CategoryChanged{Category: movieCategory})
		s, _ = Reduce(s, GenresLoaded{Seq: effects[0].(FetchGenres).Seq, Genres: genres})
		assert.True(t, hasGenre(genres, s.Genre), "genre %d not in %v", s.Genre, genres)
	}
}

func TestEmptyGenreListIsTerminalError(t *testing.T) {
	s, effects := Reduce(NewState(0), CategoryChanged{Category: movieCategory})
	s, effects = Reduce(s, GenresLoaded{Seq: effects[0].(FetchGenres).Seq})

	assert.Empty(t, effects)
	assert.Equal(t, StatusError, s.Status)
	assert.Equal(t, "No genres found.", s.Error)
	assert.Empty(t, s.Results)
	assert.Zero(t, s.InFlight)

	// Nothing moves it until the category changes
	after, effects := Reduce(s, GenreSelected{GenreID: 28})
	assert.Equal(t, s, after)
	assert.Empty(t, effects)
	after, effects = Reduce(s, PageSelected{Page: 1})
	assert.Equal(t, s, after)
	assert.Empty(t, effects)
}

func TestGenresFailedUsesRemoteMessage(t *testing.T) {
	s, effects := Reduce(NewState(0), CategoryChanged{Category: movieCategory})
	seq := effects[0].(FetchGenres).Seq

	failed, _ := Reduce(s, GenresFailed{Seq: seq, Message: "Invalid API key"})
	assert.Equal(t, StatusError, failed.Status)
	assert.Equal(t, "Invalid API key", failed.Error)

	generic, _ := Reduce(s, GenresFailed{Seq: seq})
	assert.Equal(t, "Failed to load genres or data", generic.Error)
}

func TestPageLoadedClampsTotalPages(t *testing.T) {
	for _, tc := range []struct{ service, want int }{
		{0, 0}, {1, 1}, {499, 499}, {500, 500}, {501, 500}, {41234, 500}, {-3, 0},
	} {
		s, effects := Reduce(NewState(0), CategoryChanged{Category: movieCategory})
		s, effects = Reduce(s, GenresLoaded{Seq: effects[0].(FetchGenres).Seq, Genres: movieGenres})
		s, _ = Reduce(s, PageLoaded{Seq: effects[0].(FetchPage).Seq, TotalPages: tc.service})
		assert.Equal(t, tc.want, s.TotalPages, "service total %d", tc.service)
		assert.Equal(t, StatusReady, s.Status)
		assert.NotNil(t, s.Results)
	}
}

func TestPageCapLowersCeiling(t *testing.T) {
	s, effects := Reduce(NewState(50), CategoryChanged{Category: movieCategory})
	s, effects = Reduce(s, GenresLoaded{Seq: effects[0].(FetchGenres).Seq, Genres: movieGenres})
	s, _ = Reduce(s, PageLoaded{Seq: effects[0].(FetchPage).Seq, TotalPages: 300})
	assert.Equal(t, 50, s.TotalPages)
}

func TestPageOutOfRangeIsNoop(t *testing.T) {
	s := loaded(t, 2)

	for _, page := range []int{0, -1, 3} {
		next, effects := Reduce(s, PageSelected{Page: page})
		assert.Equal(t, s, next, "page %d", page)
		assert.Empty(t, effects, "page %d", page)
	}
}

func TestPageSelectedScrollsAndFetches(t *testing.T) {
	s := loaded(t, 5)

	next, effects := Reduce(s, PageSelected{Page: 3})
	assert.Equal(t, 3, next.Page)
	assert.Equal(t, StatusLoading, next.Status)
	require.Len(t, effects, 2)
	assert.Equal(t, ScrollToTop{}, effects[0])
	assert.Equal(t, FetchPage{Seq: next.Seq, Category: movieCategory, GenreID: 28, Page: 3}, effects[1])
	// Old results stay until the new page arrives
	assert.Equal(t, s.Results, next.Results)

	same, effects := Reduce(s, PageSelected{Page: 1})
	assert.Equal(t, s, same)
	assert.Equal(t, []Effect{ScrollToTop{}}, effects)
}

func TestGenreSelection(t *testing.T) {
	s := loaded(t, 5)
	s.Page = 2

	same, effects := Reduce(s, GenreSelected{GenreID: 28})
	assert.Equal(t, s, same)
	assert.Empty(t, effects)

	next, effects := Reduce(s, GenreSelected{GenreID: 12})
	assert.Equal(t, 12, next.Genre)
	assert.Equal(t, 1, next.Page)
	require.Len(t, effects, 1)
	assert.Equal(t, FetchPage{Seq: next.Seq, Category: movieCategory, GenreID: 12, Page: 1}, effects[0])

	// Unknown ids resolve to the default, which is already active here
	unknown, effects := Reduce(s, GenreSelected{GenreID: 4242})
	assert.Equal(t, s, unknown)
	assert.Empty(t, effects)

	// Before the list arrives selection is ignored
	pending, _ := Reduce(NewState(0), CategoryChanged{Category: movieCategory})
	after, effects := Reduce(pending, GenreSelected{GenreID: 12})
	assert.Equal(t, pending, after)
	assert.Empty(t, effects)
}

func TestStaleResultsAreDropped(t *testing.T) {
	s, effects := Reduce(NewState(0), CategoryChanged{Category: movieCategory})
	s, effects = Reduce(s, GenresLoaded{Seq: effects[0].(FetchGenres).Seq, Genres: movieGenres})
	first := effects[0].(FetchPage)
	require.Equal(t, 28, first.GenreID)

	s, effects = Reduce(s, GenreSelected{GenreID: 12})
	second := effects[0].(FetchPage)

	// The superseded answer arrives after the newer request was issued
	s, _ = Reduce(s, PageLoaded{Seq: first.Seq, Results: summaries(28), TotalPages: 9})
	assert.Equal(t, StatusLoading, s.Status)
	s, _ = Reduce(s, PageFailed{Seq: first.Seq, Message: "late"})
	assert.Equal(t, StatusLoading, s.Status)

	s, _ = Reduce(s, PageLoaded{Seq: second.Seq, Results: summaries(12), TotalPages: 4})
	assert.Equal(t, StatusReady, s.Status)
	assert.Equal(t, summaries(12), s.Results)
	assert.Equal(t, 4, s.TotalPages)

	// Genre answers for an old category are dropped too
	old := s
	s, _ = Reduce(s, GenresLoaded{Seq: first.Seq - 1, Genres: []models.Genre{{ID: 1}}})
	assert.Equal(t, old, s)
}

func TestRapidChangesReflectOnlyLastRequest(t *testing.T) {
	s, effects := Reduce(NewState(0), CategoryChanged{Category: movieCategory})
	s, effects = Reduce(s, GenresLoaded{Seq: effects[0].(FetchGenres).Seq, Genres: movieGenres})
	s, _ = Reduce(s, PageLoaded{Seq: effects[0].(FetchPage).Seq, Results: summaries(1), TotalPages: 20})

	var issued []FetchPage
	for _, ev := range []Event{PageSelected{Page: 2}, PageSelected{Page: 7}, GenreSelected{GenreID: 35}, PageSelected{Page: 3}} {
		var eff []Effect
		s, eff = Reduce(s, ev)
		for _, e := range eff {
			if f, ok := e.(FetchPage); ok {
				issued = append(issued, f)
			}
		}
	}
	require.Len(t, issued, 4)
	last := issued[len(issued)-1]
	assert.Equal(t, 35, last.GenreID)
	assert.Equal(t, 3, last.Page)

	// Answers arrive out of order; only the last one lands
	for i := len(issued) - 2; i >= 0; i-- {
		s, _ = Reduce(s, PageLoaded{Seq: issued[i].Seq, Results: summaries(int64(100 + i)), TotalPages: 20})
	}
	s, _ = Reduce(s, PageLoaded{Seq: last.Seq, Results: summaries(999), TotalPages: 20})
	assert.Equal(t, summaries(999), s.Results)
	assert.Equal(t, StatusReady, s.Status)
}

func TestPageFailedClearsResults(t *testing.T) {
	s := loaded(t, 5)
	s, effects := Reduce(s, PageSelected{Page: 2})
	seq := effects[1].(FetchPage).Seq

	failed, _ := Reduce(s, PageFailed{Seq: seq})
	assert.Equal(t, StatusError, failed.Status)
	assert.Equal(t, "Failed to fetch data", failed.Error)
	assert.Empty(t, failed.Results)
	assert.Zero(t, failed.TotalPages)

	remote, _ := Reduce(s, PageFailed{Seq: seq, Message: "The resource you requested could not be found."})
	assert.Equal(t, "The resource you requested could not be found.", remote.Error)
}

func TestClosedIgnoresEverything(t *testing.T) {
	s, effects := Reduce(NewState(0), CategoryChanged{Category: movieCategory})
	seq := effects[0].(FetchGenres).Seq

	s, effects = Reduce(s, Closed{})
	assert.True(t, s.Closed)
	assert.Empty(t, effects)

	after, effects := Reduce(s, GenresLoaded{Seq: seq, Genres: movieGenres})
	assert.Equal(t, s, after)
	assert.Empty(t, effects)
	after, effects = Reduce(s, CategoryChanged{Category: animeCategory})
	assert.Equal(t, s, after)
	assert.Empty(t, effects)
}
