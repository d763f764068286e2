package metadata

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"

	"cinescope/config"
	"cinescope/models"
)

var (
	ErrNotConfigured    = errors.New("tmdb api key not configured")
	ErrInvalidMediaType = errors.New("invalid media type")
	ErrNotFound         = errors.New("title not found")
)

// sharedFetchTimeout bounds a deduplicated upstream call once it no longer
// belongs to any single request.
const sharedFetchTimeout = 30 * time.Second

// DiscoverQuery selects one page of titles for a media type, optionally
// narrowed to a genre and an original language.
type DiscoverQuery struct {
	MediaType        string
	GenreID          int
	Page             int
	OriginalLanguage string
}

// Service is the read-only TMDB gateway used by every page of the app.
// Genre lists and title details are cached on disk; concurrent identical
// requests share one upstream call.
type Service struct {
	tmdb  *tmdbClient
	cache *fileCache
	group singleflight.Group
}

func NewService(meta config.MetadataSettings, cache config.CacheSettings) *Service {
	return newService(meta, cache, afero.NewOsFs(), nil)
}

func newService(meta config.MetadataSettings, cache config.CacheSettings, fs afero.Fs, httpc *http.Client) *Service {
	// Dedicated subdirectory keeps metadata apart from logs under the cache root
	dir := filepath.Join(cache.Directory, "metadata")
	return &Service{
		tmdb:  newTMDBClient(meta.TMDBAPIKey, meta.Language, meta.BaseURL, meta.ImageBaseURL, httpc),
		cache: newFileCache(fs, dir, cache.MetadataTTLHours),
	}
}

// Configured reports whether an API key is present.
func (s *Service) Configured() bool {
	return s.tmdb.isConfigured()
}

// ClearCache removes all cached metadata files
func (s *Service) ClearCache() error {
	return s.cache.clear()
}

// NormalizeMediaType maps route-level kinds onto TMDB media types.
// Anime is browsed and described as tv.
func NormalizeMediaType(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "movie", "movies":
		return "movie", nil
	case "tv", "series", "show", "anime":
		return "tv", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMediaType, kind)
	}
}

func (s *Service) Trending(ctx context.Context, mediaType, window string) (*models.PagedResults, error) {
	mt, err := NormalizeMediaType(mediaType)
	if err != nil {
		return nil, err
	}
	if window != "week" {
		window = "day"
	}
	return shared(ctx, s, fmt.Sprintf("trending:%s:%s", mt, window), func(ctx context.Context) (*models.PagedResults, error) {
		return s.tmdb.trending(ctx, mt, window)
	})
}

func (s *Service) Popular(ctx context.Context, mediaType string, page int) (*models.PagedResults, error) {
	return s.list(ctx, mediaType, "popular", page)
}

func (s *Service) TopRated(ctx context.Context, mediaType string, page int) (*models.PagedResults, error) {
	return s.list(ctx, mediaType, "top_rated", page)
}

func (s *Service) list(ctx context.Context, mediaType, name string, page int) (*models.PagedResults, error) {
	mt, err := NormalizeMediaType(mediaType)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	return shared(ctx, s, fmt.Sprintf("%s:%s:%d", name, mt, page), func(ctx context.Context) (*models.PagedResults, error) {
		return s.tmdb.list(ctx, mt, name, page)
	})
}

// Genres returns the genre list for a media type, served from cache when fresh.
func (s *Service) Genres(ctx context.Context, mediaType string) ([]models.Genre, error) {
	mt, err := NormalizeMediaType(mediaType)
	if err != nil {
		return nil, err
	}
	cacheKey := cacheKey("genres", mt, s.tmdb.language)
	var cached []models.Genre
	if ok, _ := s.cache.get(cacheKey, &cached); ok {
		return cached, nil
	}

	genres, err := shared(ctx, s, cacheKey, func(ctx context.Context) ([]models.Genre, error) {
		return s.tmdb.genres(ctx, mt)
	})
	if err != nil {
		return nil, err
	}
	// Empty lists are not cached so a transient upstream hiccup does not stick
	if len(genres) > 0 {
		if err := s.cache.set(cacheKey, genres); err != nil {
			log.Printf("[metadata] cache genres %s: %v", mt, err)
		}
	}
	return genres, nil
}

// Discover returns one page of titles sorted by popularity.
func (s *Service) Discover(ctx context.Context, q DiscoverQuery) (*models.PagedResults, error) {
	mt, err := NormalizeMediaType(q.MediaType)
	if err != nil {
		return nil, err
	}
	q.MediaType = mt
	if q.Page < 1 {
		q.Page = 1
	}
	key := fmt.Sprintf("discover:%s:%d:%d:%s", q.MediaType, q.GenreID, q.Page, q.OriginalLanguage)
	return shared(ctx, s, key, func(ctx context.Context) (*models.PagedResults, error) {
		return s.tmdb.discover(ctx, q)
	})
}

// Search runs a multi search; person results are dropped.
func (s *Service) Search(ctx context.Context, query string, page int) (*models.PagedResults, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return &models.PagedResults{Page: 1, Results: []models.MediaSummary{}}, nil
	}
	if page < 1 {
		page = 1
	}
	return shared(ctx, s, fmt.Sprintf("search:%d:%s", page, query), func(ctx context.Context) (*models.PagedResults, error) {
		return s.tmdb.searchMulti(ctx, query, page)
	})
}

// Details returns the full record for a title, including videos, credits and
// recommendations.
func (s *Service) Details(ctx context.Context, mediaType string, id int64) (*models.Details, error) {
	mt, err := NormalizeMediaType(mediaType)
	if err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, ErrNotFound
	}
	cacheKey := cacheKey("details", mt, fmt.Sprint(id), s.tmdb.language)
	var cached models.Details
	if ok, _ := s.cache.get(cacheKey, &cached); ok {
		return &cached, nil
	}

	details, err := shared(ctx, s, cacheKey, func(ctx context.Context) (*models.Details, error) {
		return s.tmdb.details(ctx, mt, id)
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s %d", ErrNotFound, mt, id)
		}
		return nil, err
	}
	if err := s.cache.set(cacheKey, details); err != nil {
		log.Printf("[metadata] cache details %s/%d: %v", mt, id, err)
	}
	return details, nil
}

// shared collapses concurrent identical fetches into one upstream call.
// The call runs on a context detached from any single caller so that one
// client going away does not fail the others waiting on the same key.
func shared[T any](ctx context.Context, s *Service, key string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	ch := s.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()
		return fn(fetchCtx)
	})
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

func cacheKey(parts ...string) string {
	key := strings.Join(parts, "_")
	return strings.NewReplacer("/", "-", ":", "-", " ", "-").Replace(key)
}
