// Package home assembles the landing page rows.
package home

import (
	"context"
	"log"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"cinescope/models"
)

// Lister is satisfied by the metadata service.
type Lister interface {
	Trending(ctx context.Context, mediaType, window string) (*models.PagedResults, error)
	Popular(ctx context.Context, mediaType string, page int) (*models.PagedResults, error)
	TopRated(ctx context.Context, mediaType string, page int) (*models.PagedResults, error)
}

const (
	CategoryAll   = "all"
	CategoryMovie = "movie"
	CategoryTV    = "tv"
)

type rowSpec struct {
	key       string
	title     string
	mediaType string
	fetch     func(ctx context.Context, l Lister) (*models.PagedResults, error)
}

var rowSpecs = []rowSpec{
	{"trending-movies", "Trending Movies", "movie", func(ctx context.Context, l Lister) (*models.PagedResults, error) {
		return l.Trending(ctx, "movie", "day")
	}},
	{"trending-shows", "Trending Shows", "tv", func(ctx context.Context, l Lister) (*models.PagedResults, error) {
		return l.Trending(ctx, "tv", "day")
	}},
	{"popular-movies", "Popular Movies", "movie", func(ctx context.Context, l Lister) (*models.PagedResults, error) {
		return l.Popular(ctx, "movie", 1)
	}},
	{"top-rated-tv", "Top Rated TV Shows", "tv", func(ctx context.Context, l Lister) (*models.PagedResults, error) {
		return l.TopRated(ctx, "tv", 1)
	}},
}

// Row is one carousel. Error is set instead of Items when the fetch failed.
type Row struct {
	Key       string                `json:"key"`
	Title     string                `json:"title"`
	MediaType string                `json:"mediaType"`
	Items     []models.MediaSummary `json:"items"`
	Error     string                `json:"error,omitempty"`
}

type Page struct {
	Category string               `json:"category"`
	Hero     *models.MediaSummary `json:"hero,omitempty"`
	Rows     []Row                `json:"rows"`
}

// NormalizeCategory maps anything unknown to "all".
func NormalizeCategory(category string) string {
	switch c := strings.ToLower(strings.TrimSpace(category)); c {
	case CategoryMovie, CategoryTV:
		return c
	}
	return CategoryAll
}

// Load fetches the rows for category concurrently. A failing row carries its
// error and does not affect the others.
func Load(ctx context.Context, lister Lister, category string) Page {
	category = NormalizeCategory(category)

	var specs []rowSpec
	for _, spec := range rowSpecs {
		if category == CategoryAll || spec.mediaType == category {
			specs = append(specs, spec)
		}
	}

	rows := make([]Row, len(specs))
	p := pool.New().WithMaxGoroutines(len(specs))
	for i, spec := range specs {
		p.Go(func() {
			row := Row{Key: spec.key, Title: spec.title, MediaType: spec.mediaType, Items: []models.MediaSummary{}}
			res, err := spec.fetch(ctx, lister)
			if err != nil {
				log.Printf("[home] row %s failed: %v", spec.key, err)
				row.Error = "Failed to fetch data"
			} else if res != nil && res.Results != nil {
				row.Items = res.Results
			}
			rows[i] = row
		})
	}
	p.Wait()

	return Page{Category: category, Hero: pickHero(rows), Rows: rows}
}

// pickHero returns the first trending item that has a backdrop.
func pickHero(rows []Row) *models.MediaSummary {
	for _, row := range rows {
		if !strings.HasPrefix(row.Key, "trending") {
			continue
		}
		for i := range row.Items {
			if row.Items[i].Backdrop != nil {
				hero := row.Items[i]
				return &hero
			}
		}
	}
	return nil
}
