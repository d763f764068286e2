package explore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cinescope/config"
)

var ErrUnknownCategory = errors.New("unknown explore category")

// Registry resolves category keys from the route to their configuration.
type Registry struct {
	byKey    map[string]Category
	order    []Category
	maxPages int
}

func NewRegistry(cfg config.ExploreSettings) *Registry {
	r := &Registry{byKey: make(map[string]Category), maxPages: cfg.MaxPages}
	for _, c := range cfg.Categories {
		key := strings.ToLower(strings.TrimSpace(c.Key))
		if key == "" {
			continue
		}
		if _, dup := r.byKey[key]; dup {
			continue
		}
		cat := Category{
			Key:              key,
			Label:            c.Label,
			MediaType:        c.MediaType,
			DefaultGenre:     c.DefaultGenre,
			OriginalLanguage: c.OriginalLanguage,
		}
		if cat.Label == "" {
			cat.Label = key
		}
		r.byKey[key] = cat
		r.order = append(r.order, cat)
	}
	return r
}

func (r *Registry) Lookup(key string) (Category, error) {
	cat, ok := r.byKey[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return Category{}, fmt.Errorf("%w: %q", ErrUnknownCategory, key)
	}
	return cat, nil
}

// Categories returns categories in configuration order.
func (r *Registry) Categories() []Category {
	return append([]Category(nil), r.order...)
}

// MaxPages is the configured page ceiling.
func (r *Registry) MaxPages() int {
	return r.maxPages
}

// Open starts a session for the category key.
func (r *Registry) Open(catalog Catalog, key string) (*Session, error) {
	cat, err := r.Lookup(key)
	if err != nil {
		return nil, err
	}
	return NewSession(catalog, cat, r.maxPages), nil
}

// Browse drives a short-lived session to the requested genre and page and
// returns the settled result. A genre outside the fetched list falls back to
// the category default; a page outside the known range is ignored.
func Browse(ctx context.Context, catalog Catalog, category Category, genre, page, pageCap int) (Snapshot, error) {
	s := NewSessionAt(catalog, category, genre, pageCap)
	defer s.Close()

	snap, err := s.Settle(ctx)
	if err != nil {
		return snap, err
	}
	if genre > 0 && len(snap.Genres) > 0 && snap.Genre != genre {
		s.SelectGenre(genre)
		if snap, err = s.Settle(ctx); err != nil {
			return snap, err
		}
	}
	if page > 1 && snap.Status == StatusReady {
		s.SelectPage(page)
		if snap, err = s.Settle(ctx); err != nil {
			return snap, err
		}
	}
	return snap, nil
}
