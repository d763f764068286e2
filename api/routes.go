package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"cinescope/handlers"
)

// Handlers groups everything Register mounts.
type Handlers struct {
	Pages    *handlers.PagesHandler
	Metadata *handlers.MetadataHandler
	Explore  *handlers.ExploreHandler
	Search   *handlers.SearchHandler
	Images   *handlers.ImageHandler
}

// Register mounts the HTML pages and the JSON API onto r. limiter may be nil.
// API routes also accept OPTIONS so the router-level CORS middleware can
// answer preflights.
func Register(r *mux.Router, h Handlers, limiter *IPRateLimiter) {
	api := r.PathPrefix("/api").Subrouter()
	if limiter != nil {
		api.Use(limiter.Middleware)
	}

	get := []string{http.MethodGet, http.MethodOptions}
	post := []string{http.MethodPost, http.MethodOptions}
	put := []string{http.MethodPut, http.MethodOptions}
	del := []string{http.MethodDelete, http.MethodOptions}

	api.HandleFunc("/home", h.Metadata.Home).Methods(get...)
	api.HandleFunc("/genres/{kind}", h.Metadata.Genres).Methods(get...)
	api.HandleFunc("/search", h.Metadata.Search).Methods(get...)
	api.HandleFunc("/details/{kind}/{id:[0-9]+}", h.Metadata.Details).Methods(get...)
	api.HandleFunc("/images", h.Images.Proxy).Methods(get...)

	api.HandleFunc("/explore", h.Explore.Categories).Methods(get...)
	api.HandleFunc("/explore/sessions/{id}", h.Explore.Get).Methods(get...)
	api.HandleFunc("/explore/sessions/{id}", h.Explore.Delete).Methods(del...)
	api.HandleFunc("/explore/sessions/{id}/category", h.Explore.SetCategory).Methods(put...)
	api.HandleFunc("/explore/sessions/{id}/genre", h.Explore.SelectGenre).Methods(put...)
	api.HandleFunc("/explore/sessions/{id}/page", h.Explore.SelectPage).Methods(put...)
	api.HandleFunc("/explore/{category}/sessions", h.Explore.Create).Methods(post...)

	api.HandleFunc("/search/sessions", h.Search.Create).Methods(post...)
	api.HandleFunc("/search/sessions/{id}", h.Search.Get).Methods(get...)
	api.HandleFunc("/search/sessions/{id}", h.Search.Delete).Methods(del...)
	api.HandleFunc("/search/sessions/{id}/input", h.Search.Input).Methods(put...)

	r.HandleFunc("/", h.Pages.Home).Methods(http.MethodGet)
	r.HandleFunc("/search", h.Pages.Search).Methods(http.MethodGet)
	r.HandleFunc("/explore/{category}", h.Pages.Explore).Methods(http.MethodGet)
	r.HandleFunc("/{kind:movie|tv|anime}/{id:[0-9]+}", h.Pages.Details).Methods(http.MethodGet)
	r.HandleFunc("/{kind:movie|tv|anime}/{id:[0-9]+}/{slug}", h.Pages.Details).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(h.Pages.NotFound)
}
