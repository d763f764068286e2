package handlers

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"cinescope/models"
	"cinescope/services/details"
	"cinescope/services/explore"
	"cinescope/services/home"
	metadatapkg "cinescope/services/metadata"
	"cinescope/services/search"
	"cinescope/services/stream"
	"cinescope/utils"
)

//go:embed templates/*
var pageTemplates embed.FS

// pageWindowSize is how many page links the explore pager shows around the
// current page.
const pageWindowSize = 5

type pageCatalog interface {
	metadataService
	explore.Catalog
}

// PagesHandler renders the browser-facing HTML pages.
type PagesHandler struct {
	service  pageCatalog
	registry *explore.Registry
	embedder *stream.Embedder

	homeTemplate     *template.Template
	searchTemplate   *template.Template
	exploreTemplate  *template.Template
	detailsTemplate  *template.Template
	notFoundTemplate *template.Template
}

type homePageData struct {
	Page home.Page
}

type searchPageData struct {
	Result searchPayload
}

type explorePageData struct {
	Snapshot explore.Snapshot
}

type detailsPageData struct {
	View    *details.View
	Play    bool
	PlayURL string
}

type notFoundPageData struct {
	Title   string
	Message string
}

func NewPagesHandler(service pageCatalog, registry *explore.Registry, embedder *stream.Embedder) (*PagesHandler, error) {
	funcMap := template.FuncMap{
		"img":           proxiedImage,
		"detailsPath":   detailsPath,
		"mediaLabel":    mediaLabel,
		"rating":        func(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) },
		"pageWindow":    pageWindow,
		"navCategories": registry.Categories,
	}

	baseContent, err := pageTemplates.ReadFile("templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("read base template: %w", err)
	}

	createPageTemplate := func(pageName string) (*template.Template, error) {
		pageContent, err := pageTemplates.ReadFile("templates/" + pageName)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", pageName, err)
		}
		tmpl, err := template.New("page").Funcs(funcMap).Parse(string(baseContent))
		if err != nil {
			return nil, fmt.Errorf("parse base for %s: %w", pageName, err)
		}
		if tmpl, err = tmpl.Parse(string(pageContent)); err != nil {
			return nil, fmt.Errorf("parse %s: %w", pageName, err)
		}
		return tmpl, nil
	}

	h := &PagesHandler{service: service, registry: registry, embedder: embedder}
	for name, dst := range map[string]**template.Template{
		"home.html":     &h.homeTemplate,
		"search.html":   &h.searchTemplate,
		"explore.html":  &h.exploreTemplate,
		"details.html":  &h.detailsTemplate,
		"notfound.html": &h.notFoundTemplate,
	} {
		tmpl, err := createPageTemplate(name)
		if err != nil {
			return nil, err
		}
		*dst = tmpl
	}
	return h, nil
}

func (h *PagesHandler) Home(w http.ResponseWriter, r *http.Request) {
	page := home.Load(r.Context(), h.service, r.URL.Query().Get("category"))
	h.render(w, h.homeTemplate, http.StatusOK, homePageData{Page: page})
}

func (h *PagesHandler) Search(w http.ResponseWriter, r *http.Request) {
	snap := search.Search(r.Context(), h.service, r.URL.Query().Get("q"))
	h.render(w, h.searchTemplate, http.StatusOK, searchPageData{Result: searchResponse(snap)})
}

func (h *PagesHandler) Explore(w http.ResponseWriter, r *http.Request) {
	cat, err := h.registry.Lookup(mux.Vars(r)["category"])
	if err != nil {
		h.notFound(w, "Unknown category", "There is nothing to explore here.")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), settleTimeout)
	defer cancel()

	snap, err := explore.Browse(ctx, h.service, cat, queryInt(r, "genre", 0), queryInt(r, "page", 1), h.registry.MaxPages())
	if err != nil {
		// the client went away or the upstream hung; whatever settled is still shown
		log.Printf("[pages] explore %s did not settle: %v", cat.Key, err)
	}
	h.render(w, h.exploreTemplate, http.StatusOK, explorePageData{Snapshot: snap})
}

func (h *PagesHandler) Details(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil || id <= 0 {
		h.notFound(w, "Not found", "That title does not exist.")
		return
	}
	sel := details.Selection{Season: queryInt(r, "season", 0), Episode: queryInt(r, "episode", 0)}
	view, err := details.Load(r.Context(), h.service, h.embedder, vars["kind"], id, sel)
	switch {
	case errors.Is(err, metadatapkg.ErrNotFound), errors.Is(err, metadatapkg.ErrInvalidMediaType):
		h.notFound(w, "Not found", "That title does not exist.")
		return
	case err != nil:
		log.Printf("[pages] details %s/%d: %v", vars["kind"], id, err)
		h.render(w, h.notFoundTemplate, errorStatus(err), notFoundPageData{
			Title:   "Something went wrong",
			Message: "Failed to fetch data",
		})
		return
	}

	// Old or missing slugs redirect to the canonical path.
	if view.Slug != "" && vars["slug"] != view.Slug {
		target := "/" + view.Kind + "/" + strconv.FormatInt(view.ID, 10) + "/" + view.Slug
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, target, http.StatusMovedPermanently)
		return
	}

	q := url.Values{}
	if view.Season > 0 {
		q.Set("season", strconv.Itoa(view.Season))
		q.Set("episode", strconv.Itoa(view.Episode))
	}
	q.Set("play", "1")
	h.render(w, h.detailsTemplate, http.StatusOK, detailsPageData{
		View:    view,
		Play:    queryBool(r, "play"),
		PlayURL: "?" + q.Encode(),
	})
}

// NotFound is the router's fallback for unmatched page routes.
func (h *PagesHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	h.notFound(w, "Not found", "The page you are looking for does not exist.")
}

func (h *PagesHandler) notFound(w http.ResponseWriter, title, message string) {
	h.render(w, h.notFoundTemplate, http.StatusNotFound, notFoundPageData{Title: title, Message: message})
}

func (h *PagesHandler) render(w http.ResponseWriter, tmpl *template.Template, status int, data any) {
	var buf strings.Builder
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		log.Printf("[pages] template error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(buf.String()))
}

// proxiedImage routes a remote image through the resizing proxy.
func proxiedImage(src string, width int) string {
	if src == "" {
		return ""
	}
	q := url.Values{}
	q.Set("url", src)
	if width > 0 {
		q.Set("w", strconv.Itoa(width))
	}
	return "/api/images?" + q.Encode()
}

func detailsPath(item models.MediaSummary) string {
	path := "/" + item.MediaType + "/" + strconv.FormatInt(item.ID, 10)
	if slug := utils.Slugify(item.Title); slug != "" {
		path += "/" + slug
	}
	return path
}

func mediaLabel(mediaType string) string {
	if mediaType == "tv" {
		return "TV"
	}
	return "Movie"
}

// pageWindow returns up to pageWindowSize page numbers centred on current.
func pageWindow(current, total int) []int {
	if total <= 0 {
		return nil
	}
	start := current - pageWindowSize/2
	if start < 1 {
		start = 1
	}
	end := start + pageWindowSize - 1
	if end > total {
		end = total
		start = max(1, end-pageWindowSize+1)
	}
	pages := make([]int, 0, end-start+1)
	for p := start; p <= end; p++ {
		pages = append(pages, p)
	}
	return pages
}
