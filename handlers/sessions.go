package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"cinescope/services/explore"
	"cinescope/services/search"
	"cinescope/services/sessions"
)

// settleTimeout bounds ?wait=true so a hung upstream cannot pin a request.
const settleTimeout = 20 * time.Second

// ExploreHandler exposes browse sessions. Each session lives until DELETE or
// idle expiry.
type ExploreHandler struct {
	Catalog  explore.Catalog
	Registry *explore.Registry
	Store    *sessions.Store[*explore.Session]
}

func NewExploreHandler(catalog explore.Catalog, registry *explore.Registry, store *sessions.Store[*explore.Session]) *ExploreHandler {
	return &ExploreHandler{Catalog: catalog, Registry: registry, Store: store}
}

type exploreSessionResponse struct {
	ID string `json:"id"`
	explore.Snapshot
}

func (h *ExploreHandler) Categories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"categories": h.Registry.Categories()})
}

func (h *ExploreHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Registry.Open(h.Catalog, mux.Vars(r)["category"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	id := h.Store.Add(sess)
	log.Printf("[explore] session %s opened for %s", id, sess.Snapshot().Category.Key)
	h.respond(w, r, http.StatusCreated, id, sess)
}

func (h *ExploreHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.respond(w, r, http.StatusOK, id, sess)
}

func (h *ExploreHandler) SetCategory(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var body struct {
		Category string `json:"category"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	cat, err := h.Registry.Lookup(body.Category)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	sess.SetCategory(cat)
	h.respond(w, r, http.StatusOK, id, sess)
}

func (h *ExploreHandler) SelectGenre(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var body struct {
		Genre int `json:"genre"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	sess.SelectGenre(body.Genre)
	h.respond(w, r, http.StatusOK, id, sess)
}

func (h *ExploreHandler) SelectPage(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var body struct {
		Page int `json:"page"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	sess.SelectPage(body.Page)
	h.respond(w, r, http.StatusOK, id, sess)
}

func (h *ExploreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Remove(mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ExploreHandler) lookup(w http.ResponseWriter, r *http.Request) (string, *explore.Session, bool) {
	id := mux.Vars(r)["id"]
	sess, err := h.Store.Get(id)
	if err != nil {
		writeServiceError(w, err)
		return "", nil, false
	}
	return id, sess, true
}

func (h *ExploreHandler) respond(w http.ResponseWriter, r *http.Request, status int, id string, sess *explore.Session) {
	snap := sess.Snapshot()
	if queryBool(r, "wait") {
		ctx, cancel := context.WithTimeout(r.Context(), settleTimeout)
		snap, _ = sess.Settle(ctx)
		cancel()
	}
	writeJSON(w, status, exploreSessionResponse{ID: id, Snapshot: snap})
}

// SearchHandler exposes debounced search sessions.
type SearchHandler struct {
	Searcher search.Searcher
	Store    *sessions.Store[*search.Session]
	Debounce time.Duration
}

func NewSearchHandler(searcher search.Searcher, store *sessions.Store[*search.Session], debounce time.Duration) *SearchHandler {
	return &SearchHandler{Searcher: searcher, Store: store, Debounce: debounce}
}

type searchSessionResponse struct {
	ID string `json:"id"`
	searchPayload
}

func (h *SearchHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess := search.NewSession(h.Searcher, h.Debounce)
	id := h.Store.Add(sess)
	h.respond(w, r, http.StatusCreated, id, sess)
}

func (h *SearchHandler) Input(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var body struct {
		Input string `json:"input"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	sess.Input(body.Input)
	h.respond(w, r, http.StatusAccepted, id, sess)
}

func (h *SearchHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.respond(w, r, http.StatusOK, id, sess)
}

func (h *SearchHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Remove(mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SearchHandler) lookup(w http.ResponseWriter, r *http.Request) (string, *search.Session, bool) {
	id := mux.Vars(r)["id"]
	sess, err := h.Store.Get(id)
	if err != nil {
		writeServiceError(w, err)
		return "", nil, false
	}
	return id, sess, true
}

func (h *SearchHandler) respond(w http.ResponseWriter, r *http.Request, status int, id string, sess *search.Session) {
	snap := sess.Snapshot()
	if queryBool(r, "wait") {
		ctx, cancel := context.WithTimeout(r.Context(), settleTimeout)
		snap, _ = sess.Settle(ctx)
		cancel()
	}
	writeJSON(w, status, searchSessionResponse{ID: id, searchPayload: searchResponse(snap)})
}
