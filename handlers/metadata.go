package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"cinescope/models"
	"cinescope/services/details"
	"cinescope/services/home"
	metadatapkg "cinescope/services/metadata"
	"cinescope/services/search"
	"cinescope/services/stream"
)

type metadataService interface {
	home.Lister
	Genres(ctx context.Context, mediaType string) ([]models.Genre, error)
	Search(ctx context.Context, query string, page int) (*models.PagedResults, error)
	Details(ctx context.Context, mediaType string, id int64) (*models.Details, error)
}

var _ metadataService = (*metadatapkg.Service)(nil)

// MetadataHandler serves the stateless JSON endpoints.
type MetadataHandler struct {
	Service  metadataService
	Embedder *stream.Embedder
}

func NewMetadataHandler(s metadataService, embedder *stream.Embedder) *MetadataHandler {
	return &MetadataHandler{Service: s, Embedder: embedder}
}

func (h *MetadataHandler) Home(w http.ResponseWriter, r *http.Request) {
	page := home.Load(r.Context(), h.Service, r.URL.Query().Get("category"))
	writeJSON(w, http.StatusOK, page)
}

func (h *MetadataHandler) Genres(w http.ResponseWriter, r *http.Request) {
	mediaType, err := metadatapkg.NormalizeMediaType(mux.Vars(r)["kind"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	genres, err := h.Service.Genres(r.Context(), mediaType)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"genres": genres})
}

// Search is the one-shot variant; interactive clients use search sessions.
func (h *MetadataHandler) Search(w http.ResponseWriter, r *http.Request) {
	snap := search.Search(r.Context(), h.Service, r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, searchResponse(snap))
}

func (h *MetadataHandler) Details(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	sel := details.Selection{Season: queryInt(r, "season", 0), Episode: queryInt(r, "episode", 0)}
	view, err := details.Load(r.Context(), h.Service, h.Embedder, vars["kind"], id, sel)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type searchPayload struct {
	search.Snapshot
	Message string `json:"message,omitempty"`
}

func searchResponse(snap search.Snapshot) searchPayload {
	return searchPayload{Snapshot: snap, Message: snap.Message()}
}
