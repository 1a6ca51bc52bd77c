package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/jobrunner/stacman/internal/adapters/stacjson"
	"github.com/jobrunner/stacman/internal/application"
	"github.com/jobrunner/stacman/internal/domain"
)

const apiBase = "/api/v1"

func collectionPath(id string) string { return apiBase + "/collections/" + id }

func itemPath(collectionID, itemID string) string {
	return collectionPath(collectionID) + "/items/" + itemID
}

// handleHealth returns detailed health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	details := s.health.GetHealthDetails(r.Context())

	status := http.StatusOK
	if !details.Healthy {
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(w, status, map[string]interface{}{
		"status":      boolToStatus(details.Healthy),
		"ready":       details.Ready,
		"state":       details.State,
		"collections": details.Collections,
		"items":       details.Items,
		"components":  details.Components,
	})
}

// handleLiveness returns liveness status.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if s.health.IsHealthy(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
	}
}

// handleReadiness returns readiness status.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.health.IsReady(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
	}
}

// handleCatalog returns the root catalog with child links to the
// collection endpoints.
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	cat, err := s.catalog.Catalog(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	links := []stacjson.Link{
		stacjson.NewLink(stacjson.RelRoot, apiBase+"/catalog", cat.Title),
		stacjson.NewLink(stacjson.RelSelf, apiBase+"/catalog", cat.Title),
	}
	for _, col := range cat.Collections() {
		links = append(links, stacjson.NewLink(stacjson.RelChild, collectionPath(col.ID), col.Title))
	}

	s.writeJSON(w, http.StatusOK, stacjson.CatalogDocument(cat, links))
}

// handleListCollections returns all collections.
func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	cols, err := s.catalog.Collections(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	docs := make([]any, len(cols))
	for i, col := range cols {
		docs[i] = stacjson.CollectionDocument(col, s.collectionLinks(col))
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"collections": docs,
		"links": []stacjson.Link{
			stacjson.NewLink(stacjson.RelRoot, apiBase+"/catalog", ""),
			stacjson.NewLink(stacjson.RelSelf, apiBase+"/collections", ""),
		},
	})
}

// handleGetCollection returns a specific collection.
func (s *Server) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	col, err := s.catalog.Collection(r.Context(), mux.Vars(r)["collectionId"])
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, stacjson.CollectionDocument(col, s.collectionLinks(col)))
}

func (s *Server) collectionLinks(col *domain.Collection) []stacjson.Link {
	return []stacjson.Link{
		stacjson.NewLink(stacjson.RelRoot, apiBase+"/catalog", ""),
		stacjson.NewLink(stacjson.RelParent, apiBase+"/catalog", ""),
		stacjson.NewLink(stacjson.RelSelf, collectionPath(col.ID), col.Title),
		{Rel: "items", Href: collectionPath(col.ID) + "/items", Type: string(domain.MediaGeoJSON)},
	}
}

// handleListItems returns the items of a collection as a feature
// collection. limit and offset page through the insertion order.
func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	collectionID := mux.Vars(r)["collectionId"]

	limit, offset, err := parsePage(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := s.catalog.Items(r.Context(), collectionID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	total := len(items)
	if offset > total {
		offset = total
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}

	features := make([]any, len(items))
	for i, item := range items {
		features[i] = stacjson.ItemDocument(item, s.itemLinks(item))
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"type":           "FeatureCollection",
		"features":       features,
		"numberMatched":  total,
		"numberReturned": len(features),
		"links": []stacjson.Link{
			stacjson.NewLink(stacjson.RelRoot, apiBase+"/catalog", ""),
			stacjson.NewLink(stacjson.RelCollection, collectionPath(collectionID), ""),
		},
	})
}

// handleGetItem returns a single item.
func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	item, err := s.catalog.Item(r.Context(), vars["collectionId"], vars["itemId"])
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", string(domain.MediaGeoJSON))
	s.writeJSON(w, http.StatusOK, stacjson.ItemDocument(item, s.itemLinks(item)))
}

func (s *Server) itemLinks(item *domain.Item) []stacjson.Link {
	return []stacjson.Link{
		stacjson.NewLink(stacjson.RelRoot, apiBase+"/catalog", ""),
		stacjson.NewLink(stacjson.RelParent, collectionPath(item.Collection), ""),
		stacjson.NewLink(stacjson.RelCollection, collectionPath(item.Collection), ""),
		stacjson.NewLink(stacjson.RelSelf, itemPath(item.Collection, item.ID), ""),
	}
}

// handleOpenAPI returns the OpenAPI specification.
func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	spec, err := getOpenAPIJSON()
	if err != nil {
		s.logger.Error("failed to get OpenAPI spec", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to load OpenAPI specification")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(spec)
}

// handleSync handles the sync trigger endpoint.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	result, err := s.sync.TriggerSync(r.Context())
	if err != nil {
		if errors.Is(err, application.ErrRateLimited) {
			w.Header().Set("Retry-After", "30")
			s.writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Try again in 30 seconds.")
			return
		}
		s.handleDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// parsePage reads the optional limit and offset query parameters.
func parsePage(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 0 {
			return 0, 0, errors.New("invalid limit parameter")
		}
	}
	if v := q.Get("offset"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil || offset < 0 {
			return 0, 0, errors.New("invalid offset parameter")
		}
	}
	return limit, offset, nil
}

// handleDomainError maps domain errors to HTTP status codes.
func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Internal error")
	}
}

// writeJSON writes a JSON response. A Content-Type set by the caller is kept.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func boolToStatus(b bool) string {
	if b {
		return "ok"
	}
	return "unhealthy"
}
