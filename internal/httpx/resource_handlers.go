package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/qvarnd-io/qvarnd/internal/docval"
	"github.com/qvarnd-io/qvarnd/internal/schema"
	"github.com/qvarnd-io/qvarnd/internal/storeerr"
)

// handleCollection implements GET/POST /{type} (spec §6: list ids, create).
func (s *Server) handleCollection(w http.ResponseWriter, r *http.Request, rts schema.ResourceTypeSchema) {
	switch r.Method {
	case http.MethodGet:
		ids, err := s.Store.List(r.Context(), rts.Type)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		JSON(w, http.StatusOK, map[string]any{"resources": idList(ids)})
	case http.MethodPost:
		var body docval.Doc
		if err := decodeJSON(r, &body); err != nil {
			JSONError(w, http.StatusBadRequest, err.Error(), "InvalidJSON")
			return
		}
		created, err := s.Store.Create(r.Context(), rts.Type, body, userFromRequest(r))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		w.Header().Set("Location", "/"+rts.Path+"/"+created["id"].(string))
		JSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w)
	}
}

// handleItem implements GET/PUT/DELETE /{type}/{id}.
func (s *Server) handleItem(w http.ResponseWriter, r *http.Request, rts schema.ResourceTypeSchema, id string) {
	switch r.Method {
	case http.MethodGet:
		doc, err := s.Store.Get(r.Context(), rts.Type, id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		JSON(w, http.StatusOK, doc)
	case http.MethodPut:
		var body docval.Doc
		if err := decodeJSON(r, &body); err != nil {
			JSONError(w, http.StatusBadRequest, err.Error(), "InvalidJSON")
			return
		}
		revision, _ := body["revision"].(string)
		updated, err := s.Store.Put(r.Context(), rts.Type, id, body, revision, userFromRequest(r))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		JSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := s.Store.Delete(r.Context(), rts.Type, id, userFromRequest(r)); err != nil {
			writeStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

// handleSubpath implements GET/PUT /{type}/{id}/{subpath} for both JSON
// and file sub-paths (spec §6).
func (s *Server) handleSubpath(w http.ResponseWriter, r *http.Request, rts schema.ResourceTypeSchema, id, subpath string) {
	if rts.IsFile(subpath) {
		s.handleFileSubpath(w, r, rts, id, subpath)
		return
	}
	switch r.Method {
	case http.MethodGet:
		doc, err := s.Store.GetSubpath(r.Context(), rts.Type, id, subpath)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		JSON(w, http.StatusOK, doc)
	case http.MethodPut:
		var body docval.Doc
		if err := decodeJSON(r, &body); err != nil {
			JSONError(w, http.StatusBadRequest, err.Error(), "InvalidJSON")
			return
		}
		updated, err := s.Store.PutSubpath(r.Context(), rts.Type, id, subpath, body, userFromRequest(r))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		JSON(w, http.StatusOK, updated)
	default:
		methodNotAllowed(w)
	}
}

// handleFileSubpath implements the raw-bytes variant of sub-paths (spec
// §6 and §8 example 6): PUT stores the body with the request's
// Content-Type as the MIME type and returns the new revision; GET returns
// raw bytes with the stored Content-Type and the owning resource's
// current revision in a Revision response header. PUT does not read a
// Revision request header, so no precondition is checked on file uploads.
func (s *Server) handleFileSubpath(w http.ResponseWriter, r *http.Request, rts schema.ResourceTypeSchema, id, subpath string) {
	switch r.Method {
	case http.MethodGet:
		blob, contentType, err := s.Store.GetFile(r.Context(), rts.Type, id, subpath)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		owner, err := s.Store.Get(r.Context(), rts.Type, id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if rev, ok := owner["revision"].(string); ok {
			w.Header().Set("Revision", rev)
		}
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(blob)
	case http.MethodPut:
		blob, err := io.ReadAll(r.Body)
		if err != nil {
			JSONError(w, http.StatusBadRequest, "failed to read body", "InvalidBody")
			return
		}
		contentType := r.Header.Get("Content-Type")
		newRevision, err := s.Store.PutFile(r.Context(), rts.Type, id, subpath, blob, contentType, userFromRequest(r))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		w.Header().Set("Revision", newRevision)
		JSON(w, http.StatusOK, map[string]any{"id": id, "revision": newRevision})
	default:
		methodNotAllowed(w)
	}
}

// handleSearch implements GET /{type}/search/{query} (spec §4.6, §6).
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, rts schema.ResourceTypeSchema, rawQuery string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	results, err := s.Store.Search(r.Context(), rts.Type, rawQuery)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"resources": results})
}

func idList(ids []string) []map[string]string {
	out := make([]map[string]string, len(ids))
	for i, id := range ids {
		out[i] = map[string]string{"id": id}
	}
	return out
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}

func userFromRequest(r *http.Request) string {
	return r.Header.Get("X-Qvarn-User")
}

func methodNotAllowed(w http.ResponseWriter) {
	JSONError(w, http.StatusMethodNotAllowed, "method not allowed", "MethodNotAllowed")
}

// writeStoreError translates store-level errors to the HTTP response
// shapes spec §7 defines.
func writeStoreError(w http.ResponseWriter, err error) {
	var typeNotFound *storeerr.ResourceTypeNotFound
	var notFound *storeerr.ResourceNotFound
	var wrongRevision *storeerr.WrongRevision
	var unexpected *storeerr.UnexpectedError
	var validation *schema.ValidationError
	var validationFailed *storeerr.ValidationFailed

	switch {
	case errors.As(err, &typeNotFound):
		JSONError(w, http.StatusNotFound, err.Error(), "ResourceTypeDoesNotExist")
	case errors.As(err, &notFound):
		JSONError(w, http.StatusNotFound, err.Error(), "ItemDoesNotExist")
	case errors.As(err, &wrongRevision):
		JSON(w, http.StatusConflict, map[string]string{
			"error_code": "WrongRevision",
			"item_id":    wrongRevision.ID,
			"current":    wrongRevision.Current,
			"update":     wrongRevision.Update,
			"message":    err.Error(),
		})
	case errors.As(err, &unexpected):
		JSONError(w, http.StatusInternalServerError, err.Error(), "UnexpectedError")
	case errors.As(err, &validation):
		JSONError(w, http.StatusBadRequest, err.Error(), "ValidationError", map[string]string{
			"path":   validation.Path,
			"reason": validation.Reason,
		})
	case errors.As(err, &validationFailed):
		JSONError(w, http.StatusBadRequest, err.Error(), "ValidationError", map[string]string{
			"path":   validationFailed.Path,
			"reason": validationFailed.Reason,
		})
	default:
		JSONError(w, http.StatusInternalServerError, err.Error(), "UnexpectedError")
	}
}
