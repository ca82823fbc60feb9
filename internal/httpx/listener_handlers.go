package httpx

import (
	"net/http"

	"github.com/qvarnd-io/qvarnd/internal/docval"
	"github.com/qvarnd-io/qvarnd/internal/layout"
	"github.com/qvarnd-io/qvarnd/internal/schema"
)

// routeListeners dispatches the /{type}/listeners[...] sub-tree (spec §6):
// listener CRUD is ordinary resource CRUD on the built-in listener type,
// scoped implicitly to listen_on_type = rts.Type on list; notifications
// are read through internal/notify.Engine.
func (s *Server) routeListeners(w http.ResponseWriter, r *http.Request, rts schema.ResourceTypeSchema, rest []string) {
	switch {
	case len(rest) == 0:
		s.handleListenerCollection(w, r, rts)
	case len(rest) == 1:
		s.handleListenerItem(w, r, rest[0])
	case len(rest) == 2 && rest[1] == "notifications":
		s.handleNotificationCollection(w, r, rts, rest[0])
	case len(rest) == 3 && rest[1] == "notifications":
		s.handleNotificationItem(w, r, rts, rest[0], rest[2])
	default:
		JSONError(w, http.StatusNotFound, "not found", "NotFound")
	}
}

func (s *Server) handleListenerCollection(w http.ResponseWriter, r *http.Request, rts schema.ResourceTypeSchema) {
	switch r.Method {
	case http.MethodGet:
		ids, err := s.Store.List(r.Context(), schema.ListenerType)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		var scoped []string
		for _, id := range ids {
			doc, err := s.Store.Get(r.Context(), schema.ListenerType, id)
			if err != nil {
				continue
			}
			if t, _ := doc["listen_on_type"].(string); t == rts.Type {
				scoped = append(scoped, id)
			}
		}
		JSON(w, http.StatusOK, map[string]any{"resources": idList(scoped)})
	case http.MethodPost:
		var body docval.Doc
		if err := decodeJSON(r, &body); err != nil {
			JSONError(w, http.StatusBadRequest, err.Error(), "InvalidJSON")
			return
		}
		body["listen_on_type"] = rts.Type
		created, err := s.Store.Create(r.Context(), schema.ListenerType, body, userFromRequest(r))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		w.Header().Set("Location", "/"+rts.Path+"/listeners/"+created["id"].(string))
		JSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleListenerItem(w http.ResponseWriter, r *http.Request, lid string) {
	switch r.Method {
	case http.MethodGet:
		doc, err := s.Store.Get(r.Context(), schema.ListenerType, lid)
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
		updated, err := s.Store.Put(r.Context(), schema.ListenerType, lid, body, revision, userFromRequest(r))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		JSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := s.Store.Delete(r.Context(), schema.ListenerType, lid, userFromRequest(r)); err != nil {
			writeStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleNotificationCollection(w http.ResponseWriter, r *http.Request, rts schema.ResourceTypeSchema, lid string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if _, err := s.Store.Get(r.Context(), schema.ListenerType, lid); err != nil {
		writeStoreError(w, err)
		return
	}
	names := layout.ForType(rts.Type, rts.JSONSubpaths())

	var ids []string
	var err error
	if s.LongPoll != nil && r.URL.Query().Has("new") {
		ids, err = s.LongPoll.Poll(r.Context(), names, lid)
	} else {
		ids, err = s.Notify.List(r.Context(), names, lid)
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"resources": idList(ids)})
}

func (s *Server) handleNotificationItem(w http.ResponseWriter, r *http.Request, rts schema.ResourceTypeSchema, lid, nid string) {
	if _, err := s.Store.Get(r.Context(), schema.ListenerType, lid); err != nil {
		writeStoreError(w, err)
		return
	}
	names := layout.ForType(rts.Type, rts.JSONSubpaths())
	switch r.Method {
	case http.MethodGet:
		n, err := s.Notify.Get(r.Context(), names, lid, nid)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		JSON(w, http.StatusOK, map[string]any{
			"id":                n.ID,
			"revision":          n.Revision,
			"type":              n.Type,
			"resource_id":       n.ResourceID,
			"resource_revision": n.ResourceRevision,
			"resource_change":   n.ResourceChange,
		})
	case http.MethodDelete:
		if err := s.Notify.Acknowledge(r.Context(), names, lid, nid); err != nil {
			writeStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}
