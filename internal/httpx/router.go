// Package httpx wires the resource HTTP surface (spec §6) over
// internal/store, internal/notify, and internal/schema, plus the ambient
// middleware (request id, logging, CORS) the teacher's handlers already
// established.
package httpx

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/qvarnd-io/qvarnd/internal/notify"
	"github.com/qvarnd-io/qvarnd/internal/schema"
	"github.com/qvarnd-io/qvarnd/internal/store"
)

// Server holds the dependencies every resource handler needs.
type Server struct {
	Store    *store.Store
	Registry *schema.Registry
	Notify   *notify.Engine
	LongPoll *notify.LongPoll
	Log      *zap.Logger
}

// NewRouter builds the full HTTP surface: one wildcard mux entry ("/")
// serves every registered resource type, since paths are keyed by type at
// request time rather than fixed at route-registration time
// (routeResource resolves them through Registry.LookupByPath).
func (s *Server) NewRouter() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/version", s.handleVersion)
	mux.HandleFunc("/", s.routeResource)

	var h http.Handler = mux
	h = Logging(s.Log)(h)
	h = RequestID(h)
	return h
}

// routeResource dispatches every /{path}... request by resolving the
// leading path segment against the schema registry (spec §6's HTTP
// surface table), since Go's ServeMux cannot pattern-match a dynamic set
// of resource type paths registered at runtime.
func (s *Server) routeResource(w http.ResponseWriter, r *http.Request) {
	segs := splitPath(r.URL.Path)
	if len(segs) == 0 {
		JSONError(w, http.StatusNotFound, "not found", "NotFound")
		return
	}
	rts, ok := s.Registry.LookupByPath(segs[0])
	if !ok {
		JSONError(w, http.StatusNotFound, "unknown resource type", "ResourceTypeDoesNotExist")
		return
	}
	rest := segs[1:]

	switch {
	case len(rest) == 0:
		s.handleCollection(w, r, rts)
	case rest[0] == "search":
		// search.Parse decodes each token itself, so hand it the escaped
		// path: a percent-encoded '/' inside a value stays one token.
		rawSegs := splitPath(r.URL.EscapedPath())
		s.handleSearch(w, r, rts, strings.Join(rawSegs[2:], "/"))
	case rest[0] == "listeners":
		s.routeListeners(w, r, rts, rest[1:])
	case len(rest) == 1:
		s.handleItem(w, r, rts, rest[0])
	case len(rest) == 2:
		s.handleSubpath(w, r, rts, rest[0], rest[1])
	default:
		JSONError(w, http.StatusNotFound, "not found", "NotFound")
	}
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]any{
		"resource_types": s.Registry.SortedTypes(),
	})
}
