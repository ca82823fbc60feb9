package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/qvarnd-io/qvarnd/internal/schema"
	"github.com/qvarnd-io/qvarnd/internal/storeerr"
)

func TestWriteStoreError_MapsKnownTypes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"type not found", &storeerr.ResourceTypeNotFound{Path: "x"}, http.StatusNotFound},
		{"not found", &storeerr.ResourceNotFound{Type: "org", ID: "1"}, http.StatusNotFound},
		{"wrong revision", &storeerr.WrongRevision{Current: "a", Update: "b"}, http.StatusConflict},
		{"unexpected", &storeerr.UnexpectedError{Reason: "bug"}, http.StatusInternalServerError},
		{"validation", &schema.ValidationError{Path: "names", Reason: "wrong type"}, http.StatusBadRequest},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeStoreError(rec, c.err)
			if rec.Code != c.code {
				t.Errorf("status = %d, want %d", rec.Code, c.code)
			}
		})
	}
}

func TestIdList(t *testing.T) {
	got := idList([]string{"a", "b"})
	if len(got) != 2 || got[0]["id"] != "a" || got[1]["id"] != "b" {
		t.Fatalf("idList = %v", got)
	}
	if got := idList(nil); len(got) != 0 {
		t.Fatalf("idList(nil) = %v, want empty", got)
	}
}

func TestUserFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Qvarn-User", "alice")
	if got := userFromRequest(r); got != "alice" {
		t.Fatalf("userFromRequest = %q", got)
	}
}
