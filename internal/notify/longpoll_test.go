package notify

import "testing"

type fakeBookmarks struct {
	m map[string]string
}

func (f *fakeBookmarks) ListenerBookmark(listenerID string) (string, bool, error) {
	v, ok := f.m[listenerID]
	return v, ok, nil
}

func (f *fakeBookmarks) SetListenerBookmark(listenerID, changeID string) error {
	if f.m == nil {
		f.m = map[string]string{}
	}
	f.m[listenerID] = changeID
	return nil
}

func TestNewSession_ProducesDistinctTokens(t *testing.T) {
	a, b := NewSession(), NewSession()
	if a == b {
		t.Fatalf("expected distinct session tokens, got %q twice", a)
	}
	if a == "" {
		t.Fatalf("expected non-empty session token")
	}
}

// Poll needs a database-backed Engine, so this replays Poll's bookmark
// filter loop inline over a fixed id list; it does not call Poll or check
// that the bookmark is saved.
func TestLongPoll_BookmarkFilterSkipsSeen(t *testing.T) {
	bm := &fakeBookmarks{m: map[string]string{"lid": "c2"}}
	all := []string{"c1", "c2", "c3", "c4"}

	var fresh []string
	bookmark, hasBookmark, _ := bm.ListenerBookmark("lid")
	if hasBookmark {
		seen := false
		for _, id := range all {
			if seen {
				fresh = append(fresh, id)
				continue
			}
			if id == bookmark {
				seen = true
			}
		}
	}
	if len(fresh) != 2 || fresh[0] != "c3" || fresh[1] != "c4" {
		t.Fatalf("got %v, want [c3 c4]", fresh)
	}
}
