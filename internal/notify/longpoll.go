package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/qvarnd-io/qvarnd/internal/layout"
)

// bookmarkStore is the subset of internal/localdb.Manager the long-poll
// helper needs; kept as an interface so tests can fake it without an
// on-disk sqlite file.
type bookmarkStore interface {
	ListenerBookmark(listenerID string) (changeID string, ok bool, err error)
	SetListenerBookmark(listenerID, changeID string) error
}

// LongPoll is a pull-only convenience wrapper around Engine: it remembers,
// per listener, the last notification id a caller has seen (in local
// sqlite state, never in the resource store) so a client doesn't have to
// re-walk list_notifications from the start on every poll. It never pushes;
// callers still call Poll whenever they want to check for more.
type LongPoll struct {
	engine *Engine
	bm     bookmarkStore
}

func NewLongPoll(engine *Engine, bm bookmarkStore) *LongPoll {
	return &LongPoll{engine: engine, bm: bm}
}

// NewSession returns an opaque correlation token for one poll loop, handed back to
// callers that want to tag retries/log lines; it carries no server-side
// state of its own; the actual cursor is the per-listener bookmark.
func NewSession() string {
	return uuid.NewString()
}

// Poll returns the notification ids that Engine.List places after the
// listener's saved bookmark, in that list's change-timestamp order (ids
// themselves are random, not time-sortable), and advances the bookmark to
// the last one returned.
func (lp *LongPoll) Poll(ctx context.Context, names layout.Names, listenerID string) ([]string, error) {
	all, err := lp.engine.List(ctx, names, listenerID)
	if err != nil {
		return nil, fmt.Errorf("notify: longpoll list: %w", err)
	}

	bookmark, hasBookmark, err := lp.bm.ListenerBookmark(listenerID)
	if err != nil {
		return nil, fmt.Errorf("notify: longpoll read bookmark: %w", err)
	}

	var fresh []string
	if !hasBookmark {
		fresh = all
	} else {
		seenBookmark := false
		for _, id := range all {
			if seenBookmark {
				fresh = append(fresh, id)
				continue
			}
			if id == bookmark {
				seenBookmark = true
			}
		}
		if !seenBookmark {
			// bookmark fell off the list (e.g. acknowledged/pruned); treat
			// every currently-visible notification as fresh.
			fresh = all
		}
	}

	if len(fresh) > 0 {
		if err := lp.bm.SetListenerBookmark(listenerID, fresh[len(fresh)-1]); err != nil {
			return nil, fmt.Errorf("notify: longpoll save bookmark: %w", err)
		}
	}
	return fresh, nil
}
