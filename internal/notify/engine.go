package notify

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qvarnd-io/qvarnd/internal/layout"
	"github.com/qvarnd-io/qvarnd/internal/storeerr"
)

// Engine answers the per-listener notification operations of spec §4.7:
// list, get, and delete (acknowledge) against a resource type's change
// log. It only reads/updates the listeners array on change records; it
// never deletes a change record itself.
type Engine struct {
	pool *pgxpool.Pool
}

func NewEngine(pool *pgxpool.Pool) *Engine {
	return &Engine{pool: pool}
}

// List returns the ids of change records in resourceType's change log
// whose listeners array still names listenerID.
func (e *Engine) List(ctx context.Context, names layout.Names, listenerID string) ([]string, error) {
	q := fmt.Sprintf(`SELECT id FROM %s WHERE $1 = ANY(listeners) ORDER BY "timestamp"`, quoteIdent(names.ChangesTable))
	rows, err := e.pool.Query(ctx, q, listenerID)
	if err != nil {
		return nil, fmt.Errorf("notify: list: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Notification is the read-only projection of a change record filtered
// for one listener (spec §4.7: revision is intentionally equal to id,
// notifications are immutable).
type Notification struct {
	ID               string
	Revision         string
	Type             string
	ResourceID       string
	ResourceRevision *string
	ResourceChange   string
}

// Get returns one notification by change-record id, scoped to listenerID
// so a listener cannot read another listener's notifications.
func (e *Engine) Get(ctx context.Context, names layout.Names, listenerID, changeID string) (Notification, error) {
	q := fmt.Sprintf(`SELECT id, resource_id, resource_revision, change_type FROM %s WHERE id = $1 AND $2 = ANY(listeners)`, quoteIdent(names.ChangesTable))
	var n Notification
	var resourceRevision *string
	err := e.pool.QueryRow(ctx, q, changeID, listenerID).Scan(&n.ID, &n.ResourceID, &resourceRevision, &n.ResourceChange)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Notification{}, &storeerr.ResourceNotFound{Type: "notification", ID: changeID}
		}
		return Notification{}, fmt.Errorf("notify: get: %w", err)
	}
	n.Revision = n.ID
	n.Type = "notification"
	n.ResourceRevision = resourceRevision
	return n, nil
}

// Acknowledge removes listenerID from a change record's listeners array,
// leaving the record itself intact (spec §4.7 delete semantics).
func (e *Engine) Acknowledge(ctx context.Context, names layout.Names, listenerID, changeID string) error {
	q := fmt.Sprintf(`UPDATE %s SET listeners = array_remove(listeners, $1) WHERE id = $2 AND $1 = ANY(listeners)`, quoteIdent(names.ChangesTable))
	tag, err := e.pool.Exec(ctx, q, listenerID, changeID)
	if err != nil {
		return fmt.Errorf("notify: acknowledge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &storeerr.ResourceNotFound{Type: "notification", ID: changeID}
	}
	return nil
}

func quoteIdent(name string) string {
	out := make([]byte, 0, len(name)+2)
	out = append(out, '"')
	for i := 0; i < len(name); i++ {
		if name[i] == '"' {
			out = append(out, '"', '"')
		} else {
			out = append(out, name[i])
		}
	}
	out = append(out, '"')
	return string(out)
}
