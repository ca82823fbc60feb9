package localdb

import "errors"

// schemaCollection holds a single row recording the content hash of the
// schema-file directory most recently applied by EnsureSchema, so a
// restart with an unchanged schema dir can skip the reflect-and-diff pass.
const schemaCollection = "schema_state"

const schemaHashKey = "schema_dir_hash"

// SchemaHash returns the last applied schema-dir hash, if any.
func (m *Manager) SchemaHash() (hash string, ok bool, err error) {
	err = m.DB.Get(schemaCollection, schemaHashKey, &hash)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return hash, true, nil
}

// SetSchemaHash records the schema-dir hash just applied.
func (m *Manager) SetSchemaHash(hash string) error {
	return m.DB.Put(schemaCollection, schemaHashKey, hash)
}

// listenerBookmarkCollection holds, per listener id, the last change id a
// local long-poll helper delivered — a pull-only convenience so a client
// doesn't have to re-walk list_notifications from the start on every poll.
const listenerBookmarkCollection = "listener_bookmarks"

// ListenerBookmark returns the last delivered change id for a listener.
func (m *Manager) ListenerBookmark(listenerID string) (changeID string, ok bool, err error) {
	err = m.DB.Get(listenerBookmarkCollection, listenerID, &changeID)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return changeID, true, nil
}

// SetListenerBookmark records the last change id delivered to a listener.
func (m *Manager) SetListenerBookmark(listenerID, changeID string) error {
	return m.DB.Put(listenerBookmarkCollection, listenerID, changeID)
}
