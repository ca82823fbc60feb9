// Package store implements the transactional resource store (spec §4.4,
// §4.5): CRUD on main resource rows and sub-path documents, with
// optimistic concurrency on revision, auxiliary index maintenance, and
// change-log/listener fan-out, all inside one backing-store transaction
// per write.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/qvarnd-io/qvarnd/internal/docval"
	"github.com/qvarnd-io/qvarnd/internal/idgen"
	"github.com/qvarnd-io/qvarnd/internal/layout"
	"github.com/qvarnd-io/qvarnd/internal/metrics"
	"github.com/qvarnd-io/qvarnd/internal/notify"
	"github.com/qvarnd-io/qvarnd/internal/schema"
	"github.com/qvarnd-io/qvarnd/internal/shred"
	"github.com/qvarnd-io/qvarnd/internal/storeerr"
)

// observe records a store operation's outcome and latency against the
// Prometheus instruments in internal/metrics.
func observe(resourceType, op string, start time.Time, err error) {
	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = metrics.OutcomeError
	}
	metrics.Operations.WithLabelValues(resourceType, op, outcome).Inc()
	metrics.OperationDuration.WithLabelValues(resourceType, op).Observe(time.Since(start).Seconds())
}

// Store is the transactional resource store. Safe for concurrent use: all
// mutable state lives in the pool and the backing database, not here.
type Store struct {
	pool *pgxpool.Pool
	reg  *schema.Registry
	log  *zap.Logger

	names map[string]layout.Names
}

// New builds a Store over an already-connected pool and a fully populated
// registry. Call EnsureSchema once at startup before serving traffic.
func New(pool *pgxpool.Pool, reg *schema.Registry, log *zap.Logger) *Store {
	s := &Store{pool: pool, reg: reg, log: log, names: map[string]layout.Names{}}
	for _, t := range reg.Types() {
		rts, _ := reg.Lookup(t)
		s.names[t] = layout.ForType(rts.Type, rts.JSONSubpaths())
	}
	return s
}

func (s *Store) namesFor(resourceType string) (layout.Names, bool) {
	n, ok := s.names[resourceType]
	return n, ok
}

func optionalUser(user string) *string {
	if user == "" {
		return nil
	}
	return &user
}

// Create inserts a new resource unconditionally (spec §4.4: create skips
// the conditional UPDATE). Returns data ∪ {id, revision}.
func (s *Store) Create(ctx context.Context, resourceType string, data docval.Doc, user string) (out docval.Doc, err error) {
	defer func(start time.Time) { observe(resourceType, "create", start, err) }(time.Now())

	rts, ok := s.reg.Lookup(resourceType)
	if !ok {
		return nil, &storeerr.ResourceTypeNotFound{Path: resourceType}
	}
	names, _ := s.namesFor(resourceType)

	cleaned, err := schema.Validate(rts.Prototype, data)
	if err != nil {
		return nil, err
	}

	id, err := idgen.New(resourceType)
	if err != nil {
		return nil, err
	}
	revision, err := idgen.New(resourceType)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	search := shred.Containment(cleaned, nil)
	insertCols := []string{"id", "revision", "search", "data"}
	insertArgs := []any{id, revision, search, cleaned}
	if rts.Type == schema.ListenerType {
		insertCols = append(insertCols, "listen_on_type")
		insertArgs = append(insertArgs, cleaned["listen_on_type"])
	}
	if err := execInsert(ctx, tx, names.MainTable, insertCols, insertArgs); err != nil {
		return nil, fmt.Errorf("store: insert main row: %w", err)
	}

	if err := s.rebuildAux(ctx, tx, names, id, cleaned); err != nil {
		return nil, err
	}

	listeners, err := s.selectListeners(ctx, tx, resourceType, notify.ChangeCreated, id)
	if err != nil {
		return nil, err
	}
	if err := s.insertChange(ctx, tx, resourceType, id, &revision, notify.ChangeCreated, user, listeners, cleaned); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}

	out = docval.Clone(cleaned).(map[string]any)
	out["id"] = id
	out["revision"] = revision
	return out, nil
}

// Get returns data ∪ {id, revision} for an existing resource.
func (s *Store) Get(ctx context.Context, resourceType, id string) (out docval.Doc, err error) {
	defer func(start time.Time) { observe(resourceType, "get", start, err) }(time.Now())

	names, ok := s.namesFor(resourceType)
	if !ok {
		return nil, &storeerr.ResourceTypeNotFound{Path: resourceType}
	}
	var revision string
	var data map[string]any
	q := fmt.Sprintf(`SELECT revision, data FROM %s WHERE id = $1`, quoteIdent(names.MainTable))
	err = s.pool.QueryRow(ctx, q, id).Scan(&revision, &data)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, &storeerr.ResourceNotFound{Type: resourceType, ID: id}
		}
		return nil, fmt.Errorf("store: get: %w", err)
	}
	data["id"] = id
	data["revision"] = revision
	return data, nil
}

// List returns all resource ids of a type, unpaginated; the search
// compiler (spec §4.6) is the paginated/filtered path.
func (s *Store) List(ctx context.Context, resourceType string) (out []string, err error) {
	defer func(start time.Time) { observe(resourceType, "list", start, err) }(time.Now())

	names, ok := s.namesFor(resourceType)
	if !ok {
		return nil, &storeerr.ResourceTypeNotFound{Path: resourceType}
	}
	q := fmt.Sprintf(`SELECT id FROM %s ORDER BY id`, quoteIdent(names.MainTable))
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// Put replaces a resource's data under optimistic concurrency control
// (spec §4.4 step 4: 1/0/>1 rowcount dispatch).
func (s *Store) Put(ctx context.Context, resourceType, id string, data docval.Doc, expectedRevision, user string) (out docval.Doc, err error) {
	defer func(start time.Time) { observe(resourceType, "put", start, err) }(time.Now())

	rts, ok := s.reg.Lookup(resourceType)
	if !ok {
		return nil, &storeerr.ResourceTypeNotFound{Path: resourceType}
	}
	names, _ := s.namesFor(resourceType)

	cleaned, err := schema.Validate(rts.Prototype, data)
	if err != nil {
		return nil, err
	}

	newRevision, err := idgen.New(resourceType)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	search := shred.Containment(cleaned, nil)
	setCols := []string{"revision", "search", "data"}
	setArgs := []any{newRevision, search, cleaned}
	if rts.Type == schema.ListenerType {
		setCols = append(setCols, "listen_on_type")
		setArgs = append(setArgs, cleaned["listen_on_type"])
	}
	rowcount, err := execConditionalUpdate(ctx, tx, names.MainTable, setCols, setArgs, id, expectedRevision)
	if err != nil {
		return nil, fmt.Errorf("store: conditional update: %w", err)
	}
	switch {
	case rowcount == 1:
		// success, fall through to aux rebuild
	case rowcount == 0:
		current, getErr := currentRevision(ctx, tx, names.MainTable, id)
		if getErr != nil {
			if getErr == pgx.ErrNoRows {
				return nil, &storeerr.ResourceNotFound{Type: resourceType, ID: id}
			}
			return nil, getErr
		}
		return nil, &storeerr.WrongRevision{ID: id, Current: current, Update: expectedRevision}
	default:
		return nil, &storeerr.UnexpectedError{Reason: fmt.Sprintf("conditional update on %s affected %d rows", names.MainTable, rowcount)}
	}

	if err := s.rebuildAux(ctx, tx, names, id, cleaned); err != nil {
		return nil, err
	}

	listeners, err := s.selectListeners(ctx, tx, resourceType, notify.ChangeUpdated, id)
	if err != nil {
		return nil, err
	}
	if err := s.insertChange(ctx, tx, resourceType, id, &newRevision, notify.ChangeUpdated, user, listeners, cleaned); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}

	out = docval.Clone(cleaned).(map[string]any)
	out["id"] = id
	out["revision"] = newRevision
	return out, nil
}

// Delete removes a resource's main and aux rows, retaining its change
// record (spec §4.4: delete path).
func (s *Store) Delete(ctx context.Context, resourceType, id, user string) (err error) {
	defer func(start time.Time) { observe(resourceType, "delete", start, err) }(time.Now())

	names, ok := s.namesFor(resourceType)
	if !ok {
		return &storeerr.ResourceTypeNotFound{Path: resourceType}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var data map[string]any
	q := fmt.Sprintf(`SELECT data FROM %s WHERE id = $1 FOR UPDATE`, quoteIdent(names.MainTable))
	if err := tx.QueryRow(ctx, q, id).Scan(&data); err != nil {
		if err == pgx.ErrNoRows {
			return &storeerr.ResourceNotFound{Type: resourceType, ID: id}
		}
		return fmt.Errorf("store: delete select: %w", err)
	}

	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, quoteIdent(names.AuxTable)), id); err != nil {
		return fmt.Errorf("store: delete aux: %w", err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, quoteIdent(names.MainTable)), id); err != nil {
		return fmt.Errorf("store: delete main: %w", err)
	}

	listeners, err := s.selectListeners(ctx, tx, resourceType, notify.ChangeDeleted, id)
	if err != nil {
		return err
	}
	if err := s.insertChange(ctx, tx, resourceType, id, nil, notify.ChangeDeleted, user, listeners, data); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetSubpath returns a sub-document stored in its own JSONB column (spec
// §4.5), e.g. GET /persons/{id}/secret_names.
func (s *Store) GetSubpath(ctx context.Context, resourceType, id, subpath string) (out docval.Doc, err error) {
	defer func(start time.Time) { observe(resourceType, "get_subpath", start, err) }(time.Now())

	names, ok := s.namesFor(resourceType)
	if !ok {
		return nil, &storeerr.ResourceTypeNotFound{Path: resourceType}
	}
	col, ok := names.DataSubpathCols[subpath]
	if !ok {
		return nil, &storeerr.ResourceTypeNotFound{Path: resourceType + "/" + subpath}
	}
	var revision string
	var data map[string]any
	q := fmt.Sprintf(`SELECT revision, %s FROM %s WHERE id = $1`, quoteIdent(col), quoteIdent(names.MainTable))
	err = s.pool.QueryRow(ctx, q, id).Scan(&revision, &data)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, &storeerr.ResourceNotFound{Type: resourceType, ID: id}
		}
		return nil, fmt.Errorf("store: get subpath: %w", err)
	}
	if data == nil {
		data = map[string]any{}
	}
	data["revision"] = revision
	return data, nil
}

// PutSubpath replaces a sub-document, bumping the owning resource's
// revision (sub-resources share their parent's revision lineage). It takes
// no expected revision, so the update is applied whatever the current
// revision is; the search column and aux rows are not recomputed.
func (s *Store) PutSubpath(ctx context.Context, resourceType, id, subpath string, data docval.Doc, user string) (out docval.Doc, err error) {
	defer func(start time.Time) { observe(resourceType, "put_subpath", start, err) }(time.Now())

	rts, ok := s.reg.Lookup(resourceType)
	if !ok {
		return nil, &storeerr.ResourceTypeNotFound{Path: resourceType}
	}
	names, _ := s.namesFor(resourceType)
	col, ok := names.DataSubpathCols[subpath]
	if !ok {
		return nil, &storeerr.ResourceTypeNotFound{Path: resourceType + "/" + subpath}
	}
	proto, ok := rts.Subpaths[subpath]
	if !ok {
		return nil, &storeerr.ResourceTypeNotFound{Path: resourceType + "/" + subpath}
	}

	cleaned, err := schema.Validate(proto, data)
	if err != nil {
		return nil, err
	}

	newRevision, err := idgen.New(resourceType)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	q := fmt.Sprintf(`UPDATE %s SET %s = $1, revision = $2 WHERE id = $3`, quoteIdent(names.MainTable), quoteIdent(col))
	tag, err := tx.Exec(ctx, q, cleaned, newRevision, id)
	if err != nil {
		return nil, fmt.Errorf("store: put subpath: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, &storeerr.ResourceNotFound{Type: resourceType, ID: id}
	}

	listeners, err := s.selectListeners(ctx, tx, resourceType, notify.ChangeUpdated, id)
	if err != nil {
		return nil, err
	}
	if err := s.insertChange(ctx, tx, resourceType, id, &newRevision, notify.ChangeUpdated, user, listeners, cleaned); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}
	return cleaned, nil
}

// GetFile returns a file blob and its content type (spec §4.5 file
// sub-resources, e.g. GET /persons/{id}/photo).
func (s *Store) GetFile(ctx context.Context, resourceType, id, subpath string) (blob []byte, contentType string, err error) {
	defer func(start time.Time) { observe(resourceType, "get_file", start, err) }(time.Now())

	names, ok := s.namesFor(resourceType)
	if !ok {
		return nil, "", &storeerr.ResourceTypeNotFound{Path: resourceType}
	}
	q := fmt.Sprintf(`SELECT blob, content_type FROM %s WHERE id = $1 AND subpath = $2`, quoteIdent(names.FilesTable))
	err = s.pool.QueryRow(ctx, q, id, subpath).Scan(&blob, &contentType)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, "", &storeerr.ResourceNotFound{Type: resourceType, ID: id}
		}
		return nil, "", fmt.Errorf("store: get file: %w", err)
	}
	return blob, contentType, nil
}

// PutFile stores a file blob, bumping the owning resource's revision. It
// takes no expected revision, so the upload is applied whatever the current
// revision is.
func (s *Store) PutFile(ctx context.Context, resourceType, id, subpath string, blob []byte, contentType, user string) (out string, err error) {
	defer func(start time.Time) { observe(resourceType, "put_file", start, err) }(time.Now())

	names, ok := s.namesFor(resourceType)
	if !ok {
		return "", &storeerr.ResourceTypeNotFound{Path: resourceType}
	}

	newRevision, err := idgen.New(resourceType)
	if err != nil {
		return "", err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	upsert := fmt.Sprintf(`INSERT INTO %s (id, subpath, content_type, blob) VALUES ($1,$2,$3,$4)
		ON CONFLICT (id, subpath) DO UPDATE SET content_type = EXCLUDED.content_type, blob = EXCLUDED.blob`,
		quoteIdent(names.FilesTable))
	if _, err := tx.Exec(ctx, upsert, id, subpath, contentType, blob); err != nil {
		return "", fmt.Errorf("store: put file: %w", err)
	}

	bump := fmt.Sprintf(`UPDATE %s SET revision = $1 WHERE id = $2`, quoteIdent(names.MainTable))
	tag, err := tx.Exec(ctx, bump, newRevision, id)
	if err != nil {
		return "", fmt.Errorf("store: bump revision: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return "", &storeerr.ResourceNotFound{Type: resourceType, ID: id}
	}

	listeners, err := s.selectListeners(ctx, tx, resourceType, notify.ChangeUpdated, id)
	if err != nil {
		return "", err
	}
	if err := s.insertChange(ctx, tx, resourceType, id, &newRevision, notify.ChangeUpdated, user, listeners, map[string]any{"subpath": subpath}); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("store: commit: %w", err)
	}
	return newRevision, nil
}

// WipeAllData truncates every registered resource type's tables. Test
// helper only; never reachable from the HTTP surface.
func (s *Store) WipeAllData(ctx context.Context) error {
	for t, names := range s.names {
		tables := []string{names.AuxTable, names.MainTable, names.ChangesTable}
		if rts, ok := s.reg.Lookup(t); ok && len(rts.Files) > 0 {
			tables = append(tables, names.FilesTable)
		}
		for _, table := range tables {
			if table == "" {
				continue
			}
			if _, err := s.pool.Exec(ctx, fmt.Sprintf(`TRUNCATE TABLE %s CASCADE`, quoteIdent(table))); err != nil {
				return fmt.Errorf("store: wipe %s: %w", table, err)
			}
		}
	}
	return nil
}

func (s *Store) rebuildAux(ctx context.Context, tx pgx.Tx, names layout.Names, id string, data docval.Doc) error {
	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, quoteIdent(names.AuxTable)), id); err != nil {
		return fmt.Errorf("store: delete aux rows: %w", err)
	}
	rows := shred.Lists(data)
	for _, row := range rows {
		if _, err := tx.Exec(ctx, fmt.Sprintf(`INSERT INTO %s (id, data) VALUES ($1, $2)`, quoteIdent(names.AuxTable)), id, map[string]any(row)); err != nil {
			return fmt.Errorf("store: insert aux row: %w", err)
		}
	}
	return nil
}

func (s *Store) selectListeners(ctx context.Context, tx pgx.Tx, resourceType string, change notify.ChangeType, resourceID string) ([]string, error) {
	listenerNames, ok := s.namesFor(schema.ListenerType)
	if !ok {
		return nil, nil
	}
	q := fmt.Sprintf(`SELECT id, data FROM %s WHERE listen_on_type = $1`, quoteIdent(listenerNames.MainTable))
	rows, err := tx.Query(ctx, q, resourceType)
	if err != nil {
		return nil, fmt.Errorf("store: select listeners: %w", err)
	}
	defer rows.Close()

	var selected []string
	for rows.Next() {
		var lid string
		var data map[string]any
		if err := rows.Scan(&lid, &data); err != nil {
			return nil, err
		}
		doc := notify.ParseDoc(data)
		if notify.ShouldNotify(doc, change, resourceID) {
			selected = append(selected, lid)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(selected) > 0 {
		metrics.ListenersNotified.WithLabelValues(resourceType, string(change)).Add(float64(len(selected)))
	}
	return selected, nil
}

func (s *Store) insertChange(ctx context.Context, tx pgx.Tx, resourceType, resourceID string, resourceRevision *string, changeType notify.ChangeType, user string, listeners []string, data docval.Doc) error {
	names, _ := s.namesFor(resourceType)
	changeID, err := idgen.New("change")
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`INSERT INTO %s (id, resource_id, resource_revision, change_type, app_user, listeners, data) VALUES ($1,$2,$3,$4,$5,$6,$7)`, quoteIdent(names.ChangesTable))
	_, err = tx.Exec(ctx, q, changeID, resourceID, resourceRevision, string(changeType), optionalUser(user), listeners, data)
	if err != nil {
		return fmt.Errorf("store: insert change: %w", err)
	}
	return nil
}

func execInsert(ctx context.Context, tx pgx.Tx, table string, cols []string, args []any) error {
	placeholders := make([]string, len(cols))
	quoted := make([]string, len(cols))
	for i, c := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		quoted[i] = quoteIdent(c)
	}
	q := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, quoteIdent(table), joinComma(quoted), joinComma(placeholders))
	_, err := tx.Exec(ctx, q, args...)
	return err
}

func execConditionalUpdate(ctx context.Context, tx pgx.Tx, table string, setCols []string, setArgs []any, id, expectedRevision string) (int64, error) {
	setClauses := make([]string, len(setCols))
	for i, c := range setCols {
		setClauses[i] = fmt.Sprintf("%s = $%d", quoteIdent(c), i+1)
	}
	idPos := len(setCols) + 1
	revPos := len(setCols) + 2
	q := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $%d AND revision = $%d`, quoteIdent(table), joinComma(setClauses), idPos, revPos)
	args := append(append([]any{}, setArgs...), id, expectedRevision)
	tag, err := tx.Exec(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func currentRevision(ctx context.Context, tx pgx.Tx, table, id string) (string, error) {
	var revision string
	err := tx.QueryRow(ctx, fmt.Sprintf(`SELECT revision FROM %s WHERE id = $1`, quoteIdent(table)), id).Scan(&revision)
	return revision, err
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}
