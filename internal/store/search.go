package store

import (
	"context"
	"fmt"

	"github.com/qvarnd-io/qvarnd/internal/docval"
	"github.com/qvarnd-io/qvarnd/internal/search"
	"github.com/qvarnd-io/qvarnd/internal/storeerr"
)

// Search runs a compiled search DSL query (spec §4.6) against resourceType
// and returns one result document per matched id, shaped by the query's
// projection (default {id}; show_all => data ∪ {id, revision}).
func (s *Store) Search(ctx context.Context, resourceType, rawQueryPath string) ([]docval.Doc, error) {
	names, ok := s.namesFor(resourceType)
	if !ok {
		return nil, &storeerr.ResourceTypeNotFound{Path: resourceType}
	}
	flat, _ := s.reg.FlatFields(resourceType)

	q, err := search.Parse(rawQueryPath)
	if err != nil {
		return nil, err
	}
	plan, err := search.Compile(resourceType, names, flat, q)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, plan.SQL, plan.Args...)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
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

	out := make([]docval.Doc, 0, len(ids))
	for _, id := range ids {
		switch {
		case plan.ShowAll:
			doc, err := s.Get(ctx, resourceType, id)
			if err != nil {
				return nil, err
			}
			out = append(out, doc)
		case len(plan.ShowFields) > 0:
			doc, err := s.Get(ctx, resourceType, id)
			if err != nil {
				return nil, err
			}
			projected := docval.Doc{"id": id}
			for _, f := range plan.ShowFields {
				if v, ok := doc[f]; ok {
					projected[f] = v
				}
			}
			out = append(out, projected)
		default:
			out = append(out, docval.Doc{"id": id})
		}
	}
	return out, nil
}
