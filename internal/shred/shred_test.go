package shred

import "testing"

func TestContainment_LowercasesStrings(t *testing.T) {
	data := map[string]any{"country": "FI", "names": []any{"Company 1", "The Company"}}
	got := Containment(data, nil)
	found := map[string]bool{}
	for _, obj := range got {
		for k, v := range obj {
			if s, ok := v.(string); ok {
				found[k+"="+s] = true
			}
		}
	}
	if !found["country=fi"] {
		t.Fatalf("expected lowercased country leaf, got %v", got)
	}
	if !found["names=company 1"] || !found["names=the company"] {
		t.Fatalf("expected lowercased names leaves, got %v", got)
	}
}

func TestLists_PreservesSiblingCooccurrence(t *testing.T) {
	data := map[string]any{
		"gov_org_ids": []any{
			map[string]any{"country": "FI", "org_id_type": "registration_number", "gov_org_id": "1234567-8"},
			map[string]any{"country": "SE", "org_id_type": "registration_number", "gov_org_id": "5555555-5"},
		},
	}
	rows := Lists(data)
	if len(rows) < 2 {
		t.Fatalf("expected at least 2 aux rows, got %d: %v", len(rows), rows)
	}
	foundFI := false
	foundSE := false
	for _, row := range rows {
		if row["country"] == "fi" && row["gov_org_id"] == "1234567-8" {
			foundFI = true
		}
		if row["country"] == "se" && row["gov_org_id"] == "5555555-5" {
			foundSE = true
		}
	}
	if !foundFI || !foundSE {
		t.Fatalf("expected sibling fields co-located per list element, got rows=%v", rows)
	}
}

func TestLists_EmptyDocumentProducesNoRows(t *testing.T) {
	if rows := Lists(map[string]any{}); len(rows) != 0 {
		t.Fatalf("expected no rows for empty doc, got %v", rows)
	}
}
