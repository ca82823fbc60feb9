package search

import (
	"strings"
	"testing"

	"github.com/qvarnd-io/qvarnd/internal/layout"
	"github.com/qvarnd-io/qvarnd/internal/schema"
)

func TestParse_ExactPair(t *testing.T) {
	q, err := Parse("exact/country/FI")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(q.Exact) != 1 || q.Exact[0].key != "country" || q.Exact[0].value != "FI" {
		t.Fatalf("unexpected exact predicates: %+v", q.Exact)
	}
}

func TestParse_ChainedOperators(t *testing.T) {
	q, err := Parse("exact/org_id_type/registration_number/exact/gov_org_id/1234567-9")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(q.Exact) != 2 {
		t.Fatalf("expected 2 exact predicates, got %d", len(q.Exact))
	}
}

func TestParse_UnknownOperator(t *testing.T) {
	if _, err := Parse("bogus/x/y"); err == nil {
		t.Fatalf("expected error for unknown operator")
	}
}

func TestParse_MissingArguments(t *testing.T) {
	if _, err := Parse("exact/country"); err == nil {
		t.Fatalf("expected error for missing argument")
	}
}

func TestParse_ShowAllAndPagination(t *testing.T) {
	q, err := Parse("show_all/offset/10/limit/5")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !q.ShowAll || q.Offset != 10 || q.Limit != 5 || !q.HasOffset || !q.HasLimit {
		t.Fatalf("unexpected query: %+v", q)
	}
}

func TestParse_EmptyPath(t *testing.T) {
	q, err := Parse("")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(q.Exact) != 0 || len(q.Joined) != 0 {
		t.Fatalf("expected empty query, got %+v", q)
	}
}

func TestCompile_ExactBuildsContainmentClause(t *testing.T) {
	names := layout.ForType("org", nil)
	q, _ := Parse("exact/country/FI")
	plan, err := Compile("org", names, schema.FlatFieldMap{}, q)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.Contains(plan.SQL, "@> $1::jsonb") {
		t.Fatalf("expected containment clause, got %s", plan.SQL)
	}
	if len(plan.Args) != 1 {
		t.Fatalf("expected 1 bound arg, got %d", len(plan.Args))
	}
}

func TestCompile_RangePredicateJoinsAux(t *testing.T) {
	names := layout.ForType("test", nil)
	flat := schema.FlatFieldMap{"integer": {{Type: schema.LeafInteger}}}
	q, _ := Parse("gt/integer/1")
	plan, err := Compile("test", names, flat, q)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.Contains(plan.SQL, "JOIN") {
		t.Fatalf("expected aux join, got %s", plan.SQL)
	}
	if len(plan.Args) != 1 {
		t.Fatalf("expected numeric arg bound, got %v", plan.Args)
	}
	if _, ok := plan.Args[0].(float64); !ok {
		t.Fatalf("expected numeric coercion, got %T", plan.Args[0])
	}
}

func TestCompile_StartswithLowercasesAndEscapesWildcards(t *testing.T) {
	names := layout.ForType("org", nil)
	q, _ := Parse("startswith/names/Kl")
	plan, err := Compile("org", names, schema.FlatFieldMap{}, q)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.Contains(plan.SQL, "lower(") {
		t.Fatalf("expected lower() wrap for collation lock, got %s", plan.SQL)
	}
	want := "kl%"
	if plan.Args[len(plan.Args)-1] != want {
		t.Fatalf("expected bound value %q, got %v", want, plan.Args[len(plan.Args)-1])
	}
}

func TestCompile_ShowProjectionCarried(t *testing.T) {
	names := layout.ForType("org", nil)
	q, _ := Parse("show/names")
	plan, err := Compile("org", names, schema.FlatFieldMap{}, q)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(plan.ShowFields) != 1 || plan.ShowFields[0] != "names" {
		t.Fatalf("expected show field names carried, got %v", plan.ShowFields)
	}
}

func TestCompile_DistinctByID(t *testing.T) {
	names := layout.ForType("org", nil)
	q, _ := Parse("contains/names/x")
	plan, err := Compile("org", names, schema.FlatFieldMap{}, q)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.Contains(plan.SQL, "DISTINCT") {
		t.Fatalf("expected DISTINCT to dedup multiplied aux rows, got %s", plan.SQL)
	}
}
