package layout

import "testing"

func TestChopLongName_LiteralVector(t *testing.T) {
	name := ""
	for i := 0; i < 10; i++ {
		name += "foo_bar_baz_"
	}
	got := ChopLongName(name, 18)
	want := "foo_bar_baz_a1325b"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestChopLongName_ShortNameUnchanged(t *testing.T) {
	if got := ChopLongName("orgs", 63); got != "orgs" {
		t.Fatalf("got %q, want orgs", got)
	}
}

func TestChopLongName_ExactlyMaxLen(t *testing.T) {
	name := make([]byte, MaxIdentifierLen)
	for i := range name {
		name[i] = 'a'
	}
	if got := ChopLongName(string(name), MaxIdentifierLen); got != string(name) {
		t.Fatalf("name at exactly maxLen should be unchanged, got %q", got)
	}
}

func TestForType_DerivesAllNames(t *testing.T) {
	n := ForType("org", []string{"photo"})
	if n.MainTable != "org" {
		t.Fatalf("MainTable = %q", n.MainTable)
	}
	if n.AuxTable != "org_aux" {
		t.Fatalf("AuxTable = %q", n.AuxTable)
	}
	if n.ChangesTable != "org_changes" {
		t.Fatalf("ChangesTable = %q", n.ChangesTable)
	}
	if n.DataSubpathCols["photo"] != "data_photo" {
		t.Fatalf("DataSubpathCols[photo] = %q", n.DataSubpathCols["photo"])
	}
}
