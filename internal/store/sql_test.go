package store

import "testing"

func TestJoinComma(t *testing.T) {
	cases := []struct {
		in   []string
		want string
	}{
		{nil, ""},
		{[]string{"a"}, "a"},
		{[]string{"a", "b", "c"}, "a, b, c"},
	}
	for _, c := range cases {
		if got := joinComma(c.in); got != c.want {
			t.Fatalf("joinComma(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestQuoteIdent(t *testing.T) {
	if got := quoteIdent("orgs"); got != `"orgs"` {
		t.Fatalf("quoteIdent(orgs) = %q", got)
	}
	if got := quoteIdent(`wei"rd`); got != `"wei""rd"` {
		t.Fatalf("quoteIdent with embedded quote = %q", got)
	}
}

func TestOptionalUser(t *testing.T) {
	if optionalUser("") != nil {
		t.Fatalf("expected nil for empty user")
	}
	p := optionalUser("alice")
	if p == nil || *p != "alice" {
		t.Fatalf("expected pointer to alice, got %v", p)
	}
}
