package notify

import "testing"

func TestQuoteIdent(t *testing.T) {
	if got := quoteIdent("org_changes"); got != `"org_changes"` {
		t.Fatalf("quoteIdent = %q", got)
	}
	if got := quoteIdent(`a"b`); got != `"a""b"` {
		t.Fatalf("quoteIdent with embedded quote = %q", got)
	}
}
