package httpx

import (
	"reflect"
	"testing"
)

func TestSplitPath(t *testing.T) {
	cases := map[string][]string{
		"":                nil,
		"/":               nil,
		"/persons":        {"persons"},
		"/persons/":       {"persons"},
		"/persons/abc123": {"persons", "abc123"},
		"/persons/abc/photo": {"persons", "abc", "photo"},
	}
	for path, want := range cases {
		got := splitPath(path)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("splitPath(%q) = %v, want %v", path, got, want)
		}
	}
}
