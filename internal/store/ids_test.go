package store

import (
	"strings"
	"testing"
)

func TestNewID_PrefixAndUniqueness(t *testing.T) {
	t.Parallel()

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		id := NewID("nd")
		if !strings.HasPrefix(id, "nd-") || len(id) != len("nd-")+36 {
			t.Fatalf("unexpected id shape %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
	if id := NewID(""); len(id) != 36 {
		t.Fatalf("unexpected bare id %q", id)
	}
}

func TestSlugify(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Work":              "work",
		"  Side Projects! ": "side-projects",
		"a--b__c":           "a-b-c",
		"***":               "",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Fatalf("Slugify(%q)=%q want %q", in, got, want)
		}
	}
}
