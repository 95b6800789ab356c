package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRewriteShortcutArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "no args",
			in:   []string{"jotline"},
			want: []string{"jotline"},
		},
		{
			name: "node id first token",
			in:   []string{"jotline", "nd-abc123"},
			want: []string{"jotline", "nodes", "show", "nd-abc123"},
		},
		{
			name: "date first token",
			in:   []string{"jotline", "2026-10-20"},
			want: []string{"jotline", "day", "2026-10-20"},
		},
		{
			name: "node id after value flag",
			in:   []string{"jotline", "--dir", "./tmp-test", "nd-abc123"},
			want: []string{"jotline", "--dir", "./tmp-test", "nodes", "show", "nd-abc123"},
		},
		{
			name: "date after today flag",
			in:   []string{"jotline", "--today", "2026-10-18", "2026-10-19"},
			want: []string{"jotline", "--today", "2026-10-18", "day", "2026-10-19"},
		},
		{
			name: "node id after equals flag",
			in:   []string{"jotline", "--format=text", "nd-abc123"},
			want: []string{"jotline", "--format=text", "nodes", "show", "nd-abc123"},
		},
		{
			name: "node id after bool flag",
			in:   []string{"jotline", "--pretty", "nd-abc123"},
			want: []string{"jotline", "--pretty", "nodes", "show", "nd-abc123"},
		},
		{
			name: "node id after double dash",
			in:   []string{"jotline", "--dir", "./tmp-test", "--", "nd-abc123"},
			want: []string{"jotline", "--dir", "./tmp-test", "--", "nodes", "show", "nd-abc123"},
		},
		{
			name: "normal subcommand not rewritten",
			in:   []string{"jotline", "nodes", "show", "nd-abc123"},
			want: []string{"jotline", "nodes", "show", "nd-abc123"},
		},
		{
			name: "unknown command not rewritten",
			in:   []string{"jotline", "wat"},
			want: []string{"jotline", "wat"},
		},
		{
			name: "bare prefix not rewritten",
			in:   []string{"jotline", "nd-"},
			want: []string{"jotline", "nd-"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := rewriteShortcutArgs(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("rewriteShortcutArgs (-want +got):\n%s", diff)
			}
		})
	}
}
