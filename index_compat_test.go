package main

import "testing"

func TestIndexUnsupportedReason(t *testing.T) {
	tests := []struct {
		idx  Index
		want bool // true when a reason is expected
	}{
		{Index{Type: "NONCLUSTERED", Columns: []string{"a"}}, false},
		{Index{Type: "CLUSTERED", Columns: []string{"a"}}, false},
		{Index{Type: "XML", Columns: []string{"a"}}, true},
		{Index{Type: "SPATIAL", Columns: []string{"a"}}, true},
		{Index{Type: "NONCLUSTERED COLUMNSTORE", Columns: []string{"a"}}, true},
		{Index{Type: "NONCLUSTERED", Columns: []string{"a"}, HasFilter: true}, true},
		{Index{Type: "NONCLUSTERED"}, true}, // no key columns
	}
	for _, tt := range tests {
		reason := indexUnsupportedReason(&tt.idx)
		if (reason != "") != tt.want {
			t.Errorf("indexUnsupportedReason(%+v) = %q, want reason=%v", tt.idx, reason, tt.want)
		}
	}
}
