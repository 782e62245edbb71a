package main

// indexUnsupportedReason reports why an MSSQL index cannot be recreated as
// a plain PostgreSQL btree index, or "" when it can. CLUSTERED loses its
// physical-ordering meaning but is still a valid btree; everything else
// (XML, SPATIAL, columnstore, fulltext) has no direct equivalent.
func indexUnsupportedReason(idx *Index) string {
	switch idx.Type {
	case "CLUSTERED", "NONCLUSTERED", "":
	default:
		return "index type " + idx.Type + " has no PostgreSQL equivalent"
	}
	if idx.HasFilter {
		return "filtered index predicate is not carried over"
	}
	if len(idx.Columns) == 0 {
		return "index has no key columns"
	}
	return ""
}
