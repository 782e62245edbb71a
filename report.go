package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
)

// renderReport formats validation findings grouped by severity plus a
// row-count summary table.
func renderReport(v *Validator) string {
	var b strings.Builder

	b.WriteString("=== Validation Report ===\n\n")

	for _, sev := range []string{SeverityError, SeverityWarning, SeverityInfo} {
		var group []ValidationIssue
		for _, i := range v.Issues {
			if i.Severity == sev {
				group = append(group, i)
			}
		}
		if len(group) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s (%d)\n", sev, len(group))
		for _, i := range group {
			b.WriteString("  " + i.String() + "\n")
		}
		b.WriteByte('\n')
	}

	if len(v.RowCounts) > 0 {
		b.WriteString("Row counts\n")
		tw := tabwriter.NewWriter(&b, 2, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  table\tsource\ttarget\tmatch")
		for _, rc := range v.RowCounts {
			match := "yes"
			if rc.Source != rc.Target {
				match = "NO"
			}
			fmt.Fprintf(tw, "  %s\t%d\t%d\t%s\n", rc.Table, rc.Source, rc.Target, match)
		}
		tw.Flush()
	}

	return b.String()
}
