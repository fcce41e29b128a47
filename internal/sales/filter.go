package sales

import (
	"github.com/vendaops/console/internal/csvio"
	"github.com/vendaops/console/internal/mapping"
)

// IsPaid reports whether the row's status cell equals the mapping's paid
// sentinel. Exact string equality after trimming: a case mismatch is a true
// negative, which is why callers surface DistinctStatuses when nothing
// passes.
func IsPaid(row csvio.Row, m mapping.ColumnMapping) bool {
	return safeString(row[m.Status]) == m.StatusFilter
}

// FilterPaid keeps the rows matching the paid sentinel, preserving file
// order, and reports how many were dropped.
func FilterPaid(rows []csvio.Row, m mapping.ColumnMapping) (paid []csvio.Row, filtered int) {
	for _, row := range rows {
		if IsPaid(row, m) {
			paid = append(paid, row)
		} else {
			filtered++
		}
	}
	return paid, filtered
}

// DistinctStatuses lists the distinct values seen in the status column, in
// first-appearance order. Shown to the operator when the filter matches zero
// rows, so a sentinel typo ("aprovado" vs "Aprovado") is diagnosable.
func DistinctStatuses(rows []csvio.Row, m mapping.ColumnMapping) []string {
	seen := make(map[string]bool)
	var out []string
	for _, row := range rows {
		status := safeString(row[m.Status])
		if status == "" || seen[status] {
			continue
		}
		seen[status] = true
		out = append(out, status)
	}
	return out
}
