package venues

import (
	"sort"
	"strings"
)

// Filter returns the records for which keep is true, preserving order.
func Filter(records []Record, keep func(Record) bool) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func Visible(records []Record) []Record {
	return Filter(records, Record.Visible)
}

func WithStatus(records []Record, s Status) []Record {
	return Filter(records, func(r Record) bool { return r.Status == s })
}

// Search matches names case-insensitively among visible records.
func Search(records []Record, text string, verifiedOnly bool) []Record {
	needle := strings.ToLower(strings.TrimSpace(text))
	return Filter(records, func(r Record) bool {
		if !r.Visible() {
			return false
		}
		if verifiedOnly && r.Status != StatusVerified {
			return false
		}
		return strings.Contains(strings.ToLower(r.Name), needle)
	})
}

// SortNewest orders records by creation time, newest first.
func SortNewest(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt > records[j].CreatedAt
	})
}
