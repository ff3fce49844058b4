// Package pagemap converts between the compact range form of a batch page map
// and the per-page form used while editing.
package pagemap

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"smartcheck/internal/core/domain/models"
)

var (
	ErrMalformedSpan = errors.New("malformed page span")
	ErrGap           = errors.New("page map has a gap")
	ErrOverlap       = errors.New("page map has overlapping ranges")
)

// Expand emits one unit per page of every range, visiting ranges in ascending
// start order. Input is trusted: overlapping or missing pages are not detected.
func Expand(ranges []models.Range) []models.Unit {
	ordered := make([]models.Range, len(ranges))
	copy(ordered, ranges)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })

	total := 0
	for _, r := range ordered {
		if r.End >= r.Start {
			total += r.Len()
		}
	}

	units := make([]models.Unit, 0, total)
	for _, r := range ordered {
		for i := r.Start; i <= r.End; i++ {
			units = append(units, models.Unit{
				Index:    i,
				GroupID:  r.GroupID,
				Category: r.Category,
				Validity: r.Validity,
			})
		}
	}
	sort.SliceStable(units, func(i, j int) bool { return units[i].Index < units[j].Index })
	return units
}

// Collapse run-length encodes units into ranges. A range ends whenever any of
// group, category or validity changes, or the next index is not contiguous.
func Collapse(units []models.Unit) []models.Range {
	if len(units) == 0 {
		return nil
	}
	sorted := make([]models.Unit, len(units))
	copy(sorted, units)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	var out []models.Range
	open := openRange(sorted[0])
	for _, u := range sorted[1:] {
		if u.Index == open.End+1 && u.GroupID == open.GroupID && u.Category == open.Category && u.Validity == open.Validity {
			open.End = u.Index
			continue
		}
		out = append(out, open)
		open = openRange(u)
	}
	return append(out, open)
}

func openRange(u models.Unit) models.Range {
	return models.Range{
		Start:    u.Index,
		End:      u.Index,
		GroupID:  u.GroupID,
		Category: u.Category,
		Validity: u.Validity,
	}
}

// ParseSpan parses "start-end" or a single page number.
func ParseSpan(s string) (int, int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, fmt.Errorf("%w: empty", ErrMalformedSpan)
	}

	first, rest, isSpan := strings.Cut(s, "-")
	start, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedSpan, s)
	}
	end := start
	if isSpan {
		if end, err = strconv.Atoi(strings.TrimSpace(rest)); err != nil {
			return 0, 0, fmt.Errorf("%w: %q", ErrMalformedSpan, s)
		}
	}

	if start < 1 {
		return 0, 0, fmt.Errorf("%w: %q starts before page 1", ErrMalformedSpan, s)
	}
	if start > end {
		return 0, 0, fmt.Errorf("%w: %q ends before it starts", ErrMalformedSpan, s)
	}
	return start, end, nil
}

// FormatSpan renders a span the way the API stores it.
func FormatSpan(start, end int) string {
	if start == end {
		return strconv.Itoa(start)
	}
	return fmt.Sprintf("%d-%d", start, end)
}

// FromPageMap parses wire items into ranges. A missing deal id becomes Unassigned.
func FromPageMap(items []models.PageMapItem) ([]models.Range, error) {
	ranges := make([]models.Range, 0, len(items))
	for i, item := range items {
		start, end, err := ParseSpan(item.Range)
		if err != nil {
			return nil, fmt.Errorf("page map item %d: %w", i, err)
		}
		group := item.DealID
		if group == "" {
			group = models.Unassigned
		}
		ranges = append(ranges, models.Range{
			Start:    start,
			End:      end,
			GroupID:  group,
			Category: item.Type,
			Validity: item.Status,
		})
	}
	return ranges, nil
}

func ToPageMap(ranges []models.Range) []models.PageMapItem {
	items := make([]models.PageMapItem, 0, len(ranges))
	for _, r := range ranges {
		items = append(items, models.PageMapItem{
			Range:  FormatSpan(r.Start, r.End),
			DealID: r.GroupID,
			Type:   r.Category,
			Status: r.Validity,
		})
	}
	return items
}

// CheckCoverage verifies that ranges are ordered by start, do not overlap and
// cover every page from 1 to the last end exactly once.
func CheckCoverage(ranges []models.Range) error {
	next := 1
	for i, r := range ranges {
		if r.Start > r.End {
			return fmt.Errorf("%w: range %d", ErrMalformedSpan, i)
		}
		switch {
		case r.Start < next:
			return fmt.Errorf("%w: %s overlaps page %d", ErrOverlap, FormatSpan(r.Start, r.End), r.Start)
		case r.Start > next:
			return fmt.Errorf("%w: pages %s are not covered", ErrGap, FormatSpan(next, r.Start-1))
		}
		next = r.End + 1
	}
	return nil
}

// CountPages returns the number of pages whose validity is v.
func CountPages(ranges []models.Range, v models.Validity) int {
	n := 0
	for _, r := range ranges {
		if r.Validity == v && r.End >= r.Start {
			n += r.Len()
		}
	}
	return n
}

// TotalPages returns the highest page index covered by ranges.
func TotalPages(ranges []models.Range) int {
	last := 0
	for _, r := range ranges {
		if r.End > last {
			last = r.End
		}
	}
	return last
}
