package models

// Validity is the review state of a page or page range.
type Validity string

const (
	ValidityIgnored Validity = "ignored"
	ValidityValid   Validity = "valid"
	ValidityError   Validity = "error"
)

// Valid reports whether v is one of the known validity values.
func (v Validity) Valid() bool {
	switch v {
	case ValidityIgnored, ValidityValid, ValidityError:
		return true
	}
	return false
}

const (
	// Unassigned is the group id of pages not belonging to any deal.
	Unassigned = "Unassigned"

	CategoryDeal   = "Deal"
	CategoryOrphan = "Orphan"
	CategoryCover  = "Cover"
)

// Unit is a single page of a scanned batch. Index is 1-based.
type Unit struct {
	Index    int      `json:"index" yaml:"index"`
	GroupID  string   `json:"group_id" yaml:"group_id"`
	Category string   `json:"category" yaml:"category"`
	Validity Validity `json:"validity" yaml:"validity"`
}

// SameAttributes reports whether u and o share group, category and validity.
func (u Unit) SameAttributes(o Unit) bool {
	return u.GroupID == o.GroupID && u.Category == o.Category && u.Validity == o.Validity
}

// Range is a run of consecutive pages sharing group, category and validity.
// Start and End are inclusive.
type Range struct {
	Start    int      `json:"start" yaml:"start"`
	End      int      `json:"end" yaml:"end"`
	GroupID  string   `json:"group_id" yaml:"group_id"`
	Category string   `json:"category" yaml:"category"`
	Validity Validity `json:"validity" yaml:"validity"`
}

// Len returns the number of pages covered by r.
func (r Range) Len() int {
	return r.End - r.Start + 1
}

// PageMapItem is the wire form of a Range as stored on a DocumentBatch.
// Range is either "start-end" or a single page number.
type PageMapItem struct {
	Range  string   `json:"range" yaml:"range"`
	DealID string   `json:"deal_id" yaml:"deal_id"`
	Type   string   `json:"type" yaml:"type"`
	Status Validity `json:"status" yaml:"status"`
}
