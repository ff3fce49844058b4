// Package splitting implements the interactive page-to-deal grouping of a batch.
package splitting

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"smartcheck/internal/core/domain/models"
	"smartcheck/internal/core/pagemap"
)

// ErrInvalidOperation is returned for actions that cannot apply to the current
// selection. The editor state is left untouched.
var ErrInvalidOperation = errors.New("invalid operation")

// IDGenerator returns candidate ids for new groups. Candidates already in use
// are discarded and a new one is requested.
type IDGenerator func() string

const maxIDAttempts = 64

// DefaultIDGenerator derives DEAL_XXXXXXXX ids from random UUIDs.
func DefaultIDGenerator() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "DEAL_" + strings.ToUpper(id[:8])
}

type Option func(*Editor)

func WithIDGenerator(gen IDGenerator) Option {
	return func(e *Editor) {
		if gen != nil {
			e.newID = gen
		}
	}
}

// Draft is the serializable state of an editor.
type Draft struct {
	Units     []models.Unit `json:"units"`
	Selection []int         `json:"selection"`
	Filter    string        `json:"filter,omitempty"`
}

// Editor holds the per-page form of one batch plus the pending selection.
// It is not safe for concurrent use.
type Editor struct {
	units     []models.Unit
	position  map[int]int
	selection map[int]struct{}
	filter    string
	newID     IDGenerator
}

// NewEditor copies units and orders them by page index.
func NewEditor(units []models.Unit, opts ...Option) *Editor {
	e := &Editor{
		units:     make([]models.Unit, len(units)),
		selection: make(map[int]struct{}),
		newID:     DefaultIDGenerator,
	}
	copy(e.units, units)
	sort.SliceStable(e.units, func(i, j int) bool { return e.units[i].Index < e.units[j].Index })
	e.reindex()

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FromRanges expands a page map into an editor.
func FromRanges(ranges []models.Range, opts ...Option) *Editor {
	return NewEditor(pagemap.Expand(ranges), opts...)
}

// Restore rebuilds an editor from a draft. Selected pages that are no longer
// part of the document are dropped.
func Restore(d Draft, opts ...Option) *Editor {
	e := NewEditor(d.Units, opts...)
	for _, idx := range d.Selection {
		if _, ok := e.position[idx]; ok {
			e.selection[idx] = struct{}{}
		}
	}
	e.filter = d.Filter
	return e
}

func (e *Editor) reindex() {
	e.position = make(map[int]int, len(e.units))
	for i, u := range e.units {
		e.position[u.Index] = i
	}
}

// Draft snapshots the editor.
func (e *Editor) Draft() Draft {
	return Draft{
		Units:     e.Units(),
		Selection: e.Selection(),
		Filter:    e.filter,
	}
}

// Units returns a copy of all pages ordered by index.
func (e *Editor) Units() []models.Unit {
	out := make([]models.Unit, len(e.units))
	copy(out, e.units)
	return out
}

// ToggleSelection adds index to the selection if absent and removes it otherwise.
func (e *Editor) ToggleSelection(index int) error {
	if _, ok := e.position[index]; !ok {
		return fmt.Errorf("page %d is not part of the document: %w", index, ErrInvalidOperation)
	}
	if _, ok := e.selection[index]; ok {
		delete(e.selection, index)
		return nil
	}
	e.selection[index] = struct{}{}
	return nil
}

func (e *Editor) ClearSelection() {
	e.selection = make(map[int]struct{})
}

// Selection returns the selected page indices in ascending order.
func (e *Editor) Selection() []int {
	out := make([]int, 0, len(e.selection))
	for idx := range e.selection {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

func (e *Editor) IsSelected(index int) bool {
	_, ok := e.selection[index]
	return ok
}

// CreateGroup moves the selected pages into a new deal and returns its id.
func (e *Editor) CreateGroup() (string, error) {
	if len(e.selection) == 0 {
		return "", fmt.Errorf("create group with empty selection: %w", ErrInvalidOperation)
	}

	id, err := e.uniqueID()
	if err != nil {
		return "", err
	}
	e.assignSelection(id)
	return id, nil
}

// AssignToGroup moves the selected pages into an existing deal.
func (e *Editor) AssignToGroup(groupID string) error {
	if len(e.selection) == 0 {
		return fmt.Errorf("assign to %q with empty selection: %w", groupID, ErrInvalidOperation)
	}
	if !e.HasGroup(groupID) {
		return fmt.Errorf("group %q does not exist: %w", groupID, ErrInvalidOperation)
	}
	e.assignSelection(groupID)
	return nil
}

func (e *Editor) assignSelection(groupID string) {
	for idx := range e.selection {
		u := &e.units[e.position[idx]]
		u.GroupID = groupID
		u.Category = models.CategoryDeal
		u.Validity = models.ValidityValid
	}
	e.ClearSelection()
}

func (e *Editor) uniqueID() (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := e.newID()
		if id != "" && id != models.Unassigned && !e.HasGroup(id) {
			return id, nil
		}
	}
	return "", fmt.Errorf("no unused group id after %d attempts: %w", maxIDAttempts, ErrInvalidOperation)
}

// HasGroup reports whether any page references groupID.
func (e *Editor) HasGroup(groupID string) bool {
	for _, u := range e.units {
		if u.GroupID == groupID {
			return true
		}
	}
	return false
}

// Groups lists the deal ids referenced by at least one page, sorted,
// excluding Unassigned.
func (e *Editor) Groups() []string {
	seen := make(map[string]struct{})
	for _, u := range e.units {
		if u.GroupID != models.Unassigned {
			seen[u.GroupID] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// GroupSize returns the number of pages in groupID.
func (e *Editor) GroupSize(groupID string) int {
	n := 0
	for _, u := range e.units {
		if u.GroupID == groupID {
			n++
		}
	}
	return n
}

// SetFilter restricts Visible to one group. It does not affect editing.
func (e *Editor) SetFilter(groupID string) {
	e.filter = groupID
}

func (e *Editor) ClearFilter() {
	e.filter = ""
}

func (e *Editor) Filter() string {
	return e.filter
}

// Visible returns the pages matching the active filter.
func (e *Editor) Visible() []models.Unit {
	if e.filter == "" {
		return e.Units()
	}
	var out []models.Unit
	for _, u := range e.units {
		if u.GroupID == e.filter {
			out = append(out, u)
		}
	}
	return out
}

// Save returns the range form of the current pages. The editor is not modified.
func (e *Editor) Save() []models.Range {
	return pagemap.Collapse(e.units)
}
