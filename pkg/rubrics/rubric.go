package rubrics

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

type (
	// RowKind distinguishes discrete-choice rows from percentage-scored rows.
	RowKind string

	// LockKind describes why a row cannot be edited manually.
	LockKind string

	// Definition is the rubric of one assignment. It is read-only once loaded;
	// editing a rubric produces a new Definition.
	Definition struct {
		AssignmentID string `json:"assignment_id" yaml:"assignment_id"`
		Rows         []Row  `json:"rows"          yaml:"rows"`
	}

	// Row is a single scoring category.
	Row struct {
		ID          string   `json:"id"                    yaml:"id"`
		Header      string   `json:"header"                yaml:"header"`
		Description string   `json:"description,omitempty" yaml:"description,omitempty"`
		Kind        RowKind  `json:"type"                  yaml:"type"`
		Items       []Item   `json:"items"                 yaml:"items"`
		Lock        LockKind `json:"locked,omitempty"      yaml:"locked,omitempty"`
	}

	// Item is one choosable level of a row.
	Item struct {
		ID          string  `json:"id"                    yaml:"id"`
		Points      float64 `json:"points"                yaml:"points"`
		Header      string  `json:"header"                yaml:"header"`
		Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	}

	// Selection is the scored state of one row. Continuous rows carry their
	// single item's ID and a multiplier; normal rows carry no multiplier.
	Selection struct {
		ItemID     string   `json:"item_id"              yaml:"item_id"`
		Multiplier *float64 `json:"multiplier,omitempty" yaml:"multiplier,omitempty"`
	}

	// Result is the scoring state of one submission, keyed by row ID.
	Result struct {
		SubmissionID string               `json:"submission_id"           yaml:"submission_id"`
		AssignmentID string               `json:"assignment_id,omitempty" yaml:"assignment_id,omitempty"`
		Selected     map[string]Selection `json:"selected"                yaml:"selected"`
		UpdatedAt    time.Time            `json:"updated_at,omitzero"     yaml:"updated_at,omitempty"`
	}
)

const (
	RowNormal     RowKind = "normal"
	RowContinuous RowKind = "continuous"

	Unlocked     LockKind = ""
	LockManual   LockKind = "manual"
	LockAutoTest LockKind = "auto_test"
)

var (
	// ErrKindMismatch is returned when a row operation is called on the wrong row kind.
	ErrKindMismatch = errors.New("operation not valid for row kind")
	// ErrUnknownRow is returned when a row ID is not part of the definition.
	ErrUnknownRow = errors.New("unknown rubric row")
	// ErrUnknownItem is returned when an item ID is not part of its row.
	ErrUnknownItem = errors.New("unknown rubric item")
	// ErrInvalidDefinition wraps every definition validation failure.
	ErrInvalidDefinition = errors.New("invalid rubric definition")
)

// Float returns a pointer to v, for building multipliers.
func Float(v float64) *float64 {
	return &v
}

// NewResult returns an empty Result for the given submission.
func NewResult(assignmentID, submissionID string) Result {
	return Result{
		SubmissionID: submissionID,
		AssignmentID: assignmentID,
		Selected:     make(map[string]Selection),
	}
}

// Clone returns a deep copy of r.
func (r Result) Clone() Result {
	out := r
	out.Selected = make(map[string]Selection, len(r.Selected))
	for id, sel := range r.Selected {
		out.Selected[id] = sel.clone()
	}
	return out
}

// Clone returns a deep copy of d.
func (d *Definition) Clone() *Definition {
	out := &Definition{AssignmentID: d.AssignmentID, Rows: make([]Row, len(d.Rows))}
	for i, row := range d.Rows {
		row.Items = slices.Clone(row.Items)
		out.Rows[i] = row
	}
	return out
}

func (s Selection) clone() Selection {
	if s.Multiplier != nil {
		s.Multiplier = Float(*s.Multiplier)
	}
	return s
}

// Equal reports whether two selections pick the same item with the same multiplier.
func (s Selection) Equal(o Selection) bool {
	if s.ItemID != o.ItemID {
		return false
	}
	if s.Multiplier == nil || o.Multiplier == nil {
		return s.Multiplier == nil && o.Multiplier == nil
	}
	return *s.Multiplier == *o.Multiplier
}

// Row returns the row with the given ID.
func (d *Definition) Row(id string) (*Row, bool) {
	for i := range d.Rows {
		if d.Rows[i].ID == id {
			return &d.Rows[i], true
		}
	}
	return nil, false
}

// MaxPoints is the sum of every row's maximum.
func (d *Definition) MaxPoints() float64 {
	sum := 0.0
	for i := range d.Rows {
		sum += d.Rows[i].MaxPoints()
	}
	return sum
}

// Validate checks the structural invariants of the definition.
func (d *Definition) Validate() error {
	seen := make(map[string]struct{}, len(d.Rows))
	for i := range d.Rows {
		row := &d.Rows[i]
		if row.ID == "" {
			return fmt.Errorf("%w: row %d has no id", ErrInvalidDefinition, i)
		}
		if _, dup := seen[row.ID]; dup {
			return fmt.Errorf("%w: duplicate row id %q", ErrInvalidDefinition, row.ID)
		}
		seen[row.ID] = struct{}{}
		if err := row.validate(); err != nil {
			return fmt.Errorf("%w: row %q: %w", ErrInvalidDefinition, row.ID, err)
		}
	}
	return nil
}

func (r *Row) validate() error {
	switch r.Lock {
	case Unlocked, LockManual, LockAutoTest:
	default:
		return fmt.Errorf("unknown lock %q", r.Lock)
	}

	switch r.Kind {
	case RowNormal:
		if len(r.Items) == 0 {
			return errors.New("normal row needs at least one item")
		}
	case RowContinuous:
		if len(r.Items) != 1 {
			return fmt.Errorf("continuous row needs exactly one item, has %d", len(r.Items))
		}
	default:
		return fmt.Errorf("unknown row type %q", r.Kind)
	}

	items := make(map[string]struct{}, len(r.Items))
	for _, it := range r.Items {
		if _, dup := items[it.ID]; dup {
			return fmt.Errorf("duplicate item id %q", it.ID)
		}
		items[it.ID] = struct{}{}
	}
	return nil
}

// Item returns the item with the given ID.
func (r *Row) Item(id string) (Item, bool) {
	for _, it := range r.Items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// MaxPoints returns the highest points any selection in this row can earn.
func (r *Row) MaxPoints() float64 {
	if len(r.Items) == 0 {
		return 0
	}
	best := r.Items[0].Points
	for _, it := range r.Items[1:] {
		best = max(best, it.Points)
	}
	return best
}
