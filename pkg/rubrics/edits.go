package rubrics

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type (
	// Edit is an uncommitted change to one row: either a clear marker or a
	// replacement selection.
	Edit struct {
		Clear     bool      `json:"clear,omitempty"`
		Selection Selection `json:"selection"`
	}

	// Edits maps row IDs to their uncommitted change.
	Edits map[string]Edit
)

// ClearEdit marks a row's selection for removal.
func ClearEdit() Edit {
	return Edit{Clear: true}
}

// SetEdit replaces a row's selection.
func SetEdit(sel Selection) Edit {
	return Edit{Selection: sel}
}

// Equal reports whether two edits have the same effect.
func (e Edit) Equal(o Edit) bool {
	if e.Clear || o.Clear {
		return e.Clear == o.Clear
	}
	return e.Selection.Equal(o.Selection)
}

// Clone returns a deep copy of e.
func (e Edits) Clone() Edits {
	out := make(Edits, len(e))
	for id, ed := range e {
		ed.Selection = ed.Selection.clone()
		out[id] = ed
	}
	return out
}

// WithLocalEdits returns server with edits applied on top. Clear markers
// remove a selection; other edits overwrite it, even for rows the server
// result never selected. server is not modified.
func WithLocalEdits(server Result, edits Edits) Result {
	out := server.Clone()
	for rowID, ed := range edits {
		if ed.Clear {
			delete(out.Selected, rowID)
			continue
		}
		out.Selected[rowID] = ed.Selection.clone()
	}
	return out
}

// ToggleItem selects itemID on a normal row, or deselects it when it is
// already the selection. Lock state is not consulted.
func ToggleItem(def *Definition, res Result, rowID, itemID string) (Result, error) {
	row, ok := def.Row(rowID)
	if !ok {
		return res, fmt.Errorf("%w: %s", ErrUnknownRow, rowID)
	}
	if row.Kind != RowNormal {
		return res, fmt.Errorf("%w: toggle on %s row %s", ErrKindMismatch, row.Kind, rowID)
	}
	if _, ok := row.Item(itemID); !ok {
		return res, fmt.Errorf("%w: %s in row %s", ErrUnknownItem, itemID, rowID)
	}

	out := res.Clone()
	if cur, ok := out.Selected[rowID]; ok && cur.ItemID == itemID {
		delete(out.Selected, rowID)
		return out, nil
	}
	out.Selected[rowID] = Selection{ItemID: itemID}
	return out, nil
}

// ParseMultiplier turns a percentage typed by a grader into a multiplier.
// Blank input yields (nil, true), meaning "clear". Malformed input yields
// (nil, false), meaning "keep the previous value". The result is the raw
// value divided by 100 and is not clamped.
func ParseMultiplier(raw string) (*float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, false
	}
	return Float(v / 100), true
}

// SetMultiplier applies raw percentage input to a continuous row. changed is
// false when the input was malformed and res is returned as-is.
func SetMultiplier(def *Definition, res Result, rowID, raw string) (out Result, changed bool, err error) {
	row, ok := def.Row(rowID)
	if !ok {
		return res, false, fmt.Errorf("%w: %s", ErrUnknownRow, rowID)
	}
	if row.Kind != RowContinuous {
		return res, false, fmt.Errorf("%w: multiplier on %s row %s", ErrKindMismatch, row.Kind, rowID)
	}

	m, ok := ParseMultiplier(raw)
	if !ok {
		return res, false, nil
	}

	out = res.Clone()
	if m == nil {
		delete(out.Selected, rowID)
		return out, true, nil
	}
	out.Selected[rowID] = Selection{ItemID: row.Items[0].ID, Multiplier: m}
	return out, true, nil
}

// EditFor returns the edit that turns the row's selection in res into the
// one in next.
func EditFor(next Result, rowID string) Edit {
	sel, ok := next.Selected[rowID]
	if !ok {
		return ClearEdit()
	}
	return SetEdit(sel.clone())
}
