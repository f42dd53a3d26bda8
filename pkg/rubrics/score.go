package rubrics

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ErrInvalidResult is matched by every *ValidationError.
var ErrInvalidResult = errors.New("invalid rubric result")

// ValidationError lists the problems that keep a result from being submitted.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "cannot submit rubric: " + strings.Join(e.Problems, "; ")
}

// Is makes errors.Is(err, ErrInvalidResult) hold.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidResult
}

// ClampMultiplier bounds m to [0, 1].
func ClampMultiplier(m float64) float64 {
	return min(max(m, 0), 1)
}

// DisplayPercentage is the progress shown for a continuous selection, 0 to 100.
func DisplayPercentage(sel Selection) float64 {
	if sel.Multiplier == nil {
		return 0
	}
	return ClampMultiplier(*sel.Multiplier) * 100
}

// RowPoints is the contribution of one row of res to the total.
func RowPoints(def *Definition, res Result, rowID string) float64 {
	row, ok := def.Row(rowID)
	if !ok {
		return 0
	}
	sel, ok := res.Selected[rowID]
	if !ok {
		return 0
	}
	return row.points(sel)
}

func (r *Row) points(sel Selection) float64 {
	it, ok := r.Item(sel.ItemID)
	if !ok {
		return 0
	}
	switch r.Kind {
	case RowNormal:
		return it.Points
	case RowContinuous:
		if sel.Multiplier == nil {
			return 0
		}
		return it.Points * ClampMultiplier(*sel.Multiplier)
	default:
		return 0
	}
}

// TotalPoints sums the contribution of every selected row. It is recomputed
// on each call and is not capped at the assignment's maximum grade.
func TotalPoints(res Result, def *Definition) float64 {
	total := 0.0
	for i := range def.Rows {
		row := &def.Rows[i]
		if sel, ok := res.Selected[row.ID]; ok {
			total += row.points(sel)
		}
	}
	return total
}

// ValidateForSubmit reports every reason res cannot be sent to the server.
func ValidateForSubmit(def *Definition, res Result) error {
	var problems []string

	ids := make([]string, 0, len(res.Selected))
	for id := range res.Selected {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		sel := res.Selected[id]
		row, ok := def.Row(id)
		if !ok {
			problems = append(problems, fmt.Sprintf("category %q does not exist", id))
			continue
		}
		if _, ok := row.Item(sel.ItemID); !ok {
			problems = append(problems, fmt.Sprintf("%s: item %q does not exist", row.label(), sel.ItemID))
			continue
		}
		switch row.Kind {
		case RowNormal:
			if sel.Multiplier != nil {
				problems = append(problems, fmt.Sprintf("%s: a multiplier is not allowed", row.label()))
			}
		case RowContinuous:
			if m := sel.Multiplier; m != nil && (math.IsNaN(*m) || *m < 0 || *m > 1) {
				problems = append(problems, fmt.Sprintf("%s: score must be between 0 and 100%%", row.label()))
			}
		}
	}

	if total := TotalPoints(res, def); math.IsNaN(total) || math.IsInf(total, 0) {
		problems = append(problems, "total points is not a number")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func (r *Row) label() string {
	if r.Header != "" {
		return r.Header
	}
	return r.ID
}
