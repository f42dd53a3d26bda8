package rubrics

import (
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// Render writes res scored against def as a table.
func Render(w io.Writer, def *Definition, res Result, policy Policy) {
	if w == nil {
		w = os.Stdout
	}
	// Category (left), Type (left), Selected (left), Awarded (right), Max (right), Lock (left)
	table := tablewriter.NewTable(w, tablewriter.WithConfig(tablewriter.Config{
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{
				PerColumn: []tw.Align{tw.AlignLeft, tw.AlignLeft, tw.AlignLeft, tw.AlignRight, tw.AlignRight, tw.AlignLeft},
			},
		},
	}))
	table.Header("Category", "Type", "Selected", "Awarded", "Max", "Lock")
	for i := range def.Rows {
		row := &def.Rows[i]
		awarded := fmt.Sprintf("%.2f", RowPoints(def, res, row.ID))
		maxPoints := fmt.Sprintf("%.2f", row.MaxPoints())
		_ = table.Append(row.label(), string(row.Kind), row.describe(res), awarded, maxPoints, policy.Message(row))
	}
	total := fmt.Sprintf("%.2f / %.2f", TotalPoints(res, def), def.MaxPoints())
	table.Footer(res.SubmissionID, "", "Total:", total, "", "")
	_ = table.Render()
}

func (r *Row) describe(res Result) string {
	sel, ok := res.Selected[r.ID]
	if !ok {
		return "-"
	}
	switch r.Kind {
	case RowContinuous:
		if sel.Multiplier == nil {
			return "-"
		}
		return fmt.Sprintf("%.0f%%", DisplayPercentage(sel))
	default:
		it, ok := r.Item(sel.ItemID)
		if !ok {
			return sel.ItemID
		}
		if it.Header == "" {
			return it.ID
		}
		return it.Header
	}
}
