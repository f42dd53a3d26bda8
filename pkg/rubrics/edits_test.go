package rubrics_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	r "github.com/jh125486/rubricscore/pkg/rubrics"
)

func TestWithLocalEdits(t *testing.T) {
	t.Parallel()

	server := func() r.Result {
		res := r.NewResult("a1", "s1")
		res.Selected["R1"] = r.Selection{ItemID: "i5"}
		res.Selected["R2"] = r.Selection{ItemID: "c20", Multiplier: r.Float(0.25)}
		return res
	}

	tests := []struct {
		name  string
		edits r.Edits
		want  map[string]r.Selection
	}{
		{
			name:  "no_edits",
			edits: r.Edits{},
			want: map[string]r.Selection{
				"R1": {ItemID: "i5"},
				"R2": {ItemID: "c20", Multiplier: r.Float(0.25)},
			},
		},
		{
			name:  "clear_marker_removes",
			edits: r.Edits{"R1": r.ClearEdit()},
			want: map[string]r.Selection{
				"R2": {ItemID: "c20", Multiplier: r.Float(0.25)},
			},
		},
		{
			name:  "overwrite",
			edits: r.Edits{"R1": r.SetEdit(r.Selection{ItemID: "i10"})},
			want: map[string]r.Selection{
				"R1": {ItemID: "i10"},
				"R2": {ItemID: "c20", Multiplier: r.Float(0.25)},
			},
		},
		{
			name:  "absent_row_is_added",
			edits: r.Edits{"R4": r.SetEdit(r.Selection{ItemID: "late"})},
			want: map[string]r.Selection{
				"R1": {ItemID: "i5"},
				"R2": {ItemID: "c20", Multiplier: r.Float(0.25)},
				"R4": {ItemID: "late"},
			},
		},
		{
			name:  "clear_absent_row",
			edits: r.Edits{"R9": r.ClearEdit()},
			want: map[string]r.Selection{
				"R1": {ItemID: "i5"},
				"R2": {ItemID: "c20", Multiplier: r.Float(0.25)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			in := server()
			before := in.Clone()

			once := r.WithLocalEdits(in, tt.edits)
			twice := r.WithLocalEdits(in, tt.edits)

			if diff := cmp.Diff(tt.want, once.Selected); diff != "" {
				t.Fatalf("WithLocalEdits() mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(once, twice); diff != "" {
				t.Fatalf("WithLocalEdits() not repeatable (-first +second):\n%s", diff)
			}
			if diff := cmp.Diff(before, in); diff != "" {
				t.Fatalf("server result mutated (-before +after):\n%s", diff)
			}
		})
	}
}

func TestToggleItem(t *testing.T) {
	t.Parallel()

	def := sampleDefinition()

	t.Run("select_then_deselect", func(t *testing.T) {
		t.Parallel()

		start := r.NewResult("a1", "s1")
		assert.InDelta(t, 0.0, r.TotalPoints(start, def), 1e-9)

		selected, err := r.ToggleItem(def, start, "R1", "i10")
		require.NoError(t, err)
		assert.Equal(t, r.Selection{ItemID: "i10"}, selected.Selected["R1"])
		assert.InDelta(t, 10.0, r.TotalPoints(selected, def), 1e-9)

		cleared, err := r.ToggleItem(def, selected, "R1", "i10")
		require.NoError(t, err)
		assert.NotContains(t, cleared.Selected, "R1")
		assert.InDelta(t, 0.0, r.TotalPoints(cleared, def), 1e-9)
		assert.Empty(t, start.Selected, "input must not be mutated")
	})

	t.Run("replaces_other_item", func(t *testing.T) {
		t.Parallel()

		start := r.NewResult("a1", "s1")
		start.Selected["R1"] = r.Selection{ItemID: "i5"}
		got, err := r.ToggleItem(def, start, "R1", "i10")
		require.NoError(t, err)
		assert.Equal(t, "i10", got.Selected["R1"].ItemID)
	})

	t.Run("locked_row_is_not_checked", func(t *testing.T) {
		t.Parallel()

		got, err := r.ToggleItem(def, r.NewResult("a1", "s1"), "R4", "late")
		require.NoError(t, err)
		assert.Equal(t, "late", got.Selected["R4"].ItemID)
	})

	errTests := []struct {
		name   string
		rowID  string
		itemID string
		want   error
	}{
		{name: "continuous_row", rowID: "R2", itemID: "c20", want: r.ErrKindMismatch},
		{name: "unknown_row", rowID: "nope", itemID: "i5", want: r.ErrUnknownRow},
		{name: "unknown_item", rowID: "R1", itemID: "nope", want: r.ErrUnknownItem},
	}
	for _, tt := range errTests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			start := r.NewResult("a1", "s1")
			got, err := r.ToggleItem(def, start, tt.rowID, tt.itemID)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Empty(t, got.Selected)
		})
	}
}

func TestParseMultiplier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw    string
		want   *float64
		wantOK bool
	}{
		{raw: "", want: nil, wantOK: true},
		{raw: "   ", want: nil, wantOK: true},
		{raw: "50", want: r.Float(0.5), wantOK: true},
		{raw: " 75 ", want: r.Float(0.75), wantOK: true},
		{raw: "150", want: r.Float(1.5), wantOK: true},
		{raw: "-25", want: r.Float(-0.25), wantOK: true},
		{raw: "12.5", want: r.Float(0.125), wantOK: true},
		{raw: "abc", want: nil, wantOK: false},
		{raw: "5o", want: nil, wantOK: false},
		{raw: "NaN", want: nil, wantOK: false},
		{raw: "Inf", want: nil, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			got, ok := r.ParseMultiplier(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("ParseMultiplier(%q) mismatch (-want +got):\n%s", tt.raw, diff)
			}
		})
	}
}

func TestSetMultiplier(t *testing.T) {
	t.Parallel()

	def := sampleDefinition()
	prior := r.NewResult("a1", "s1")
	prior.Selected["R2"] = r.Selection{ItemID: "c20", Multiplier: r.Float(0.3)}

	tests := []struct {
		name        string
		raw         string
		wantChanged bool
		want        *r.Selection
		wantPoints  float64
	}{
		{name: "fifty_percent", raw: "50", wantChanged: true, want: &r.Selection{ItemID: "c20", Multiplier: r.Float(0.5)}, wantPoints: 10},
		{name: "over_range_kept_raw", raw: "150", wantChanged: true, want: &r.Selection{ItemID: "c20", Multiplier: r.Float(1.5)}, wantPoints: 20},
		{name: "under_range_kept_raw", raw: "-10", wantChanged: true, want: &r.Selection{ItemID: "c20", Multiplier: r.Float(-0.1)}, wantPoints: 0},
		{name: "blank_clears", raw: "", wantChanged: true, want: nil, wantPoints: 0},
		{name: "malformed_keeps_prior", raw: "fifty", wantChanged: false, want: &r.Selection{ItemID: "c20", Multiplier: r.Float(0.3)}, wantPoints: 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, changed, err := r.SetMultiplier(def, prior, "R2", tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.wantChanged, changed)

			sel, ok := got.Selected["R2"]
			if tt.want == nil {
				assert.False(t, ok, "selection should be cleared")
			} else if diff := cmp.Diff(*tt.want, sel); diff != "" {
				t.Fatalf("selection mismatch (-want +got):\n%s", diff)
			}
			assert.InDelta(t, tt.wantPoints, r.TotalPoints(got, def), 1e-9)
			assert.InDelta(t, 0.3, *prior.Selected["R2"].Multiplier, 1e-9, "prior must not be mutated")
		})
	}

	t.Run("normal_row_rejected", func(t *testing.T) {
		t.Parallel()
		_, _, err := r.SetMultiplier(def, prior, "R1", "50")
		assert.ErrorIs(t, err, r.ErrKindMismatch)
	})

	t.Run("unknown_row_rejected", func(t *testing.T) {
		t.Parallel()
		_, _, err := r.SetMultiplier(def, prior, "missing", "50")
		assert.ErrorIs(t, err, r.ErrUnknownRow)
	})
}

func TestEditFor(t *testing.T) {
	t.Parallel()

	res := r.NewResult("a1", "s1")
	res.Selected["R1"] = r.Selection{ItemID: "i5"}

	assert.Equal(t, r.SetEdit(r.Selection{ItemID: "i5"}), r.EditFor(res, "R1"))
	assert.Equal(t, r.ClearEdit(), r.EditFor(res, "R2"))
}
