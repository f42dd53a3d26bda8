package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jh125486/rubricscore/pkg/api"
	"github.com/jh125486/rubricscore/pkg/contextlog"
	mw "github.com/jh125486/rubricscore/pkg/middleware"
	"github.com/jh125486/rubricscore/pkg/rubrics"
	"github.com/jh125486/rubricscore/pkg/storage"
)

// brokenStorage fails every rubric load.
type brokenStorage struct {
	*storage.MemoryStorage
}

func (brokenStorage) LoadRubric(context.Context, string) (*rubrics.Definition, error) {
	return nil, errors.New("connection reset")
}

func TestKeepManualLocks(t *testing.T) {
	t.Parallel()

	def := &rubrics.Definition{
		AssignmentID: "a1",
		Rows: []rubrics.Row{
			{ID: "open", Kind: rubrics.RowNormal, Items: []rubrics.Item{{ID: "x", Points: 1}}},
			{ID: "kept", Kind: rubrics.RowNormal, Lock: rubrics.LockManual, Items: []rubrics.Item{{ID: "a", Points: 1}, {ID: "b", Points: 2}}},
			{ID: "dropped", Kind: rubrics.RowNormal, Lock: rubrics.LockManual, Items: []rubrics.Item{{ID: "y", Points: 1}}},
		},
	}
	stored := rubrics.NewResult("a1", "s1")
	stored.Selected["kept"] = rubrics.Selection{ItemID: "a"}

	in := rubrics.NewResult("a1", "s1")
	in.Selected["open"] = rubrics.Selection{ItemID: "x"}
	in.Selected["kept"] = rubrics.Selection{ItemID: "b"}
	in.Selected["dropped"] = rubrics.Selection{ItemID: "y"}

	got := keepManualLocks(def, in, stored)

	assert.Equal(t, map[string]rubrics.Selection{
		"open": {ItemID: "x"},
		"kept": {ItemID: "a"},
	}, got.Selected)
	assert.Len(t, in.Selected, 3, "input must not be modified")
}

func TestHTTPStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code connect.Code
		want int
	}{
		{code: connect.CodeNotFound, want: http.StatusNotFound},
		{code: connect.CodeInvalidArgument, want: http.StatusBadRequest},
		{code: connect.CodePermissionDenied, want: http.StatusForbidden},
		{code: connect.CodeInternal, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, httpStatus(connect.NewError(tt.code, errors.New("x"))))
		})
	}
}

func TestGetPaginationParams(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		query        string
		wantPage     int
		wantPageSize int
	}{
		{name: "defaults", query: "", wantPage: 1, wantPageSize: storage.DefaultPageSize},
		{name: "explicit", query: "?page=3&pageSize=5", wantPage: 3, wantPageSize: 5},
		{name: "garbage", query: "?page=abc&pageSize=-2", wantPage: 1, wantPageSize: storage.DefaultPageSize},
		{name: "capped", query: "?pageSize=1000", wantPage: 1, wantPageSize: storage.MaxPageSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			page, pageSize := getPaginationParams(httptest.NewRequest(http.MethodGet, "/assignments/a1"+tt.query, http.NoBody))
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantPageSize, pageSize)
		})
	}
}

func TestRubricServer_StorageFailure(t *testing.T) {
	t.Parallel()

	s := NewRubricServer(brokenStorage{storage.NewMemoryStorage()})
	ctx := contextlog.With(t.Context(), contextlog.DiscardLogger())

	_, err := s.GetRubric(ctx, connect.NewRequest(&api.GetRubricRequest{AssignmentID: "a1"}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeInternal, connect.CodeOf(err))
	assert.NotContains(t, err.Error(), "connection reset")
}

func TestRubricServer_ForeignSubmission(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStorage()
	ctx := contextlog.With(t.Context(), contextlog.DiscardLogger())
	for _, id := range []string{"a1", "a2"} {
		require.NoError(t, store.SaveRubric(ctx, &rubrics.Definition{
			AssignmentID: id,
			Rows:         []rubrics.Row{{ID: "R1", Kind: rubrics.RowNormal, Items: []rubrics.Item{{ID: "i", Points: 1}}}},
		}))
	}
	other := rubrics.NewResult("a2", "s1")
	require.NoError(t, store.SaveResult(ctx, &other))

	s := NewRubricServer(store)
	_, err := s.GetResult(ctx, connect.NewRequest(&api.GetResultRequest{AssignmentID: "a1", SubmissionID: "s1"}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))
}

func TestRequireEditor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		role    mw.Role
		wantErr bool
	}{
		{name: "unauthenticated", role: ""},
		{name: "grader", role: mw.RoleGrader},
		{name: "viewer", role: mw.RoleViewer, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := t.Context()
			if tt.role != "" {
				ctx = context.WithValue(ctx, mw.RoleKey, tt.role)
			}
			err := requireEditor(ctx)
			if tt.wantErr {
				assert.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}
