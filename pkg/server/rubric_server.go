package server

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"connectrpc.com/connect"

	"github.com/jh125486/rubricscore/pkg/api"
	"github.com/jh125486/rubricscore/pkg/contextlog"
	mw "github.com/jh125486/rubricscore/pkg/middleware"
	"github.com/jh125486/rubricscore/pkg/rubrics"
	"github.com/jh125486/rubricscore/pkg/storage"
)

// RubricServer implements the RubricService with persistent storage
type RubricServer struct {
	storage storage.Storage
	now     func() time.Time
}

var _ api.RubricServiceHandler = (*RubricServer)(nil)

// NewRubricServer creates a new RubricServer with persistent storage
func NewRubricServer(stor storage.Storage) *RubricServer {
	return &RubricServer{storage: stor, now: time.Now}
}

// GetRubric returns the rubric of an assignment.
func (s *RubricServer) GetRubric(
	ctx context.Context,
	req *connect.Request[api.GetRubricRequest],
) (*connect.Response[api.GetRubricResponse], error) {
	def, err := s.loadRubric(ctx, req.Msg.AssignmentID)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&api.GetRubricResponse{
		Definition: *def,
		MaxPoints:  def.MaxPoints(),
	}), nil
}

// PutRubric stores a rubric after validating it.
func (s *RubricServer) PutRubric(
	ctx context.Context,
	req *connect.Request[api.PutRubricRequest],
) (*connect.Response[api.PutRubricResponse], error) {
	if err := requireEditor(ctx); err != nil {
		return nil, err
	}
	def := req.Msg.Definition
	if def.AssignmentID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("assignment_id is required"))
	}
	if err := def.Validate(); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if err := s.storage.SaveRubric(ctx, &def); err != nil {
		return nil, internal(ctx, "Failed to save rubric", err, slog.String("assignment_id", def.AssignmentID))
	}

	contextlog.From(ctx).InfoContext(ctx, "Stored rubric",
		slog.String("assignment_id", def.AssignmentID),
		slog.Int("rows", len(def.Rows)),
	)
	return connect.NewResponse(&api.PutRubricResponse{
		AssignmentID: def.AssignmentID,
		MaxPoints:    def.MaxPoints(),
	}), nil
}

// GetResult returns the stored result of a submission. A submission that was
// never scored yields an empty result.
func (s *RubricServer) GetResult(
	ctx context.Context,
	req *connect.Request[api.GetResultRequest],
) (*connect.Response[api.GetResultResponse], error) {
	msg := req.Msg
	if msg.SubmissionID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("submission_id is required"))
	}
	def, err := s.loadRubric(ctx, msg.AssignmentID)
	if err != nil {
		return nil, err
	}
	res, err := s.loadResult(ctx, msg.AssignmentID, msg.SubmissionID)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&api.GetResultResponse{
		Result:      res,
		TotalPoints: rubrics.TotalPoints(res, def),
	}), nil
}

// PatchResult replaces the stored result of a submission. Manually locked
// rows keep their stored value and auto-test rows take the latest run, so
// callers cannot score rows they are not allowed to edit.
func (s *RubricServer) PatchResult(
	ctx context.Context,
	req *connect.Request[api.PatchResultRequest],
) (*connect.Response[api.PatchResultResponse], error) {
	if err := requireEditor(ctx); err != nil {
		return nil, err
	}
	in := req.Msg.Result
	if in.SubmissionID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("submission_id is required"))
	}
	def, err := s.loadRubric(ctx, in.AssignmentID)
	if err != nil {
		return nil, err
	}
	stored, err := s.loadResult(ctx, def.AssignmentID, in.SubmissionID)
	if err != nil {
		return nil, err
	}
	overlay, err := s.overlay(ctx, def.AssignmentID, in.SubmissionID)
	if err != nil {
		return nil, err
	}

	res := keepManualLocks(def, in, stored)
	res = overlay.Apply(def, res)
	res.AssignmentID = def.AssignmentID
	if err := rubrics.ValidateForSubmit(def, res); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	res.UpdatedAt = s.now().UTC()

	if err := s.storage.SaveResult(ctx, &res); err != nil {
		return nil, internal(ctx, "Failed to save result to storage", err, slog.String("submission_id", res.SubmissionID))
	}

	total := rubrics.TotalPoints(res, def)
	contextlog.From(ctx).InfoContext(ctx, "Stored rubric result",
		slog.String("assignment_id", def.AssignmentID),
		slog.String("submission_id", res.SubmissionID),
		slog.Int("selected", len(res.Selected)),
		slog.Float64("total_points", total),
		slog.String("ip", mw.ClientIP(ctx, req)),
	)
	return connect.NewResponse(&api.PatchResultResponse{Result: res, TotalPoints: total}), nil
}

// ListResults pages through the results of an assignment, ordered by
// submission ID within the page.
func (s *RubricServer) ListResults(
	ctx context.Context,
	req *connect.Request[api.ListResultsRequest],
) (*connect.Response[api.ListResultsResponse], error) {
	def, err := s.loadRubric(ctx, req.Msg.AssignmentID)
	if err != nil {
		return nil, err
	}
	params := storage.ListResultsParams{
		Page:         req.Msg.Page,
		PageSize:     req.Msg.PageSize,
		AssignmentID: def.AssignmentID,
	}.Validate()

	results, totalCount, err := s.storage.ListResultsPaginated(ctx, params)
	if err != nil {
		return nil, internal(ctx, "Failed to list results", err, slog.String("assignment_id", def.AssignmentID))
	}

	return connect.NewResponse(&api.ListResultsResponse{
		Results:    summarize(def, results),
		MaxPoints:  def.MaxPoints(),
		TotalCount: totalCount,
		Page:       params.Page,
		PageSize:   params.PageSize,
	}), nil
}

// GetAutoTest returns the automated test of an assignment and the latest run
// for a submission. Missing records are left nil.
func (s *RubricServer) GetAutoTest(
	ctx context.Context,
	req *connect.Request[api.GetAutoTestRequest],
) (*connect.Response[api.GetAutoTestResponse], error) {
	overlay, err := s.overlay(ctx, req.Msg.AssignmentID, req.Msg.SubmissionID)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&api.GetAutoTestResponse{
		Config: overlay.Config,
		Result: overlay.Result,
	}), nil
}

// PutAutoTestConfig stores the automated test of an assignment. Every row it
// drives must exist and be auto-test locked.
func (s *RubricServer) PutAutoTestConfig(
	ctx context.Context,
	req *connect.Request[api.PutAutoTestConfigRequest],
) (*connect.Response[api.PutAutoTestConfigResponse], error) {
	if err := requireEditor(ctx); err != nil {
		return nil, err
	}
	cfg := req.Msg.Config
	def, err := s.loadRubric(ctx, cfg.AssignmentID)
	if err != nil {
		return nil, err
	}
	for _, id := range cfg.Rows {
		row, ok := def.Row(id)
		if !ok || row.Lock != rubrics.LockAutoTest {
			return nil, connect.NewError(connect.CodeInvalidArgument,
				fmt.Errorf("row %q is not an auto-test row of %s", id, def.AssignmentID))
		}
	}
	if err := s.storage.SaveAutoTestConfig(ctx, &cfg); err != nil {
		return nil, internal(ctx, "Failed to save auto-test config", err, slog.String("assignment_id", cfg.AssignmentID))
	}
	return connect.NewResponse(&api.PutAutoTestConfigResponse{}), nil
}

// PutAutoTestResult records the latest automated test outcome of a
// submission.
func (s *RubricServer) PutAutoTestResult(
	ctx context.Context,
	req *connect.Request[api.PutAutoTestResultRequest],
) (*connect.Response[api.PutAutoTestResultResponse], error) {
	if err := requireEditor(ctx); err != nil {
		return nil, err
	}
	res := req.Msg.Result
	if err := res.Validate(); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if err := s.storage.SaveAutoTestResult(ctx, &res); err != nil {
		return nil, internal(ctx, "Failed to save auto-test result", err, slog.String("submission_id", res.SubmissionID))
	}

	contextlog.From(ctx).InfoContext(ctx, "Stored auto-test result",
		slog.String("submission_id", res.SubmissionID),
		slog.String("state", string(res.State)),
	)
	return connect.NewResponse(&api.PutAutoTestResultResponse{}), nil
}

func (s *RubricServer) loadRubric(ctx context.Context, assignmentID string) (*rubrics.Definition, error) {
	if assignmentID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("assignment_id is required"))
	}
	def, err := s.storage.LoadRubric(ctx, assignmentID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, connect.NewError(connect.CodeNotFound, err)
	case err != nil:
		return nil, internal(ctx, "Failed to load rubric", err, slog.String("assignment_id", assignmentID))
	}
	return def, nil
}

func (s *RubricServer) loadResult(ctx context.Context, assignmentID, submissionID string) (rubrics.Result, error) {
	res, err := s.storage.LoadResult(ctx, submissionID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return rubrics.NewResult(assignmentID, submissionID), nil
	case err != nil:
		return rubrics.Result{}, internal(ctx, "Failed to load result", err, slog.String("submission_id", submissionID))
	}
	if res.AssignmentID != "" && res.AssignmentID != assignmentID {
		return rubrics.Result{}, connect.NewError(connect.CodeFailedPrecondition,
			fmt.Errorf("submission %s belongs to %s", submissionID, res.AssignmentID))
	}
	if res.Selected == nil {
		res.Selected = make(map[string]rubrics.Selection)
	}
	return *res, nil
}

func (s *RubricServer) overlay(ctx context.Context, assignmentID, submissionID string) (rubrics.Overlay, error) {
	var o rubrics.Overlay
	cfg, err := s.storage.LoadAutoTestConfig(ctx, assignmentID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return o, internal(ctx, "Failed to load auto-test config", err, slog.String("assignment_id", assignmentID))
	default:
		o.Config = cfg
	}
	if submissionID == "" {
		return o, nil
	}
	res, err := s.storage.LoadAutoTestResult(ctx, submissionID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return o, internal(ctx, "Failed to load auto-test result", err, slog.String("submission_id", submissionID))
	default:
		o.Result = res
	}
	return o, nil
}

// keepManualLocks returns in with every manually locked row reset to its
// stored value.
func keepManualLocks(def *rubrics.Definition, in, stored rubrics.Result) rubrics.Result {
	out := in.Clone()
	for i := range def.Rows {
		row := &def.Rows[i]
		if row.Lock != rubrics.LockManual {
			continue
		}
		if sel, ok := stored.Selected[row.ID]; ok {
			out.Selected[row.ID] = sel
		} else {
			delete(out.Selected, row.ID)
		}
	}
	return out
}

func summarize(def *rubrics.Definition, results map[string]*rubrics.Result) []api.ResultSummary {
	out := make([]api.ResultSummary, 0, len(results))
	maxPoints := def.MaxPoints()
	for id, res := range results {
		out = append(out, api.ResultSummary{
			SubmissionID: id,
			TotalPoints:  rubrics.TotalPoints(*res, def),
			MaxPoints:    maxPoints,
		})
	}
	slices.SortFunc(out, func(a, b api.ResultSummary) int {
		return cmp.Compare(a.SubmissionID, b.SubmissionID)
	})
	return out
}

func requireEditor(ctx context.Context) error {
	if role, ok := mw.RoleFrom(ctx); ok && !mw.CanEdit(ctx) {
		return connect.NewError(connect.CodePermissionDenied, fmt.Errorf("%s cannot change rubric data", role))
	}
	return nil
}

func internal(ctx context.Context, msg string, err error, attrs ...slog.Attr) error {
	args := make([]any, 0, len(attrs)+1)
	args = append(args, slog.Any("error", err))
	for _, a := range attrs {
		args = append(args, a)
	}
	contextlog.From(ctx).ErrorContext(ctx, msg, args...)
	return connect.NewError(connect.CodeInternal, errors.New(msg))
}
