// Package api defines the RubricService wire contract: procedure paths,
// request and response messages, and constructors for Connect handlers and
// clients that speak it.
package api

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/jh125486/rubricscore/pkg/rubrics"
)

// ServiceName is the fully-qualified name of the rubric service.
const ServiceName = "rubricscore.v1.RubricService"

// Procedure paths, relative to the server root.
const (
	GetRubricProcedure         = "/" + ServiceName + "/GetRubric"
	PutRubricProcedure         = "/" + ServiceName + "/PutRubric"
	GetResultProcedure         = "/" + ServiceName + "/GetResult"
	PatchResultProcedure       = "/" + ServiceName + "/PatchResult"
	ListResultsProcedure       = "/" + ServiceName + "/ListResults"
	GetAutoTestProcedure       = "/" + ServiceName + "/GetAutoTest"
	PutAutoTestConfigProcedure = "/" + ServiceName + "/PutAutoTestConfig"
	PutAutoTestResultProcedure = "/" + ServiceName + "/PutAutoTestResult"
)

type (
	GetRubricRequest struct {
		AssignmentID string `json:"assignment_id"`
	}
	GetRubricResponse struct {
		Definition rubrics.Definition `json:"definition"`
		MaxPoints  float64            `json:"max_points"`
	}

	PutRubricRequest struct {
		Definition rubrics.Definition `json:"definition"`
	}
	PutRubricResponse struct {
		AssignmentID string  `json:"assignment_id"`
		MaxPoints    float64 `json:"max_points"`
	}

	GetResultRequest struct {
		AssignmentID string `json:"assignment_id"`
		SubmissionID string `json:"submission_id"`
	}
	// GetResultResponse carries an empty result for a submission nobody scored yet.
	GetResultResponse struct {
		Result      rubrics.Result `json:"result"`
		TotalPoints float64        `json:"total_points"`
	}

	// PatchResultRequest replaces the stored result with the grader's effective result.
	PatchResultRequest struct {
		Result rubrics.Result `json:"result"`
	}
	PatchResultResponse struct {
		Result      rubrics.Result `json:"result"`
		TotalPoints float64        `json:"total_points"`
	}

	ListResultsRequest struct {
		AssignmentID string `json:"assignment_id"`
		Page         int    `json:"page,omitempty"`
		PageSize     int    `json:"page_size,omitempty"`
	}
	ListResultsResponse struct {
		Results    []ResultSummary `json:"results"`
		MaxPoints  float64         `json:"max_points"`
		TotalCount int             `json:"total_count"`
		Page       int             `json:"page"`
		PageSize   int             `json:"page_size"`
	}
	ResultSummary struct {
		SubmissionID string  `json:"submission_id"`
		TotalPoints  float64 `json:"total_points"`
		MaxPoints    float64 `json:"max_points"`
	}

	GetAutoTestRequest struct {
		AssignmentID string `json:"assignment_id"`
		SubmissionID string `json:"submission_id"`
	}
	// GetAutoTestResponse leaves Config nil when the assignment has no
	// automated test and Result nil when no run is known.
	GetAutoTestResponse struct {
		Config *rubrics.AutoTestConfig `json:"config,omitempty"`
		Result *rubrics.AutoTestResult `json:"result,omitempty"`
	}

	PutAutoTestConfigRequest struct {
		Config rubrics.AutoTestConfig `json:"config"`
	}
	PutAutoTestConfigResponse struct{}

	PutAutoTestResultRequest struct {
		Result rubrics.AutoTestResult `json:"result"`
	}
	PutAutoTestResultResponse struct{}
)

// RubricServiceHandler is implemented by the rubric server.
type RubricServiceHandler interface {
	GetRubric(context.Context, *connect.Request[GetRubricRequest]) (*connect.Response[GetRubricResponse], error)
	PutRubric(context.Context, *connect.Request[PutRubricRequest]) (*connect.Response[PutRubricResponse], error)
	GetResult(context.Context, *connect.Request[GetResultRequest]) (*connect.Response[GetResultResponse], error)
	PatchResult(context.Context, *connect.Request[PatchResultRequest]) (*connect.Response[PatchResultResponse], error)
	ListResults(context.Context, *connect.Request[ListResultsRequest]) (*connect.Response[ListResultsResponse], error)
	GetAutoTest(context.Context, *connect.Request[GetAutoTestRequest]) (*connect.Response[GetAutoTestResponse], error)
	PutAutoTestConfig(context.Context, *connect.Request[PutAutoTestConfigRequest]) (*connect.Response[PutAutoTestConfigResponse], error)
	PutAutoTestResult(context.Context, *connect.Request[PutAutoTestResultRequest]) (*connect.Response[PutAutoTestResultResponse], error)
}

// NewRubricServiceHandler builds an HTTP handler serving every procedure of
// svc. It returns the path to mount the handler on.
func NewRubricServiceHandler(svc RubricServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)
	mux := http.NewServeMux()
	mux.Handle(GetRubricProcedure, connect.NewUnaryHandler(GetRubricProcedure, svc.GetRubric, opts...))
	mux.Handle(PutRubricProcedure, connect.NewUnaryHandler(PutRubricProcedure, svc.PutRubric, opts...))
	mux.Handle(GetResultProcedure, connect.NewUnaryHandler(GetResultProcedure, svc.GetResult, opts...))
	mux.Handle(PatchResultProcedure, connect.NewUnaryHandler(PatchResultProcedure, svc.PatchResult, opts...))
	mux.Handle(ListResultsProcedure, connect.NewUnaryHandler(ListResultsProcedure, svc.ListResults, opts...))
	mux.Handle(GetAutoTestProcedure, connect.NewUnaryHandler(GetAutoTestProcedure, svc.GetAutoTest, opts...))
	mux.Handle(PutAutoTestConfigProcedure, connect.NewUnaryHandler(PutAutoTestConfigProcedure, svc.PutAutoTestConfig, opts...))
	mux.Handle(PutAutoTestResultProcedure, connect.NewUnaryHandler(PutAutoTestResultProcedure, svc.PutAutoTestResult, opts...))
	return "/" + ServiceName + "/", mux
}

// RubricServiceClient calls a remote rubric service.
type RubricServiceClient struct {
	getRubric         *connect.Client[GetRubricRequest, GetRubricResponse]
	putRubric         *connect.Client[PutRubricRequest, PutRubricResponse]
	getResult         *connect.Client[GetResultRequest, GetResultResponse]
	patchResult       *connect.Client[PatchResultRequest, PatchResultResponse]
	listResults       *connect.Client[ListResultsRequest, ListResultsResponse]
	getAutoTest       *connect.Client[GetAutoTestRequest, GetAutoTestResponse]
	putAutoTestConfig *connect.Client[PutAutoTestConfigRequest, PutAutoTestConfigResponse]
	putAutoTestResult *connect.Client[PutAutoTestResultRequest, PutAutoTestResultResponse]
}

// NewRubricServiceClient returns a client for the service at baseURL.
func NewRubricServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *RubricServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSON()}, opts...)
	return &RubricServiceClient{
		getRubric:         connect.NewClient[GetRubricRequest, GetRubricResponse](httpClient, baseURL+GetRubricProcedure, opts...),
		putRubric:         connect.NewClient[PutRubricRequest, PutRubricResponse](httpClient, baseURL+PutRubricProcedure, opts...),
		getResult:         connect.NewClient[GetResultRequest, GetResultResponse](httpClient, baseURL+GetResultProcedure, opts...),
		patchResult:       connect.NewClient[PatchResultRequest, PatchResultResponse](httpClient, baseURL+PatchResultProcedure, opts...),
		listResults:       connect.NewClient[ListResultsRequest, ListResultsResponse](httpClient, baseURL+ListResultsProcedure, opts...),
		getAutoTest:       connect.NewClient[GetAutoTestRequest, GetAutoTestResponse](httpClient, baseURL+GetAutoTestProcedure, opts...),
		putAutoTestConfig: connect.NewClient[PutAutoTestConfigRequest, PutAutoTestConfigResponse](httpClient, baseURL+PutAutoTestConfigProcedure, opts...),
		putAutoTestResult: connect.NewClient[PutAutoTestResultRequest, PutAutoTestResultResponse](httpClient, baseURL+PutAutoTestResultProcedure, opts...),
	}
}

func (c *RubricServiceClient) GetRubric(ctx context.Context, req *connect.Request[GetRubricRequest]) (*connect.Response[GetRubricResponse], error) {
	return c.getRubric.CallUnary(ctx, req)
}

func (c *RubricServiceClient) PutRubric(ctx context.Context, req *connect.Request[PutRubricRequest]) (*connect.Response[PutRubricResponse], error) {
	return c.putRubric.CallUnary(ctx, req)
}

func (c *RubricServiceClient) GetResult(ctx context.Context, req *connect.Request[GetResultRequest]) (*connect.Response[GetResultResponse], error) {
	return c.getResult.CallUnary(ctx, req)
}

func (c *RubricServiceClient) PatchResult(ctx context.Context, req *connect.Request[PatchResultRequest]) (*connect.Response[PatchResultResponse], error) {
	return c.patchResult.CallUnary(ctx, req)
}

func (c *RubricServiceClient) ListResults(ctx context.Context, req *connect.Request[ListResultsRequest]) (*connect.Response[ListResultsResponse], error) {
	return c.listResults.CallUnary(ctx, req)
}

func (c *RubricServiceClient) GetAutoTest(ctx context.Context, req *connect.Request[GetAutoTestRequest]) (*connect.Response[GetAutoTestResponse], error) {
	return c.getAutoTest.CallUnary(ctx, req)
}

func (c *RubricServiceClient) PutAutoTestConfig(ctx context.Context, req *connect.Request[PutAutoTestConfigRequest]) (*connect.Response[PutAutoTestConfigResponse], error) {
	return c.putAutoTestConfig.CallUnary(ctx, req)
}

func (c *RubricServiceClient) PutAutoTestResult(ctx context.Context, req *connect.Request[PutAutoTestResultRequest]) (*connect.Response[PutAutoTestResultResponse], error) {
	return c.putAutoTestResult.CallUnary(ctx, req)
}
