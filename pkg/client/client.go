package client

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"connectrpc.com/connect"

	"github.com/jh125486/rubricscore/pkg/api"
	"github.com/jh125486/rubricscore/pkg/composer"
	"github.com/jh125486/rubricscore/pkg/contextlog"
	"github.com/jh125486/rubricscore/pkg/rubrics"
)

// AuthTransport injects an Authorization header for every outgoing request.
type AuthTransport struct {
	base  http.RoundTripper
	token string
}

// NewAuthTransport creates a new AuthTransport with the given token.
// If base is nil, defaultTLSTransport() is used.
func NewAuthTransport(token string, base http.RoundTripper) *AuthTransport {
	if base == nil {
		base = defaultTLSTransport()
	}
	return &AuthTransport{
		base:  base,
		token: token,
	}
}

// defaultTLSTransport clones http.DefaultTransport with a TLS config that mirrors the
// server's downgraded TLS settings so clients can communicate through strict proxies.
func defaultTLSTransport() *http.Transport {
	if transport, ok := http.DefaultTransport.(*http.Transport); ok {
		clone := transport.Clone()
		clone.TLSClientConfig = clientTLSConfig()
		return clone
	}
	return &http.Transport{TLSClientConfig: clientTLSConfig()}
}

// clientTLSConfig matches the server TLS policy (TLS 1.2 + modern cipher suites) to keep
// Connect requests compatible with corporate middleboxes that block TLS 1.3.
func clientTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		},
	}
}

// RoundTrip implements http.RoundTripper by adding an Authorization header to each request.
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(clone)
}

// Client talks to a rubric server for one assignment.
type Client struct {
	AssignmentID string
	rpc          *api.RubricServiceClient
}

var _ composer.Source = (*Client)(nil)

// New returns a Client for the server at serverURL. httpClient should carry
// an AuthTransport.
func New(httpClient connect.HTTPClient, serverURL, assignmentID string) *Client {
	return &Client{
		AssignmentID: assignmentID,
		rpc:          api.NewRubricServiceClient(httpClient, serverURL),
	}
}

// FetchRubric returns the assignment's rubric.
func (c *Client) FetchRubric(ctx context.Context) (*rubrics.Definition, error) {
	resp, err := c.rpc.GetRubric(ctx, connect.NewRequest(&api.GetRubricRequest{AssignmentID: c.AssignmentID}))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rubric for %s: %w", c.AssignmentID, err)
	}
	return &resp.Msg.Definition, nil
}

// PutRubric uploads def as the rubric of its assignment.
func (c *Client) PutRubric(ctx context.Context, def *rubrics.Definition) error {
	resp, err := c.rpc.PutRubric(ctx, connect.NewRequest(&api.PutRubricRequest{Definition: *def}))
	if err != nil {
		return fmt.Errorf("failed to upload rubric for %s: %w", def.AssignmentID, err)
	}
	contextlog.From(ctx).InfoContext(ctx, "Uploaded rubric",
		slog.String("assignment_id", resp.Msg.AssignmentID),
		slog.Float64("max_points", resp.Msg.MaxPoints),
	)
	return nil
}

// FetchResult returns the stored result of a submission, empty when unscored.
func (c *Client) FetchResult(ctx context.Context, submissionID string) (rubrics.Result, error) {
	resp, err := c.rpc.GetResult(ctx, connect.NewRequest(&api.GetResultRequest{
		AssignmentID: c.AssignmentID,
		SubmissionID: submissionID,
	}))
	if err != nil {
		return rubrics.Result{}, err
	}
	return resp.Msg.Result, nil
}

// SubmitResult replaces the stored result and returns what the server kept.
func (c *Client) SubmitResult(ctx context.Context, res rubrics.Result) (rubrics.Result, error) {
	if res.AssignmentID == "" {
		res.AssignmentID = c.AssignmentID
	}
	resp, err := c.rpc.PatchResult(ctx, connect.NewRequest(&api.PatchResultRequest{Result: res}))
	if err != nil {
		return rubrics.Result{}, err
	}
	contextlog.From(ctx).InfoContext(ctx, "Successfully uploaded rubric result",
		slog.String("submission_id", resp.Msg.Result.SubmissionID),
		slog.Float64("total_points", resp.Msg.TotalPoints),
	)
	return resp.Msg.Result, nil
}

// ListResults returns one page of the assignment's results.
func (c *Client) ListResults(ctx context.Context, page, pageSize int) (*api.ListResultsResponse, error) {
	resp, err := c.rpc.ListResults(ctx, connect.NewRequest(&api.ListResultsRequest{
		AssignmentID: c.AssignmentID,
		Page:         page,
		PageSize:     pageSize,
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to list results for %s: %w", c.AssignmentID, err)
	}
	return resp.Msg, nil
}

// FetchAutoTest returns the assignment's automated test and the submission's
// latest run. Either may be nil.
func (c *Client) FetchAutoTest(ctx context.Context, submissionID string) (*rubrics.AutoTestConfig, *rubrics.AutoTestResult, error) {
	resp, err := c.rpc.GetAutoTest(ctx, connect.NewRequest(&api.GetAutoTestRequest{
		AssignmentID: c.AssignmentID,
		SubmissionID: submissionID,
	}))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch auto-test for %s: %w", submissionID, err)
	}
	return resp.Msg.Config, resp.Msg.Result, nil
}

// PutAutoTestConfig uploads the assignment's automated test.
func (c *Client) PutAutoTestConfig(ctx context.Context, cfg *rubrics.AutoTestConfig) error {
	if _, err := c.rpc.PutAutoTestConfig(ctx, connect.NewRequest(&api.PutAutoTestConfigRequest{Config: *cfg})); err != nil {
		return fmt.Errorf("failed to upload auto-test config for %s: %w", cfg.AssignmentID, err)
	}
	return nil
}

// PutAutoTestResult reports an automated test run.
func (c *Client) PutAutoTestResult(ctx context.Context, res *rubrics.AutoTestResult) error {
	if _, err := c.rpc.PutAutoTestResult(ctx, connect.NewRequest(&api.PutAutoTestResultRequest{Result: *res})); err != nil {
		return fmt.Errorf("failed to report auto-test result for %s: %w", res.SubmissionID, err)
	}
	return nil
}

// IsNotFound reports whether err is a Connect not-found error.
func IsNotFound(err error) bool {
	var cerr *connect.Error
	return errors.As(err, &cerr) && cerr.Code() == connect.CodeNotFound
}

// PromptForSubmission asks the user if they want to submit results to the server.
// Returns true if user confirms, false otherwise.
// Uses the provided writer for prompts, or os.Stdout if writer is nil.
// Uses the provided reader for input, or os.Stdin if reader is nil.
// Accepts "y", "Y", "yes", "YES" (case-insensitive, whitespace-trimmed).
func PromptForSubmission(ctx context.Context, w io.Writer, r io.Reader) bool {
	if w == nil {
		w = os.Stdout
	}
	if r == nil {
		r = os.Stdin
	}

	fmt.Fprintf(w, "\nSubmit results to server? (y/n): ")
	bufReader := bufio.NewReader(r)
	resp, err := bufReader.ReadString('\n')
	if err != nil {
		contextlog.From(ctx).WarnContext(ctx, "Failed to read user input", slog.Any("error", err))
		return false
	}

	resp = strings.TrimSpace(resp)
	resp = strings.ToLower(resp)

	return resp == "y" || resp == "yes"
}
