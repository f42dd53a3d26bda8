package server

import (
	"html/template"
	"log/slog"
	"net/http"
	"strconv"

	"connectrpc.com/connect"

	"github.com/jh125486/rubricscore/pkg/api"
	"github.com/jh125486/rubricscore/pkg/contextlog"
	"github.com/jh125486/rubricscore/pkg/storage"
)

const templateExecErrMsg = "template execution error"

var resultsTmpl = template.Must(template.New("results").Funcs(template.FuncMap{
	"add": func(a, b int) int { return a + b },
	"sub": func(a, b int) int { return a - b },
}).Parse(`<!DOCTYPE html>
<html>
<head><title>{{.AssignmentID}} results</title></head>
<body>
<h1>{{.AssignmentID}}</h1>
<p>{{.TotalCount}} scored submissions, max {{printf "%.2f" .MaxPoints}} points</p>
<table>
<thead><tr><th>Submission</th><th>Points</th></tr></thead>
<tbody>
{{- range .Results}}
<tr><td>{{.SubmissionID}}</td><td>{{printf "%.2f" .TotalPoints}}</td></tr>
{{- end}}
</tbody>
</table>
<nav>
{{- if .HasPrevPage}}<a href="?page={{sub .Page 1}}&pageSize={{.PageSize}}">prev</a>{{end}}
page {{.Page}} of {{.TotalPages}}
{{- if .HasNextPage}} <a href="?page={{add .Page 1}}&pageSize={{.PageSize}}">next</a>{{end}}
</nav>
</body>
</html>
`))

// resultsPageData is what resultsTmpl renders.
type resultsPageData struct {
	AssignmentID string
	MaxPoints    float64
	Results      []api.ResultSummary
	TotalCount   int
	Page         int
	PageSize     int
	TotalPages   int
	HasPrevPage  bool
	HasNextPage  bool
}

// getPaginationParams extracts pagination parameters from the request.
// Out-of-range values are normalized by storage.ListResultsParams.
func getPaginationParams(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("pageSize"))
	p := storage.ListResultsParams{Page: page, PageSize: pageSize}.Validate()
	return p.Page, p.PageSize
}

// resultsPage serves a read-only HTML table of an assignment's scored
// submissions.
func resultsPage(s *RubricServer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := contextlog.From(ctx)
		assignmentID := r.PathValue("assignment")
		page, pageSize := getPaginationParams(r)

		resp, err := s.ListResults(ctx, connect.NewRequest(&api.ListResultsRequest{
			AssignmentID: assignmentID,
			Page:         page,
			PageSize:     pageSize,
		}))
		if err != nil {
			http.Error(w, err.Error(), httpStatus(err))
			return
		}
		msg := resp.Msg

		totalPages := storage.ListResultsParams{Page: msg.Page, PageSize: msg.PageSize}.TotalPages(msg.TotalCount)
		data := resultsPageData{
			AssignmentID: assignmentID,
			MaxPoints:    msg.MaxPoints,
			Results:      msg.Results,
			TotalCount:   msg.TotalCount,
			Page:         msg.Page,
			PageSize:     msg.PageSize,
			TotalPages:   totalPages,
			HasPrevPage:  msg.Page > 1,
			HasNextPage:  msg.Page < totalPages,
		}

		logger.InfoContext(ctx, "Serving results page",
			slog.String("assignment_id", assignmentID),
			slog.Int("total_count", msg.TotalCount),
			slog.Int("page", msg.Page),
		)

		w.Header().Set(contentTypeHeader, "text/html")
		if err := resultsTmpl.Execute(w, data); err != nil {
			logger.ErrorContext(ctx, templateExecErrMsg, slog.Any("error", err))
			http.Error(w, templateExecErrMsg, http.StatusInternalServerError)
		}
	})
}

// httpStatus maps a Connect error to the status the page responds with.
func httpStatus(err error) int {
	switch connect.CodeOf(err) {
	case connect.CodeNotFound:
		return http.StatusNotFound
	case connect.CodeInvalidArgument:
		return http.StatusBadRequest
	case connect.CodePermissionDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
