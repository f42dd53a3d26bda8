package app

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/jh125486/rubricscore/pkg/cli"
	"github.com/jh125486/rubricscore/pkg/storage"
)

// ListCmd prints one page of an assignment's scored submissions.
type ListCmd struct {
	cli.ServerArgs `embed:""`

	Assignment string `arg:"" help:"Assignment ID"`
	Page       int    `default:"1"  help:"Page number"     name:"page"`
	PageSize   int    `default:"20" help:"Results per page" name:"page-size"`
}

// Run fetches the page and writes it as a table.
func (cmd *ListCmd) Run(ctx cli.Context, svc *cli.Service) error {
	resp, err := svc.RubricClient(cmd.ServerArgs, cmd.Assignment).ListResults(ctx, cmd.Page, cmd.PageSize)
	if err != nil {
		return err
	}

	table := tablewriter.NewTable(svc.Stdout, tablewriter.WithConfig(tablewriter.Config{
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{PerColumn: []tw.Align{tw.AlignLeft, tw.AlignRight, tw.AlignRight}},
		},
	}))
	table.Header("Submission", "Points", "Max")
	for _, r := range resp.Results {
		_ = table.Append(r.SubmissionID, fmt.Sprintf("%.2f", r.TotalPoints), fmt.Sprintf("%.2f", r.MaxPoints))
	}
	pages := storage.ListResultsParams{Page: resp.Page, PageSize: resp.PageSize}.TotalPages(resp.TotalCount)
	table.Footer(fmt.Sprintf("page %d of %d", resp.Page, pages), "", fmt.Sprintf("%d total", resp.TotalCount))
	return table.Render()
}
