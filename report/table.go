package report

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	sm "cpm/models"
)

func NewDefaultTableStyle() *table.Style {
	style := table.StyleRounded
	style.Format.Header = text.FormatUpper
	style.Options.SeparateRows = false
	return &style
}

// PrintLossReport writes the loss summary of a run and, with borrowers set, the per borrower
// expected versus simulated losses
func PrintLossReport(w io.Writer, runId string, r *sm.LossReport, borrowers bool) {
	summary := table.NewWriter()
	summary.SetOutputMirror(w)
	summary.SetStyle(*NewDefaultTableStyle())
	summary.SetTitle(fmt.Sprintf("Run %s (%d trials)", runId, r.NumTrials))
	summary.AppendHeader(table.Row{"Measure", "Value"})
	summary.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
	})

	summary.AppendRows([]table.Row{
		{"Expected loss", formatLoss(r.ExpectedLoss)},
		{"Simulated expected loss", formatLoss(r.SimulatedExpectedLoss)},
		{"Mean", formatLoss(r.Mean)},
		{"Standard deviation", formatLoss(r.StdDev)},
		{"Standard error", formatLoss(r.StandardError)},
		{"Median", formatLoss(r.Median)},
	})
	summary.AppendSeparator()
	for _, q := range r.Quantiles {
		summary.AppendRows([]table.Row{
			{fmt.Sprintf("VaR %s", formatLevel(q.Level)), formatLoss(q.ValueAtRisk)},
			{fmt.Sprintf("ES %s", formatLevel(q.Level)), formatLoss(q.ExpectedShortfall)},
			{fmt.Sprintf("UL %s", formatLevel(q.Level)), formatLoss(q.UnexpectedLoss)},
		})
	}
	summary.Render()

	if !borrowers || len(r.Borrowers) == 0 {
		return
	}

	bt := table.NewWriter()
	bt.SetOutputMirror(w)
	bt.SetStyle(*NewDefaultTableStyle())
	bt.AppendHeader(table.Row{"Borrower", "Expected loss", "Simulated loss"})
	bt.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	for _, b := range r.Borrowers {
		bt.AppendRow(table.Row{b.BorrowerId, formatLoss(b.ExpectedLoss), formatLoss(b.SimulatedLoss)})
	}
	bt.Render()
}

func formatLoss(v float64) string {
	return fmt.Sprintf("%.4f", v)
}

func formatLevel(level float64) string {
	return fmt.Sprintf("%.4g%%", level*100)
}
