package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/service/usage"
)

func newTokensCmd(configPath *string) *cobra.Command {
	var (
		runID    uint
		showCost bool
	)

	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Estimate validation token usage for completed runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			est := usage.NewEstimator(a.repos, usage.DefaultTokenizer(a.logger), a.cfg.Validation, a.cfg.Pricing, a.logger)
			var runs []*usage.RunUsage
			if runID > 0 {
				u, err := est.EstimateRun(cmd.Context(), runID)
				if err != nil {
					return err
				}
				runs = []*usage.RunUsage{u}
			} else {
				if runs, err = est.EstimateAll(cmd.Context()); err != nil {
					return err
				}
			}

			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no validated runs found")
				return nil
			}
			renderUsage(cmd.OutOrStdout(), runs, showCost, runID > 0)
			return nil
		},
	}
	cmd.Flags().UintVar(&runID, "run-id", 0, "estimate a single run and list its batches")
	cmd.Flags().BoolVar(&showCost, "cost", false, "include estimated cost in USD")
	return cmd
}

// renderUsage 输出运行汇总表，单个运行时附带批次明细
func renderUsage(w io.Writer, runs []*usage.RunUsage, showCost, details bool) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := table.Row{"Run", "Name", "Queries", "Criteria", "Batches", "Input", "Est. output", "Total"}
	if showCost {
		header = append(header, "Cost (USD)")
	}
	t.AppendHeader(header)

	var totalIn, totalOut int
	var totalCost float64
	for _, r := range runs {
		row := table.Row{r.RunID, r.RunName, r.TotalQueries, r.CriteriaCount, r.BatchCount,
			r.TotalInputTokens, r.TotalEstOutputTokens, r.TotalEstTokens}
		if showCost {
			row = append(row, fmt.Sprintf("%.4f", r.CostUSD))
		}
		t.AppendRow(row)
		totalIn += r.TotalInputTokens
		totalOut += r.TotalEstOutputTokens
		totalCost += r.CostUSD
	}

	footer := table.Row{"", "Total", "", "", "", totalIn, totalOut, totalIn + totalOut}
	if showCost {
		footer = append(footer, fmt.Sprintf("%.4f", totalCost))
	}
	t.AppendFooter(footer)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
	})
	t.Render()

	if !details || len(runs) != 1 {
		return
	}

	bt := table.NewWriter()
	bt.SetOutputMirror(w)
	bt.SetStyle(table.StyleLight)
	bt.SetTitle(fmt.Sprintf("Batches for run %d (tokenizer %s)", runs[0].RunID, runs[0].Tokenizer))
	bt.AppendHeader(table.Row{"Criterion", "Start", "Size", "Input", "Est. output"})
	for _, b := range runs[0].BatchDetails {
		bt.AppendRow(table.Row{b.CriterionKey, b.BatchStart, b.BatchSize, b.InputTokens, b.EstOutputTokens})
	}
	bt.Render()
}
