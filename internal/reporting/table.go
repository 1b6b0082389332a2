package reporting

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
)

// RenderTable writes the report as console tables.
func RenderTable(w io.Writer, r *Report) error {
	fmt.Fprintf(w, "\n%s %s on %s  [%s]\n", r.Kind, r.Strategy, r.Symbol, r.RunID)
	fmt.Fprintf(w, "%s to %s\n\n", formatMs(r.FromMs), formatMs(r.ToMs))

	summary := tablewriter.NewWriter(w)
	summary.Header("Metric", "Value")
	for _, row := range r.Summary {
		if err := summary.Append(row.Metric, row.Value); err != nil {
			return err
		}
	}
	if err := summary.Render(); err != nil {
		return err
	}

	if len(r.Criteria) > 0 {
		checks := tablewriter.NewWriter(w)
		checks.Header("Check", "Threshold", "Actual", "Status")
		for _, c := range r.Criteria {
			if err := checks.Append(c.Name, c.Threshold, c.Actual, passFail(c.Pass)); err != nil {
				return err
			}
		}
		if err := checks.Render(); err != nil {
			return err
		}
	}

	if len(r.Windows) > 0 {
		windows := tablewriter.NewWriter(w)
		windows.Header("#", "Test start", "Train DD%", "Test Calmar", "Test Sharpe", "Trades", "Status")
		for _, wr := range r.Windows {
			status := "included"
			if wr.Excluded {
				status = "excluded"
			}
			if err := windows.Append(
				fmt.Sprintf("%d", wr.Index),
				formatMs(wr.TestStartMs),
				fmt.Sprintf("%.2f", wr.TrainDrawdown),
				fmt.Sprintf("%.3f", wr.TestCalmar),
				fmt.Sprintf("%.3f", wr.TestSharpe),
				fmt.Sprintf("%d", wr.TestTrades),
				status,
			); err != nil {
				return err
			}
		}
		if err := windows.Render(); err != nil {
			return err
		}
	}

	if s := r.Sensitivity; s != nil {
		sweep := tablewriter.NewWriter(w)
		sweep.Header("Param", "Value", "Windows", "Mean Calmar", "Error")
		for _, v := range s.Variations {
			if err := sweep.Append(v.Param, fmt.Sprintf("%g", v.Value), fmt.Sprintf("%d", v.Windows), fmt.Sprintf("%.3f", v.MeanCalmar), v.Error); err != nil {
				return err
			}
		}
		if err := sweep.Render(); err != nil {
			return err
		}
		fmt.Fprintf(w, "  Sensitivity: %s (valid runs %d, min p-value %.4f %s)\n", s.Status, s.ValidRuns, s.MinPValue, s.MinParam)
		for _, b := range s.Breaches {
			fmt.Fprintf(w, "  breach: %s\n", b)
		}
	}

	dq := r.DataQuality
	fmt.Fprintf(w, "\n  Data: %s / %s, %d bars, %d gaps (%d significant), %d invalid signals, %d book fallbacks\n",
		dq.MetricsStatus, dq.TemporalStatus, dq.BarCount, dq.GapCount, dq.SignificantGapCount, dq.InvalidSignals, dq.OrderBookFallbacks)
	for _, e := range dq.IntegrityErrors {
		fmt.Fprintf(w, "  integrity: %s\n", e)
	}
	fmt.Fprintf(w, "\n  Verdict: %s\n", r.Verdict.Status())
	return nil
}
