package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# Campaign Report (%s)\n\n", r.Kind))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Strategy: %s | Symbol: %s | Run: %s\n\n", r.Strategy, r.Symbol, r.RunID))
	sb.WriteString(fmt.Sprintf("Range: %s to %s\n\n", formatMs(r.FromMs), formatMs(r.ToMs)))
	sb.WriteString(fmt.Sprintf("**Verdict: %s**\n\n", r.Verdict.Status()))

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	for _, row := range r.Summary {
		sb.WriteString(fmt.Sprintf("| %s | %s |\n", row.Metric, row.Value))
	}
	sb.WriteString("\n")

	// Guardrails
	sb.WriteString("## Guardrails\n\n")
	if len(r.Criteria) > 0 {
		sb.WriteString("| Check | Threshold | Actual | Status |\n")
		sb.WriteString("|-------|-----------|--------|--------|\n")
		for _, c := range r.Criteria {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", c.Name, c.Threshold, c.Actual, passFail(c.Pass)))
		}
	} else {
		sb.WriteString("No guardrail checks performed.\n")
	}
	sb.WriteString("\n")

	// Data Quality
	dq := r.DataQuality
	sb.WriteString("## Data Quality\n\n")
	sb.WriteString(fmt.Sprintf("Metrics status: %s | Temporal validation: %s\n\n", dq.MetricsStatus, dq.TemporalStatus))
	sb.WriteString(fmt.Sprintf("Bars: %d | Gaps: %d (%d significant) | Gap ratio: %.4f | Invalid signals: %d | Order-book fallbacks: %d\n\n",
		dq.BarCount, dq.GapCount, dq.SignificantGapCount, dq.GapRatio, dq.InvalidSignals, dq.OrderBookFallbacks))
	if len(dq.IntegrityErrors) > 0 {
		sb.WriteString("### Integrity Errors\n\n")
		for _, e := range dq.IntegrityErrors {
			sb.WriteString(fmt.Sprintf("- %s\n", e))
		}
		sb.WriteString("\n")
	}

	// Walk-forward windows
	if len(r.Windows) > 0 {
		sb.WriteString("## Walk-Forward Windows\n\n")
		sb.WriteString("| # | Test Start | Train DD% | Test Calmar | Test Sharpe | Trades | Status |\n")
		sb.WriteString("|---|------------|-----------|-------------|-------------|--------|--------|\n")
		for _, w := range r.Windows {
			status := "included"
			if w.Excluded {
				status = "excluded: " + w.ExclusionReason
			}
			sb.WriteString(fmt.Sprintf("| %d | %s | %.2f | %.3f | %.3f | %d | %s |\n",
				w.Index, formatMs(w.TestStartMs), w.TrainDrawdown, w.TestCalmar, w.TestSharpe, w.TestTrades, status))
		}
		sb.WriteString("\n")
	}

	// Sensitivity
	if s := r.Sensitivity; s != nil {
		sb.WriteString("## Parameter Sensitivity\n\n")
		sb.WriteString(fmt.Sprintf("Status: %s | Valid runs: %d | Min p-value: %.4f (%s)\n\n", s.Status, s.ValidRuns, s.MinPValue, s.MinParam))
		sb.WriteString("| Param | Value | Windows | Mean Calmar | Error |\n")
		sb.WriteString("|-------|-------|---------|-------------|-------|\n")
		for _, v := range s.Variations {
			sb.WriteString(fmt.Sprintf("| %s | %g | %d | %.3f | %s |\n", v.Param, v.Value, v.Windows, v.MeanCalmar, v.Error))
		}
		sb.WriteString("\n")
		for _, b := range s.Breaches {
			sb.WriteString(fmt.Sprintf("- %s\n", b))
		}
		if len(s.Breaches) > 0 {
			sb.WriteString("\n")
		}
	}

	// Trades
	sb.WriteString("## Trades\n\n")
	if len(r.Trades) > 0 {
		sb.WriteString(fmt.Sprintf("%d trades; see the CSV export for the full list.\n\n", len(r.Trades)))
	} else {
		sb.WriteString("No trades.\n\n")
	}

	return sb.String()
}

func passFail(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}
