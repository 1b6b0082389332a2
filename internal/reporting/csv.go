package reporting

import (
	"fmt"
	"strings"
)

// RenderTradesCSV renders trades as CSV string.
func RenderTradesCSV(trades []TradeRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("trade_id,side,entry_time,entry_price,exit_time,exit_price,exit_reason,")
	sb.WriteString("quantity,pnl,return_pct\n")

	// Rows
	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%.8f,%d,%.8f,%s,%.8f,%.6f,%.6f\n",
			t.TradeID,
			t.Side,
			t.EntryTime,
			t.EntryPrice,
			t.ExitTime,
			t.ExitPrice,
			t.ExitReason,
			t.Quantity,
			t.PnL,
			t.ReturnPct,
		))
	}

	return sb.String()
}
