package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders ranking rows as a CSV string. An undefined profit
// factor is rendered as an empty field.
func RenderCSV(rankings []RankingRow) string {
	var sb strings.Builder

	sb.WriteString("rank,strategy_id,stage,total_trades,win_rate,profit_factor,")
	sb.WriteString("total_pnl,expectancy,sharpe_like,max_drawdown,max_consecutive_losses\n")

	for _, row := range rankings {
		pf := ""
		if row.ProfitFactorOK {
			pf = fmt.Sprintf("%.6f", row.ProfitFactor)
		}
		sb.WriteString(fmt.Sprintf("%d,%s,%s,%d,%.6f,%s,%.6f,%.6f,%.6f,%.6f,%d\n",
			row.Rank,
			row.StrategyID,
			row.Stage,
			row.TotalTrades,
			row.WinRate,
			pf,
			row.TotalPnl,
			row.Expectancy,
			row.SharpeLike,
			row.MaxDrawdown,
			row.MaxConsecutiveLosses,
		))
	}

	return sb.String()
}
