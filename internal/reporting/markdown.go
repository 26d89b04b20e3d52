package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders the report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Strategy Rankings Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Strategies with trades: %d\n\n", r.StrategyCount))

	// Data Summary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Signals | %d |\n", r.DataSummary.TotalSignals))
	sb.WriteString(fmt.Sprintf("| Total Trades | %d |\n", r.DataSummary.TotalTrades))
	sb.WriteString(fmt.Sprintf("| Symbols | %d |\n", r.DataSummary.Symbols))
	sb.WriteString(fmt.Sprintf("| Date Range Start (ms) | %d |\n", r.DataSummary.DateRangeStart))
	sb.WriteString(fmt.Sprintf("| Date Range End (ms) | %d |\n", r.DataSummary.DateRangeEnd))
	sb.WriteString("\n")

	// Rankings
	sb.WriteString("## Rankings\n\n")
	if len(r.Rankings) > 0 {
		sb.WriteString("| Rank | Strategy | Stage | Trades | WinRate | ProfitFactor | TotalPnl | Expectancy | Sharpe | MaxDD | MaxLoss |\n")
		sb.WriteString("|------|----------|-------|--------|---------|--------------|----------|------------|--------|-------|--------|\n")
		for _, row := range r.Rankings {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %d | %.4f | %s | %.4f | %.4f | %.4f | %.4f | %d |\n",
				row.Rank, row.StrategyID, row.Stage, row.TotalTrades, row.WinRate,
				formatProfitFactor(row), row.TotalPnl, row.Expectancy, row.SharpeLike,
				row.MaxDrawdown, row.MaxConsecutiveLosses))
		}
	} else {
		sb.WriteString("No trade results recorded yet.\n")
	}
	sb.WriteString("\n")

	// Bot roster
	sb.WriteString("## Active Bots\n\n")
	if len(r.Bots) > 0 {
		sb.WriteString("| Bot | Strategy | Stage | Promoted (ms) |\n")
		sb.WriteString("|-----|----------|-------|---------------|\n")
		for _, b := range r.Bots {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d |\n",
				b.BotID, b.StrategyID, b.Stage, b.PromotedAt))
		}
	} else {
		sb.WriteString("No active bots.\n")
	}
	sb.WriteString("\n")

	// Transition log
	sb.WriteString("## Stage Transitions\n\n")
	if len(r.Transitions) > 0 {
		sb.WriteString("| Time (ms) | Strategy | From | To | Reason | Trades | WinRate | ProfitFactor |\n")
		sb.WriteString("|-----------|----------|------|----|--------|--------|---------|-------------|\n")
		for _, t := range r.Transitions {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s | %d | %.4f | %.4f |\n",
				t.Timestamp, t.StrategyID, t.From, t.To, t.Reason,
				t.WindowTrades, t.WindowWinRate, t.WindowProfitPF))
		}
	} else {
		sb.WriteString("No stage transitions recorded.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

// formatProfitFactor renders an undefined profit factor as n/a instead of 0.
func formatProfitFactor(row RankingRow) string {
	if !row.ProfitFactorOK {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", row.ProfitFactor)
}
