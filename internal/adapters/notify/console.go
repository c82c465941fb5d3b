package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alejandrodnm/polywatch/internal/detector"
	"github.com/alejandrodnm/polywatch/internal/domain"
	"github.com/alejandrodnm/polywatch/internal/ports"
	"github.com/olekukonko/tablewriter"
)

var _ ports.Notifier = (*Console)(nil)

const maxReasonsShown = 3

// Console implementa ports.Notifier e imprime los reportes de la CLI.
type Console struct {
	out io.Writer
	now func() time.Time
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout, now: time.Now}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w, now: time.Now}
}

// NotifyAlert imprime el bloque de una alerta.
func (c *Console) NotifyAlert(_ context.Context, a domain.Alert) error {
	fmt.Fprintf(c.out, "\n%s %s  score %.1f/10  [%s]\n",
		severityIcon(a.Severity()), a.Timestamp.Local().Format("15:04:05"), a.Score, a.Severity())
	fmt.Fprintf(c.out, "  Market: %s\n", truncate(a.MarketTitle, 70))
	fmt.Fprintf(c.out, "  Wallet: %s  (age %.1fd, %d trades, %d markets)\n",
		shortAddr(a.Wallet), a.WalletStats.AgeDays, a.WalletStats.TotalTrades, a.WalletStats.UniqueMarkets)
	fmt.Fprintf(c.out, "  Trade:  %s $%s @ %.3f\n", a.Trade.Side, money(a.Trade.ValueUSD), a.Trade.Price)
	for _, r := range topReasons(a.Reasons) {
		fmt.Fprintf(c.out, "    - %s\n", r)
	}
	if a.MarketSlug != "" {
		fmt.Fprintf(c.out, "  URL: %s\n", marketURL(a.MarketSlug))
	}
	return nil
}

// PrintScanSummary imprime una línea por ciclo.
func (c *Console) PrintScanSummary(s domain.ScanSummary) {
	fmt.Fprintf(c.out, "[%s] %d mkts | %d trades | %d skipped | %d alerts | %d coordinated | %d errors | %s\n",
		s.StartedAt.Local().Format("15:04:05"),
		s.Markets, s.Trades, s.Skipped, s.Alerts, s.Coordinated, s.Errors,
		s.Duration.Round(time.Millisecond))
}

// PrintAlerts imprime una tabla de alertas.
func (c *Console) PrintAlerts(alerts []domain.Alert) {
	if len(alerts) == 0 {
		fmt.Fprintln(c.out, "\n  No alerts.")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("ID", "Time", "Score", "Wallet", "Market", "Value", "Label")
	for _, a := range alerts {
		label := string(a.Label)
		if label == "" {
			label = "-"
		}
		table.Append(
			fmt.Sprintf("%d", a.ID),
			a.Timestamp.Local().Format("01-02 15:04"),
			fmt.Sprintf("%.1f", a.Score),
			shortAddr(a.Wallet),
			truncate(a.MarketTitle, 40),
			"$"+money(a.Trade.ValueUSD),
			label,
		)
	}
	table.Render()
}

// PrintStats imprime el resumen de alertas.
func (c *Console) PrintStats(st domain.AlertStats) {
	if st.Total == 0 {
		fmt.Fprintln(c.out, "\n  No alerts recorded yet.")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Metric", "Value")
	table.Append("Total alerts", fmt.Sprintf("%d", st.Total))
	table.Append("Last 24h", fmt.Sprintf("%d", st.Last24h))
	table.Append("Unique wallets", fmt.Sprintf("%d", st.UniqueWallets))
	table.Append("Avg score", fmt.Sprintf("%.2f", st.AvgScore))
	table.Append("Labeled", fmt.Sprintf("%d", st.Labeled))
	table.Append("Most flagged", shortAddr(st.MostFlagged))
	table.Render()
}

// PrintBacktest imprime el reporte out-of-sample.
func (c *Console) PrintBacktest(r domain.BacktestReport, results []domain.BacktestResult) {
	fmt.Fprintf(c.out, "\n=== BACKTEST (out-of-sample, exit %s) run %s ===\n", r.Horizon, r.RunID)

	if len(results) > 0 {
		table := tablewriter.NewWriter(c.out)
		table.Header("Alert", "Time", "Score", "Alert$", "Entry$", "Exit$", "Exit", "ROI")
		for _, res := range results {
			e := res.Execution
			table.Append(
				fmt.Sprintf("%d", res.AlertID),
				res.Timestamp.Local().Format("01-02 15:04"),
				fmt.Sprintf("%.1f", res.Score),
				fmt.Sprintf("%.4f", e.AlertPrice),
				fmt.Sprintf("%.4f", e.EntryPrice),
				fmt.Sprintf("%.4f", e.ExitPrice),
				string(e.ExitSource),
				fmt.Sprintf("%+.2f%%", res.ROI*100),
			)
		}
		table.Render()
	}

	summary := tablewriter.NewWriter(c.out)
	summary.Header("Metric", "Value")
	summary.Append("Train set size", fmt.Sprintf("%d", r.TrainSize))
	summary.Append("Test set size", fmt.Sprintf("%d", r.TestSize))
	summary.Append("Valid results", fmt.Sprintf("%d", r.ValidResults))
	if r.ValidResults > 0 {
		summary.Append("Avg ROI", fmt.Sprintf("%.2f%%", r.AvgROI*100))
		summary.Append("Win rate", fmt.Sprintf("%.1f%%", r.WinRate*100))
		summary.Append("Best trade", fmt.Sprintf("%.2f%%", r.Best*100))
		summary.Append("Worst trade", fmt.Sprintf("%.2f%%", r.Worst*100))
	}
	summary.Render()

	if r.ValidResults == 0 {
		fmt.Fprintln(c.out, "  No valid backtest results.")
	}
}

// PrintQuality imprime la precisión de la detección según los labels.
func (c *Console) PrintQuality(q domain.QualityReport) {
	if q.Labeled == 0 {
		fmt.Fprintln(c.out, "\n  No labeled alerts. Use `polywatch label` first.")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Metric", "Value")
	table.Append("Labeled alerts", fmt.Sprintf("%d", q.Labeled))
	table.Append("True positives", fmt.Sprintf("%d", q.TruePositives))
	table.Append("False positives", fmt.Sprintf("%d", q.FalsePositives))
	table.Append("Unsure", fmt.Sprintf("%d", q.Unsure))
	table.Append("Precision", fmt.Sprintf("%.1f%%", q.Precision*100))
	table.Render()

	if len(q.TopFalse) == 0 {
		return
	}
	fmt.Fprintln(c.out, "\n  Highest-scored false positives:")
	for _, a := range q.TopFalse {
		fmt.Fprintf(c.out, "    #%d  %.1f  %s  %s\n", a.ID, a.Score, shortAddr(a.Wallet), truncate(a.MarketTitle, 50))
		for _, r := range topReasons(a.Reasons) {
			fmt.Fprintf(c.out, "         - %s\n", r)
		}
	}
}

// PrintBaseline imprime el baseline de población vigente.
func (c *Console) PrintBaseline(b detector.Baseline) {
	source := fmt.Sprintf("%d wallets", b.Wallets)
	if b.Wallets == 0 {
		source = "defaults"
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Dimension", "Mean", "Std")
	table.Append("Age (days)", fmt.Sprintf("%.2f", b.AgeMean), fmt.Sprintf("%.2f", b.AgeStd))
	table.Append("Volume ($)", fmt.Sprintf("%.2f", b.VolumeMean), fmt.Sprintf("%.2f", b.VolumeStd))
	table.Append("Trades", fmt.Sprintf("%.2f", b.TradesMean), fmt.Sprintf("%.2f", b.TradesStd))
	table.Render()
	fmt.Fprintf(c.out, "  Source: %s\n", source)
}

// --- helpers ---

func severityIcon(s domain.Severity) string {
	switch s {
	case domain.SeverityCritical:
		return "[!!!]"
	case domain.SeverityHigh:
		return "[!!]"
	default:
		return "[i]"
	}
}

func topReasons(reasons []string) []string {
	if len(reasons) > maxReasonsShown {
		return reasons[:maxReasonsShown]
	}
	return reasons
}

func marketURL(slug string) string {
	return "https://polymarket.com/event/" + slug
}

func shortAddr(addr string) string {
	if len(addr) <= 16 {
		return addr
	}
	return addr[:8] + "..." + addr[len(addr)-6:]
}

// money formatea con separador de miles y sin decimales: 12345.6 → 12,346.
func money(v float64) string {
	s := fmt.Sprintf("%.0f", v)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var sb strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(r)
	}
	if neg {
		return "-" + sb.String()
	}
	return sb.String()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
