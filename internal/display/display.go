package display

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/insightlab/stockinsight/internal/models"
)

var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7C3AED")).
		Background(lipgloss.Color("#1F2937")).
		Padding(0, 1).
		MarginBottom(1)

	reportStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#3B82F6")).
		Padding(1, 2).
		Width(80)

	sectionStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#3B82F6"))

	labelStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280"))

	buyStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10B981")).
		Bold(true)

	holdStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#F59E0B")).
		Bold(true)

	sellStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#EF4444")).
		Bold(true)

	errorStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#EF4444")).
		Bold(true)

	infoStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#3B82F6"))

	successStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10B981"))

	dimStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280"))
)

// Renderer writes styled terminal output for insights, history pages and
// payment prompts.
type Renderer struct {
	out io.Writer
}

// NewRenderer creates a renderer writing to out. A nil out means stdout.
func NewRenderer(out io.Writer) *Renderer {
	if out == nil {
		out = os.Stdout
	}
	return &Renderer{out: out}
}

// Banner shows the startup banner.
func (r *Renderer) Banner() {
	banner := `
 ███████╗████████╗ ██████╗  ██████╗██╗  ██╗
 ██╔════╝╚══██╔══╝██╔═══██╗██╔════╝██║ ██╔╝
 ███████╗   ██║   ██║   ██║██║     █████╔╝
 ╚════██║   ██║   ██║   ██║██║     ██╔═██╗
 ███████║   ██║   ╚██████╔╝╚██████╗██║  ██╗
 ╚══════╝   ╚═╝    ╚═════╝  ╚═════╝╚═╝  ╚═╝  insight
`
	welcomeStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#7C3AED")).
		Bold(true)

	fmt.Fprint(r.out, welcomeStyle.Render(banner))
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, dimStyle.Render("  AI deep-research stock analysis"))
	fmt.Fprintln(r.out)
}

// Insight renders the full deep-research report.
func (r *Renderer) Insight(in *models.Insight) {
	if in == nil {
		return
	}

	header := fmt.Sprintf("%s (%s)", in.StockName, in.StockCode)
	if in.Market != "" {
		header += "  " + dimStyle.Render(in.Market)
	}
	fmt.Fprintln(r.out, titleStyle.Render(header))

	var b strings.Builder

	b.WriteString(fmt.Sprintf("%s %s\n",
		labelStyle.Render("Recommendation:"),
		recommendationStyle(in.Recommendation).Render(recommendationLabel(in.Recommendation))))
	if in.ConfidenceLevel != "" {
		b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Confidence:"), string(in.ConfidenceLevel)))
	}
	b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Risk score:"), riskBar(in.RiskScore)))
	b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Timeframe:"), timeframeLabel(in.Timeframe)))
	if in.CurrentPrice > 0 {
		b.WriteString(fmt.Sprintf("%s %.2f (1d %+.2f%%, 1w %+.2f%%, 1m %+.2f%%)\n",
			labelStyle.Render("Price:"),
			in.CurrentPrice, in.PriceChange1D, in.PriceChange1W, in.PriceChange1M))
	}
	if in.MarketSentiment != "" {
		b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Sentiment:"), string(in.MarketSentiment)))
	}
	if in.CreatedAt != "" {
		b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Analyzed:"), in.CreatedAt))
	}

	if in.RecommendationReason != "" {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render("Why"))
		b.WriteString("\n")
		b.WriteString(wrap(in.RecommendationReason, 74))
		b.WriteString("\n")
	}

	if len(in.KeySummary) > 0 {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render("Key points"))
		b.WriteString("\n")
		for _, point := range in.KeySummary {
			b.WriteString("  • " + wrap(point, 70) + "\n")
		}
	}

	if in.DeepResearch != "" {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render("Deep research"))
		b.WriteString("\n")
		b.WriteString(wrap(in.DeepResearch, 74))
		b.WriteString("\n")
	}

	r.renderDrivers(&b, in)
	r.renderCatalysts(&b, in)

	if in.AIModel != "" {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("model %s, %dms", in.AIModel, in.ProcessingTimeMs)))
	}

	fmt.Fprintln(r.out, reportStyle.Render(strings.TrimRight(b.String(), "\n")))
}

func (r *Renderer) renderDrivers(b *strings.Builder, in *models.Insight) {
	d := in.CurrentDrivers
	if d == nil {
		return
	}
	b.WriteString("\n")
	b.WriteString(sectionStyle.Render("Current drivers"))
	b.WriteString("\n")
	writeLabelled(b, "News", d.NewsBased)
	writeLabelled(b, "Technical", d.Technical)
	writeLabelled(b, "Fundamental", d.Fundamental)
}

func (r *Renderer) renderCatalysts(b *strings.Builder, in *models.Insight) {
	c := in.FutureCatalysts
	if c == nil {
		return
	}
	b.WriteString("\n")
	b.WriteString(sectionStyle.Render("Catalysts ahead"))
	b.WriteString("\n")
	writeLabelled(b, "Short term", c.ShortTerm)
	writeLabelled(b, "Mid term", c.MidTerm)
	writeLabelled(b, "Long term", c.LongTerm)
}

func writeLabelled(b *strings.Builder, label, text string) {
	if text == "" {
		return
	}
	b.WriteString("  " + labelStyle.Render(label+":") + " " + wrap(text, 60) + "\n")
}

// History renders one page of past analyses as a table.
func (r *Renderer) History(list *models.InsightList) {
	if list == nil || len(list.Items) == 0 {
		fmt.Fprintln(r.out, dimStyle.Render("No analyses yet."))
		return
	}

	fmt.Fprintln(r.out, sectionStyle.Render(fmt.Sprintf("Analysis history (%d total)", list.Total)))
	r.Summaries(list.Items)
}

// Summaries renders insight summaries as a table. Shared between the remote
// history page and the local cache listing.
func (r *Renderer) Summaries(items []models.InsightSummary) {
	if len(items) == 0 {
		fmt.Fprintln(r.out, dimStyle.Render("No analyses yet."))
		return
	}

	fmt.Fprintf(r.out, "  %-6s %-8s %-22s %-6s %-12s %-5s %s\n",
		"ID", "Symbol", "Name", "Term", "Call", "Risk", "Date")
	for _, item := range items {
		call := recommendationStyle(item.Recommendation).Render(recommendationLabel(item.Recommendation))
		fmt.Fprintf(r.out, "  %-6d %-8s %-22s %-6s %-12s %-5d %s\n",
			item.ID,
			item.StockCode,
			truncate(item.StockName, 22),
			string(item.Timeframe),
			call,
			item.RiskScore,
			item.CreatedAt)
	}
}

// Matches renders stock search hits.
func (r *Renderer) Matches(matches []models.StockMatch) {
	if len(matches) == 0 {
		fmt.Fprintln(r.out, dimStyle.Render("No matching stocks."))
		return
	}
	for _, m := range matches {
		fmt.Fprintf(r.out, "  %s  %s %s\n",
			sectionStyle.Render(m.Symbol), m.Name, dimStyle.Render("("+m.Market+")"))
	}
}

// CheckoutHandoff tells the user their browser opened the payment page.
func (r *Renderer) CheckoutHandoff(checkoutURL string) {
	fmt.Fprintln(r.out, infoStyle.Render("Opening the payment page in your browser..."))
	fmt.Fprintln(r.out, dimStyle.Render("  If nothing opened, visit: "+checkoutURL))
	fmt.Fprintln(r.out, dimStyle.Render("  Waiting for the payment to complete (Ctrl+C to cancel)."))
}

// Analyzing shows the in-flight notice between payment and report.
func (r *Renderer) Analyzing(stockQuery string) {
	fmt.Fprintln(r.out, infoStyle.Render(fmt.Sprintf("Running deep research on %s, this can take a minute...", stockQuery)))
}

// Error shows a failure message.
func (r *Renderer) Error(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(r.out, errorStyle.Render("✗ "+err.Error()))
}

// Errorf shows a formatted failure message.
func (r *Renderer) Errorf(format string, args ...any) {
	fmt.Fprintln(r.out, errorStyle.Render("✗ "+fmt.Sprintf(format, args...)))
}

// Info shows a neutral status message.
func (r *Renderer) Info(message string) {
	fmt.Fprintln(r.out, infoStyle.Render(message))
}

// Success shows a confirmation message.
func (r *Renderer) Success(message string) {
	fmt.Fprintln(r.out, successStyle.Render("✓ "+message))
}

func recommendationStyle(rec models.Recommendation) lipgloss.Style {
	switch rec {
	case models.StrongBuy, models.Buy:
		return buyStyle
	case models.Sell, models.StrongSell:
		return sellStyle
	default:
		return holdStyle
	}
}

func recommendationLabel(rec models.Recommendation) string {
	switch rec {
	case models.StrongBuy:
		return "STRONG BUY"
	case models.Buy:
		return "BUY"
	case models.Hold:
		return "HOLD"
	case models.Sell:
		return "SELL"
	case models.StrongSell:
		return "STRONG SELL"
	}
	return strings.ToUpper(string(rec))
}

func timeframeLabel(tf models.Timeframe) string {
	switch tf {
	case models.TimeframeShort:
		return "short term (days to weeks)"
	case models.TimeframeMid:
		return "mid term (weeks to months)"
	case models.TimeframeLong:
		return "long term (months to years)"
	}
	return string(tf)
}

// riskBar renders a 1..10 risk score as a filled bar.
func riskBar(score int) string {
	if score < 0 {
		score = 0
	}
	if score > 10 {
		score = 10
	}
	bar := strings.Repeat("█", score) + strings.Repeat("░", 10-score)
	style := buyStyle
	switch {
	case score >= 7:
		style = sellStyle
	case score >= 4:
		style = holdStyle
	}
	return style.Render(bar) + fmt.Sprintf(" %d/10", score)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// wrap breaks text at word boundaries to fit within width columns.
func wrap(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	var b strings.Builder
	lineLen := 0
	for i, word := range words {
		if i > 0 {
			if lineLen+1+len(word) > width {
				b.WriteString("\n")
				lineLen = 0
			} else {
				b.WriteString(" ")
				lineLen++
			}
		}
		b.WriteString(word)
		lineLen += len(word)
	}
	return b.String()
}
