package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/autoledger/internal/audit"
	"github.com/Veraticus/autoledger/internal/ledger"
	"github.com/Veraticus/autoledger/internal/model"
	"github.com/Veraticus/autoledger/internal/parser"
)

const maxCellWidth = 28

// FormatCents renders an amount in yuan, e.g. 2850 -> "¥28.50".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s¥%d.%02d", sign, cents/100, cents%100)
}

// RenderOutcome describes one processed notification in a box.
func RenderOutcome(o ledger.Outcome) string {
	if o.Record == nil {
		return FormatError("notification was not processed")
	}
	rec := o.Record

	var b strings.Builder
	fmt.Fprintf(&b, "Status:     %s\n", FormatStatus(o.Status))
	fmt.Fprintf(&b, "App:        %s (%s)\n", rec.SourceApp, rec.SourceType)
	if rec.ParserName != "" {
		fmt.Fprintf(&b, "Parser:     %s v%d\n", rec.ParserName, rec.ParserVersion)
	}

	if n, ok := o.Notification(); ok {
		fmt.Fprintf(&b, "Amount:     %s %s\n", FormatCents(n.AmountCents), n.Currency)
		fmt.Fprintf(&b, "Direction:  %s (%s)\n", n.Direction, DescribeDirection(n.Direction))
		if m := n.Merchant(); m != "" {
			fmt.Fprintf(&b, "Merchant:   %s\n", m)
		}
		if n.PaymentMethod != "" {
			fmt.Fprintf(&b, "Method:     %s\n", n.PaymentMethod)
		}
		if len(n.Tags) > 0 {
			fmt.Fprintf(&b, "Tags:       %s\n", strings.Join(n.Tags, ", "))
		}
		fmt.Fprintf(&b, "Confidence: %.2f\n", n.Confidence)
	}
	if o.Reason != "" {
		fmt.Fprintf(&b, "Reason:     %s\n", SubtleStyle.Render(o.Reason))
	}
	fmt.Fprintf(&b, "Record:     %s", SubtleStyle.Render(rec.ID))

	title := "Notification"
	switch {
	case o.AutoCreate():
		title = "Transaction ready"
	case o.NeedsConfirmation():
		title = "Transaction needs confirmation"
	}
	return RenderBox(title, b.String())
}

// RenderRecords renders debug records as a table, newest first as given.
func RenderRecords(records []*audit.Record) string {
	if len(records) == 0 {
		return FormatInfo("No debug records found")
	}

	header := []string{"CREATED", "APP", "STATUS", "AMOUNT", "DIRECTION", "MERCHANT", "CONF", "MESSAGE"}
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		amount := "-"
		if cents, ok := rec.Amount(); ok {
			amount = FormatCents(cents)
		}
		direction := string(rec.ParsedDirection)
		if direction == "" {
			direction = "-"
		}
		conf := "-"
		if rec.Status.IsSuccess() || rec.Status == audit.StatusSkippedDuplicate {
			conf = fmt.Sprintf("%.2f", rec.ParseConfidence)
		}
		rows = append(rows, []string{
			rec.CreatedAt.Local().Format(time.DateTime),
			rec.SourceApp,
			string(rec.Status),
			amount,
			direction,
			orDash(rec.ParsedMerchant),
			conf,
			orDash(rec.ErrorMessage),
		})
	}

	return renderTable(header, rows, func(row []string, col int, cell string) string {
		if col == 2 {
			return StatusStyle(audit.ProcessingStatus(row[2])).Render(cell)
		}
		return cell
	})
}

// RenderRecordDetail shows every field of one record.
func RenderRecordDetail(rec *audit.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Status:      %s\n", FormatStatus(rec.Status))
	fmt.Fprintf(&b, "Created:     %s\n", rec.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(&b, "Posted:      %s\n", rec.PostedAt().Local().Format(time.DateTime))
	fmt.Fprintf(&b, "App:         %s (%s)\n", rec.SourceApp, rec.SourceType)
	fmt.Fprintf(&b, "Title:       %s\n", rec.NotificationTitle)
	fmt.Fprintf(&b, "Text:        %s\n", rec.NotificationText)
	if rec.RawText != "" {
		fmt.Fprintf(&b, "Raw text:    %s\n", rec.RawText)
	}
	if cents, ok := rec.Amount(); ok {
		fmt.Fprintf(&b, "Amount:      %s\n", FormatCents(cents))
		fmt.Fprintf(&b, "Direction:   %s\n", rec.ParsedDirection)
		fmt.Fprintf(&b, "Merchant:    %s\n", orDash(rec.ParsedMerchant))
		fmt.Fprintf(&b, "Confidence:  %.2f\n", rec.ParseConfidence)
	}
	if rec.ParserName != "" {
		fmt.Fprintf(&b, "Parser:      %s v%d\n", rec.ParserName, rec.ParserVersion)
	}
	if rec.Fingerprint != "" {
		fmt.Fprintf(&b, "Fingerprint: %s\n", rec.Fingerprint)
	}
	if rec.ErrorMessage != "" {
		fmt.Fprintf(&b, "Message:     %s\n", rec.ErrorMessage)
	}
	fmt.Fprintf(&b, "Elapsed:     %s\n", rec.ProcessingTime)
	fmt.Fprintf(&b, "Masked:      %t", rec.SensitiveDataMasked)
	return RenderBox("Debug record "+rec.ID, b.String())
}

// RenderStatusCounts renders record counts in status order, skipping empty ones.
func RenderStatusCounts(counts map[audit.ProcessingStatus]int) string {
	total := 0
	for _, status := range audit.AllStatuses() {
		total += counts[status]
	}
	if total == 0 {
		return FormatInfo("No debug records yet")
	}

	rows := make([][]string, 0, len(counts)+1)
	for _, status := range audit.AllStatuses() {
		n := counts[status]
		if n == 0 {
			continue
		}
		rows = append(rows, []string{
			string(status),
			fmt.Sprintf("%d", n),
			fmt.Sprintf("%.1f%%", float64(n)*100/float64(total)),
		})
	}
	rows = append(rows, []string{"TOTAL", fmt.Sprintf("%d", total), "100.0%"})

	return renderTable([]string{"STATUS", "RECORDS", "SHARE"}, rows, func(row []string, col int, cell string) string {
		if col == 0 && row[0] != "TOTAL" {
			return StatusStyle(audit.ProcessingStatus(row[0])).Render(cell)
		}
		return cell
	})
}

// RenderParserStats renders per-parser counters sorted by name.
func RenderParserStats(stats []parser.ParserStats, unsupported int64) string {
	sorted := append([]parser.ParserStats(nil), stats...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	rows := make([][]string, 0, len(sorted))
	for _, s := range sorted {
		rows = append(rows, []string{
			s.Name,
			fmt.Sprintf("v%d", s.Version),
			fmt.Sprintf("%d", s.Attempts),
			fmt.Sprintf("%d", s.Successes),
			fmt.Sprintf("%d", s.Failures),
			fmt.Sprintf("%d", s.Skips),
			fmt.Sprintf("%d", s.Errors),
			fmt.Sprintf("%.1f%%", s.SuccessRate()*100),
		})
	}

	table := renderTable(
		[]string{"PARSER", "VERSION", "ATTEMPTS", "OK", "FAILED", "SKIPPED", "ERRORS", "RATE"},
		rows, nil)
	return table + "\n" + SubtleStyle.Render(fmt.Sprintf("Unsupported apps: %d", unsupported))
}

// RenderSummary renders the tally of a batch run.
func RenderSummary(summary ledger.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Processed: %d\n", summary.Processed)
	if summary.Errors > 0 {
		fmt.Fprintf(&b, "Errors:    %s\n", ErrorStyle.Render(fmt.Sprintf("%d", summary.Errors)))
	}
	for _, status := range audit.AllStatuses() {
		if n := summary.ByStatus[status]; n > 0 {
			fmt.Fprintf(&b, "  %-24s %d\n", FormatStatus(status), n)
		}
	}
	return RenderBox("Replay summary", strings.TrimRight(b.String(), "\n"))
}

// DescribeDirection returns a short human label for a direction.
func DescribeDirection(d model.Direction) string {
	switch d {
	case model.DirectionExpense:
		return "money out"
	case model.DirectionIncome:
		return "money in"
	case model.DirectionRefund:
		return "refund"
	case model.DirectionTransfer:
		return "transfer"
	default:
		return "unknown"
	}
}

// renderTable pads cells by display width so CJK text lines up. style, if
// set, decorates a cell after padding.
func renderTable(header []string, rows [][]string, style func(row []string, col int, cell string) string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(truncate(cell, maxCellWidth)); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	headerCells := make([]string, len(header))
	for i, h := range header {
		headerCells[i] = pad(h, widths[i])
	}
	b.WriteString(TableHeaderStyle.Render(strings.Join(headerCells, "  ")))
	b.WriteString("\n")

	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cell = pad(truncate(cell, maxCellWidth), widths[i])
			if style != nil {
				cell = style(row, i, cell)
			}
			cells[i] = cell
		}
		b.WriteString(strings.TrimRight(strings.Join(cells, "  "), " "))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func pad(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
