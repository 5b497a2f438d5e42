package batch

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Progress line rendering.
const (
	// barWidth is the width of the progress bar on a terminal.
	barWidth = 24

	// elapsedPrecision is the rounding applied to elapsed times.
	elapsedPrecision = 10 * time.Millisecond

	// etaPrecision is the rounding applied to the remaining-time estimate.
	etaPrecision = time.Second

	// clearLine returns the cursor to column 0 and erases the line.
	clearLine = "\r\x1b[K"
)

// LineReporter renders progress as a single line.
//
// On a terminal the line is redrawn in place with a progress bar; otherwise
// each report is written as its own line so logs and pipes stay readable.
type LineReporter struct {
	w        io.Writer
	terminal bool
	bar      progress.Model
	printer  *message.Printer
	dim      lipgloss.Style

	mu sync.Mutex
}

// NewLineReporter creates a reporter writing to w. Terminal mode is enabled
// when w is a file attached to a terminal.
func NewLineReporter(w io.Writer) *LineReporter {
	terminal := false
	if f, ok := w.(*os.File); ok {
		terminal = term.IsTerminal(int(f.Fd()))
	}
	return newLineReporter(w, terminal)
}

func newLineReporter(w io.Writer, terminal bool) *LineReporter {
	return &LineReporter{
		w:        w,
		terminal: terminal,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(barWidth), progress.WithoutPercentage()),
		printer:  message.NewPrinter(language.English),
		dim:      lipgloss.NewStyle().Faint(true),
	}
}

// Report renders snapshot, replacing the previous line on a terminal.
func (r *LineReporter) Report(snapshot ProgressSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.terminal {
		_, _ = fmt.Fprint(r.w, clearLine+r.terminalLine(snapshot))
		return
	}
	_, _ = fmt.Fprintln(r.w, FormatLine(r.printer, snapshot))
}

// Finish renders the final state and terminates the line.
func (r *LineReporter) Finish(snapshot ProgressSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.terminal {
		_, _ = fmt.Fprintln(r.w, clearLine+r.terminalLine(snapshot))
		return
	}
	_, _ = fmt.Fprintln(r.w, FormatLine(r.printer, snapshot))
}

func (r *LineReporter) terminalLine(snapshot ProgressSnapshot) string {
	line := r.bar.ViewAs(snapshot.PercentComplete/percentMultiplier) + " " + formatCounts(r.printer, snapshot)
	if snapshot.LastProcessed != "" {
		line += " " + r.dim.Render("last: "+snapshot.LastProcessed)
	}
	return line
}

// FormatLine renders a snapshot as plain text, for example
// "1,230/5,000 rows, 2m3.45s elapsed, ETA 6m24s, last: 5551234567 (mobile)".
// The ETA is omitted while it rounds to zero.
// A nil printer uses English number formatting.
func FormatLine(p *message.Printer, snapshot ProgressSnapshot) string {
	if p == nil {
		p = message.NewPrinter(language.English)
	}
	line := formatCounts(p, snapshot)
	if snapshot.LastProcessed != "" {
		line += ", last: " + snapshot.LastProcessed
	}
	return line
}

func formatCounts(p *message.Printer, snapshot ProgressSnapshot) string {
	line := p.Sprintf("%d/%d rows, %s elapsed",
		snapshot.ProcessedItems, snapshot.TotalItems, snapshot.ElapsedTime.Round(elapsedPrecision).String())
	if eta := snapshot.EstimatedRemaining.Round(etaPrecision); eta > 0 {
		line += ", ETA " + eta.String()
	}
	return line
}

// ReporterFunc adapts a function to Reporter; Finish calls the same function.
type ReporterFunc func(snapshot ProgressSnapshot)

// Report calls f.
func (f ReporterFunc) Report(snapshot ProgressSnapshot) { f(snapshot) }

// Finish calls f.
func (f ReporterFunc) Finish(snapshot ProgressSnapshot) { f(snapshot) }
