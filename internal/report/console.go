package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/pterm/pterm"

	"github.com/anstrom/scanfinder/internal/scanning"
)

// Console renders run information and summaries for a human reader.
type Console struct {
	w io.Writer
}

// NewConsole creates a console renderer writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Banner prints the application banner with the current time in a box.
func (c *Console) Banner(title string, now time.Time) {
	pterm.DefaultBox.
		WithWriter(c.w).
		Println(title + "\n" + now.Format(timestampFmt))
	fmt.Fprintln(c.w)
}

// ScanInfo lists the parameters of an upcoming pass.
func (c *Console) ScanInfo(total, workers int, modeLabel string) {
	table := tablewriter.NewWriter(c.w)
	_ = table.Append([]string{"- Valid IPs in file:", strconv.Itoa(total)})
	_ = table.Append([]string{"- Concurrent scans:", strconv.Itoa(min(max(workers, 1), total))})
	_ = table.Append([]string{"- Scan mode:", modeLabel})
	_ = table.Render()
	fmt.Fprintln(c.w)
}

// Summary prints the outcome counts of a pass and where its results went.
func (c *Console) Summary(title string, summary Summary, savedTo string) {
	successLabel, failureLabel := "Scannable IPs:", "Non-scannable:"
	if summary.Mode == scanning.ModePortScan {
		successLabel, failureLabel = "With open ports:", "No open ports:"
	}

	fmt.Fprintln(c.w)
	table := tablewriter.NewWriter(c.w)
	table.Header(title, "")
	_ = table.Append([]string{"Total scanned:", strconv.Itoa(summary.Total)})
	_ = table.Append([]string{successLabel, strconv.Itoa(summary.Success)})
	_ = table.Append([]string{failureLabel, strconv.Itoa(summary.Failure)})
	_ = table.Render()

	if savedTo != "" {
		fmt.Fprintf(c.w, "\nResults saved:\n  %s\n", savedTo)
	}
}

// ModeLabel describes mode for the scan info table.
func ModeLabel(mode scanning.Mode, topPorts int) string {
	if mode == scanning.ModePortScan {
		return fmt.Sprintf("Port Scan (top %d)", topPorts)
	}
	return "Host Discovery"
}
