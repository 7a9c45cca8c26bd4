package report

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anstrom/scanfinder/internal/errors"
	"github.com/anstrom/scanfinder/internal/scanning"
)

const (
	reportFilePerm = 0o644
	timestampFmt   = "2006-01-02 15:04:05"
)

var rule = strings.Repeat("=", 60)

// Stem returns the input file name without directory and extension.
func Stem(inputPath string) string {
	base := filepath.Base(inputPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// DiscoveryPath returns <dir>/<stem>_scannable_ips.txt.
func DiscoveryPath(dir, inputPath string) string {
	return filepath.Join(dir, Stem(inputPath)+"_scannable_ips.txt")
}

// PortScanPath returns <dir>/<stem>_top<N>_scan.txt.
func PortScanPath(dir, inputPath string, topPorts int) string {
	return filepath.Join(dir, fmt.Sprintf("%s_top%d_scan.txt", Stem(inputPath), topPorts))
}

// WriteActive writes one address per line to path.
func WriteActive(path string, addresses []string) error {
	return writeFile(path, func(w *bufio.Writer) error {
		for _, a := range addresses {
			if _, err := w.WriteString(a + "\n"); err != nil {
				return err
			}
		}
		return nil
	})
}

// PortScanReport is the content of a port-scan results file.
type PortScanReport struct {
	InputPath string
	Generated time.Time
	// Outcomes are written in the given order.
	Outcomes []scanning.Outcome
}

// WritePortScan writes report to path in the port-scan results format: a
// header with timestamp, input path and host count, then one block per host.
func WritePortScan(path string, report PortScanReport) error {
	generated := report.Generated
	if generated.IsZero() {
		generated = time.Now()
	}

	return writeFile(path, func(w *bufio.Writer) error {
		fmt.Fprintf(w, "Port Scan Results - %s\n", generated.Format(timestampFmt))
		fmt.Fprintf(w, "Input file: %s\n", report.InputPath)
		fmt.Fprintf(w, "Total IPs scanned: %d\n", len(report.Outcomes))
		fmt.Fprintf(w, "%s\n\n", rule)

		for _, o := range report.Outcomes {
			status := "NO OPEN PORTS / FILTERED"
			if o.Success {
				status = "OPEN PORTS FOUND"
			}
			fmt.Fprintf(w, "\n%s\nIP: %s - %s\n%s\n%s\n", rule, o.Address, status, rule, o.Detail)
		}
		return nil
	})
}

func writeFile(path string, fill func(w *bufio.Writer) error) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, reportFilePerm)
	if err != nil {
		return errors.NewFileError(errors.CodeFileWrite, "failed to create report", path, err)
	}

	w := bufio.NewWriter(f)
	if err := fill(w); err != nil {
		_ = f.Close()
		return errors.NewFileError(errors.CodeFileWrite, "failed to write report", path, err)
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return errors.NewFileError(errors.CodeFileWrite, "failed to write report", path, err)
	}
	if err := f.Close(); err != nil {
		return errors.NewFileError(errors.CodeFileWrite, "failed to close report", path, err)
	}
	return nil
}
