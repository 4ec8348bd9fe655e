package vlantest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/netvalid/vlanpath/pkg/cli"
)

// CSVHeader is the column set of the results file.
var CSVHeader = []string{"HostName", "VDSwitch", "Uplink", "VLAN", "Status", "Tx", "Rx", "Message"}

// CSVRow renders one result as a CSV record. NoIP rows leave Tx/Rx empty:
// no probe ran, so zero counts would be misleading.
func CSVRow(r UplinkTestResult) []string {
	tx, rx := "", ""
	if r.Status != StatusNoIP {
		tx = strconv.Itoa(r.Transmitted)
		rx = strconv.Itoa(r.Received)
	}
	return []string{
		r.Host,
		r.Switch,
		r.Uplink,
		strconv.Itoa(r.VlanID),
		string(r.Status),
		tx,
		rx,
		r.Message,
	}
}

// WriteCSV writes all results to path, header first.
func WriteCSV(path string, results []UplinkTestResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating results file %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range results {
		if err := w.Write(CSVRow(r)); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("writing results file %s: %w", path, err)
	}
	return nil
}

// RenderTable writes a human-readable results table to w.
func RenderTable(w io.Writer, results []UplinkTestResult) {
	tbl := cli.NewTableTo(w, "HOST", "SWITCH", "UPLINK", "VLAN", "STATUS", "TX", "RX", "MESSAGE")
	for _, r := range results {
		row := CSVRow(r)
		tbl.Row(row[0], row[1], row[2], row[3], cli.Status(row[4]), row[5], row[6], row[7])
	}
	tbl.Flush()
}

// Summary counts results by status.
type Summary struct {
	Passed  int
	Partial int
	Failed  int
	NoIP    int
}

// Summarize tallies results by status.
func Summarize(results []UplinkTestResult) Summary {
	var s Summary
	for _, r := range results {
		switch r.Status {
		case StatusPassed:
			s.Passed++
		case StatusPartial:
			s.Partial++
		case StatusFailed:
			s.Failed++
		case StatusNoIP:
			s.NoIP++
		}
	}
	return s
}

// String renders the summary as a one-line report.
func (s Summary) String() string {
	return fmt.Sprintf("%d passed, %d partial, %d failed, %d no-ip", s.Passed, s.Partial, s.Failed, s.NoIP)
}
