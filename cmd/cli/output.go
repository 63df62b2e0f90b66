package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/pflag"

	"github.com/anstrom/scanwrap/internal/scanning"
	"github.com/anstrom/scanwrap/internal/store"
)

// Report output formats.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatHosts = "hosts"
	formatXML   = "xml"
	formatNmap  = "nmap"
	formatGnmap = "gnmap"
)

var reportFormats = []string{formatTable, formatJSON, formatHosts, formatXML, formatNmap, formatGnmap}

func validateFormat(format string) error {
	for _, f := range reportFormats {
		if f == format {
			return nil
		}
	}
	return fmt.Errorf("invalid output format %q (valid: %s)", format, strings.Join(reportFormats, ", "))
}

// addFormatFlag registers --format/-f on flags.
func addFormatFlag(flags *pflag.FlagSet, target *string) {
	flags.StringVarP(target, "format", "f", formatTable,
		"Output format: "+strings.Join(reportFormats, ", "))
}

// writeReport renders report in the given format.
func writeReport(w io.Writer, report *scanning.Report, format string) error {
	switch format {
	case formatTable:
		return writeHostTable(w, report)
	case formatJSON:
		view, err := report.JSON()
		if err != nil {
			return err
		}
		return writeJSON(w, view)
	case formatHosts:
		views := make([]map[string]any, 0, report.Len())
		for _, host := range report.Hosts {
			view, err := host.JSON()
			if err != nil {
				return err
			}
			views = append(views, view)
		}
		return writeJSON(w, views)
	case formatXML:
		return writeRaw(w, report.RawXML)
	case formatNmap:
		return writeRaw(w, report.RawNmap)
	case formatGnmap:
		return writeRaw(w, report.RawGnmap)
	default:
		return validateFormat(format)
	}
}

func writeHostTable(w io.Writer, report *scanning.Report) error {
	table := tablewriter.NewWriter(w)
	table.Header("Host", "Status", "Open", "Closed", "Filtered", "Scripts")

	for _, host := range report.Hosts {
		scripts := 0
		for _, byID := range host.Scripts {
			scripts += len(byID)
		}
		_ = table.Append([]string{
			host.DisplayLabel(),
			string(host.Status),
			strings.Join(host.OpenPorts, ", "),
			strings.Join(host.ClosedPorts, ", "),
			strings.Join(host.FilteredPorts, ", "),
			fmt.Sprintf("%d", scripts),
		})
	}

	if err := table.Render(); err != nil {
		return err
	}

	info := report.Info
	if info.Summary != "" {
		_, err := fmt.Fprintln(w, info.Summary)
		return err
	}
	_, err := fmt.Fprintf(w, "%d hosts (%d up, %d down)\n", report.Len(), info.HostsUp, info.HostsDown)
	return err
}

func writeReportRecords(w io.Writer, records []store.ReportRecord) error {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Session", "Scanner", "Hosts", "Elapsed", "Created")

	for _, r := range records {
		_ = table.Append([]string{
			r.ID.String(),
			r.SessionID,
			strings.TrimSpace(r.Scanner + " " + r.ScannerVersion),
			fmt.Sprintf("%d", r.HostCount),
			fmt.Sprintf("%.2fs", r.ElapsedSeconds),
			r.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	return table.Render()
}

func writeHostRecords(w io.Writer, hosts []store.HostRecord) error {
	table := tablewriter.NewWriter(w)
	table.Header("#", "Address", "Status", "Hostnames", "Open", "Closed", "Filtered")

	for _, h := range hosts {
		_ = table.Append([]string{
			fmt.Sprintf("%d", h.Position),
			h.Address,
			h.Status,
			strings.Join(h.Hostnames, ", "),
			strings.Join(h.OpenPorts, ", "),
			strings.Join(h.ClosedPorts, ", "),
			strings.Join(h.FilteredPorts, ", "),
		})
	}
	return table.Render()
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func writeRaw(w io.Writer, text string) error {
	if text == "" {
		return fmt.Errorf("report file is empty or was not produced")
	}
	_, err := io.WriteString(w, text)
	return err
}
