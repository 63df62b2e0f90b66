package scanning

import (
	"fmt"
	"os"

	"github.com/beevik/etree"

	"github.com/anstrom/scanwrap/internal/errors"
	"github.com/anstrom/scanwrap/internal/logging"
	"github.com/anstrom/scanwrap/internal/metrics"
)

// Report file kinds used in logs and metrics.
const (
	KindXML   = "xml"
	KindNmap  = "nmap"
	KindGnmap = "gnmap"
)

// Parser turns a report file triple into a Report.
type Parser struct {
	logger   *logging.Logger
	recorder metrics.Recorder
}

// NewParser creates a parser. Nil arguments fall back to the default
// logger and a no-op recorder.
func NewParser(logger *logging.Logger, recorder metrics.Recorder) *Parser {
	if logger == nil {
		logger = logging.Default()
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Parser{
		logger:   logger.WithComponent("parser"),
		recorder: recorder,
	}
}

// ParseReport parses base.xml, base.nmap and base.gnmap with the default
// logger and no metrics.
func ParseReport(base string) *Report {
	return NewParser(nil, nil).Parse(base)
}

// Parse reads the three report files independently. A file that cannot be
// read leaves its raw field empty; an XML file that cannot be read or parsed
// also leaves the report without hosts. Failures are logged and collected in
// Report.Errors, never returned.
func (p *Parser) Parse(base string) *Report {
	report := &Report{Hosts: []*Host{}}

	report.RawGnmap = p.readText(report, base+ExtGnmap, KindGnmap)
	report.RawNmap = p.readText(report, base+ExtNmap, KindNmap)
	p.parseXML(report, base+ExtXML)

	p.record(report)
	return report
}

func (p *Parser) readText(report *Report, path, kind string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		p.fail(report, errors.WrapReportError(errors.CodeFileRead, path, err), kind)
		return ""
	}
	return string(data)
}

func (p *Parser) parseXML(report *Report, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		p.fail(report, errors.WrapReportError(errors.CodeFileRead, path, err), KindXML)
		return
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		p.fail(report, errors.WrapReportError(errors.CodeXMLParse, path, err), KindXML)
		return
	}
	if doc.Root() == nil {
		p.fail(report, errors.WrapReportError(errors.CodeXMLParse, path,
			fmt.Errorf("no root element")), KindXML)
		return
	}

	report.doc = doc
	report.RawXML = string(data)
	for _, el := range descendants(&doc.Element, "host") {
		report.Hosts = append(report.Hosts, newHost(el))
	}

	info, err := decodeRunInfo(doc)
	if err != nil {
		p.logger.Debug("Run metadata unavailable", "path", path, "error", err)
		return
	}
	report.Info = info
}

func (p *Parser) fail(report *Report, err *errors.ReportError, kind string) {
	report.Errors = append(report.Errors, err)
	p.logger.ErrorReport("Failed to parse report file", err.Path, err, "kind", kind)
	p.recorder.ReportFileError(kind)
}

func (p *Parser) record(report *Report) {
	hosts := make(map[HostStatus]int)
	ports := make(map[PortState]int)
	for _, h := range report.Hosts {
		hosts[h.Status]++
		ports[PortOpen] += len(h.OpenPorts)
		ports[PortClosed] += len(h.ClosedPorts)
		ports[PortFiltered] += len(h.FilteredPorts)
	}
	for status, n := range hosts {
		p.recorder.HostsParsed(string(status), n)
	}
	for state, n := range ports {
		if n > 0 {
			p.recorder.PortsParsed(state.String(), n)
		}
	}
}
