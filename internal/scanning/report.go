package scanning

import (
	"encoding/xml"
	"fmt"
	"sync"

	"github.com/Ullaakut/nmap/v3"
	"github.com/beevik/etree"

	"github.com/anstrom/scanwrap/internal/errors"
)

// RunInfo is the scan metadata carried by <nmaprun> and <runstats>.
type RunInfo struct {
	Scanner    string  `json:"scanner,omitempty"`
	Version    string  `json:"version,omitempty"`
	Args       string  `json:"args,omitempty"`
	StartStr   string  `json:"start_str,omitempty"`
	Elapsed    float32 `json:"elapsed,omitempty"`
	Summary    string  `json:"summary,omitempty"`
	HostsUp    int     `json:"hosts_up"`
	HostsDown  int     `json:"hosts_down"`
	HostsTotal int     `json:"hosts_total"`
}

// Report is the parsed result of one scan. Hosts are in document order.
// The raw fields hold file contents verbatim and are empty when a file
// could not be read; RawXML is also empty when the XML did not parse.
type Report struct {
	Hosts    []*Host
	RawXML   string
	RawNmap  string
	RawGnmap string
	Info     RunInfo

	// Errors lists the per-file failures hit while parsing.
	Errors []error

	doc      *etree.Document
	jsonOnce sync.Once
	jsonMap  map[string]any
	jsonErr  error
}

// Len returns the number of hosts.
func (r *Report) Len() int {
	return len(r.Hosts)
}

// Empty reports whether no hosts came back.
func (r *Report) Empty() bool {
	return len(r.Hosts) == 0
}

// Host returns the first host with the given address.
func (r *Report) Host(address string) (*Host, bool) {
	for _, h := range r.Hosts {
		if h.Address == address {
			return h, true
		}
	}
	return nil, false
}

// JSON converts the whole XML document to a generic map on first call
// and caches the result. It fails with CodeNoDocument when no XML was parsed.
func (r *Report) JSON() (map[string]any, error) {
	r.jsonOnce.Do(func() {
		if r.doc == nil || r.doc.Root() == nil {
			r.jsonErr = errors.ErrNoDocument()
			return
		}
		r.jsonMap, r.jsonErr = documentJSON(r.doc)
	})
	return r.jsonMap, r.jsonErr
}

// decodeRunInfo copies run metadata out of the document root. Host
// elements are stripped first so they are only ever parsed by etree.
func decodeRunInfo(doc *etree.Document) (RunInfo, error) {
	root := doc.Root()
	if root == nil {
		return RunInfo{}, errors.ErrNoDocument()
	}

	meta := root.Copy()
	for _, h := range meta.SelectElements("host") {
		meta.RemoveChild(h)
	}
	stripped := etree.NewDocument()
	stripped.SetRoot(meta)
	data, err := stripped.WriteToBytes()
	if err != nil {
		return RunInfo{}, fmt.Errorf("serialize run metadata: %w", err)
	}

	var run nmap.Run
	if err := xml.Unmarshal(data, &run); err != nil {
		return RunInfo{}, fmt.Errorf("decode run metadata: %w", err)
	}

	return RunInfo{
		Scanner:    run.Scanner,
		Version:    run.Version,
		Args:       run.Args,
		StartStr:   run.StartStr,
		Elapsed:    run.Stats.Finished.Elapsed,
		Summary:    run.Stats.Finished.Summary,
		HostsUp:    run.Stats.Hosts.Up,
		HostsDown:  run.Stats.Hosts.Down,
		HostsTotal: run.Stats.Hosts.Total,
	}, nil
}
