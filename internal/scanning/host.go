package scanning

import (
	"strings"
	"sync"

	"github.com/beevik/etree"

	"github.com/anstrom/scanwrap/internal/errors"
)

// HostScriptsScope is the Scripts key holding host-level script output.
const HostScriptsScope = "hostscripts"

// Defaults applied when the report omits an attribute.
const (
	defaultPortID    = "0"
	defaultProtocol  = "tcp"
	defaultPortState = "closed"
)

// HostStatus is the reachability reported for a host.
type HostStatus string

const (
	StatusUp      HostStatus = "up"
	StatusDown    HostStatus = "down"
	StatusUnknown HostStatus = "unknown"
)

// ParseHostStatus maps a status/@state value. Anything that is not up or
// down is unknown.
func ParseHostStatus(s string) HostStatus {
	switch HostStatus(s) {
	case StatusUp, StatusDown:
		return HostStatus(s)
	default:
		return StatusUnknown
	}
}

// PortState is the category a port is filed under.
type PortState int

const (
	// PortOther covers every state outside open, closed and filtered,
	// such as "open|filtered". Those ports are not filed anywhere.
	PortOther PortState = iota
	PortOpen
	PortClosed
	PortFiltered
)

// ParsePortState matches the state string exactly.
func ParsePortState(s string) PortState {
	switch s {
	case "open":
		return PortOpen
	case "closed":
		return PortClosed
	case "filtered":
		return PortFiltered
	default:
		return PortOther
	}
}

func (s PortState) String() string {
	switch s {
	case PortOpen:
		return "open"
	case PortClosed:
		return "closed"
	case PortFiltered:
		return "filtered"
	default:
		return "other"
	}
}

// Scripts maps a scope (a port token or HostScriptsScope) to script id and output.
type Scripts map[string]map[string]string

func (s Scripts) set(scope, id, output string) {
	if s[scope] == nil {
		s[scope] = make(map[string]string)
	}
	s[scope][id] = output
}

// Host is a snapshot of one <host> element. Port lists hold
// "<port>/<protocol>" tokens in report order.
//
// The exported slices and maps are shared with the owning Report and with
// every caller; treat them as read-only and copy before modifying.
type Host struct {
	Status        HostStatus
	Address       string
	Hostnames     []string
	OpenPorts     []string
	ClosedPorts   []string
	FilteredPorts []string
	Scripts       Scripts

	element  *etree.Element
	jsonOnce sync.Once
	jsonMap  map[string]any
	jsonErr  error
}

// newHost derives every Host field from el in one pass.
func newHost(el *etree.Element) *Host {
	h := &Host{
		Status:        StatusDown,
		Hostnames:     []string{},
		OpenPorts:     []string{},
		ClosedPorts:   []string{},
		FilteredPorts: []string{},
		Scripts:       make(Scripts),
		element:       el,
	}

	if status := el.FindElement("status"); status != nil {
		h.Status = ParseHostStatus(status.SelectAttrValue("state", string(StatusDown)))
	}
	if addr := el.FindElement("address"); addr != nil {
		h.Address = addr.SelectAttrValue("addr", "")
	}

	seen := make(map[string]struct{})
	for _, hn := range el.FindElements("hostnames/hostname") {
		name := hn.SelectAttrValue("name", "")
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		h.Hostnames = append(h.Hostnames, name)
	}

	for _, port := range el.FindElements("ports/port") {
		token := portToken(port)

		state := defaultPortState
		if st := port.FindElement("state"); st != nil {
			state = st.SelectAttrValue("state", defaultPortState)
		}

		switch ParsePortState(state) {
		case PortOpen:
			h.OpenPorts = append(h.OpenPorts, token)
		case PortClosed:
			h.ClosedPorts = append(h.ClosedPorts, token)
		case PortFiltered:
			h.FilteredPorts = append(h.FilteredPorts, token)
		case PortOther:
		}

		for _, script := range descendants(port, "script") {
			h.addScript(token, script)
		}
	}

	for _, script := range el.FindElements("hostscript/script") {
		h.addScript(HostScriptsScope, script)
	}

	return h
}

func portToken(port *etree.Element) string {
	id := port.SelectAttrValue("portid", defaultPortID)
	proto := strings.ToLower(port.SelectAttrValue("protocol", defaultProtocol))
	return id + "/" + proto
}

// addScript records script output under scope; a later id overwrites an earlier one.
func (h *Host) addScript(scope string, script *etree.Element) {
	id := script.SelectAttrValue("id", "")
	if id == "" {
		return
	}
	h.Scripts.set(scope, id, script.SelectAttrValue("output", ""))
}

// DisplayLabel renders "<address> (<hostname>, ...)", dropping the address
// when empty and the parenthetical when there are no hostnames.
func (h *Host) DisplayLabel() string {
	parts := make([]string, 0, 2)
	if h.Address != "" {
		parts = append(parts, h.Address)
	}
	if len(h.Hostnames) > 0 {
		parts = append(parts, "("+strings.Join(h.Hostnames, ", ")+")")
	}
	return strings.Join(parts, " ")
}

// String returns DisplayLabel.
func (h *Host) String() string {
	return h.DisplayLabel()
}

// Ports returns all categorized ports: open, then closed, then filtered.
func (h *Host) Ports() []string {
	ports := make([]string, 0, len(h.OpenPorts)+len(h.ClosedPorts)+len(h.FilteredPorts))
	ports = append(ports, h.OpenPorts...)
	ports = append(ports, h.ClosedPorts...)
	return append(ports, h.FilteredPorts...)
}

// HasOpenPort reports whether token (e.g. "80/tcp") is open.
func (h *Host) HasOpenPort(token string) bool {
	for _, p := range h.OpenPorts {
		if p == token {
			return true
		}
	}
	return false
}

// HostScripts returns host-level script output, or nil if there is none.
func (h *Host) HostScripts() map[string]string {
	return h.Scripts[HostScriptsScope]
}

// JSON converts the host's XML subtree to a generic map on first call and
// returns the cached value afterwards. Safe for concurrent use.
func (h *Host) JSON() (map[string]any, error) {
	h.jsonOnce.Do(func() {
		if h.element == nil {
			h.jsonErr = errors.ErrNoDocument()
			return
		}
		h.jsonMap, h.jsonErr = elementJSON(h.element)
	})
	return h.jsonMap, h.jsonErr
}
