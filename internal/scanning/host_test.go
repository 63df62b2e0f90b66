package scanning

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/scanwrap/internal/errors"
)

func TestNewHost_Status(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		want HostStatus
	}{
		{"up", `<host><status state="up"/></host>`, StatusUp},
		{"down", `<host><status state="down"/></host>`, StatusDown},
		{"unknown", `<host><status state="unknown"/></host>`, StatusUnknown},
		{"unexpected value", `<host><status state="skipped"/></host>`, StatusUnknown},
		{"missing element", `<host/>`, StatusDown},
		{"missing attribute", `<host><status reason="x"/></host>`, StatusDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hostFromXML(t, tt.xml).Status)
		})
	}
}

func TestNewHost_AddressAndHostnames(t *testing.T) {
	h := hostFromXML(t, `<host>
		<address addr="192.0.2.7" addrtype="ipv4"/>
		<address addr="00:11:22:33:44:55" addrtype="mac"/>
		<hostnames>
			<hostname name="b.test"/>
			<hostname name="a.test"/>
			<hostname name="b.test"/>
			<hostname type="PTR"/>
			<hostname name="c.test"/>
		</hostnames>
	</host>`)

	assert.Equal(t, "192.0.2.7", h.Address)
	assert.Equal(t, []string{"b.test", "a.test", "c.test"}, h.Hostnames)
}

func TestNewHost_EmptyElement(t *testing.T) {
	h := hostFromXML(t, `<host/>`)

	assert.Equal(t, "", h.Address)
	assert.Empty(t, h.Hostnames)
	assert.NotNil(t, h.OpenPorts)
	assert.Empty(t, h.OpenPorts)
	assert.Empty(t, h.ClosedPorts)
	assert.Empty(t, h.FilteredPorts)
	assert.Empty(t, h.Scripts)
	assert.Equal(t, "", h.DisplayLabel())
}

func TestNewHost_PortCategories(t *testing.T) {
	h := hostFromXML(t, `<host><ports>
		<port protocol="tcp" portid="22"><state state="open"/></port>
		<port protocol="UDP" portid="53"><state state="open"/></port>
		<port protocol="tcp" portid="23"><state state="closed"/></port>
		<port protocol="tcp" portid="25"><state state="filtered"/></port>
		<port protocol="udp" portid="161"><state state="open|filtered"/></port>
		<port protocol="tcp" portid="111"><state state="unfiltered"/></port>
		<port portid="8080"><state state="open"/></port>
		<port protocol="tcp"><state state="open"/></port>
		<port protocol="tcp" portid="443"/>
	</ports></host>`)

	assert.Equal(t, []string{"22/tcp", "53/udp", "8080/tcp", "0/tcp"}, h.OpenPorts)
	assert.Equal(t, []string{"23/tcp", "443/tcp"}, h.ClosedPorts)
	assert.Equal(t, []string{"25/tcp"}, h.FilteredPorts)

	for _, p := range h.Ports() {
		assert.NotEqual(t, "161/udp", p)
		assert.NotEqual(t, "111/tcp", p)
	}
	assert.Len(t, h.Ports(), 7)
	assert.True(t, h.HasOpenPort("53/udp"))
	assert.False(t, h.HasOpenPort("23/tcp"))
}

func TestNewHost_Scripts(t *testing.T) {
	h := hostFromXML(t, `<host>
		<ports>
			<port protocol="tcp" portid="80">
				<state state="open"/>
				<script id="http-title" output="first"/>
				<script id="http-title" output="second"/>
				<service name="http"><script id="nested" output="deep"/></service>
				<script output="no id"/>
			</port>
			<port protocol="tcp" portid="81">
				<state state="open|filtered"/>
				<script id="probe" output="kept"/>
			</port>
		</ports>
		<hostscript>
			<script id="asn-query" output="AS1"/>
			<script id="asn-query" output="AS2"/>
			<script id="whois"/>
		</hostscript>
	</host>`)

	assert.Equal(t, map[string]string{"http-title": "second", "nested": "deep"}, h.Scripts["80/tcp"])
	assert.Equal(t, map[string]string{"probe": "kept"}, h.Scripts["81/tcp"])
	assert.Equal(t, map[string]string{"asn-query": "AS2", "whois": ""}, h.HostScripts())
}

func TestHost_DisplayLabel(t *testing.T) {
	tests := []struct {
		name string
		host *Host
		want string
	}{
		{"address and names", &Host{Address: "192.0.2.1", Hostnames: []string{"a.test", "b.test"}}, "192.0.2.1 (a.test, b.test)"},
		{"address only", &Host{Address: "192.0.2.1"}, "192.0.2.1"},
		{"names only", &Host{Hostnames: []string{"a.test"}}, "(a.test)"},
		{"nothing", &Host{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.host.DisplayLabel())
			assert.Equal(t, tt.want, tt.host.String())
		})
	}
}

func TestHost_JSON(t *testing.T) {
	h := hostFromXML(t, `<host>
		<status state="up"/>
		<address addr="192.0.2.1" addrtype="ipv4"/>
		<ports>
			<port protocol="tcp" portid="22"><state state="open"/></port>
			<port protocol="tcp" portid="80"><state state="closed"/></port>
		</ports>
		<comment>hello</comment>
	</host>`)

	m, err := h.JSON()
	require.NoError(t, err)

	host, ok := m["host"].(map[string]any)
	require.True(t, ok, "host key missing: %v", m)

	status := host["status"].(map[string]any)
	assert.Equal(t, "up", status[AttrPrefix+"state"])

	ports := host["ports"].(map[string]any)["port"].([]any)
	require.Len(t, ports, 2)
	assert.Equal(t, "22", ports[0].(map[string]any)[AttrPrefix+"portid"])
	assert.Equal(t, "hello", host["comment"])

	again, err := h.JSON()
	require.NoError(t, err)
	assert.Equal(t, m, again)
}

func TestHost_JSONConcurrent(t *testing.T) {
	h := hostFromXML(t, `<host><status state="up"/></host>`)

	var wg sync.WaitGroup
	results := make([]map[string]any, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = h.JSON()
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, results[0], r)
	}
}

func TestHost_JSONWithoutElement(t *testing.T) {
	_, err := (&Host{}).JSON()
	assert.True(t, errors.IsCode(err, errors.CodeNoDocument))
}

func TestParsePortState(t *testing.T) {
	assert.Equal(t, PortOpen, ParsePortState("open"))
	assert.Equal(t, PortClosed, ParsePortState("closed"))
	assert.Equal(t, PortFiltered, ParsePortState("filtered"))
	assert.Equal(t, PortOther, ParsePortState("open|filtered"))
	assert.Equal(t, PortOther, ParsePortState("OPEN"))
	assert.Equal(t, "other", PortOther.String())
	assert.Equal(t, "filtered", PortFiltered.String())
}
