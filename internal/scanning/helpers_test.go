package scanning

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/require"
)

// sampleReportXML is a single-host report with one open port, a port
// script and a host script.
const sampleReportXML = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE nmaprun>
<nmaprun scanner="nmap" args="nmap -oA base 192.0.2.1" start="1700000000" startstr="Tue Nov 14 22:13:20 2023" version="7.94" xmloutputversion="1.05">
  <host>
    <status state="up" reason="syn-ack"/>
    <address addr="192.0.2.1" addrtype="ipv4"/>
    <hostnames>
      <hostname name="example.test" type="PTR"/>
    </hostnames>
    <ports>
      <port protocol="tcp" portid="80">
        <state state="open" reason="syn-ack"/>
        <service name="http"/>
        <script id="banner" output="ssh banner text"/>
      </port>
    </ports>
    <hostscript>
      <script id="asn-query" output="AS1234"/>
    </hostscript>
  </host>
  <runstats>
    <finished time="1700000002" timestr="Tue Nov 14 22:13:22 2023" elapsed="2.50" summary="Nmap done; 1 IP address (1 host up) scanned in 2.50 seconds" exit="success"/>
    <hosts up="1" down="0" total="1"/>
  </runstats>
</nmaprun>
`

// brokenXML fails at the first element.
const brokenXML = `<nmaprun <<broken`

const (
	sampleNmapText  = "Nmap scan report for example.test (192.0.2.1)\n80/tcp open http\n"
	sampleGnmapText = "Host: 192.0.2.1 (example.test)\tPorts: 80/open/tcp//http///\n"
)

// writeReportFiles writes whichever of the three report files are non-empty.
func writeReportFiles(t *testing.T, base, xmlText, nmapText, gnmapText string) {
	t.Helper()
	require.NoError(t, writeReportFilesNoT(base, xmlText, nmapText, gnmapText))
}

func writeReportFilesNoT(base, xmlText, nmapText, gnmapText string) error {
	for path, content := range map[string]string{
		base + ExtXML:   xmlText,
		base + ExtNmap:  nmapText,
		base + ExtGnmap: gnmapText,
	} {
		if content == "" {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			return err
		}
	}
	return nil
}

// hostFromXML builds a Host from a standalone <host> document.
func hostFromXML(t *testing.T, xmlText string) *Host {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(xmlText))
	require.NotNil(t, doc.Root())
	return newHost(doc.Root())
}

// fakeScanner writes a shell script that behaves like "nmap -oA <base> ...":
// it copies the fixture reports found in fixtures to <base>.*, echoes its
// arguments to stdout, writes to stderr and exits with exitCode.
func fakeScanner(t *testing.T, fixtures string, exitCode int) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake scanner needs a POSIX shell")
	}

	script := fmt.Sprintf(`#!/bin/sh
base="$2"
for ext in xml nmap gnmap; do
  if [ -f "%[1]s/report.$ext" ]; then
    cp "%[1]s/report.$ext" "$base.$ext"
  fi
done
echo "args: $*"
echo "scanner warning" >&2
exit %[2]d
`, fixtures, exitCode)

	path := filepath.Join(t.TempDir(), "fake-nmap")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755)) //nolint:gosec // test executable
	return path
}

// fixtureDir holds report.{xml,nmap,gnmap} for fakeScanner.
func fixtureDir(t *testing.T, xmlText, nmapText, gnmapText string) string {
	t.Helper()
	dir := t.TempDir()
	writeReportFiles(t, filepath.Join(dir, "report"), xmlText, nmapText, gnmapText)
	return dir
}

func assertNoOutputFiles(t *testing.T, base string) {
	t.Helper()
	for _, path := range OutputFiles(base) {
		_, err := os.Stat(path)
		if !os.IsNotExist(err) {
			t.Errorf("expected %s to be removed, stat error: %v", path, err)
		}
	}
}
