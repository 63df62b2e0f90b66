// Package scanning wraps the nmap executable and parses its reports.
//
// A scan runs exactly once per Session. The session builds a Request,
// hands it to a Runner which launches nmap with "-oA <base>", parses the
// three report files nmap leaves behind and then removes them.
//
// # Main Components
//
//   - Request: normalized targets, extra arguments and a unique output base
//   - Runner / ProcessRunner: synchronous process execution and file cleanup
//   - Parser / Report: reads base.xml, base.nmap and base.gnmap
//   - Host: snapshot of one <host> element, read-only by contract
//   - Session: Idle -> Running -> Completed state machine
//   - Limiter: bounds concurrent sessions and keeps output bases unique
//
// # Failure Model
//
// Nothing the scanner or its reports do makes the Runner or Parser return
// an error or panic. A scanner that cannot be spawned, exits non-zero or
// writes unreadable reports yields an empty or partial Report, and the
// problem goes to the logger. Callers check Report.Empty to detect that
// nothing came back.
//
// # JSON Views
//
// Report.JSON and Host.JSON convert the XML tree into nested maps on first
// use. Element names become keys, repeated siblings become slices,
// attributes become keys prefixed with AttrPrefix and mixed text is stored
// under TextKey. All leaf values are strings.
//
// # Usage Example
//
//	session, err := scanning.NewSession([]string{"192.0.2.1"},
//		scanning.WithArgs("-sV", "-p", "22,80"))
//	if err != nil {
//		return err
//	}
//	for host := range session.Hosts() {
//		fmt.Println(host.DisplayLabel(), host.OpenPorts)
//	}
package scanning
