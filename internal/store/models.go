package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/anstrom/scanwrap/internal/scanning"
)

// ScriptsJSON stores a host's script map in a JSONB column.
type ScriptsJSON scanning.Scripts

// Scan implements sql.Scanner.
func (s *ScriptsJSON) Scan(value interface{}) error {
	if value == nil {
		*s = ScriptsJSON{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into ScriptsJSON", value)
	}

	m := ScriptsJSON{}
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("failed to decode scripts: %w", err)
	}
	*s = m
	return nil
}

// Value implements driver.Valuer.
func (s ScriptsJSON) Value() (driver.Value, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode scripts: %w", err)
	}
	return data, nil
}

// ReportRecord is one row of scan_reports.
type ReportRecord struct {
	ID             uuid.UUID `db:"id" json:"id"`
	SessionID      string    `db:"session_id" json:"session_id"`
	Scanner        string    `db:"scanner" json:"scanner"`
	ScannerVersion string    `db:"scanner_version" json:"scanner_version"`
	Args           string    `db:"args" json:"args"`
	ElapsedSeconds float32   `db:"elapsed_seconds" json:"elapsed_seconds"`
	HostCount      int       `db:"host_count" json:"host_count"`
	RawXML         string    `db:"raw_xml" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// HostRecord is one row of scan_hosts.
type HostRecord struct {
	ID            int64          `db:"id" json:"-"`
	ReportID      uuid.UUID      `db:"report_id" json:"report_id"`
	Position      int            `db:"position" json:"position"`
	Address       string         `db:"address" json:"address"`
	Status        string         `db:"status" json:"status"`
	Hostnames     pq.StringArray `db:"hostnames" json:"hostnames"`
	OpenPorts     pq.StringArray `db:"open_ports" json:"open_ports"`
	ClosedPorts   pq.StringArray `db:"closed_ports" json:"closed_ports"`
	FilteredPorts pq.StringArray `db:"filtered_ports" json:"filtered_ports"`
	Scripts       ScriptsJSON    `db:"scripts" json:"scripts"`
}

// newHostRecord flattens a parsed host for insertion.
func newHostRecord(reportID uuid.UUID, position int, h *scanning.Host) HostRecord {
	return HostRecord{
		ReportID:      reportID,
		Position:      position,
		Address:       h.Address,
		Status:        string(h.Status),
		Hostnames:     pq.StringArray(h.Hostnames),
		OpenPorts:     pq.StringArray(h.OpenPorts),
		ClosedPorts:   pq.StringArray(h.ClosedPorts),
		FilteredPorts: pq.StringArray(h.FilteredPorts),
		Scripts:       ScriptsJSON(h.Scripts),
	}
}
