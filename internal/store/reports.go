package store

import (
	"context"
	_ "embed"

	"github.com/google/uuid"

	"github.com/anstrom/scanwrap/internal/logging"
	"github.com/anstrom/scanwrap/internal/scanning"
)

//go:embed schema.sql
var schemaSQL string

const defaultListLimit = 50

const (
	insertReportQuery = `
		INSERT INTO scan_reports (id, session_id, scanner, scanner_version, args, elapsed_seconds, host_count, raw_xml)
		VALUES (:id, :session_id, :scanner, :scanner_version, :args, :elapsed_seconds, :host_count, :raw_xml)`

	insertHostQuery = `
		INSERT INTO scan_hosts (report_id, position, address, status, hostnames,
			open_ports, closed_ports, filtered_ports, scripts)
		VALUES (:report_id, :position, :address, :status, :hostnames,
			:open_ports, :closed_ports, :filtered_ports, :scripts)`

	selectReportQuery = `
		SELECT id, session_id, scanner, scanner_version, args, elapsed_seconds, host_count, raw_xml, created_at
		FROM scan_reports WHERE id = $1`

	listReportsQuery = `
		SELECT id, session_id, scanner, scanner_version, args, elapsed_seconds, host_count, raw_xml, created_at
		FROM scan_reports ORDER BY created_at DESC LIMIT $1`

	listHostsQuery = `
		SELECT id, report_id, position, address, status, hostnames,
			open_ports, closed_ports, filtered_ports, scripts
		FROM scan_hosts WHERE report_id = $1 ORDER BY position`
)

// ReportStore reads and writes scan reports.
type ReportStore struct {
	db     *DB
	logger *logging.Logger
}

// NewReportStore creates a report store on db.
func NewReportStore(db *DB) *ReportStore {
	return &ReportStore{
		db:     db,
		logger: logging.Default().WithComponent("store"),
	}
}

// PingContext checks that the database is reachable.
func (s *ReportStore) PingContext(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return sanitizeDBError("ping", err)
	}
	return nil
}

// EnsureSchema creates the report tables if they do not exist.
func (s *ReportStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return sanitizeDBError("ensure schema", err)
	}
	return nil
}

// SaveReport stores report and its hosts in one transaction and returns
// the new report id.
func (s *ReportStore) SaveReport(ctx context.Context, sessionID string, report *scanning.Report) (uuid.UUID, error) {
	record := ReportRecord{
		ID:             uuid.New(),
		SessionID:      sessionID,
		Scanner:        report.Info.Scanner,
		ScannerVersion: report.Info.Version,
		Args:           report.Info.Args,
		ElapsedSeconds: report.Info.Elapsed,
		HostCount:      report.Len(),
		RawXML:         report.RawXML,
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return uuid.Nil, sanitizeDBError("begin save report", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.NamedExecContext(ctx, insertReportQuery, record); err != nil {
		return uuid.Nil, sanitizeDBError("insert report", err)
	}

	for i, h := range report.Hosts {
		if _, err := tx.NamedExecContext(ctx, insertHostQuery, newHostRecord(record.ID, i, h)); err != nil {
			return uuid.Nil, sanitizeDBError("insert host", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, sanitizeDBError("commit save report", err)
	}

	s.logger.Info("Report stored", "report_id", record.ID, "session_id", sessionID, "hosts", record.HostCount)
	return record.ID, nil
}

// GetReport returns one report row. A missing id yields CodeNotFound.
func (s *ReportStore) GetReport(ctx context.Context, id uuid.UUID) (*ReportRecord, error) {
	var record ReportRecord
	if err := s.db.GetContext(ctx, &record, selectReportQuery, id); err != nil {
		return nil, sanitizeDBError("get report", err)
	}
	return &record, nil
}

// ListReports returns the most recent reports, newest first.
func (s *ReportStore) ListReports(ctx context.Context, limit int) ([]ReportRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	records := []ReportRecord{}
	if err := s.db.SelectContext(ctx, &records, listReportsQuery, limit); err != nil {
		return nil, sanitizeDBError("list reports", err)
	}
	return records, nil
}

// ListHosts returns a report's hosts in their original order.
func (s *ReportStore) ListHosts(ctx context.Context, reportID uuid.UUID) ([]HostRecord, error) {
	hosts := []HostRecord{}
	if err := s.db.SelectContext(ctx, &hosts, listHostsQuery, reportID); err != nil {
		return nil, sanitizeDBError("list hosts", err)
	}
	return hosts, nil
}
