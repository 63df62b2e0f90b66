package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/scanwrap/internal/errors"
	"github.com/anstrom/scanwrap/internal/logging"
	"github.com/anstrom/scanwrap/internal/scanning"
)

const reportXML = `<nmaprun scanner="nmap" version="7.94" args="nmap -oA x 192.0.2.1">
  <host>
    <status state="up"/>
    <address addr="192.0.2.1"/>
    <hostnames><hostname name="example.test"/></hostnames>
    <ports>
      <port protocol="tcp" portid="80"><state state="open"/><script id="banner" output="hi"/></port>
    </ports>
  </host>
  <host><status state="down"/><address addr="192.0.2.2"/></host>
  <runstats><finished elapsed="1.25"/><hosts up="1" down="1" total="2"/></runstats>
</nmaprun>`

func newMockStore(t *testing.T) (*ReportStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return NewReportStore(NewDB(sqlDB, "postgres")), mock
}

func parsedReport(t *testing.T) *scanning.Report {
	t.Helper()
	base := filepath.Join(t.TempDir(), "scan")
	require.NoError(t, os.WriteFile(base+scanning.ExtXML, []byte(reportXML), 0o600))
	return scanning.NewParser(logging.Discard(), nil).Parse(base)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "", cfg.Database)
	assert.Equal(t, "disable", cfg.SSLMode)
	assert.Equal(t, 10, cfg.MaxOpenConns)
	assert.Equal(t, 5*time.Minute, cfg.ConnMaxLifetime)
}

func TestConfigDSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database = "scans"
	cfg.Username = "scanner"
	cfg.Password = "secret"

	assert.Equal(t, "host=localhost port=5432 dbname=scans user=scanner password=secret sslmode=disable", cfg.DSN())
}

func TestEnsureSchema(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS scan_reports").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPingContext(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	s := NewReportStore(NewDB(sqlDB, "postgres"))

	mock.ExpectPing()
	require.NoError(t, s.PingContext(context.Background()))

	mock.ExpectPing().WillReturnError(&pq.Error{Code: "08006"})
	err = s.PingContext(context.Background())
	assert.True(t, errors.IsCode(err, errors.CodeDatabaseConnection), "got %v", err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveReport(t *testing.T) {
	s, mock := newMockStore(t)
	report := parsedReport(t)
	require.Equal(t, 2, report.Len())

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO scan_reports")).
		WithArgs(sqlmock.AnyArg(), "session-1", "nmap", "7.94", "nmap -oA x 192.0.2.1",
			sqlmock.AnyArg(), 2, reportXML).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO scan_hosts")).
		WithArgs(sqlmock.AnyArg(), 0, "192.0.2.1", "up", "{\"example.test\"}",
			"{\"80/tcp\"}", "{}", "{}", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO scan_hosts")).
		WithArgs(sqlmock.AnyArg(), 1, "192.0.2.2", "down", "{}", "{}", "{}", "{}", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	id, err := s.SaveReport(context.Background(), "session-1", report)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveReport_RollsBackOnHostFailure(t *testing.T) {
	s, mock := newMockStore(t)
	report := parsedReport(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO scan_reports")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO scan_hosts")).
		WillReturnError(&pq.Error{Code: "23503"})
	mock.ExpectRollback()

	id, err := s.SaveReport(context.Background(), "session-1", report)
	assert.Equal(t, uuid.Nil, id)
	assert.True(t, errors.IsCode(err, errors.CodeValidation), "got %v", err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveReport_EmptyReport(t *testing.T) {
	s, mock := newMockStore(t)
	report := scanning.NewParser(logging.Discard(), nil).Parse(filepath.Join(t.TempDir(), "absent"))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO scan_reports")).
		WithArgs(sqlmock.AnyArg(), "s", "", "", "", sqlmock.AnyArg(), 0, "").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	_, err := s.SaveReport(context.Background(), "s", report)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetReport(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	columns := []string{"id", "session_id", "scanner", "scanner_version", "args",
		"elapsed_seconds", "host_count", "raw_xml", "created_at"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM scan_reports WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(id.String(), "session-1", "nmap", "7.94", "-sV", 1.5, 3, "<nmaprun/>", created))

	record, err := s.GetReport(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, record.ID)
	assert.Equal(t, "session-1", record.SessionID)
	assert.Equal(t, 3, record.HostCount)
	assert.Equal(t, created, record.CreatedAt)

	mock.ExpectQuery(regexp.QuoteMeta("FROM scan_reports WHERE id = $1")).
		WillReturnError(sql.ErrNoRows)
	_, err = s.GetReport(context.Background(), uuid.New())
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListReports_DefaultLimit(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC LIMIT $1")).
		WithArgs(defaultListLimit).
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "scanner", "scanner_version", "args",
			"elapsed_seconds", "host_count", "raw_xml", "created_at"}))

	records, err := s.ListReports(context.Background(), 0)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListHosts(t *testing.T) {
	s, mock := newMockStore(t)
	reportID := uuid.New()

	columns := []string{"id", "report_id", "position", "address", "status", "hostnames",
		"open_ports", "closed_ports", "filtered_ports", "scripts"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM scan_hosts WHERE report_id = $1 ORDER BY position")).
		WithArgs(reportID).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(1, reportID.String(), 0, "192.0.2.1", "up", "{example.test}", "{80/tcp,443/tcp}", "{}", "{}",
				[]byte(`{"80/tcp":{"banner":"hi"},"hostscripts":{"asn-query":"AS1"}}`)).
			AddRow(2, reportID.String(), 1, "192.0.2.2", "down", "{}", "{}", "{22/tcp}", "{}", nil))

	hosts, err := s.ListHosts(context.Background(), reportID)
	require.NoError(t, err)
	require.Len(t, hosts, 2)

	assert.Equal(t, []string{"example.test"}, []string(hosts[0].Hostnames))
	assert.Equal(t, []string{"80/tcp", "443/tcp"}, []string(hosts[0].OpenPorts))
	assert.Equal(t, "hi", hosts[0].Scripts["80/tcp"]["banner"])
	assert.Equal(t, "AS1", hosts[0].Scripts[scanning.HostScriptsScope]["asn-query"])
	assert.Equal(t, []string{"22/tcp"}, []string(hosts[1].ClosedPorts))
	assert.Empty(t, hosts[1].Scripts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListHosts_QueryError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("FROM scan_hosts").WillReturnError(fmt.Errorf("connection reset"))

	_, err := s.ListHosts(context.Background(), uuid.New())
	assert.True(t, errors.IsCode(err, errors.CodeDatabaseQuery))
	assert.NotContains(t, err.Error(), "connection reset")
}

func TestScriptsJSON(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		in := ScriptsJSON{"hostscripts": {"a": "b"}}
		v, err := in.Value()
		require.NoError(t, err)

		var out ScriptsJSON
		require.NoError(t, out.Scan(v))
		assert.Equal(t, in, out)
	})

	t.Run("nil value", func(t *testing.T) {
		v, err := ScriptsJSON(nil).Value()
		require.NoError(t, err)
		assert.Equal(t, []byte("{}"), v)
	})

	t.Run("string input", func(t *testing.T) {
		var s ScriptsJSON
		require.NoError(t, s.Scan(`{"22/tcp":{"ssh-hostkey":"k"}}`))
		assert.Equal(t, "k", s["22/tcp"]["ssh-hostkey"])
	})

	t.Run("unsupported type", func(t *testing.T) {
		var s ScriptsJSON
		err := s.Scan(42)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "cannot scan")
	})
}

func TestSanitizeDBError(t *testing.T) {
	assert.NoError(t, sanitizeDBError("op", nil))

	err := sanitizeDBError("op", &pq.Error{Code: "08006"})
	assert.True(t, errors.IsCode(err, errors.CodeDatabaseConnection))

	err = sanitizeDBError("op", &pq.Error{Code: "42601"})
	assert.True(t, errors.IsCode(err, errors.CodeDatabaseQuery))
	assert.Contains(t, err.Error(), "operation: op")
}
