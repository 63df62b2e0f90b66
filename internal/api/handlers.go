package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/anstrom/scanwrap/internal/errors"
	"github.com/anstrom/scanwrap/internal/scanning"
	"github.com/anstrom/scanwrap/internal/store"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ScanRequest is the body of POST /api/v1/scans.
type ScanRequest struct {
	Targets    []string `json:"targets" validate:"required,min=1,max=256,dive,required,max=255"`
	Args       []string `json:"args" validate:"max=64"`
	Store      bool     `json:"store"`
	IncludeRaw bool     `json:"include_raw"`
}

// HostResponse is the flat view of one host.
type HostResponse struct {
	Label         string           `json:"label"`
	Address       string           `json:"address"`
	Status        string           `json:"status"`
	Hostnames     []string         `json:"hostnames"`
	OpenPorts     []string         `json:"open_ports"`
	ClosedPorts   []string         `json:"closed_ports"`
	FilteredPorts []string         `json:"filtered_ports"`
	Scripts       scanning.Scripts `json:"scripts"`
}

// RawOutput carries the three report files verbatim.
type RawOutput struct {
	XML   string `json:"xml"`
	Nmap  string `json:"nmap"`
	Gnmap string `json:"gnmap"`
}

// ScanResponse is the result of a finished scan session.
type ScanResponse struct {
	SessionID string           `json:"session_id"`
	Command   []string         `json:"command"`
	ExitCode  int              `json:"exit_code"`
	Stderr    string           `json:"stderr,omitempty"`
	Info      scanning.RunInfo `json:"info"`
	Hosts     []HostResponse   `json:"hosts"`
	Errors    []string         `json:"errors,omitempty"`
	ReportID  string           `json:"report_id,omitempty"`
	Raw       *RawOutput       `json:"raw,omitempty"`
}

// ReportResponse pairs a stored report with its hosts.
type ReportResponse struct {
	store.ReportRecord
	Hosts []store.HostRecord `json:"hosts,omitempty"`
}

func newHostResponse(h *scanning.Host) HostResponse {
	return HostResponse{
		Label:         h.DisplayLabel(),
		Address:       h.Address,
		Status:        string(h.Status),
		Hostnames:     nonNil(h.Hostnames),
		OpenPorts:     nonNil(h.OpenPorts),
		ClosedPorts:   nonNil(h.ClosedPorts),
		FilteredPorts: nonNil(h.FilteredPorts),
		Scripts:       h.Scripts,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := "healthy"
	checks := make(map[string]string)

	if s.deps.Database != nil {
		if err := s.deps.Database.PingContext(ctx); err != nil {
			status = "unhealthy"
			checks["database"] = "failed: " + err.Error()
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "not configured"
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	s.writeJSON(w, r, statusCode, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(s.startTime).String(),
		"checks":    checks,
		"scans":     s.deps.Limiter.Stats(),
	})
}

func (s *Server) createScanHandler(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}
	if err := validate.Struct(req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid scan request: %w", err))
		return
	}
	if req.Store && s.deps.Reports == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, fmt.Errorf("report storage is not configured"))
		return
	}

	session, err := s.deps.NewSession(req.Targets, req.Args)
	if err != nil {
		s.writeError(w, r, statusForError(err), err)
		return
	}

	report, err := s.deps.Limiter.Run(r.Context(), session)
	if err != nil {
		s.writeError(w, r, statusForError(err), err)
		return
	}

	outcome := session.Outcome()
	if outcome.Err != nil {
		s.writeError(w, r, http.StatusBadGateway, outcome.Err)
		return
	}

	resp := ScanResponse{
		SessionID: session.ID(),
		Command:   session.Command(),
		ExitCode:  outcome.ExitCode,
		Stderr:    outcome.Stderr,
		Info:      report.Info,
		Hosts:     make([]HostResponse, 0, report.Len()),
	}
	for host := range session.Hosts() {
		resp.Hosts = append(resp.Hosts, newHostResponse(host))
	}
	for _, perr := range report.Errors {
		resp.Errors = append(resp.Errors, perr.Error())
	}
	if req.IncludeRaw {
		resp.Raw = &RawOutput{XML: report.RawXML, Nmap: report.RawNmap, Gnmap: report.RawGnmap}
	}

	if req.Store {
		id, err := s.deps.Reports.SaveReport(r.Context(), session.ID(), report)
		if err != nil {
			s.writeError(w, r, statusForError(err), err)
			return
		}
		resp.ReportID = id.String()
	}

	s.writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) listReportsHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireReports(w, r) {
		return
	}

	limit := 0
	if value := r.URL.Query().Get("limit"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid limit: %q", value))
			return
		}
		limit = parsed
	}

	records, err := s.deps.Reports.ListReports(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, statusForError(err), err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, records)
}

func (s *Server) getReportHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.reportID(w, r)
	if !ok {
		return
	}

	record, err := s.deps.Reports.GetReport(r.Context(), id)
	if err != nil {
		s.writeError(w, r, statusForError(err), err)
		return
	}

	hosts, err := s.deps.Reports.ListHosts(r.Context(), id)
	if err != nil {
		s.writeError(w, r, statusForError(err), err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, ReportResponse{ReportRecord: *record, Hosts: hosts})
}

func (s *Server) listHostsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.reportID(w, r)
	if !ok {
		return
	}

	hosts, err := s.deps.Reports.ListHosts(r.Context(), id)
	if err != nil {
		s.writeError(w, r, statusForError(err), err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, hosts)
}

// reportID validates storage and the {id} path variable.
func (s *Server) reportID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	if !s.requireReports(w, r) {
		return uuid.Nil, false
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid report id: %w", err))
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) requireReports(w http.ResponseWriter, r *http.Request) bool {
	if s.deps.Reports == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, fmt.Errorf("report storage is not configured"))
		return false
	}
	return true
}

// statusForError maps error codes onto HTTP status codes.
func statusForError(err error) int {
	if err == context.Canceled || err == context.DeadlineExceeded {
		return http.StatusServiceUnavailable
	}

	switch errors.GetCode(err) {
	case errors.CodeValidation, errors.CodeTargetInvalid:
		return http.StatusBadRequest
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeBusy:
		return http.StatusConflict
	case errors.CodeDatabaseConnection:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
