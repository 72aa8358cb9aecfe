package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/limaJavier/examtabling/internal/csvio"
	"github.com/limaJavier/examtabling/internal/jobs"
	"github.com/limaJavier/examtabling/internal/snapshot"
	"github.com/limaJavier/examtabling/pkg/model"
	"go.uber.org/zap"
)

// Response helpers

type apiResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Problems []string `json:"problems,omitempty"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string, problems ...string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Error: &apiError{
			Code:     code,
			Message:  message,
			Problems: problems,
		},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("failed to encode error response", zap.Error(err))
	}
}

// respondInputError reports why an input could not be processed
func (s *Server) respondInputError(w http.ResponseWriter, err error) {
	var validationError *model.ValidationError
	var calendarError *model.CalendarError
	switch {
	case errors.As(err, &validationError):
		code := "invalid_input"
		if errors.As(err, &calendarError) {
			code = "invalid_calendar"
		}
		s.respondError(w, http.StatusUnprocessableEntity, code, "input is invalid", validationError.Problems...)
	default:
		s.respondError(w, http.StatusBadRequest, "bad_request", err.Error())
	}
}

// Views

type timetableView struct {
	Id          uuid.UUID       `json:"id"`
	State       jobs.State      `json:"state"`
	Elapsed     string          `json:"elapsed,omitempty"`
	Status      string          `json:"status,omitempty"`
	Penalty     int64           `json:"penalty"`
	Objective   int64           `json:"objective"`
	Timetable   model.Timetable `json:"timetable,omitempty"`
	Findings    []model.Finding `json:"findings,omitempty"`
	Diagnostics []string        `json:"diagnostics,omitempty"`
	Error       string          `json:"error,omitempty"`
}

type checkRequest struct {
	Input     model.RawModelInput `json:"input"`
	Timetable model.Timetable     `json:"timetable"`
}

type checkView struct {
	Feasible bool            `json:"feasible"`
	Penalty  int64           `json:"penalty"`
	Findings []model.Finding `json:"findings"`
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Timetable handlers

func (s *Server) handleCreateTimetable(w http.ResponseWriter, r *http.Request) {
	var raw model.RawModelInput
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		s.respondError(w, http.StatusBadRequest, "bad_request", "invalid JSON body: "+err.Error())
		return
	}

	input, err := model.ProcessRawInput(raw, s.config)
	if err != nil {
		s.respondInputError(w, err)
		return
	}

	job := s.registry.Start(input)
	s.respondJSON(w, http.StatusAccepted, map[string]any{
		"id":    job.Id,
		"state": job.State(),
	})
}

func (s *Server) handleGetTimetable(w http.ResponseWriter, r *http.Request) {
	view, _, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleGetTimetableCsv(w http.ResponseWriter, r *http.Request) {
	view, input, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if view.State == jobs.Running {
		s.respondError(w, http.StatusConflict, "not_ready", "timetable is still being built")
		return
	}
	if view.Timetable == nil {
		s.respondError(w, http.StatusConflict, "no_timetable", "run produced no timetable")
		return
	}

	var document bytes.Buffer
	if err := csvio.WriteTimetable(&document, view.Timetable, input); err != nil {
		s.logger.Error("cannot write timetable document", zap.Stringer("id", view.Id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "internal_error", "cannot write timetable document")
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=\"timetable-"+view.Id.String()+".csv\"")
	w.WriteHeader(http.StatusOK)
	w.Write(document.Bytes())
}

// find locates a run among the live jobs first and among the snapshots second. It responds on its own when there is
// nothing to find
func (s *Server) find(w http.ResponseWriter, r *http.Request) (*jobs.Job, *snapshot.Snapshot, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "bad_request", "invalid timetable id")
		return nil, nil, false
	}

	if job, ok := s.registry.Get(id); ok {
		return job, nil, true
	}

	if s.store != nil {
		frozen, err := s.store.Load(r.Context(), id)
		if err == nil {
			return nil, &frozen, true
		} else if !errors.Is(err, snapshot.ErrNotFound) {
			s.logger.Error("cannot load snapshot", zap.Stringer("id", id), zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, "internal_error", "cannot load timetable")
			return nil, nil, false
		}
	}

	s.respondError(w, http.StatusNotFound, "not_found", "timetable not found")
	return nil, nil, false
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (timetableView, model.ModelInput, bool) {
	job, frozen, ok := s.find(w, r)
	switch {
	case !ok:
		return timetableView{}, model.ModelInput{}, false
	case job != nil:
		return s.jobView(job), job.Input, true
	}

	return timetableView{
		Id:        frozen.Id,
		State:     jobs.Finished,
		Status:    frozen.Status.String(),
		Penalty:   frozen.Penalty,
		Timetable: frozen.Timetable,
		Findings:  s.timetabler.Verify(frozen.Timetable, frozen.Input),
	}, frozen.Input, true
}

func (s *Server) jobView(job *jobs.Job) timetableView {
	view := timetableView{
		Id:      job.Id,
		State:   job.State(),
		Elapsed: job.Elapsed().Round(time.Millisecond).String(),
	}
	if view.State == jobs.Running {
		return view
	}

	result, err := job.Wait()
	if err != nil {
		view.Error = err.Error()
		return view
	}
	view.Status = result.Status.String()
	view.Penalty = result.Penalty
	view.Objective = result.Objective
	view.Timetable = result.Timetable
	view.Diagnostics = result.Diagnostics
	if result.Status.Solved() {
		view.Findings = s.timetabler.Verify(result.Timetable, job.Input)
	}
	return view
}

// Check handlers

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var request checkRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondError(w, http.StatusBadRequest, "bad_request", "invalid JSON body: "+err.Error())
		return
	}

	input, err := model.ProcessRawInput(request.Input, s.config)
	if err != nil {
		s.respondInputError(w, err)
		return
	}

	findings := s.timetabler.Verify(request.Timetable, input)
	s.respondJSON(w, http.StatusOK, checkView{
		Feasible: len(model.HardFindings(findings)) == 0,
		Penalty:  model.Penalty(findings),
		Findings: findings,
	})
}

// handleCheckTimetable checks a timetable document against the input of an earlier run
func (s *Server) handleCheckTimetable(w http.ResponseWriter, r *http.Request) {
	job, frozen, ok := s.find(w, r)
	if !ok {
		return
	}
	var input model.ModelInput
	if job != nil {
		input = job.Input
	} else {
		input = frozen.Input
	}

	timetable, findings, err := csvio.ReadTimetable(r.Body)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "bad_request", "invalid timetable document: "+err.Error())
		return
	}

	findings = append(findings, s.timetabler.Verify(timetable, input)...)
	s.respondJSON(w, http.StatusOK, checkView{
		Feasible: len(model.HardFindings(findings)) == 0,
		Penalty:  model.Penalty(findings),
		Findings: findings,
	})
}
