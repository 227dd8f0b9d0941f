package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"gocre/app"
	"gocre/domain/core"
	"gocre/domain/params"
	"gocre/domain/run"
	"gocre/ports"
)

// startRunRequest is the POST /api/runs body. Method and hyper default to
// the documented parameter envelopes when omitted; a partial envelope is
// rejected by validation like any other bad value.
type startRunRequest struct {
	DatasetPath string         `json:"dataset_path"`
	Outcome     string         `json:"outcome"`
	Treatment   string         `json:"treatment"`
	ITE         string         `json:"ite,omitempty"`
	Method      *params.Method `json:"method,omitempty"`
	Hyper       *params.Hyper  `json:"hyper,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, core.NewInvalidInputError("body", fmt.Sprintf("malformed JSON: %v", err)))
		return
	}

	obs, err := s.reader.ReadObservations(r.Context(), req.DatasetPath, ports.ColumnMapping{
		Outcome:   req.Outcome,
		Treatment: req.Treatment,
		ITE:       req.ITE,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	method := params.DefaultMethod()
	if req.Method != nil {
		method = *req.Method
	}
	hyper := params.DefaultHyper()
	if req.Hyper != nil {
		hyper = *req.Hyper
	}

	record, err := s.pipeline.Execute(r.Context(), app.Request{
		Observations: obs,
		Method:       method,
		Hyper:        hyper,
	})
	if err != nil {
		// A mid-pipeline failure still has a persisted record worth
		// returning alongside the error.
		if record != nil {
			writeJSON(w, statusFor(err), map[string]interface{}{
				"error": err.Error(),
				"run":   record,
			})
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, record)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	record, err := s.ledger.GetRun(r.Context(), core.RunID(id))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filters := ports.RunFilters{}
	if v := r.URL.Query().Get("status"); v != "" {
		status := run.Status(v)
		filters.Status = &status
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, core.NewInvalidInputError("limit", fmt.Sprintf("%q is not a valid limit", v)))
			return
		}
		filters.Limit = limit
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			writeError(w, core.NewInvalidInputError("offset", fmt.Sprintf("%q is not a valid offset", v)))
			return
		}
		filters.Offset = offset
	}

	summaries, err := s.ledger.ListRuns(r.Context(), filters)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": summaries})
}

func (s *Server) handleRunReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	record, err := s.ledger.GetRun(r.Context(), core.RunID(id))
	if err != nil {
		writeError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(app.RenderMarkdown(record)))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(app.RenderHTML(record))
}

func (s *Server) handleListMethods(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"methods": s.estimators.Methods()})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]interface{}{"error": err.Error()})
}

// statusFor maps domain error classes to HTTP statuses.
func statusFor(err error) int {
	switch {
	case core.IsNotFoundError(err):
		return http.StatusNotFound
	case core.IsInvalidInputError(err):
		return http.StatusBadRequest
	case core.IsEstimationFailure(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
