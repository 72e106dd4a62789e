package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/michaelbrown/rubybox/internal/catalog"
	"github.com/michaelbrown/rubybox/internal/runner"
	"github.com/michaelbrown/rubybox/internal/storage"
)

const maxBodyBytes = 1 << 20

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// resultStatus maps an execution result to its HTTP status. Only rejected
// requests are client errors; failed executions are still answered with 200.
func resultStatus(res runner.Result) int {
	switch res.Kind {
	case runner.KindEmptyCode, runner.KindUnknownVersion:
		return http.StatusBadRequest
	}
	return http.StatusOK
}

// run executes code under the in-flight tracker.
func (s *Server) run(ctx context.Context, code, version string) runner.Result {
	ctx, done := s.inflight.Begin(ctx)
	defer done()
	return s.runner.Execute(ctx, code, version)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"inflight": s.inflight.Len(),
	})
}

// --- Execution handlers ---

type versionsResponse struct {
	Success bool `json:"success"`
	catalog.Snapshot
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	snap, err := s.runner.AvailableVersions(r.Context())
	if err != nil {
		s.log.Error("probing versions", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, versionsResponse{Success: true, Snapshot: snap})
}

type executeRequest struct {
	Code    string `json:"code"`
	Version string `json:"version"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	res := s.run(r.Context(), req.Code, req.Version)
	writeJSON(w, resultStatus(res), res)
}

// --- Workspace handlers ---

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrInvalidName):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("workspace store", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.store.ListFiles(r.Context(), chi.URLParam(r, "ws"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	f, err := s.store.ReadFile(r.Context(), chi.URLParam(r, "ws"), chi.URLParam(r, "name"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

type putFileRequest struct {
	Content string `json:"content"`
}

func (s *Server) handlePutFile(w http.ResponseWriter, r *http.Request) {
	var req putFileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	f, err := s.store.WriteFile(r.Context(), chi.URLParam(r, "ws"), chi.URLParam(r, "name"), req.Content)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteFile(r.Context(), chi.URLParam(r, "ws"), chi.URLParam(r, "name")); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type executeFileRequest struct {
	Version string `json:"version"`
}

func (s *Server) handleExecuteFile(w http.ResponseWriter, r *http.Request) {
	var req executeFileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	f, err := s.store.ReadFile(r.Context(), chi.URLParam(r, "ws"), chi.URLParam(r, "name"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	res := s.run(r.Context(), f.Content, req.Version)
	writeJSON(w, resultStatus(res), res)
}
