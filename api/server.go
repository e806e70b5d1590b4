// Package api exposes the task lifecycle contract over HTTP for the
// presentation layer. Handlers resolve the acting worker once, by id
// lookup, and hand an explicit actor to the engine.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"protrack/ledger"
	"protrack/lifecycle"
	"protrack/model"
)

type Server struct {
	engine *lifecycle.Engine
}

func NewServer(addr string, engine *lifecycle.Engine) *http.Server {
	mux := http.NewServeMux()

	srv := &Server{engine: engine}
	mux.HandleFunc("GET /tasks", srv.listPending)
	mux.HandleFunc("POST /tasks", srv.createTask)
	mux.HandleFunc("POST /tasks/{id}/start", srv.startTask)
	mux.HandleFunc("POST /tasks/{id}/finish", srv.finishTask)
	mux.HandleFunc("POST /tasks/{id}/approve", srv.approveTask)
	mux.HandleFunc("POST /tasks/{id}/reject", srv.rejectTask)
	mux.HandleFunc("POST /tasks/{id}/validate", srv.validateKPI)
	mux.HandleFunc("POST /tasks/{id}/override", srv.overrideKPI)
	mux.HandleFunc("POST /adjustments", srv.manualAdjustment)
	mux.HandleFunc("GET /workers/{id}/balance", srv.getBalance)
	mux.HandleFunc("GET /ranking", srv.getRanking)

	return &http.Server{
		Addr:    addr,
		Handler: mux,
	}
}

// writeError maps the shared error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var inconsistency *model.LedgerInconsistencyError
	switch {
	case errors.Is(err, model.ErrNotFound):
		http.Error(w, "[API] "+err.Error(), http.StatusNotFound)
	case errors.Is(err, model.ErrUnauthorized):
		http.Error(w, "[API] "+err.Error(), http.StatusForbidden)
	case errors.Is(err, model.ErrValidation):
		http.Error(w, "[API] "+err.Error(), http.StatusBadRequest)
	case errors.Is(err, model.ErrInvalidTransition), errors.Is(err, model.ErrConflict):
		http.Error(w, "[API] "+err.Error(), http.StatusConflict)
	case errors.Is(err, model.ErrStoreUnavailable):
		http.Error(w, "[API] "+err.Error(), http.StatusServiceUnavailable)
	case errors.As(err, &inconsistency):
		http.Error(w, "[API] "+err.Error(), http.StatusInternalServerError)
	default:
		http.Error(w, "[API] "+err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "[API] Encoding error", http.StatusInternalServerError)
	}
}

// actor authenticates a worker id. Unknown ids surface as unauthorized, not
// as a missing resource.
func (s *Server) actor(r *http.Request, workerID string) (lifecycle.Actor, error) {
	if workerID == "" {
		return lifecycle.Actor{}, fmt.Errorf("actor id is required: %w", model.ErrValidation)
	}
	a, err := s.engine.ResolveActor(r.Context(), workerID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return lifecycle.Actor{}, fmt.Errorf("unknown worker %s: %w", workerID, model.ErrUnauthorized)
		}
		return lifecycle.Actor{}, err
	}
	return a, nil
}

func (s *Server) listPending(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r, r.URL.Query().Get("actor"))
	if err != nil {
		writeError(w, err)
		return
	}
	list, err := s.engine.ListPending(r.Context(), actor)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]taskResponse, 0, len(list))
	for _, t := range list {
		out = append(out, toTaskResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "[API] "+err.Error(), http.StatusBadRequest)
		return
	}
	actor, err := s.actor(r, req.Actor)
	if err != nil {
		writeError(w, err)
		return
	}
	task, err := s.engine.CreateTask(r.Context(), actor, lifecycle.CreateParams{
		OwnerID:          req.Owner,
		Activity:         req.Activity,
		Area:             req.Area,
		Description:      req.Description,
		ProductReference: req.ProductReference,
		Priority:         req.Priority,
		EvidenceRef:      req.EvidenceRef,
		Attained:         req.Attained,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTaskResponse(task))
}

func (s *Server) startTask(w http.ResponseWriter, r *http.Request) {
	_, actor, ok := s.decodeActorBody(w, r)
	if !ok {
		return
	}
	if err := s.engine.StartTask(r.Context(), actor, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) finishTask(w http.ResponseWriter, r *http.Request) {
	var req finishTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "[API] "+err.Error(), http.StatusBadRequest)
		return
	}
	actor, err := s.actor(r, req.Actor)
	if err != nil {
		writeError(w, err)
		return
	}
	value, err := s.engine.FinishTask(r.Context(), actor, r.PathValue("id"), model.Quantities{
		Can:      req.QtyCan,
		Pet:      req.QtyPet,
		OneWay:   req.QtyOneWay,
		LongNeck: req.QtyLongNeck,
		Produced: req.QtyProduced,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"value": value.StringFixed(2)})
}

func (s *Server) approveTask(w http.ResponseWriter, r *http.Request) {
	_, actor, ok := s.decodeActorBody(w, r)
	if !ok {
		return
	}
	if err := s.engine.ApproveTask(r.Context(), actor, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) rejectTask(w http.ResponseWriter, r *http.Request) {
	var req rejectTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "[API] "+err.Error(), http.StatusBadRequest)
		return
	}
	actor, err := s.actor(r, req.Actor)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.engine.RejectTask(r.Context(), actor, r.PathValue("id"), req.Reason); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) validateKPI(w http.ResponseWriter, r *http.Request) {
	_, actor, ok := s.decodeActorBody(w, r)
	if !ok {
		return
	}
	if err := s.engine.ValidateKPI(r.Context(), actor, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) overrideKPI(w http.ResponseWriter, r *http.Request) {
	_, actor, ok := s.decodeActorBody(w, r)
	if !ok {
		return
	}
	if err := s.engine.OverrideKPI(r.Context(), actor, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) manualAdjustment(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "[API] "+err.Error(), http.StatusBadRequest)
		return
	}
	actor, err := s.actor(r, req.Actor)
	if err != nil {
		writeError(w, err)
		return
	}
	amount := model.ParseDecimal(req.Amount)
	task, err := s.engine.ManualAdjustment(r.Context(), actor, req.Worker, amount, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTaskResponse(task))
}

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	workerID := r.PathValue("id")
	worker, err := s.engine.Ledger().GetWorker(r.Context(), workerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{
		WorkerID: worker.LoginID,
		Balance:  ledger.DisplayBalance(worker).StringFixed(2),
	})
}

func (s *Server) getRanking(w http.ResponseWriter, r *http.Request) {
	entries, err := s.engine.Ledger().Ranking(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]rankingResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, rankingResponse{
			WorkerID: e.WorkerID,
			Name:     e.Name,
			Balance:  e.Balance.StringFixed(2),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// decodeActorBody handles the bodies that carry nothing but the actor id.
func (s *Server) decodeActorBody(w http.ResponseWriter, r *http.Request) (actorRequest, lifecycle.Actor, bool) {
	var req actorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "[API] "+err.Error(), http.StatusBadRequest)
		return req, lifecycle.Actor{}, false
	}
	actor, err := s.actor(r, req.Actor)
	if err != nil {
		writeError(w, err)
		return req, lifecycle.Actor{}, false
	}
	return req, actor, true
}
