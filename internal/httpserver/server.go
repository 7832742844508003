// Package httpserver exposes the approval portal over HTTP: request
// submission, workflow transitions and the read views the presentation
// layer renders.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sagar1503/ApprovalPortal/internal/config"
	"github.com/sagar1503/ApprovalPortal/internal/model"
	"github.com/sagar1503/ApprovalPortal/internal/store"
	"github.com/sagar1503/ApprovalPortal/internal/workflow"
)

type Server struct {
	cfg    config.Config
	engine *workflow.Engine
	store  store.Store
	log    *logrus.Logger
}

func New(cfg config.Config, engine *workflow.Engine, st store.Store, log *logrus.Logger) *Server {
	return &Server{cfg: cfg, engine: engine, store: st, log: log}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)

	r.Route("/portal", func(r chi.Router) {
		r.Use(s.actorMiddleware)
		r.Post("/requests", s.handleSubmit)
		r.Get("/requests", s.handleListAll)
		r.Get("/requests/my", s.handleListMy)
		r.Get("/requests/pending", s.handleListPending)
		r.Get("/requests/history", s.handleHistory)
		r.Get("/requests/{id}", s.handleGetRequest)
		r.Get("/requests/{id}/audit", s.handleAudit)
		r.Post("/requests/{id}/transition", s.handleTransition)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	status := map[string]interface{}{
		"ok":   true,
		"time": time.Now().UTC(),
	}
	if err := s.store.Ping(ctx); err != nil {
		status["ok"] = false
		status["db"] = err.Error()
		respondJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

type submitRequest struct {
	Title               string          `json:"title"`
	Category            string          `json:"category"`
	Payload             json.RawMessage `json:"payload"`
	RequesterDelegateID *int64          `json:"requesterDelegateId"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "actor required")
		return
	}
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := s.engine.Submit(r.Context(), workflow.SubmitInput{
		Title:               req.Title,
		Category:            req.Category,
		Payload:             req.Payload,
		RequesterDelegateID: req.RequesterDelegateID,
	}, actor)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

type transitionRequest struct {
	Action  string `json:"action"`
	Comment string `json:"comment"`
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "actor required")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request id")
		return
	}
	var body transitionRequest
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	action, err := model.ParseAction(body.Action)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	req, err := s.store.GetRequest(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "request not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := s.engine.Transition(r.Context(), req, action, body.Comment, actor); err != nil {
		switch {
		case errors.Is(err, workflow.ErrNotAuthorized):
			respondError(w, http.StatusForbidden, "you are not authorized to act on this request")
		case errors.Is(err, workflow.ErrTerminalState):
			respondError(w, http.StatusConflict, "request is already finalized")
		default:
			s.log.WithError(err).WithField("request", id).Error("transition failed")
			respondError(w, http.StatusBadGateway, "transition could not be committed")
		}
		return
	}

	updated, err := s.store.GetRequest(r.Context(), id)
	if err != nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request id")
		return
	}
	req, err := s.store.GetRequest(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "request not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, req)
}

func (s *Server) handleListMy(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	requests, err := s.store.ListRequestsByRequester(r.Context(), actor.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, requests)
}

func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	requests, err := s.store.ListRequestsByAssignee(r.Context(), actor.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, requests)
}

func (s *Server) handleListAll(w http.ResponseWriter, r *http.Request) {
	requests, err := s.store.ListRequests(r.Context(), s.cfg.AdminLimit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, requests)
}

// handleHistory returns the requests the actor has acted on, reconstructed
// from the audit log.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	ids, err := s.store.ListActedRequestIDs(r.Context(), actor.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	requests := make([]model.Request, 0, len(ids))
	for _, id := range ids {
		req, err := s.store.GetRequest(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		requests = append(requests, req)
	}
	respondJSON(w, http.StatusOK, requests)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request id")
		return
	}
	history, err := s.store.GetAuditHistory(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, history)
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
