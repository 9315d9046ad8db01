package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/speedrun-hq/paywatch/pkg/engine"
	"github.com/speedrun-hq/paywatch/pkg/models"
)

type createIntentResponse struct {
	Intent  *models.PaymentIntent `json:"intent"`
	Request engine.PaymentRequest `json:"payment_request"`
}

type listIntentsResponse struct {
	Intents []*models.PaymentIntent `json:"intents"`
	Count   int                     `json:"count"`
}

type listEventsResponse struct {
	Events []*models.Event `json:"events"`
	Count  int             `json:"count"`
}

func (s *Server) handleCreateIntent(w http.ResponseWriter, r *http.Request) {
	var req createIntentRequest
	if err := decodeJSONBody(r, &req); err != nil {
		s.respondError(w, err)
		return
	}

	intent, request, err := s.service.CreateIntent(r.Context(), req.toInput())
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createIntentResponse{Intent: intent, Request: request})
}

func (s *Server) handleListIntents(w http.ResponseWriter, r *http.Request) {
	status := models.IntentStatus(strings.ToUpper(r.URL.Query().Get("status")))

	intents, err := s.service.ListIntents(r.Context(), status)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if intents == nil {
		intents = []*models.PaymentIntent{}
	}
	writeJSON(w, http.StatusOK, listIntentsResponse{Intents: intents, Count: len(intents)})
}

func (s *Server) handleGetIntent(w http.ResponseWriter, r *http.Request) {
	intent, err := s.service.GetIntent(r.Context(), chi.URLParam(r, "intentID"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, intent)
}

func (s *Server) handleTriggerVerify(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.TriggerVerify(r.Context(), chi.URLParam(r, "intentID"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.service.ListEvents(r.Context(), chi.URLParam(r, "intentID"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	if events == nil {
		events = []*models.Event{}
	}
	writeJSON(w, http.StatusOK, listEventsResponse{Events: events, Count: len(events)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.service.Health(r.Context())

	status := http.StatusOK
	if !health.OK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}
