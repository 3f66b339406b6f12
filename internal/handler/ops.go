package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/wanderplan/trip-engine/internal/apperrors"
	"github.com/wanderplan/trip-engine/internal/model"
	"github.com/wanderplan/trip-engine/internal/service"
)

// OpsHandler is the operator API: trip setup, participants, scheduled
// messages, and a manual scheduler trigger. The whole surface sits behind
// bearer auth.
type OpsHandler struct {
	tripService      *service.TripService
	resolver         *service.SessionResolver
	schedulerService *service.SchedulerService
}

func NewOpsHandler(
	tripService *service.TripService,
	resolver *service.SessionResolver,
	schedulerService *service.SchedulerService,
) *OpsHandler {
	return &OpsHandler{
		tripService:      tripService,
		resolver:         resolver,
		schedulerService: schedulerService,
	}
}

func (h *OpsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/trips", h.CreateTrip)
	r.Get("/trips/{tripId}", h.GetTrip)
	r.Patch("/trips/{tripId}", h.UpdateTrip)

	r.Post("/trips/{tripId}/participants", h.AddParticipant)
	r.Get("/trips/{tripId}/participants", h.ListParticipants)

	r.Post("/trips/{tripId}/messages", h.ScheduleMessage)
	r.Get("/trips/{tripId}/messages", h.ListScheduledMessages)
	r.Delete("/messages/{jobId}", h.DeleteScheduledMessage)

	r.Get("/trips/{tripId}/sessions", h.ListSessions)

	r.Post("/scheduler/run", h.RunScheduler)

	return r
}

type createTripRequest struct {
	TenantID             string           `json:"tenantId"`
	Name                 string           `json:"name"`
	DefaultTimezone      string           `json:"defaultTimezone"`
	ProfileTemplate      *json.RawMessage `json:"profileTemplate"`
	BehaviorInstructions *string          `json:"behaviorInstructions"`
	ItineraryRef         *string          `json:"itineraryRef"`
}

// POST /ops/trips
func (h *OpsHandler) CreateTrip(w http.ResponseWriter, r *http.Request) {
	var req createTripRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	trip, err := h.tripService.CreateTrip(r.Context(), service.CreateTripParams{
		TenantID:             req.TenantID,
		Name:                 req.Name,
		DefaultTimezone:      req.DefaultTimezone,
		ProfileTemplate:      req.ProfileTemplate,
		BehaviorInstructions: req.BehaviorInstructions,
		ItineraryRef:         req.ItineraryRef,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, trip)
}

// GET /ops/trips/{tripId}
func (h *OpsHandler) GetTrip(w http.ResponseWriter, r *http.Request) {
	trip, err := h.tripService.GetTrip(r.Context(), chi.URLParam(r, "tripId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

type updateTripRequest struct {
	Name                 *string          `json:"name"`
	ProfileTemplate      *json.RawMessage `json:"profileTemplate"`
	BehaviorInstructions *string          `json:"behaviorInstructions"`
	ItineraryRef         *string          `json:"itineraryRef"`
}

// PATCH /ops/trips/{tripId}
func (h *OpsHandler) UpdateTrip(w http.ResponseWriter, r *http.Request) {
	var req updateTripRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	trip, err := h.tripService.UpdateTrip(r.Context(), chi.URLParam(r, "tripId"), model.UpdateTripParams{
		Name:                 req.Name,
		ProfileTemplate:      req.ProfileTemplate,
		BehaviorInstructions: req.BehaviorInstructions,
		ItineraryRef:         req.ItineraryRef,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

type addParticipantRequest struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	IsPrimary bool   `json:"isPrimary"`
}

// POST /ops/trips/{tripId}/participants
func (h *OpsHandler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	var req addParticipantRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	participant, err := h.tripService.AddParticipant(
		r.Context(), chi.URLParam(r, "tripId"), req.Name, req.Phone, req.IsPrimary)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, participant)
}

// GET /ops/trips/{tripId}/participants
func (h *OpsHandler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	participants, err := h.tripService.ListParticipants(r.Context(), chi.URLParam(r, "tripId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"participants": participants})
}

type scheduleMessageRequest struct {
	RecipientPhone string `json:"recipientPhone"`
	Body           string `json:"body"`
	SendDate       string `json:"sendDate"`
	SendTime       string `json:"sendTime"`
	Timezone       string `json:"timezone"`
}

// POST /ops/trips/{tripId}/messages
func (h *OpsHandler) ScheduleMessage(w http.ResponseWriter, r *http.Request) {
	var req scheduleMessageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	job, err := h.tripService.ScheduleMessage(r.Context(), service.ScheduleMessageParams{
		TripID:         chi.URLParam(r, "tripId"),
		RecipientPhone: req.RecipientPhone,
		Body:           req.Body,
		SendDate:       req.SendDate,
		SendTime:       req.SendTime,
		Timezone:       req.Timezone,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

// GET /ops/trips/{tripId}/messages
func (h *OpsHandler) ListScheduledMessages(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.tripService.ListScheduledMessages(r.Context(), chi.URLParam(r, "tripId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": jobs})
}

// DELETE /ops/messages/{jobId}
func (h *OpsHandler) DeleteScheduledMessage(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		writeError(w, apperrors.MissingRequired("jobId"))
		return
	}
	if err := h.tripService.DeleteScheduledMessage(r.Context(), jobID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// GET /ops/trips/{tripId}/sessions
func (h *OpsHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.resolver.ListByTrip(r.Context(), chi.URLParam(r, "tripId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// POST /ops/scheduler/run
//
// Triggers one synchronous delivery pass. Safe to call while the background
// job is running; claims keep the passes from overlapping on a job.
func (h *OpsHandler) RunScheduler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.schedulerService.RunPass(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("manual scheduler pass failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
