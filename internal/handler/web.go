package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wanderplan/trip-engine/internal/apperrors"
	"github.com/wanderplan/trip-engine/internal/identity"
	"github.com/wanderplan/trip-engine/internal/service"
)

// WebHandler serves the traveler-facing web channel. A trip's share token is
// the only credential; everything under /t/{shareToken} is scoped to that
// trip.
type WebHandler struct {
	tripService         *service.TripService
	resolver            *service.SessionResolver
	intakeService       *service.IntakeService
	conversationService *service.ConversationService
}

func NewWebHandler(
	tripService *service.TripService,
	resolver *service.SessionResolver,
	intakeService *service.IntakeService,
	conversationService *service.ConversationService,
) *WebHandler {
	return &WebHandler{
		tripService:         tripService,
		resolver:            resolver,
		intakeService:       intakeService,
		conversationService: conversationService,
	}
}

func (h *WebHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/sessions", h.OpenSession)
	r.Get("/sessions/{sessionToken}", h.GetSessionState)
	r.Get("/sessions/{sessionToken}/messages", h.GetTranscript)
	r.Post("/intake", h.SubmitIntake)
	r.Post("/messages", h.SendMessage)

	return r
}

// tripSession resolves the share token and verifies the session belongs to
// that trip, so a token for one trip cannot be replayed against another.
func (h *WebHandler) tripSession(r *http.Request, sessionToken string) error {
	ctx := r.Context()

	trip, err := h.tripService.GetTripByShareToken(ctx, chi.URLParam(r, "shareToken"))
	if err != nil {
		return err
	}

	session, err := h.resolver.Session(ctx, sessionToken)
	if err != nil {
		return err
	}
	if session == nil || session.TripID != trip.ID {
		return apperrors.SessionNotFound()
	}
	return nil
}

type openSessionRequest struct {
	ClientID string `json:"clientId"`
}

type openSessionResponse struct {
	SessionToken string `json:"sessionToken"`
	ClientID     string `json:"clientId"`
	IsNew        bool   `json:"isNew"`
	TripName     string `json:"tripName"`
}

// POST /t/{shareToken}/sessions
func (h *WebHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	trip, err := h.tripService.GetTripByShareToken(ctx, chi.URLParam(r, "shareToken"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req openSessionRequest
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	// Browsers keep their clientId in local storage; a fresh browser gets one
	// here and converges on the same session on every later call.
	if req.ClientID == "" {
		req.ClientID = uuid.NewString()
	}

	token, isNew, err := h.resolver.Resolve(ctx, trip.ID, identity.WebAddress(req.ClientID))
	if err != nil {
		log.Error().Err(err).Str("tripId", trip.ID).Msg("failed to resolve web session")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, openSessionResponse{
		SessionToken: token,
		ClientID:     req.ClientID,
		IsNew:        isNew,
		TripName:     trip.Name,
	})
}

// GET /t/{shareToken}/sessions/{sessionToken}
func (h *WebHandler) GetSessionState(w http.ResponseWriter, r *http.Request) {
	sessionToken := chi.URLParam(r, "sessionToken")
	if err := h.tripSession(r, sessionToken); err != nil {
		writeError(w, err)
		return
	}

	state, err := h.intakeService.State(r.Context(), sessionToken)
	if err != nil {
		writeError(w, err)
		return
	}
	messages, err := h.conversationService.Transcript(r.Context(), sessionToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"intake":   state,
		"messages": messages,
	})
}

// GET /t/{shareToken}/sessions/{sessionToken}/messages
func (h *WebHandler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	sessionToken := chi.URLParam(r, "sessionToken")
	if err := h.tripSession(r, sessionToken); err != nil {
		writeError(w, err)
		return
	}

	messages, err := h.conversationService.Transcript(r.Context(), sessionToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

type submitIntakeRequest struct {
	SessionToken  string          `json:"sessionToken"`
	TravelerCount int             `json:"travelerCount"`
	Profile       json.RawMessage `json:"profile"`
}

// POST /t/{shareToken}/intake
func (h *WebHandler) SubmitIntake(w http.ResponseWriter, r *http.Request) {
	var req submitIntakeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.SessionToken == "" {
		writeError(w, apperrors.MissingRequired("sessionToken"))
		return
	}
	if err := h.tripSession(r, req.SessionToken); err != nil {
		writeError(w, err)
		return
	}

	if err := h.intakeService.Submit(r.Context(), req.SessionToken, req.TravelerCount, req.Profile); err != nil {
		// A resubmitted intake is a benign no-op from the browser's side.
		if apperrors.GetCode(err) == apperrors.ErrCodeIntakeCompleted {
			writeJSON(w, http.StatusOK, map[string]any{"completed": true})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"completed": true})
}

type sendMessageRequest struct {
	SessionToken string `json:"sessionToken"`
	Text         string `json:"text"`
}

type sendMessageResponse struct {
	Reply string `json:"reply"`
}

// POST /t/{shareToken}/messages
func (h *WebHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.SessionToken == "" {
		writeError(w, apperrors.MissingRequired("sessionToken"))
		return
	}
	if err := h.tripSession(r, req.SessionToken); err != nil {
		writeError(w, err)
		return
	}

	reply, err := h.conversationService.Respond(r.Context(), req.SessionToken, req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sendMessageResponse{Reply: reply})
}
