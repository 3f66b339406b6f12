package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/wanderplan/trip-engine/internal/service"
	"github.com/wanderplan/trip-engine/internal/util"
)

// ChannelHandler receives inbound messages from the phone messaging gateway.
// The webhook is routed purely by sender address; the gateway knows nothing
// about trips or sessions.
type ChannelHandler struct {
	resolver            *service.SessionResolver
	intakeService       *service.IntakeService
	conversationService *service.ConversationService
	tripService         *service.TripService
	shareLink           func(shareToken string) string
}

func NewChannelHandler(
	resolver *service.SessionResolver,
	intakeService *service.IntakeService,
	conversationService *service.ConversationService,
	tripService *service.TripService,
	shareLink func(shareToken string) string,
) *ChannelHandler {
	return &ChannelHandler{
		resolver:            resolver,
		intakeService:       intakeService,
		conversationService: conversationService,
		tripService:         tripService,
		shareLink:           shareLink,
	}
}

func (h *ChannelHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/webhook", h.InboundMessage)
	return r
}

type inboundMessageRequest struct {
	From string `json:"from"`
	Text string `json:"text"`
}

type inboundMessageResponse struct {
	Reply string `json:"reply"`
}

// POST /channel/webhook
//
// Always answers 200 with a reply body; the gateway relays the reply text
// back to the sender. Senders with no session get a neutral brush-off rather
// than an error, and a session still awaiting intake gets pointed at the web
// form instead of the assistant.
func (h *ChannelHandler) InboundMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req inboundMessageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.From == "" || req.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "from and text are required"})
		return
	}

	session, err := h.resolver.ResolveExisting(ctx, req.From)
	if err != nil {
		log.Error().Err(err).Msg("failed to route inbound message")
		writeError(w, err)
		return
	}
	if session == nil {
		writeJSON(w, http.StatusOK, inboundMessageResponse{
			Reply: "Sorry, this number isn't linked to a trip yet.",
		})
		return
	}

	state, err := h.intakeService.State(ctx, session.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	if !state.Completed {
		trip, err := h.tripService.GetTrip(ctx, session.TripID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, inboundMessageResponse{
			Reply: fmt.Sprintf(
				"Before we can chat, please fill in the traveler details for %s: %s",
				trip.Name, h.shareLink(trip.ShareToken),
			),
		})
		return
	}

	reply, err := h.conversationService.Respond(ctx, session.Token, req.Text)
	if err != nil {
		log.Error().Err(err).
			Str("sessionToken", util.MaskToken(session.Token)).
			Msg("inbound message handling failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inboundMessageResponse{Reply: reply})
}
