package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/redxsmoke/riddleofthedaydev/internal/app"
	"github.com/redxsmoke/riddleofthedaydev/internal/domain"
	"github.com/redxsmoke/riddleofthedaydev/internal/transport/ratelimit"
)

type WSHandler struct {
	service  *app.ContestService
	hub      *Hub
	limiter  *ratelimit.PerUser
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.ContestService, hub *Hub, limiter *ratelimit.PerUser, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		hub:     hub,
		limiter: limiter,
		log:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type guessPayload struct {
	Text string `json:"text"`
}

// ServeWS upgrades HTTP requests to websockets. Inbound guesses go to the contest service;
// results and round events come back through the hub.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	displayName := r.URL.Query().Get("name")
	if userID == "" || displayName == "" {
		http.Error(w, "missing userId or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	c, unregister := h.hub.register(userID)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range c.send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug().Err(err).Str("user_id", userID).Msg("ws write error")
				return
			}
		}
	}()

	h.hub.push(c, outboundMessage[any]{Type: "round", Payload: publicSnapshot(h.service.Round())})
	h.log.Info().Str("user_id", userID).Str("name", displayName).Msg("ws client connected")

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "guess":
			var payload guessPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				h.hub.push(c, errorMessage("invalid guess payload"))
				continue
			}
			if !h.limiter.Allow(userID) {
				h.hub.push(c, errorMessage("too many guesses, slow down"))
				continue
			}
			result, err := h.service.Guess(r.Context(), userID, payload.Text)
			switch {
			case errors.Is(err, domain.ErrPersistence):
				h.hub.push(c, errorMessage("guess not recorded, try again"))
			case err == nil && result.Outcome == domain.OutcomeIgnored:
				h.hub.push(c, errorMessage(domain.ErrRoundNotOpen.Error()))
			}
		default:
			h.hub.push(c, errorMessage("unsupported message type"))
		}
	}

	unregister()
	<-writerDone
	h.log.Info().Str("user_id", userID).Msg("ws client disconnected")
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}

// publicSnapshot hides the answer while the round is still open.
func publicSnapshot(snap domain.RoundSnapshot) domain.RoundSnapshot {
	if snap.Riddle != nil && snap.Phase == domain.PhaseOpen {
		riddle := *snap.Riddle
		riddle.Answer = ""
		snap.Riddle = &riddle
	}
	return snap
}
