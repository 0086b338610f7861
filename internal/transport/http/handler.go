package http

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/redxsmoke/riddleofthedaydev/internal/app"
	"github.com/redxsmoke/riddleofthedaydev/internal/domain"
)

// Handler serves the JSON contest API. Moderator calls authenticate with
// "Authorization: Bearer <adminToken>"; every other caller is anonymous.
type Handler struct {
	service    *app.ContestService
	adminToken string
	log        zerolog.Logger
}

// NewHandler builds the API. An empty adminToken disables the moderator endpoints.
func NewHandler(service *app.ContestService, adminToken string, logger zerolog.Logger) *Handler {
	return &Handler{service: service, adminToken: adminToken, log: logger}
}

// NewMux wires the API and the websocket endpoint.
func NewMux(h *Handler, ws *WSHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /leaderboard", h.leaderboard)
	mux.HandleFunc("GET /stats", h.stats)
	mux.HandleFunc("GET /round", h.round)
	mux.HandleFunc("GET /riddles", h.listRiddles)
	mux.HandleFunc("POST /riddles", h.submitRiddle)
	mux.HandleFunc("DELETE /riddles", h.requireAdmin(h.removeRiddle))
	if ws != nil {
		mux.HandleFunc("GET /ws", ws.ServeWS)
	}
	return mux
}

type submitRequest struct {
	Question    string `json:"question"`
	Answer      string `json:"answer"`
	SubmitterID string `json:"submitterId"`
}

type submitResponse struct {
	Riddle  domain.Riddle `json:"riddle"`
	Awarded bool          `json:"awarded"`
}

type riddleView struct {
	ID          int64  `json:"id"`
	Question    string `json:"question"`
	SubmitterID string `json:"submitterId,omitempty"`
	Consumed    bool   `json:"consumed"`
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	n := 10
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		n = v
	}
	lb, err := h.service.Leaderboard(r.Context(), n)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing userId")
		return
	}
	stats, err := h.service.Stats(r.Context(), userID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) round(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, publicSnapshot(h.service.Round()))
}

func (h *Handler) listRiddles(w http.ResponseWriter, r *http.Request) {
	riddles, err := h.service.ListRiddles(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	views := make([]riddleView, 0, len(riddles))
	for _, rd := range riddles {
		views = append(views, riddleView{ID: rd.ID, Question: rd.Question, SubmitterID: rd.SubmitterID, Consumed: rd.Consumed})
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) submitRiddle(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	// Only moderators may attribute a riddle, and with it the daily submission point.
	submitter := ""
	if h.isAdmin(r) {
		submitter = req.SubmitterID
	}
	riddle, awarded, err := h.service.SubmitRiddle(r.Context(), req.Question, req.Answer, submitter)
	if err != nil {
		h.fail(w, err)
		return
	}
	riddle.Answer = ""
	writeJSON(w, http.StatusCreated, submitResponse{Riddle: riddle, Awarded: awarded})
}

func (h *Handler) removeRiddle(w http.ResponseWriter, r *http.Request) {
	if _, err := h.service.RemoveRiddleByRef(r.Context(), r.URL.Query().Get("id")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.isAdmin(r) {
			writeError(w, http.StatusForbidden, "admin only")
			return
		}
		next(w, r)
	}
}

func (h *Handler) isAdmin(r *http.Request) bool {
	if h.adminToken == "" {
		return false
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) == 1
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("request failed")
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrEmptyField), errors.Is(err, domain.ErrInvalidRiddleID):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateRiddle):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorPayload{Message: msg})
}
