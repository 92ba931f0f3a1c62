// Package api implements the public HTTP endpoints: the tutorial chat,
// the GeoJSON outage feed, and the available date range.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gridlens/outage-insight/internal/domain"
	"github.com/gridlens/outage-insight/internal/outage"
	"github.com/gridlens/outage-insight/internal/server"
)

// sessionCookie carries the tutorial session key across requests.
const sessionCookie = "oi_session"

// Query window defaults when the client sends no bounds. Wide enough
// to cover any plausible dataset.
var (
	defaultStart = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	defaultEnd   = time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)
)

// Chatter handles one tutorial chat turn.
type Chatter interface {
	HandleMessage(ctx context.Context, key, message string) (*domain.ChatResponse, error)
}

// OutageReader is the slice of the outage store the read-only
// endpoints use.
type OutageReader interface {
	FeatureCollection(ctx context.Context, f outage.Filter) (*outage.FeatureCollection, error)
	DateRange(ctx context.Context) (minDate, maxDate time.Time, err error)
}

// Handler wires the chat engine and outage store to the router.
type Handler struct {
	chat    Chatter
	outages OutageReader
	logger  *slog.Logger
}

func NewHandler(chat Chatter, outages OutageReader, logger *slog.Logger) *Handler {
	return &Handler{chat: chat, outages: outages, logger: logger}
}

// Routes mounts the API endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/chat", h.handleChat)
	r.Get("/api/outages", h.handleOutages)
	r.Get("/api/dates", h.handleDates)
}

type chatRequest struct {
	Message string `json:"message"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	key := h.sessionKey(w, r)
	server.AddLogField(r.Context(), "session", key)

	resp, err := h.chat.HandleMessage(r.Context(), key, req.Message)
	if err != nil {
		server.AddError(r.Context(), err)
		if errors.Is(err, domain.ErrNarration) {
			writeError(w, http.StatusInternalServerError, "Chat failed")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// sessionKey returns the caller's session key, minting a cookie on
// first contact. A per-client cookie keeps sessions separate even when
// many clients share one IP behind a NAT.
func (h *Handler) sessionKey(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}

	key := uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    key,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return key
}

func (h *Handler) handleOutages(w http.ResponseWriter, r *http.Request) {
	filter := outage.Filter{
		Start: defaultStart,
		End:   defaultEnd,
		Cause: r.URL.Query().Get("cause"),
	}

	if s := r.URL.Query().Get("start"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start must be YYYY-MM-DD")
			return
		}
		filter.Start = t
	}
	if s := r.URL.Query().Get("end"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "end must be YYYY-MM-DD")
			return
		}
		filter.End = t
	}
	if s := r.URL.Query().Get("zips"); s != "" {
		for _, zip := range strings.Split(s, ",") {
			if zip = strings.TrimSpace(zip); zip != "" {
				filter.Zips = append(filter.Zips, zip)
			}
		}
	}

	fc, err := h.outages.FeatureCollection(r.Context(), filter)
	if err != nil {
		server.AddError(r.Context(), err)
		writeError(w, http.StatusInternalServerError, "failed to load outages")
		return
	}
	writeJSON(w, http.StatusOK, fc)
}

func (h *Handler) handleDates(w http.ResponseWriter, r *http.Request) {
	minDate, maxDate, err := h.outages.DateRange(r.Context())
	if err != nil {
		server.AddError(r.Context(), err)
		writeError(w, http.StatusInternalServerError, "failed to get date range")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"minDate": minDate.Format("2006-01-02"),
		"maxDate": maxDate.Format("2006-01-02"),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
