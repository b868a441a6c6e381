package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lewisedginton/sdr_chatbot/internal/bot"
	"github.com/lewisedginton/sdr_chatbot/internal/ingest"
	"github.com/lewisedginton/sdr_chatbot/internal/media"
	"github.com/lewisedginton/sdr_chatbot/internal/memory_service"
	"github.com/lewisedginton/sdr_chatbot/internal/session_manager"
	"github.com/lewisedginton/sdr_chatbot/internal/store"
	"github.com/lewisedginton/sdr_chatbot/pkg/logger"
)

const (
	defaultConversationLimit = 10
	maxConversationLimit     = 100
)

type api struct {
	s       *Server
	maxBody int64
}

func newAPI(s *Server) *api {
	return &api{s: s, maxBody: s.cfg.HTTP.MaxBodyBytes}
}

func (a *api) routes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Post("/messages", a.postMessage)
		r.Post("/uploads", a.postUpload)

		r.Get("/persona", a.getPersona)
		r.Put("/persona", a.putPersona)

		r.Get("/sessions", a.listSessions)
		r.Get("/sessions/{id}/history", a.getHistory)
		r.Delete("/sessions/{id}/history", a.deleteHistory)

		r.Get("/leads/{id}/memory", a.getLeadMemory)

		r.Get("/stats", a.getStats)
		r.Get("/conversations", a.listConversations)
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, errCode, msg string) {
	writeJSON(w, code, errorResponse{Error: msg, Code: errCode})
}

// decode reads a size-limited JSON body into v.
func (a *api) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if a.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, a.maxBody)
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", err.Error())
			return false
		}
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return false
	}
	return true
}

type messageRequest struct {
	SessionID   string `json:"session_id"`
	Message     string `json:"message"`
	MessageType string `json:"message_type"`
	LeadID      string `json:"lead_id"`
	ContactName string `json:"contact_name"`
	// MediaURL is fetched for audio and pdf messages.
	MediaURL string `json:"media_url"`
	// Context is stored with the turn and remembered for the lead.
	Context map[string]any `json:"context"`
}

type messageResponse struct {
	SessionID string   `json:"session_id"`
	Reply     string   `json:"reply"`
	Intent    string   `json:"intent"`
	Source    string   `json:"source"`
	Hash      string   `json:"hash,omitempty"`
	Degraded  bool     `json:"degraded"`
	// FailedStages names the pipeline stages that failed. The errors
	// themselves are only logged.
	FailedStages []string `json:"failed_stages,omitempty"`
}

func (a *api) postMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.MessageType == "" {
		req.MessageType = media.KindText
	}

	text := req.Message
	if req.MediaURL != "" {
		resolved, err := a.s.resolver.Resolve(r.Context(), req.MessageType, req.Message, req.MediaURL)
		if err != nil {
			logger.FromContext(r.Context(), a.s.log).Warn("media resolution failed", logger.ErrorField(err))
			writeError(w, http.StatusUnprocessableEntity, "MEDIA_UNREADABLE", err.Error())
			return
		}
		text = resolved
	}

	reply, err := a.s.bot.Process(r.Context(), bot.Request{
		SessionID:   req.SessionID,
		Message:     text,
		MessageType: req.MessageType,
		LeadID:      req.LeadID,
		ContactName: req.ContactName,
		Context:     req.Context,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_MESSAGE", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, newMessageResponse(reply))
}

func newMessageResponse(reply bot.Reply) messageResponse {
	return messageResponse{
		SessionID:    reply.SessionID,
		Reply:        reply.Text,
		Intent:       string(reply.Intent),
		Source:       string(reply.Source),
		Hash:         reply.Hash,
		Degraded:     reply.Degraded,
		FailedStages: failedStages(reply.Err),
	}
}

// failedStages lists the stage of each error in the aggregated pipeline
// error, in the order they failed.
func failedStages(err error) []string {
	if err == nil {
		return nil
	}
	errs := []error{err}
	var joined interface{ WrappedErrors() []error }
	if errors.As(err, &joined) {
		errs = joined.WrappedErrors()
	}
	stages := make([]string, 0, len(errs))
	for _, e := range errs {
		var stageErr *bot.StageError
		if errors.As(e, &stageErr) {
			stages = append(stages, stageErr.Stage)
			continue
		}
		stages = append(stages, "unknown")
	}
	return stages
}

// postUpload stores the raw request body as a training log or, when it
// holds no cliente/gabriel pairs, as a reference document.
func (a *api) postUpload(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("filename"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "MISSING_FILENAME", "filename query parameter is required")
		return
	}
	if a.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, a.maxBody)
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", err.Error())
		return
	}

	res, err := a.s.uploader.Upload(r.Context(), name, body)
	switch {
	case errors.Is(err, media.ErrUnsupported):
		writeError(w, http.StatusUnprocessableEntity, "UNSUPPORTED_FILE", err.Error())
		return
	case errors.Is(err, ingest.ErrNoText):
		writeError(w, http.StatusUnprocessableEntity, "EMPTY_FILE", err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "IMPORT_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) getPersona(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.s.personas.Current())
}

func (a *api) putPersona(w http.ResponseWriter, r *http.Request) {
	var update map[string]json.RawMessage
	if !a.decode(w, r, &update) {
		return
	}
	if len(update) == 0 {
		writeError(w, http.StatusBadRequest, "EMPTY_UPDATE", "at least one persona key is required")
		return
	}
	p, err := a.s.personas.Update(r.Context(), update)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PERSONA", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *api) listSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": a.s.sessionManager.Sessions(r.Context())})
}

func (a *api) getHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entries := a.s.sessionManager.History(r.Context(), id)
	if entries == nil {
		entries = []session_manager.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "messages": entries})
}

func (a *api) deleteHistory(w http.ResponseWriter, r *http.Request) {
	err := a.s.sessionManager.Clear(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, session_manager.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "SESSION_NOT_FOUND", err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "CLEAR_FAILED", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// getLeadMemory returns every remembered fact, or with ?q= only the facts
// sharing a word with the query.
func (a *api) getLeadMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		facts, err := a.s.leadMemory.Search(r.Context(), id, q)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "MEMORY_FAILED", err.Error())
			return
		}
		if facts == nil {
			facts = []memory_service.Fact{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"lead_id": id, "facts": facts})
		return
	}

	mem, err := a.s.leadMemory.Recall(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "MEMORY_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, mem)
}

func (a *api) getStats(w http.ResponseWriter, r *http.Request) {
	st, err := a.s.store.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STATS_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type conversation struct {
	ID          int64          `json:"id"`
	UserMessage string         `json:"user_message"`
	Response    string         `json:"response"`
	Intent      string         `json:"intent"`
	Context     map[string]any `json:"context,omitempty"`
	Hash        string         `json:"hash"`
	CreatedAt   time.Time      `json:"created_at"`
}

func (a *api) listConversations(w http.ResponseWriter, r *http.Request) {
	limit := defaultConversationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer")
			return
		}
		limit = min(n, maxConversationLimit)
	}

	turns, err := a.s.store.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "LIST_FAILED", err.Error())
		return
	}
	out := make([]conversation, len(turns))
	for i, t := range turns {
		out[i] = fromTurn(t)
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": out})
}

func fromTurn(t store.Turn) conversation {
	return conversation{
		ID:          t.ID,
		UserMessage: t.UserMessage,
		Response:    t.Response,
		Intent:      t.Intent,
		Context:     t.Context,
		Hash:        t.Hash,
		CreatedAt:   t.CreatedAt,
	}
}
