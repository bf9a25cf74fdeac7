package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gwi.com/llm-chat-service/internal/core"
)

// TokenHeader carries the raw JWT. "Authorization: Bearer" is accepted too.
const TokenHeader = "token"

const (
	defaultPage = 0
	defaultSize = 10
	defaultSort = "desc"
)

type APIHandler struct {
	members  *core.MemberService
	chats    *core.ChatService
	feedback *core.FeedbackService
	logs     *core.LogService
	ping     func(ctx context.Context) error
}

func NewAPIHandler(members *core.MemberService, chats *core.ChatService, feedback *core.FeedbackService, logs *core.LogService, ping func(ctx context.Context) error) *APIHandler {
	return &APIHandler{
		members:  members,
		chats:    chats,
		feedback: feedback,
		logs:     logs,
		ping:     ping,
	}
}

func requestToken(r *http.Request) string {
	if token := r.Header.Get(TokenHeader); token != "" {
		return token
	}
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, core.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps a service error to its status. Internal errors are logged
// and hidden from the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err)
		message = http.StatusText(status)
	}
	writeJSON(w, status, ErrorResponse{Error: message})
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", core.ErrValidation, name)
	}
	return id, nil
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", core.ErrValidation, name)
	}
	return v, nil
}

func (h *APIHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	id, err := h.members.Register(r.Context(), req.Email, req.Password, req.Name, req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, IDResponse{ID: id})
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	token, err := h.members.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{Token: token})
}

func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	answer, err := h.chats.Chat(r.Context(), req.Prompt, req.Model, requestToken(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AnswerResponse{Answer: answer})
}

func (h *APIHandler) DeleteThreadHandler(w http.ResponseWriter, r *http.Request) {
	chatID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	deleted, err := h.chats.DeleteThread(r.Context(), chatID, requestToken(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, IDResponse{ID: deleted})
}

func (h *APIHandler) GetThreadHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	email := query.Get("email")
	if email == "" {
		writeError(w, r, fmt.Errorf("%w: email is required", core.ErrValidation))
		return
	}
	page, err := queryInt(r, "page", defaultPage)
	if err != nil {
		writeError(w, r, err)
		return
	}
	size, err := queryInt(r, "size", defaultSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sort := query.Get("sort")
	if sort == "" {
		sort = defaultSort
	}

	result, err := h.chats.GetThread(r.Context(), requestToken(r), email, page, size, sort)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) SaveFeedbackHandler(w http.ResponseWriter, r *http.Request) {
	chatID, err := pathID(r, "chatId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req FeedbackRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	id, err := h.feedback.Save(r.Context(), chatID, req.IsPositive, req.Feedback, requestToken(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, IDResponse{ID: id})
}

func (h *APIHandler) UpdateFeedbackHandler(w http.ResponseWriter, r *http.Request) {
	feedbackID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req UpdateFeedbackRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.feedback.Update(r.Context(), feedbackID, req.Status, requestToken(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) GetFeedbackHandler(w http.ResponseWriter, r *http.Request) {
	feedbackID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	fb, err := h.feedback.Get(r.Context(), feedbackID, requestToken(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fb)
}

func (h *APIHandler) ActivityHandler(w http.ResponseWriter, r *http.Request) {
	activity, err := h.logs.MemberActivity(r.Context(), requestToken(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, activity)
}

func (h *APIHandler) ReportHandler(w http.ResponseWriter, r *http.Request) {
	report, err := h.logs.Report(r.Context(), requestToken(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=report.csv")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(report))
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		if err := h.ping(r.Context()); err != nil {
			slog.Error("Health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
