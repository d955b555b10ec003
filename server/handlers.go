package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"dm-lab/domain"
	apperrors "dm-lab/errors"
	"dm-lab/services"
)

var validate = validator.New()

// Handlers carries the REST surface of the service. Every handler
// delegates to a service and translates the outcome into JSON.
type Handlers struct {
	log      *slog.Logger
	auth     services.IAuthService
	chat     services.IChatService
	contacts services.IContactService
}

func NewHandlers(
	log *slog.Logger,
	auth services.IAuthService,
	chat services.IChatService,
	contacts services.IContactService,
) *Handlers {
	return &Handlers{log: log, auth: auth, chat: chat, contacts: contacts}
}

type errorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apperrors.HTTPStatus(err), errorResponse{Message: err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
		return false
	}
	return true
}

type authResponse struct {
	Token string         `json:"token"`
	User  domain.UserRef `json:"user"`
}

func (h *Handlers) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username" validate:"required"`
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	if !decode(w, r, &req) {
		return
	}

	token, user, err := h.auth.Register(req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{Token: string(token), User: user.Ref()})
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	if !decode(w, r, &req) {
		return
	}

	token, user, err := h.auth.Login(req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: string(token), User: user.Ref()})
}

func (h *Handlers) sendMessage(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	var req struct {
		ReceiverUsername string `json:"receiverUsername" validate:"required"`
		Message          string `json:"message" validate:"required"`
	}
	if !decode(w, r, &req) {
		return
	}

	sender := domain.UserRef{ID: claims.UserID, Username: claims.Username}
	view, err := h.chat.SendFrom(r.Context(), sender, req.ReceiverUsername, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *Handlers) history(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	query := r.URL.Query()

	userA := query.Get("userA")
	userB := query.Get("userB")
	if userA == "" || userB == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "missing userA or userB query parameter"})
		return
	}
	page := intParam(query.Get("page"), 1)
	limit := intParam(query.Get("limit"), 20)

	result, err := h.chat.History(r.Context(), userA, userB, claims.UserID, page, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) editMessage(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Message string `json:"message" validate:"required"`
	}
	if !decode(w, r, &req) {
		return
	}

	view, err := h.chat.Edit(r.Context(), id, claims.UserID, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handlers) deleteMessage(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.chat.Delete(r.Context(), id, claims.UserID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "message deleted"})
}

func (h *Handlers) sendContactRequest(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	var req struct {
		ReceiverID int64 `json:"receiverId" validate:"required,min=1"`
	}
	if !decode(w, r, &req) {
		return
	}

	view, err := h.contacts.SendRequest(r.Context(), claims.UserID, req.ReceiverID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *Handlers) pendingRequests(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())

	views, err := h.contacts.PendingRequests(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handlers) acceptRequest(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.contacts.Accept(r.Context(), id, claims.UserID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "request accepted"})
}

func (h *Handlers) rejectRequest(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.contacts.Reject(r.Context(), id, claims.UserID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "request rejected"})
}

func (h *Handlers) listContacts(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())

	views, err := h.contacts.Contacts(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid id"})
		return 0, false
	}
	return id, true
}

func intParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
