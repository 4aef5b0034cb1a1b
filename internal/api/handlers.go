package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/A7-pro/mikerobot/internal/auth"
	"github.com/A7-pro/mikerobot/internal/core"
	"github.com/A7-pro/mikerobot/internal/store"
)

type APIHandler struct {
	chats    *core.ChatService
	auth     *core.AuthService
	admin    *core.AdminService
	limiter  *userLimiter
	upgrader websocket.Upgrader
}

func NewAPIHandler(chats *core.ChatService, authSvc *core.AuthService, admin *core.AdminService, ratePerMinute int) *APIHandler {
	return &APIHandler{
		chats:   chats,
		auth:    authSvc,
		admin:   admin,
		limiter: newUserLimiter(ratePerMinute),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool {
			return true
		}},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrEmptyMessage),
		errors.Is(err, core.ErrMissingCredentials),
		errors.Is(err, core.ErrMissingDisplayName),
		errors.Is(err, core.ErrTemplateInvalid),
		errors.Is(err, core.ErrEmptyInstruction),
		errors.Is(err, core.ErrEmptyAnnouncement):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrUnknownIdentity), errors.Is(err, core.ErrWrongPassword):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrDefaultTemplateImmutable):
		return http.StatusForbidden
	case errors.Is(err, core.ErrConversationNotFound), errors.Is(err, core.ErrTemplateNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrBusy),
		errors.Is(err, core.ErrCaptureActive),
		errors.Is(err, core.ErrNoCapture),
		errors.Is(err, core.ErrIdentityTaken),
		errors.Is(err, core.ErrTemplateNameTaken),
		errors.Is(err, core.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, core.ErrAssistantUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail maps a service error to its status. Login failures share one message so identities are not probed.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusUnauthorized:
		msg = "Invalid credentials"
	case http.StatusInternalServerError:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		msg = "Internal server error"
	}
	http.Error(w, msg, status)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *APIHandler) session(w http.ResponseWriter, r *http.Request) (*core.Session, bool) {
	sess, err := h.chats.Session(r.Context(), userFromContext(r.Context()))
	if err != nil {
		fail(w, r, err)
		return nil, false
	}
	return sess, true
}

// Auth

type RegisterRequest struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type LoginRequest struct {
	Identity string `json:"identity"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string `json:"token"`
	*core.AuthState
}

func (h *APIHandler) respondSignedIn(w http.ResponseWriter, status int, client string, state *core.AuthState) {
	token, err := auth.IssueToken(state.User.ID, client)
	if err != nil {
		log.Error().Err(err).Str("user_id", state.User.ID).Msg("error generating JWT")
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, status, AuthResponse{Token: token, AuthState: state})
}

func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	client := clientID(r, req.Identity)
	state, err := h.auth.Register(r.Context(), client, req.Identity, req.DisplayName, req.Password)
	if err != nil {
		fail(w, r, err)
		return
	}
	h.respondSignedIn(w, http.StatusCreated, client, state)
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}
	client := clientID(r, req.Identity)
	state, err := h.auth.Login(r.Context(), client, req.Identity, req.Password)
	if err != nil {
		fail(w, r, err)
		return
	}
	h.respondSignedIn(w, http.StatusOK, client, state)
}

func (h *APIHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if err := h.auth.Logout(r.Context(), clientID(r, user.ID), user.ID); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) ViewHandler(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	view, err := h.auth.ChooseView(r.Context(), clientID(r, user.ID), user, chi.URLParam(r, "choice"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]core.ViewState{"view": view})
}

// Session

type SessionResponse struct {
	User                store.User                `json:"user"`
	View                core.ViewState            `json:"view"`
	AssistantConfigured bool                      `json:"assistant_configured"`
	ConversationID      string                    `json:"conversation_id,omitempty"`
	State               string                    `json:"state,omitempty"`
	TTSEnabled          bool                      `json:"tts_enabled"`
	Capturing           bool                      `json:"capturing"`
	Profile             *store.UserProfile        `json:"profile,omitempty"`
	Announcement        *store.GlobalAnnouncement `json:"announcement,omitempty"`
}

func (h *APIHandler) SessionHandler(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	restored, err := h.auth.Restore(r.Context(), clientID(r, user.ID))
	if err != nil {
		fail(w, r, err)
		return
	}
	view := restored.View
	if view == core.ViewLoggedOut {
		// A valid token outranks a client that forgot its sign-in.
		view = core.ViewUser
		if user.IsAdmin {
			view = core.ViewAdminChoicePending
		}
	}

	resp := SessionResponse{User: user, View: view, AssistantConfigured: h.chats.AssistantConfigured()}
	if view == core.ViewUser {
		sess, ok := h.session(w, r)
		if !ok {
			return
		}
		profile := sess.Profile()
		resp.ConversationID = sess.ActiveConversationID()
		resp.State = sess.State().String()
		resp.TTSEnabled = sess.TTSEnabled()
		resp.Capturing = sess.Capturing()
		resp.Profile = &profile
		resp.Announcement = sess.Announcement()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *APIHandler) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Profile())
}

func (h *APIHandler) PutProfileHandler(w http.ResponseWriter, r *http.Request) {
	var profile store.UserProfile
	if !decode(w, r, &profile) {
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.SaveProfile(r.Context(), profile); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Profile())
}

func (h *APIHandler) PutTTSHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if !decode(w, r, &req) {
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.SetTTS(r.Context(), req.Enabled); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": sess.TTSEnabled()})
}

// Conversations

type ConversationSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	LastUpdated  time.Time `json:"last_updated"`
	MessageCount int       `json:"message_count"`
	Active       bool      `json:"active"`
}

type MessagesResponse struct {
	ConversationID string              `json:"conversation_id"`
	Messages       []store.ChatMessage `json:"messages"`
}

func messagesOf(sess *core.Session) MessagesResponse {
	return MessagesResponse{ConversationID: sess.ActiveConversationID(), Messages: sess.Messages()}
}

func (h *APIHandler) ListConversationsHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	active := sess.ActiveConversationID()
	convs := sess.Conversations()
	out := make([]ConversationSummary, 0, len(convs))
	for _, c := range convs {
		out = append(out, ConversationSummary{
			ID:           c.ID,
			Name:         c.Name,
			LastUpdated:  c.LastUpdated,
			MessageCount: len(c.Messages),
			Active:       c.ID == active,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *APIHandler) CreateConversationHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.StartNew(r.Context()); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, messagesOf(sess))
}

func (h *APIHandler) SelectConversationHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.Select(r.Context(), chi.URLParam(r, "conversationID")); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messagesOf(sess))
}

func (h *APIHandler) DeleteConversationHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.Delete(r.Context(), chi.URLParam(r, "conversationID")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Messages

type PostMessageRequest struct {
	Text string `json:"text"`
}

func (h *APIHandler) GetMessagesHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, messagesOf(sess))
}

// PostMessageHandler dispatches synchronously and answers with the resolved message list.
func (h *APIHandler) PostMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req PostMessageRequest
	if !decode(w, r, &req) {
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.Send(r.Context(), req.Text); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messagesOf(sess))
}

func (h *APIHandler) DismissAnnouncementHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.DismissAnnouncement(r.Context()); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Voice

func (h *APIHandler) VoiceStartHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.BeginCapture(r.Context()); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *APIHandler) VoiceResultHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Transcript string `json:"transcript"`
	}
	if !decode(w, r, &req) {
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.CompleteCapture(r.Context(), req.Transcript); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messagesOf(sess))
}

func (h *APIHandler) VoiceErrorHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code   string `json:"code"`
		Detail string `json:"detail"`
	}
	if !decode(w, r, &req) {
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.FailCapture(r.Context(), req.Code, req.Detail); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
