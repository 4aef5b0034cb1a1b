package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/A7-pro/mikerobot/internal/store"
)

type InstructionResponse struct {
	Instruction string `json:"instruction"`
	Overridden  bool   `json:"overridden"`
}

func (h *APIHandler) GetInstructionHandler(w http.ResponseWriter, r *http.Request) {
	text, overridden, err := h.admin.SystemInstruction(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, InstructionResponse{Instruction: text, Overridden: overridden})
}

func (h *APIHandler) PutInstructionHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Instruction string `json:"instruction"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := h.admin.SaveInstruction(r.Context(), req.Instruction); err != nil {
		fail(w, r, err)
		return
	}
	h.GetInstructionHandler(w, r)
}

func (h *APIHandler) DeleteInstructionHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.ClearInstruction(r.Context()); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) ListTemplatesHandler(w http.ResponseWriter, r *http.Request) {
	ts, err := h.admin.Templates(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

func (h *APIHandler) CreateTemplateHandler(w http.ResponseWriter, r *http.Request) {
	var t store.PersonalityTemplate
	if !decode(w, r, &t) {
		return
	}
	t.ID = ""
	saved, err := h.admin.SaveTemplate(r.Context(), t)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (h *APIHandler) UpdateTemplateHandler(w http.ResponseWriter, r *http.Request) {
	var t store.PersonalityTemplate
	if !decode(w, r, &t) {
		return
	}
	t.ID = chi.URLParam(r, "templateID")
	saved, err := h.admin.SaveTemplate(r.Context(), t)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *APIHandler) DeleteTemplateHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.DeleteTemplate(r.Context(), chi.URLParam(r, "templateID")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) ApplyTemplateHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.ApplyTemplate(r.Context(), chi.URLParam(r, "templateID")); err != nil {
		fail(w, r, err)
		return
	}
	h.GetInstructionHandler(w, r)
}

func (h *APIHandler) GetAnnouncementHandler(w http.ResponseWriter, r *http.Request) {
	ann, err := h.admin.CurrentAnnouncement(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	if ann == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, ann)
}

func (h *APIHandler) PostAnnouncementHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if !decode(w, r, &req) {
		return
	}
	ann, err := h.admin.PublishAnnouncement(r.Context(), req.Message)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ann)
}

func (h *APIHandler) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := h.admin.Users(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}
