package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kevinaaaquil/library/common"
	"github.com/kevinaaaquil/library/models"
	"github.com/kevinaaaquil/library/service"
)

type MembersHandler struct {
	Members *service.MemberService
}

func (h *MembersHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.Members.List(r.Context(), r.URL.Query())
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, page)
}

func (h *MembersHandler) Get(w http.ResponseWriter, r *http.Request) {
	member, err := h.Members.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, member)
}

func (h *MembersHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Members.Stats(r.Context())
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, stats)
}

type createFunc func(context.Context, service.CreateMemberInput) (*models.Member, error)

func (h *MembersHandler) create(fn createFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.CreateMemberInput
		if err := decodeJSON(w, r, &in); err != nil {
			common.RespondWithAppError(w, r, err)
			return
		}
		member, err := fn(r.Context(), in)
		if err != nil {
			common.RespondWithAppError(w, r, err)
			return
		}
		common.RespondWithJSON(w, http.StatusCreated, member)
	}
}

func (h *MembersHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.create(h.Members.Create)(w, r)
}

func (h *MembersHandler) RegisterStudent(w http.ResponseWriter, r *http.Request) {
	h.create(h.Members.RegisterStudent)(w, r)
}

func (h *MembersHandler) RegisterPatron(w http.ResponseWriter, r *http.Request) {
	h.create(h.Members.RegisterPatron)(w, r)
}

type updateFunc func(context.Context, string, service.UpdateMemberInput) (*models.Member, error)

func (h *MembersHandler) update(fn updateFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.UpdateMemberInput
		if err := decodeJSON(w, r, &in); err != nil {
			common.RespondWithAppError(w, r, err)
			return
		}
		member, err := fn(r.Context(), chi.URLParam(r, "id"), in)
		if err != nil {
			common.RespondWithAppError(w, r, err)
			return
		}
		common.RespondWithJSON(w, http.StatusOK, member)
	}
}

func (h *MembersHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.update(h.Members.Update)(w, r)
}

func (h *MembersHandler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	h.update(h.Members.UpdateStudent)(w, r)
}

func (h *MembersHandler) UpdatePatron(w http.ResponseWriter, r *http.Request) {
	h.update(h.Members.UpdatePatron)(w, r)
}

func (h *MembersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Members.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
