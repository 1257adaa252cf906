package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kevinaaaquil/library/common"
	"github.com/kevinaaaquil/library/service"
)

type LoansHandler struct {
	Loans *service.LoanService
}

func (h *LoansHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.Loans.List(r.Context(), r.URL.Query())
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, page)
}

func (h *LoansHandler) ByUser(w http.ResponseWriter, r *http.Request) {
	page, err := h.Loans.ByUser(r.Context(), chi.URLParam(r, "userId"), r.URL.Query())
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, page)
}

func (h *LoansHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	page, err := h.Loans.Overdue(r.Context(), r.URL.Query())
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, page)
}

type refreshResponse struct {
	Message string `json:"message"`
	Flagged int64  `json:"flagged"`
}

func (h *LoansHandler) RefreshOverdue(w http.ResponseWriter, r *http.Request) {
	n, err := h.Loans.RefreshOverdue(r.Context())
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, refreshResponse{Message: "overdue flags refreshed", Flagged: n})
}

func (h *LoansHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Loans.Summary(r.Context())
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, summary)
}

func (h *LoansHandler) Get(w http.ResponseWriter, r *http.Request) {
	loan, err := h.Loans.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, loan)
}

func (h *LoansHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.CreateLoanInput
	if err := decodeJSON(w, r, &in); err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	loan, err := h.Loans.Create(r.Context(), in)
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, loan)
}

func (h *LoansHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in service.UpdateLoanInput
	if err := decodeJSON(w, r, &in); err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	loan, err := h.Loans.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, loan)
}

func (h *LoansHandler) Return(w http.ResponseWriter, r *http.Request) {
	loan, err := h.Loans.Return(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, loan)
}

func (h *LoansHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Loans.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LoansHandler) Remind(w http.ResponseWriter, r *http.Request) {
	if err := h.Loans.Remind(r.Context(), chi.URLParam(r, "id")); err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, common.MessageResponse{Message: "reminder sent"})
}
