package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kevinaaaquil/library/common"
	"github.com/kevinaaaquil/library/service"
)

type BooksHandler struct {
	Books          *service.BookService
	MaxUploadBytes int64
}

func (h *BooksHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.Books.List(r.Context(), r.URL.Query())
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, page)
}

func (h *BooksHandler) Get(w http.ResponseWriter, r *http.Request) {
	book, err := h.Books.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, book)
}

func (h *BooksHandler) Stats(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Books.Stats(r.Context())
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, rows)
}

func (h *BooksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.CreateBookInput
	if err := decodeJSON(w, r, &in); err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	book, err := h.Books.Create(r.Context(), in)
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, book)
}

func (h *BooksHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in service.UpdateBookInput
	if err := decodeJSON(w, r, &in); err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	book, err := h.Books.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, book)
}

func (h *BooksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Books.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type metadataRequest struct {
	ISBN string `json:"isbn"`
}

func (h *BooksHandler) RefreshMetadata(w http.ResponseWriter, r *http.Request) {
	var req metadataRequest
	if err := decodeJSON(w, r, &req); err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	book, err := h.Books.RefreshMetadata(r.Context(), chi.URLParam(r, "id"), req.ISBN)
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, book)
}

// UploadCover accepts a multipart form with the image in the "file" field.
func (h *BooksHandler) UploadCover(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.MaxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			common.RespondWithAppError(w, r, common.Validation("file", "file exceeds %d bytes", h.MaxUploadBytes))
			return
		}
		common.RespondWithAppError(w, r, common.Validation("file", "invalid multipart form"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		common.RespondWithAppError(w, r, common.Validation("file", "file is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		common.RespondWithAppError(w, r, common.Validation("file", "failed to read file"))
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	book, err := h.Books.SetCover(r.Context(), chi.URLParam(r, "id"), header.Filename, contentType, bytes.NewReader(data))
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, book)
}

type coverResponse struct {
	URL string `json:"url"`
}

func (h *BooksHandler) Cover(w http.ResponseWriter, r *http.Request) {
	u, err := h.Books.CoverURL(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, coverResponse{URL: u})
}
