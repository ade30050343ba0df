package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lexrag/lexrag/internal/auth"
	"github.com/lexrag/lexrag/internal/repository"
	"github.com/lexrag/lexrag/internal/rerank"
	"github.com/lexrag/lexrag/internal/service"
)

type handlers struct {
	apiKey    string
	jwt       *auth.JWTManager
	search    *service.SearchService
	answer    *service.AnswerService
	documents *service.DocumentService
	logger    *slog.Logger
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type tokenRequest struct {
	ClientName string `json:"client_name"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// issueToken exchanges the configured API key for a JWT. The key arrives in
// the X-API-Key header and the client names itself in the body.
func (h *handlers) issueToken(w http.ResponseWriter, r *http.Request) {
	if h.apiKey == "" {
		writeError(w, http.StatusServiceUnavailable, "auth_unconfigured", "token issuance is not configured")
		return
	}

	key := r.Header.Get("X-API-Key")
	if subtle.ConstantTimeCompare([]byte(key), []byte(h.apiKey)) != 1 {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid API key")
		return
	}

	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ClientName == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "client_name is required")
		return
	}

	token, err := h.jwt.GenerateToken(req.ClientName)
	if err != nil {
		h.logger.Error("issuing token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

func (h *handlers) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req service.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	resp, err := h.search.Search(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req service.AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	resp, err := h.answer.Answer(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) ingestDocument(w http.ResponseWriter, r *http.Request) {
	var req service.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	resp, err := h.documents.Ingest(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	status := http.StatusCreated
	if resp.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

type listDocumentsResponse struct {
	Documents []*repository.Document `json:"documents"`
	Total     int                    `json:"total"`
}

func (h *handlers) listDocuments(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	docs, total, err := h.documents.List(r.Context(), status, limit, offset)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if docs == nil {
		docs = []*repository.Document{}
	}

	writeJSON(w, http.StatusOK, listDocumentsResponse{Documents: docs, Total: total})
}

func (h *handlers) getDocument(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid document id")
		return
	}

	doc, err := h.documents.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func (h *handlers) deleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid document id")
		return
	}

	if err := h.documents.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeServiceError maps service errors to HTTP statuses. A scorer outage
// is surfaced as 502 so callers can tell it apart from an empty result.
func (h *handlers) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyQuery),
		errors.Is(err, service.ErrNegativeDepth),
		errors.Is(err, service.ErrEmptyDocument),
		errors.Is(err, service.ErrAmbiguousSource):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, rerank.ErrScorerUnavailable):
		h.logger.Error("scoring backend unavailable", "error", err)
		writeError(w, http.StatusBadGateway, "scorer_unavailable", "relevance scoring backend is unavailable")
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "document not found")
	default:
		h.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}
