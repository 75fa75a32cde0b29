package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/ports"
)

func (h *Handler) createLink(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	var req contracts.CreateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestIDFromContext(r.Context()))
		return
	}
	creatorRef := strings.TrimSpace(req.CreatorRef)
	if creatorRef == "" {
		creatorRef = actor.SubjectID
	}
	link, err := h.service.CreateLink(r.Context(), actor, application.CreateLinkInput{
		Amount:     req.Amount,
		Asset:      strings.TrimSpace(req.Asset),
		CreatorRef: creatorRef,
		FeeAmount:  req.FeeAmount,
	})
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusCreated, "", link)
}

func (h *Handler) getLink(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	link, err := h.service.GetLink(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", link)
}

func (h *Handler) listLinks(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	query := ports.ListQuery{
		CreatorRef: strings.TrimSpace(r.URL.Query().Get("creator_ref")),
		Limit:      parseIntOrDefault(r.URL.Query().Get("limit"), 20),
		Offset:     parseIntOrDefault(r.URL.Query().Get("offset"), 0),
	}
	out, err := h.service.ListLinks(r.Context(), actor, query)
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]interface{}{
		"items":      out.Items,
		"pagination": out.Pagination,
	})
}

func (h *Handler) reportFunding(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	var req contracts.ReportFundingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestIDFromContext(r.Context()))
		return
	}
	out, err := h.service.ReportFunding(r.Context(), actor, application.ReportFundingInput{
		LinkID:      chi.URLParam(r, "id"),
		TransferRef: strings.TrimSpace(req.TransferRef),
	})
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", contracts.ReportFundingResponse{
		Status: string(out.Status),
		Link:   out.Link,
	})
}

func (h *Handler) claimLink(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	var req contracts.ClaimLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestIDFromContext(r.Context()))
		return
	}
	out, err := h.service.ClaimLink(r.Context(), actor, application.ClaimLinkInput{
		LinkID:      chi.URLParam(r, "id"),
		ClaimantRef: strings.TrimSpace(req.ClaimantRef),
	})
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	status := http.StatusOK
	if out.Status == application.ClaimStatusPending {
		status = http.StatusAccepted
	}
	writeSuccess(w, status, "", contracts.ClaimLinkResponse{
		Status:            string(out.Status),
		DeliverableAmount: out.DeliverableAmount,
		ClaimTransferRef:  out.ClaimTransferRef,
		Link:              out.Link,
	})
}

func (h *Handler) resolveClaim(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	out, err := h.service.ResolveClaim(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	status := http.StatusOK
	if out.Status == application.ClaimStatusPending {
		status = http.StatusAccepted
	}
	writeSuccess(w, status, "", contracts.ClaimLinkResponse{
		Status:            string(out.Status),
		DeliverableAmount: out.DeliverableAmount,
		ClaimTransferRef:  out.ClaimTransferRef,
		Link:              out.Link,
	})
}

func (h *Handler) reopenLink(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	link, err := h.service.ReopenLink(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", link)
}

func parseIntOrDefault(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
