package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/ports"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	writeJSON(w, status, contracts.SuccessResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

func writeError(w http.ResponseWriter, status int, code, message, requestID string) {
	writeJSON(w, status, contracts.ErrorResponse{
		Status: "error",
		Error: contracts.ErrorPayload{
			Code:      code,
			Message:   message,
			RequestID: requestID,
		},
	})
}

func mapDomainError(err error) (status int, code string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, domain.ErrIdempotencyRequired):
		return http.StatusBadRequest, "idempotency_key_required"
	case errors.Is(err, domain.ErrIdempotencyConflict):
		return http.StatusConflict, "idempotency_conflict"
	case errors.Is(err, domain.ErrNotFunded):
		return http.StatusUnprocessableEntity, "not_funded"
	case errors.Is(err, domain.ErrClaimInProgress):
		return http.StatusConflict, "claim_in_progress"
	case errors.Is(err, domain.ErrAlreadyClaimed):
		return http.StatusConflict, "already_claimed"
	case errors.Is(err, domain.ErrClaimTerminal):
		return http.StatusConflict, "claim_failed"
	case errors.Is(err, domain.ErrFundingDiverged):
		return http.StatusConflict, "funding_conflict"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrConsistency):
		return http.StatusInternalServerError, "consistency_error"
	}
	var engineErr *ports.EngineError
	if errors.As(err, &engineErr) {
		if engineErr.Retryable {
			return http.StatusServiceUnavailable, "engine_unavailable"
		}
		return http.StatusBadGateway, "engine_rejected"
	}
	return http.StatusInternalServerError, "internal_error"
}
