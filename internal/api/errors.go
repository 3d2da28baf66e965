package api

import (
	"net/http"

	"gardenplots/internal/domain"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const retryAfterSeconds = "1"

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func httpStatus(kind domain.Kind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindDuplicateBooking, domain.KindAlreadyCancelled:
		return http.StatusConflict
	case domain.KindPolicyRejected,
		domain.KindInvalidCardFormat,
		domain.KindCardExpired,
		domain.KindInvalidCvv,
		domain.KindInvalidDuration:
		return http.StatusUnprocessableEntity
	case domain.KindInvalidInput:
		return http.StatusBadRequest
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError renders err as {"error": kind, "reason": text}.
func writeDomainError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	if kind == "" {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal", Reason: "internal error"})
		return
	}
	if domain.Retryable(err) {
		w.Header().Set("Retry-After", retryAfterSeconds)
		// причина сбоя хранилища наружу не отдается
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: string(kind), Reason: "service temporarily unavailable, retry later"})
		return
	}
	writeJSON(w, httpStatus(kind), errorResponse{Error: string(kind), Reason: domain.Reason(err)})
}

func writeError(w http.ResponseWriter, statusCode int, kind, reason string) {
	writeJSON(w, statusCode, errorResponse{Error: kind, Reason: reason})
}

func grpcStatus(err error) error {
	kind := domain.KindOf(err)
	var code codes.Code
	switch kind {
	case domain.KindNotFound:
		code = codes.NotFound
	case domain.KindForbidden:
		code = codes.PermissionDenied
	case domain.KindInvalidInput:
		code = codes.InvalidArgument
	case domain.KindStoreUnavailable:
		code = codes.Unavailable
	case domain.KindDuplicateBooking, domain.KindAlreadyCancelled:
		code = codes.AlreadyExists
	case "":
		return status.Error(codes.Internal, "internal error")
	default:
		code = codes.FailedPrecondition
	}
	return status.Error(code, domain.Reason(err))
}
