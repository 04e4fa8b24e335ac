package circles

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aliuyar1234/circles/internal/apperrors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// writeServiceError maps service errors onto the error envelope.
// Unknown errors are logged and never echoed to the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, notFoundMessage string) {
	switch {
	case errors.Is(err, ErrValidation):
		apperrors.WriteBadRequest(w, r, validationMessage(err))
	case errors.Is(err, ErrNotFound):
		apperrors.WriteNotFound(w, r, notFoundMessage)
	case errors.Is(err, ErrForbidden):
		apperrors.WriteForbidden(w, r, "Owner permission required")
	case errors.Is(err, ErrDisabled):
		apperrors.WriteInviteDisabled(w, r)
	case errors.Is(err, ErrExhausted):
		apperrors.WriteInviteExhausted(w, r)
	case errors.Is(err, ErrInvalidState):
		apperrors.WriteConflict(w, r, "Membership is not in a state that allows this action")
	case errors.Is(err, ErrConflict):
		apperrors.WriteConflict(w, r, "Request conflicts with the current state")
	default:
		log.Error().
			Err(err).
			Str("request_id", apperrors.GetRequestID(r.Context())).
			Str("path", r.URL.Path).
			Msg("Circle request failed")
		apperrors.WriteInternalError(w, r, "Internal server error")
	}
}

func validationMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), ErrValidation.Error()+": ")
	if msg == "" {
		return "Invalid request"
	}
	return msg
}

// uuidParam parses a UUID URL parameter, writing a 400 on failure
func uuidParam(w http.ResponseWriter, r *http.Request, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		apperrors.WriteBadRequest(w, r, "Invalid "+label)
		return uuid.Nil, false
	}
	return id, true
}

// InviteURL is the shareable link for a general or limited code
func InviteURL(baseURL, code string) string {
	return strings.TrimRight(baseURL, "/") + "/invite/" + code
}

// logAuditFailure keeps audit errors out of the response path
func logAuditFailure(err error) {
	if err != nil {
		log.Error().Err(err).Msg("Failed to log audit event")
	}
}
