package response

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/edvin/agentplane/internal/apperr"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes an error with the code conventionally paired with status.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteErrorCode(w, status, codeForStatus(status), message)
}

func WriteErrorCode(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, ErrorBody{Error: message, Code: code})
}

// WriteServiceError maps a core or store error onto its HTTP status. Only
// the caller-safe message of a classified error is written; everything else
// is logged and answered with a generic 500.
func WriteServiceError(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := apperr.As(err)
	if !ok {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("unhandled service error")
		WriteErrorCode(w, http.StatusInternalServerError, string(apperr.KindInternal), "internal server error")
		return
	}

	status := StatusForKind(e.Kind)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("kind", string(e.Kind)).Msg("service error")
	}
	message := e.Message
	if e.Kind == apperr.KindInternal {
		message = "internal server error"
	}
	WriteErrorCode(w, status, string(e.Kind), message)
}

func StatusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindInvalid:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindPreconditionFailed, apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindGateFailed:
		return http.StatusUnprocessableEntity
	case apperr.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return string(apperr.KindInvalid)
	case http.StatusUnauthorized:
		return string(apperr.KindUnauthenticated)
	case http.StatusForbidden:
		return string(apperr.KindForbidden)
	case http.StatusNotFound:
		return string(apperr.KindNotFound)
	case http.StatusConflict:
		return string(apperr.KindConflict)
	case http.StatusUnprocessableEntity:
		return string(apperr.KindGateFailed)
	case http.StatusServiceUnavailable:
		return string(apperr.KindStoreUnavailable)
	default:
		return string(apperr.KindInternal)
	}
}
