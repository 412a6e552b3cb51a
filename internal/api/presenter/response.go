package presenter

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/goodaegwang/cirrus/internal/service"
)

type ErrorResponse struct {
	Code          string `json:"code,omitempty"`
	Error         string `json:"error"`
	CorrelationID string `json:"correlation_id"`
}

func JSON(w http.ResponseWriter, r *http.Request, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to write json response")
	}
}

func Error(w http.ResponseWriter, r *http.Request, msg string, status int) {
	CodedError(w, r, "", msg, status)
}

// CodedError writes an error response carrying a machine-readable code.
func CodedError(w http.ResponseWriter, r *http.Request, code, msg string, status int) {
	correlationID, _ := r.Context().Value("correlation_id").(string)
	resp := ErrorResponse{
		Code:          code,
		Error:         msg,
		CorrelationID: correlationID,
	}
	JSON(w, r, resp, status)
}

// Err renders a service error. Typed auth errors carry their own status
// and code; anything else is a 400 with the wrapped message.
func Err(w http.ResponseWriter, r *http.Request, err error, short string) {
	var authErr *service.AuthError
	if errors.As(err, &authErr) {
		CodedError(w, r, authErr.Code, authErr.Message, authErr.Status)
		return
	}
	Error(w, r, short+": "+err.Error(), http.StatusBadRequest)
}
