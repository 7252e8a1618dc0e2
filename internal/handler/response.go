package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/kiwari-pos/terminal/internal/command"
	"github.com/kiwari-pos/terminal/internal/service"
	"github.com/kiwari-pos/terminal/internal/snapshot"
	log "github.com/sirupsen/logrus"
)

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Committed *int   `json:"committed_payments,omitempty"`
	Total     *int   `json:"total_payments,omitempty"`

	// Retryable tells the UI the same action may be resent.
	Retryable bool `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("failed to encode JSON response")
	}
}

// decodeBody reads an optional JSON body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// statusForCode maps a command failure code to an HTTP status. Unknown
// backend codes are business-rule rejections and map to 409.
func statusForCode(code command.Code) int {
	switch code {
	case command.CodeOrderNotFound:
		return http.StatusNotFound
	case command.CodeValidationFailed:
		return http.StatusUnprocessableEntity
	case command.CodePermissionDenied:
		return http.StatusForbidden
	case command.CodeNetworkError, command.CodeInternalError, command.CodeInvalidResponse:
		return http.StatusServiceUnavailable
	default:
		return http.StatusConflict
	}
}

// writeError maps service and command errors onto a status and body.
func writeError(w http.ResponseWriter, logger *log.Entry, err error) {
	var (
		partial *service.PartialPaymentError
		cmdErr  *command.CommandError
		fetch   *snapshot.FetchError
	)

	switch {
	case errors.Is(err, service.ErrEmptyCart), errors.Is(err, service.ErrNoPayments):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})

	case errors.As(err, &partial):
		status := http.StatusInternalServerError
		body := errorResponse{Error: err.Error(), Committed: &partial.Committed, Total: &partial.Total}
		if errors.As(partial.Err, &cmdErr) {
			status = statusForCode(cmdErr.Code)
			body.Code = string(cmdErr.Code)
		}
		logger.WithError(err).Warn("payment sequence stopped")
		writeJSON(w, status, body)

	case errors.As(err, &cmdErr):
		body := errorResponse{Error: cmdErr.Message, Code: string(cmdErr.Code), Retryable: cmdErr.Retryable()}
		if body.Retryable {
			logger.WithError(err).Warn("command not delivered")
		}
		writeJSON(w, statusForCode(cmdErr.Code), body)

	case errors.As(err, &fetch):
		if errors.Is(fetch.Archive, snapshot.ErrNotFound) && (fetch.Fallback == nil || errors.Is(fetch.Fallback, snapshot.ErrNotFound)) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "order not found", Code: string(command.CodeOrderNotFound)})
			return
		}
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "order snapshot unavailable", Code: string(command.CodeNetworkError)})

	case errors.Is(err, service.ErrMissingOrderID):
		logger.WithError(err).Error("backend reply missing order id")
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error(), Code: string(command.CodeInvalidResponse)})

	default:
		logger.WithError(err).Error("request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error", Code: string(command.CodeInternalError)})
	}
}
