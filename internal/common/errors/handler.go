// internal/common/errors/handler.go
package errors

import (
	"encoding/json"
	"net/http"
)

// Logger is the subset of the logger the responder needs.
type Logger interface {
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// ErrorHandler turns pipeline errors into webhook responses.
type ErrorHandler struct {
	logger Logger
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Respond logs err and writes the matching JSON body. Auth and payload
// failures use {"error": ...}; everything else is acknowledged with a
// {"message": ...} body so the provider does not redeliver.
func (h *ErrorHandler) Respond(w http.ResponseWriter, err error) {
	stdErr := Normalize(err)
	status := HTTPStatus(stdErr.Code)

	fields := map[string]interface{}{
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
	}
	for k, v := range stdErr.Metadata {
		fields[k] = v
	}

	switch stdErr.Code {
	case ErrCodeInternal, ErrCodePersistenceFailed, ErrCodeBroadcastFailed, ErrCodeLookupFailed:
		h.logger.Error("webhook handling failed", fields)
	default:
		h.logger.Warn("webhook not actioned", fields)
	}

	switch status {
	case http.StatusUnauthorized:
		WriteJSON(w, status, map[string]interface{}{"error": "Unauthorized"})
	case http.StatusBadRequest:
		WriteJSON(w, status, map[string]interface{}{"error": stdErr.Message})
	default:
		WriteJSON(w, status, map[string]interface{}{"message": stdErr.Message})
	}
}

// WriteJSON writes body with the given status.
func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
