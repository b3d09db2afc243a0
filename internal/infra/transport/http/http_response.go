package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mkrupp/jobhunter/internal/domain"
)

// WriteJSON writes the response envelope with data encoded into it.
func WriteJSON(w http.ResponseWriter, status int, message string, data any) error {
	resp := domain.APIResponse{
		StatusCode: status,
		Message:    message,
		Success:    status < http.StatusBadRequest,
	}

	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))

			return fmt.Errorf("marshal data: %w", err)
		}

		resp.Data = raw
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}

	return nil
}

// WriteError writes an error envelope. The message is shown to end users, so it
// must not contain internal details.
func WriteError(w http.ResponseWriter, status int, message string) {
	_ = WriteJSON(w, status, message, nil)
}
