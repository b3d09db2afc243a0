package domain

import "encoding/json"

// APIResponse is the JSON envelope used by every endpoint.
// Error responses always carry a Message.
type APIResponse struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data,omitempty"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
}
