package models

import "encoding/json"

// APIResponse is the uniform envelope for every control-API response.
// Success is the single source of truth for whether a call worked;
// Data is left raw so each operation can decode its own payload.
type APIResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}
