package model

import "encoding/json"

// Envelope is the wrapper every REST response uses. Error responses from
// the framework layer carry Detail instead of Message.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Detail  json.RawMessage `json:"detail,omitempty"`
}
