package control

import (
	"encoding/json"

	"github.com/orbiterhq/orbiter/pkg/models"
)

// Validate interprets a raw control-API response body. It is the single
// point of truth for "did the call succeed": a missing or undecodable
// body is a ProtocolError, an envelope with success:false is an
// APIError carrying the server message, anything else yields the inner
// data payload. Every client operation routes its response through here
// before reading a single field out of data.
func Validate(body []byte) (json.RawMessage, error) {
	if len(body) == 0 {
		return nil, &ProtocolError{Reason: "empty response body"}
	}

	var resp models.APIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ProtocolError{Reason: "malformed response body: " + err.Error()}
	}

	if !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = "request rejected by control api"
		}
		return nil, &APIError{Message: msg}
	}

	return resp.Data, nil
}
