package httpapi

import (
	"encoding/json"
	"net/http"
)

// ErrorEnvelope is the JSON error body of the user management API. Older
// endpoints answer with {"error": "..."} instead of {"message": "..."}.
type ErrorEnvelope struct {
	Message string            `json:"message,omitempty"`
	Error   string            `json:"error,omitempty"`
	Code    string            `json:"code,omitempty"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// Text returns whichever of Message and Error is set.
func (e ErrorEnvelope) Text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// WriteJSON marshals payload before writing the header, so a payload that
// cannot be encoded turns into a 500 envelope rather than a truncated body.
func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			writeRaw(w, http.StatusInternalServerError, []byte(`{"code":"ENCODE_FAILED","message":"response could not be encoded"}`+"\n"))
			return err
		}
		body = append(b, '\n')
	}
	writeRaw(w, status, body)
	return nil
}

// WriteError answers with env. Set env.Error instead of env.Message to
// mimic the older endpoints.
func WriteError(w http.ResponseWriter, status int, env ErrorEnvelope) error {
	return WriteJSON(w, status, &env)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if len(body) > 0 {
		_, _ = w.Write(body)
	}
}
