package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	anchorerrors "github.com/quasaranchor/anchor/errors"
)

// errorEnvelope is spec.md §6.2's error shape: `{ "error", "code",
// ...details }`.
type errorEnvelope struct {
	Error  string         `json:"error"`
	Code   string         `json:"code"`
	Detail map[string]any `json:"-"`
}

// MarshalJSON flattens Detail into the top-level object beside "error"
// and "code"; those two keys win over a detail key of the same name.
func (e errorEnvelope) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Detail)+2)
	for k, v := range e.Detail {
		out[k] = v
	}
	out["error"] = e.Error
	out["code"] = e.Code
	return json.Marshal(out)
}

// WriteJSON writes v as a JSON response with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders err as spec.md §6.2's envelope: a structured
// *anchorerrors.Error verbatim (status and code from the error itself),
// anything else wrapped as a 500 "error" per §7's propagation policy.
func WriteError(w http.ResponseWriter, err error) {
	if structured, ok := anchorerrors.AsError(err); ok {
		WriteJSON(w, structured.HTTPStatus, errorEnvelope{
			Error:  structured.Message,
			Code:   string(structured.Code),
			Detail: structured.Detail,
		})
		return
	}
	WriteJSON(w, http.StatusInternalServerError, errorEnvelope{
		Error: err.Error(),
		Code:  string(anchorerrors.CodeInternal),
	})
}

// badRequestf builds a transport-layer bad_request error for request
// parsing failures that never reach the engine.
func badRequestf(format string, args ...any) error {
	return anchorerrors.BadRequest("http", fmt.Sprintf(format, args...), nil)
}
