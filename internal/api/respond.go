package api

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"

	"es-query-studio/internal/common/errors"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err with the status its code maps to. Unclassified
// errors are logged and reported as internal.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	std := errors.AsStandardError(err)
	status := errors.HTTPStatus(std.Code)
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed", map[string]interface{}{
			"path":    r.URL.Path,
			"code":    string(std.Code),
			"details": std.Details,
		})
	}
	writeJSON(w, status, errorBody{Code: string(std.Code), Message: std.Message, Details: std.Details})
}

// readBody reads the request body, mapping an oversized body to a client
// error.
func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return nil, errors.NewInvalidRequestError(fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		}
		return nil, errors.NewInvalidRequestError(fmt.Sprintf("read body: %v", err))
	}
	return body, nil
}

func decodeJSON(body []byte, dst interface{}) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return errors.NewInvalidRequestError(fmt.Sprintf("parse body: %v", err))
	}
	return nil
}
