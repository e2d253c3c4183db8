package api

import (
	"bytes"
	"context"
	"net/http"

	"es-query-studio/internal/common/camunda"
)

// operation adapts a worker Execute method to a POST route. The body is
// checked against the activity's input schema before it is decoded, so the
// API and the workflow engine reject the same payloads.
func operation[I any, O any](a *API, taskType string, exec func(context.Context, *I) (*O, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(r)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		if len(bytes.TrimSpace(body)) == 0 {
			body = []byte("{}")
		}

		activity, _ := a.deps.Registry.Find(taskType)
		if err := camunda.CheckVariables(activity, string(body)); err != nil {
			a.writeError(w, r, err)
			return
		}

		var input I
		if err := decodeJSON(body, &input); err != nil {
			a.writeError(w, r, err)
			return
		}

		timeout := a.timeout
		if activity != nil {
			timeout = activity.TimeoutOr(a.timeout)
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		output, err := exec(ctx, &input)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, output)
	}
}
