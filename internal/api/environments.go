package api

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"es-query-studio/internal/common/errors"
	"es-query-studio/internal/store"
)

func (a *API) createEnvironment(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var env store.Environment
	if err := decodeJSON(body, &env); err != nil {
		a.writeError(w, r, err)
		return
	}
	env.Name = strings.TrimSpace(env.Name)
	if env.Name == "" {
		a.writeError(w, r, errors.NewInvalidRequestError("name is required"))
		return
	}
	env.ID = ""

	if err := a.deps.Store.CreateEnvironment(r.Context(), &env); err != nil {
		a.writeError(w, r, errors.NewStoreOperationFailedError("create environment", err))
		return
	}
	a.logger.Info("environment created", map[string]interface{}{"environmentId": env.ID, "name": env.Name})
	writeJSON(w, http.StatusCreated, env.Redacted())
}

func (a *API) listEnvironments(w http.ResponseWriter, r *http.Request) {
	envs, err := a.deps.Store.ListEnvironments(r.Context())
	if err != nil {
		a.writeError(w, r, errors.NewStoreOperationFailedError("list environments", err))
		return
	}
	out := make([]store.Environment, 0, len(envs))
	for _, env := range envs {
		out = append(out, env.Redacted())
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) getEnvironment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	env, err := a.deps.Store.GetEnvironment(r.Context(), id)
	if err != nil {
		a.writeError(w, r, environmentError(id, "get environment", err))
		return
	}
	writeJSON(w, http.StatusOK, env.Redacted())
}

func (a *API) deleteEnvironment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.deps.Store.DeleteEnvironment(r.Context(), id); err != nil {
		a.writeError(w, r, environmentError(id, "delete environment", err))
		return
	}
	if a.deps.EnvironmentDeleted != nil {
		a.deps.EnvironmentDeleted(id)
	}
	a.logger.Info("environment deleted", map[string]interface{}{"environmentId": id})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) listMappings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	recs, err := a.deps.Store.ListMappings(r.Context(), id)
	if err != nil {
		a.writeError(w, r, errors.NewStoreOperationFailedError("list mappings", err))
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// putIndexConfig replaces the field classification of one index. The
// environment must exist.
func (a *API) putIndexConfig(w http.ResponseWriter, r *http.Request) {
	id, index := chi.URLParam(r, "id"), chi.URLParam(r, "index")

	body, err := readBody(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var cfg store.IndexConfig
	if err := decodeJSON(body, &cfg); err != nil {
		a.writeError(w, r, err)
		return
	}
	if _, err := a.deps.Store.GetEnvironment(r.Context(), id); err != nil {
		a.writeError(w, r, environmentError(id, "get environment", err))
		return
	}

	cfg.EnvironmentID = id
	cfg.IndexName = index
	if err := a.deps.Store.SaveIndexConfig(r.Context(), &cfg); err != nil {
		a.writeError(w, r, errors.NewStoreOperationFailedError("save index config", err))
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (a *API) getIndexConfig(w http.ResponseWriter, r *http.Request) {
	id, index := chi.URLParam(r, "id"), chi.URLParam(r, "index")
	cfg, err := a.deps.Store.GetIndexConfig(r.Context(), id, index)
	if stderrors.Is(err, store.ErrNotFound) {
		a.writeError(w, r, errors.NewIndexConfigNotFoundError(id, index))
		return
	}
	if err != nil {
		a.writeError(w, r, errors.NewStoreOperationFailedError("get index config", err))
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func environmentError(id, op string, err error) error {
	if stderrors.Is(err, store.ErrNotFound) {
		return errors.NewEnvironmentNotFoundError(id)
	}
	return errors.NewStoreOperationFailedError(op, err)
}
