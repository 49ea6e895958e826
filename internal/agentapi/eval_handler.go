package agentapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/rafaeljc/heimdall-sdk/internal/client"
	"github.com/rafaeljc/heimdall-sdk/internal/configservice"
	"github.com/rafaeljc/heimdall-sdk/internal/logger"
	"github.com/rafaeljc/heimdall-sdk/internal/model"
)

// handleEvaluate processes POST /api/v1/evaluate. Evaluation problems are
// not HTTP errors: the response carries the default value and the reason.
// Unknown keys are the exception and answer 404.
func (a *API) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req EvaluateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("invalid json payload", slog.String("error", err.Error()))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Code: "ERR_INVALID_JSON", Message: "Invalid JSON payload: " + err.Error()})
		return
	}

	req.Sanitize()
	if errResp := req.Validate(); errResp != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResp)
		return
	}

	u, errResp := req.User.toUser()
	if errResp != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResp)
		return
	}

	log.Debug("evaluating flag", slog.String("flag_key", req.Key))
	d := a.evaluator.GetValueDetails(r.Context(), req.Key, model.InvalidValue(), u)

	if errors.Is(d.Data.Error, client.ErrSettingKeyMissing) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, ErrorResponse{Code: "ERR_NOT_FOUND", Message: "Flag not found"})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, newEvaluationResponse(d, req.DefaultValue))
}

// handleEvaluateAll processes POST /api/v1/evaluate-all.
func (a *API) handleEvaluateAll(w http.ResponseWriter, r *http.Request) {
	var req EvaluateAllRequest
	if r.ContentLength != 0 {
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, ErrorResponse{Code: "ERR_INVALID_JSON", Message: "Invalid JSON payload: " + err.Error()})
			return
		}
	}

	u, errResp := req.User.toUser()
	if errResp != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResp)
		return
	}

	details := a.evaluator.GetAllValueDetails(r.Context(), u)
	resp := EvaluateAllResponse{Data: make([]EvaluationResponse, 0, len(details))}
	for _, d := range details {
		resp.Data = append(resp.Data, newEvaluationResponse(d, nil))
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

// handleListKeys processes GET /api/v1/keys.
func (a *API) handleListKeys(w http.ResponseWriter, r *http.Request) {
	keys := a.evaluator.GetAllKeys(r.Context())
	if keys == nil {
		keys = []string{}
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, KeysResponse{Keys: keys})
}

// handleRefresh processes POST /api/v1/refresh, forcing a config download.
func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	err := a.evaluator.Refresh(r.Context())
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, configservice.ErrOffline), errors.Is(err, client.ErrClosed):
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, ErrorResponse{Code: "ERR_UNAVAILABLE", Message: err.Error()})
	default:
		log.Error("config refresh failed", slog.String("error", err.Error()))
		render.Status(r, http.StatusBadGateway)
		render.JSON(w, r, ErrorResponse{Code: "ERR_UPSTREAM", Message: "Failed to download the config JSON"})
	}
}
