package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/samuelzanatto/petapp-notification-service/pkg/dispatch"
)

// DeviceRegistry is the slice of the token store the device endpoints need.
type DeviceRegistry interface {
	Register(ctx context.Context, reg dispatch.Registration) error
	Unregister(ctx context.Context, userID, token string) error
}

type TokenAPI struct {
	Store  DeviceRegistry
	Logger *slog.Logger
}

func NewTokenAPI(store DeviceRegistry, logger *slog.Logger) *TokenAPI {
	return &TokenAPI{
		Store:  store,
		Logger: logger.With("component", "token_api"),
	}
}

type RegisterDeviceRequest struct {
	Token    string `json:"token" validate:"required,max=4096"`
	DeviceID string `json:"deviceId" validate:"max=255"`
	Platform string `json:"platform"`
}

type UnregisterDeviceRequest struct {
	Token string `json:"token" validate:"required"`
}

// RegisterDevice upserts the caller's device token. A token that already
// belongs to another account moves to the caller.
func (api *TokenAPI) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := middleware.GetUserHandleFromContext(ctx)
	if !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req RegisterDeviceRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	reg := dispatch.Registration{
		UserID:   userID,
		Token:    req.Token,
		DeviceID: req.DeviceID,
		Platform: dispatch.NormalizePlatform(req.Platform),
	}
	if err := api.Store.Register(ctx, reg); err != nil {
		api.Logger.Error("failed to register device", "user", userID, "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}

	api.Logger.Debug("Device registered", "user", userID, "platform", reg.Platform)
	w.WriteHeader(http.StatusNoContent)
}

// UnregisterDevice removes the caller's token. Only rows owned by the caller
// are touched, so a stale logout cannot remove another account's device.
func (api *TokenAPI) UnregisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := middleware.GetUserHandleFromContext(ctx)
	if !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req UnregisterDeviceRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := api.Store.Unregister(ctx, userID, req.Token); err != nil {
		api.Logger.Warn("failed to unregister device", "user", userID, "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "failed to unregister device")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
