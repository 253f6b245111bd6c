package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/samuelzanatto/petapp-notification-service/pkg/notification"
)

// Notifier is the façade feature handlers call to create notifications.
type Notifier interface {
	CreateNotification(ctx context.Context, p notification.Params) (*notification.Record, error)
	SendFullNotification(ctx context.Context, p notification.Params) (*notification.Record, error)
	SendBulkFullNotifications(ctx context.Context, p notification.BulkParams) ([]notification.Record, error)
}

// SendAPI exposes the façade to other backend services.
type SendAPI struct {
	Notifier Notifier
	Logger   *slog.Logger
}

func NewSendAPI(notifier Notifier, logger *slog.Logger) *SendAPI {
	return &SendAPI{
		Notifier: notifier,
		Logger:   logger.With("component", "send_api"),
	}
}

type SendRequest struct {
	notification.Params
	// Push defaults to true; false only persists the in-app record.
	Push *bool `json:"push,omitempty"`
}

type BulkSendResponse struct {
	Created int `json:"created"`
}

// Send handles POST /internal/v1/notifications.
func (api *SendAPI) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := middleware.GetUserHandleFromContext(ctx); !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req SendRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Params.Validate(); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	send := api.Notifier.SendFullNotification
	if req.Push != nil && !*req.Push {
		send = api.Notifier.CreateNotification
	}
	rec, err := send(ctx, req.Params)
	if err != nil {
		api.Logger.Error("failed to create notification", "user", req.UserID, "type", req.Type, "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "failed to create notification")
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// SendBulk handles POST /internal/v1/notifications/bulk.
func (api *SendAPI) SendBulk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := middleware.GetUserHandleFromContext(ctx); !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req notification.BulkParams
	if err := decodeJSONBody(w, r, &req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.ForUser(req.UserIDs[0]).Validate(); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	recs, err := api.Notifier.SendBulkFullNotifications(ctx, req)
	if err != nil {
		api.Logger.Error("failed to create bulk notifications", "recipients", len(req.UserIDs), "type", req.Type, "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "failed to create notifications")
		return
	}
	writeJSON(w, http.StatusCreated, BulkSendResponse{Created: len(recs)})
}
