package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/samuelzanatto/petapp-notification-service/pkg/notification"
)

// NotificationsAPI serves the caller's in-app notification list.
type NotificationsAPI struct {
	Store  notification.Store
	Logger *slog.Logger
}

func NewNotificationsAPI(store notification.Store, logger *slog.Logger) *NotificationsAPI {
	return &NotificationsAPI{
		Store:  store,
		Logger: logger.With("component", "notifications_api"),
	}
}

type ListResponse struct {
	Items       []notification.Record `json:"items"`
	UnreadCount int64                 `json:"unreadCount"`
	// NextBefore is the cursor for the following page, empty on the last one.
	NextBefore string `json:"nextBefore,omitempty"`
}

type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}

// List handles GET /api/v1/notifications?limit=&before=.
func (api *NotificationsAPI) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := middleware.GetUserHandleFromContext(ctx)
	if !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.WriteJSONError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}
	limit = notification.ClampLimit(limit)

	var before time.Time
	if raw := q.Get("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			response.WriteJSONError(w, http.StatusBadRequest, "before must be an RFC3339 timestamp")
			return
		}
		before = t
	}

	items, err := api.Store.List(ctx, userID, limit, before)
	if err != nil {
		api.Logger.Error("failed to list notifications", "user", userID, "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}
	unread, err := api.Store.UnreadCount(ctx, userID)
	if err != nil {
		api.Logger.Error("failed to count unread notifications", "user", userID, "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}

	resp := ListResponse{Items: items, UnreadCount: unread}
	if resp.Items == nil {
		resp.Items = []notification.Record{}
	}
	if len(items) == limit {
		resp.NextBefore = items[len(items)-1].CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	writeJSON(w, http.StatusOK, resp)
}

// MarkRead handles POST /api/v1/notifications/{id}/read.
func (api *NotificationsAPI) MarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := middleware.GetUserHandleFromContext(ctx)
	if !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing notification id")
		return
	}

	if err := api.Store.MarkRead(ctx, userID, id); err != nil {
		api.writeStoreError(w, "mark read", userID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead handles POST /api/v1/notifications/read-all.
func (api *NotificationsAPI) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := middleware.GetUserHandleFromContext(ctx)
	if !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	n, err := api.Store.MarkAllRead(ctx, userID)
	if err != nil {
		api.writeStoreError(w, "mark all read", userID, err)
		return
	}
	writeJSON(w, http.StatusOK, MarkAllReadResponse{Updated: n})
}

// Delete handles DELETE /api/v1/notifications/{id}.
func (api *NotificationsAPI) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := middleware.GetUserHandleFromContext(ctx)
	if !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing notification id")
		return
	}

	if err := api.Store.Delete(ctx, userID, id); err != nil {
		api.writeStoreError(w, "delete", userID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (api *NotificationsAPI) writeStoreError(w http.ResponseWriter, op, userID string, err error) {
	if errors.Is(err, notification.ErrNotFound) {
		response.WriteJSONError(w, http.StatusNotFound, "notification not found")
		return
	}
	api.Logger.Error("notification store failed", "op", op, "user", userID, "err", err)
	response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
}
