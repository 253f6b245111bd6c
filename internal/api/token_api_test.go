package api_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/samuelzanatto/petapp-notification-service/internal/api"
	"github.com/samuelzanatto/petapp-notification-service/pkg/dispatch"
)

func setupTokenAPI() (*api.TokenAPI, *MockRegistry) {
	store := new(MockRegistry)
	return api.NewTokenAPI(store, newTestLogger()), store
}

func TestRegisterDevice(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, store := setupTokenAPI()
		expected := dispatch.Registration{
			UserID:   "user-1",
			Token:    "ExponentPushToken[abc]",
			DeviceID: "pixel-7",
			Platform: dispatch.PlatformAndroid,
		}
		store.On("Register", mock.Anything, expected).Return(nil)

		body := jsonBody(`{"token":"ExponentPushToken[abc]","deviceId":"pixel-7","platform":"Android"}`)
		req := withUser(httptest.NewRequest(http.MethodPost, "/api/v1/devices", body), "user-1")
		w := httptest.NewRecorder()

		handler.RegisterDevice(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		store.AssertExpectations(t)
	})

	t.Run("Unknown platform is normalised", func(t *testing.T) {
		handler, store := setupTokenAPI()
		store.On("Register", mock.Anything, mock.MatchedBy(func(reg dispatch.Registration) bool {
			return reg.Platform == dispatch.PlatformUnknown
		})).Return(nil)

		req := withUser(httptest.NewRequest(http.MethodPost, "/api/v1/devices", jsonBody(`{"token":"fcm-1","platform":"windows"}`)), "user-1")
		w := httptest.NewRecorder()

		handler.RegisterDevice(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		store.AssertExpectations(t)
	})

	t.Run("Rejects Unauthenticated", func(t *testing.T) {
		handler, store := setupTokenAPI()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/devices", jsonBody(`{"token":"fcm-1"}`))
		w := httptest.NewRecorder()

		handler.RegisterDevice(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		store.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
	})

	t.Run("Rejects Empty Token", func(t *testing.T) {
		handler, store := setupTokenAPI()
		req := withUser(httptest.NewRequest(http.MethodPost, "/api/v1/devices", jsonBody(`{"token":""}`)), "user-1")
		w := httptest.NewRecorder()

		handler.RegisterDevice(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "token is required")
		store.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
	})

	t.Run("Rejects Malformed JSON", func(t *testing.T) {
		handler, _ := setupTokenAPI()
		req := withUser(httptest.NewRequest(http.MethodPost, "/api/v1/devices", jsonBody(`{"token":`)), "user-1")
		w := httptest.NewRecorder()

		handler.RegisterDevice(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Storage failure", func(t *testing.T) {
		handler, store := setupTokenAPI()
		store.On("Register", mock.Anything, mock.Anything).Return(errors.New("db down"))

		req := withUser(httptest.NewRequest(http.MethodPost, "/api/v1/devices", jsonBody(`{"token":"fcm-1"}`)), "user-1")
		w := httptest.NewRecorder()

		handler.RegisterDevice(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestUnregisterDevice(t *testing.T) {
	t.Run("Success scoped to caller", func(t *testing.T) {
		handler, store := setupTokenAPI()
		store.On("Unregister", mock.Anything, "user-1", "fcm-1").Return(nil)

		req := withUser(httptest.NewRequest(http.MethodPost, "/api/v1/devices/unregister", jsonBody(`{"token":"fcm-1"}`)), "user-1")
		w := httptest.NewRecorder()

		handler.UnregisterDevice(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		store.AssertExpectations(t)
	})

	t.Run("Rejects Missing Token", func(t *testing.T) {
		handler, store := setupTokenAPI()
		req := withUser(httptest.NewRequest(http.MethodPost, "/api/v1/devices/unregister", jsonBody(`{}`)), "user-1")
		w := httptest.NewRecorder()

		handler.UnregisterDevice(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		store.AssertNotCalled(t, "Unregister", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Rejects Unauthenticated", func(t *testing.T) {
		handler, _ := setupTokenAPI()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/devices/unregister", jsonBody(`{"token":"fcm-1"}`))
		w := httptest.NewRecorder()

		handler.UnregisterDevice(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
