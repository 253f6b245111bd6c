package delivery_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/samuelzanatto/petapp-notification-service/internal/delivery"
	"github.com/samuelzanatto/petapp-notification-service/internal/payload"
	"github.com/samuelzanatto/petapp-notification-service/pkg/dispatch"
)

func TestOrchestrator_SendBulkPushNotifications(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	users := []string{"u1", "u2", "u3"}

	t.Run("Expo tokens are chunked at 100 without splitting any token", func(t *testing.T) {
		all := expoTokens(250)
		var tokens []dispatch.DeviceToken
		for i, tok := range all {
			tokens = append(tokens, deviceTokens(users[i%len(users)], tok)...)
		}
		store := new(mockTokenStore)
		store.On("TokensForUsers", mock.Anything, users).Return(tokens, nil).Once()

		expoFake := newFakeProvider(dispatch.ChannelExpo, payload.ExpoMaxBatch)
		legacyFake := newFakeProvider(dispatch.ChannelFCM, payload.LegacyMaxBatch)

		o := delivery.NewOrchestrator(store, expoFake, legacyFake, 3, nil, logger)
		report, err := o.SendBulkPushNotifications(ctx, users, "Pet perdido", "Rex sumiu", map[string]any{"type": "LOST_PET"})

		require.NoError(t, err)
		requests := expoFake.requests()
		require.Len(t, requests, 3)
		seen := map[string]int{}
		for _, r := range requests {
			assert.LessOrEqual(t, len(r), payload.ExpoMaxBatch)
			for _, tok := range r {
				seen[tok]++
			}
		}
		assert.Len(t, seen, 250)
		for tok, n := range seen {
			assert.Equal(t, 1, n, tok)
		}
		assert.Equal(t, 250, report.Expo.Sent)
		assert.Equal(t, 3, report.Expo.Requests)
		assert.Empty(t, legacyFake.requests())
		store.AssertExpectations(t)
	})

	t.Run("FCM tokens are chunked at 500", func(t *testing.T) {
		var tokens []dispatch.DeviceToken
		for i := 0; i < 1200; i++ {
			tokens = append(tokens, deviceTokens("u1", fmt.Sprintf("fcm-%d", i))...)
		}
		store := new(mockTokenStore)
		store.On("TokensForUsers", mock.Anything, []string{"u1"}).Return(tokens, nil)

		legacyFake := newFakeProvider(dispatch.ChannelFCM, payload.LegacyMaxBatch)
		o := delivery.NewOrchestrator(store, newFakeProvider(dispatch.ChannelExpo, 100), legacyFake, 0, nil, logger)
		report, err := o.SendBulkPushNotifications(ctx, []string{"u1"}, "t", "b", nil)

		require.NoError(t, err)
		assert.Len(t, legacyFake.requests(), 3)
		assert.Equal(t, 1200, report.FCM.Sent)
	})

	t.Run("Unconfigured legacy key skips FCM with zero sent", func(t *testing.T) {
		store := new(mockTokenStore)
		store.On("TokensForUsers", mock.Anything, users).
			Return(append(deviceTokens("u1", "ExponentPushToken[a]"), deviceTokens("u2", "fcm-1")...), nil)

		expoFake := newFakeProvider(dispatch.ChannelExpo, payload.ExpoMaxBatch)
		legacyFake := newFakeProvider(dispatch.ChannelFCM, payload.LegacyMaxBatch)
		legacyFake.configured = false

		o := delivery.NewOrchestrator(store, expoFake, legacyFake, 2, nil, logger)
		report, err := o.SendBulkPushNotifications(ctx, users, "t", "b", nil)

		require.NoError(t, err)
		assert.True(t, report.FCM.Skipped)
		assert.Zero(t, report.FCM.Sent)
		assert.Empty(t, legacyFake.requests())
		assert.Equal(t, 1, report.Expo.Sent)
	})

	t.Run("Failed chunks never evict and never stop later chunks", func(t *testing.T) {
		all := expoTokens(150)
		store := new(mockTokenStore)
		store.On("TokensForUsers", mock.Anything, []string{"u1"}).Return(deviceTokens("u1", all...), nil)

		expoFake := newFakeProvider(dispatch.ChannelExpo, payload.ExpoMaxBatch)
		expoFake.errFor = func(tokens []string) error {
			if tokens[0] == all[0] {
				return &dispatch.DeliveryError{Kind: dispatch.ErrorInvalid, Channel: dispatch.ChannelExpo, Token: tokens[0], Err: errors.New("dead")}
			}
			return nil
		}

		o := delivery.NewOrchestrator(store, expoFake, newFakeProvider(dispatch.ChannelFCM, 500), 1, nil, logger)
		report, err := o.SendBulkPushNotifications(ctx, []string{"u1"}, "t", "b", nil)

		require.NoError(t, err)
		assert.Len(t, expoFake.requests(), 2)
		assert.Equal(t, 100, report.Expo.Failed)
		assert.Equal(t, 50, report.Expo.Sent)
		assert.Empty(t, report.Expo.Evicted)
		store.AssertNotCalled(t, "Evict", mock.Anything, mock.Anything)
	})

	t.Run("Empty recipient list makes no lookup", func(t *testing.T) {
		store := new(mockTokenStore)
		o := delivery.NewOrchestrator(store, newFakeProvider(dispatch.ChannelExpo, 100), newFakeProvider(dispatch.ChannelFCM, 500), 1, nil, logger)

		report, err := o.SendBulkPushNotifications(ctx, nil, "t", "b", nil)

		require.NoError(t, err)
		assert.Zero(t, report.Recipients)
		store.AssertNotCalled(t, "TokensForUsers", mock.Anything, mock.Anything)
	})

	t.Run("Lookup failure is returned", func(t *testing.T) {
		store := new(mockTokenStore)
		store.On("TokensForUsers", mock.Anything, users).Return(nil, errors.New("db down"))
		o := delivery.NewOrchestrator(store, newFakeProvider(dispatch.ChannelExpo, 100), newFakeProvider(dispatch.ChannelFCM, 500), 1, nil, logger)

		_, err := o.SendBulkPushNotifications(ctx, users, "t", "b", nil)
		assert.Error(t, err)
	})
}
