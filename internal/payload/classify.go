// Package payload classifies device tokens by gateway and turns a logical
// dispatch.Message into each gateway's wire payload.
package payload

import (
	"strings"

	"github.com/samuelzanatto/petapp-notification-service/pkg/dispatch"
)

const (
	// ExpoMaxBatch is the number of recipients the Expo gateway accepts per request.
	ExpoMaxBatch = 100
	// LegacyMaxBatch is the registration_ids limit of the legacy FCM endpoint.
	LegacyMaxBatch = 500
)

var expoPrefixes = []string{"ExponentPushToken[", "ExpoPushToken["}

// IsExpoToken reports whether token is an Expo push token. Every other token
// is treated as a native FCM registration token.
func IsExpoToken(token string) bool {
	if !strings.HasSuffix(token, "]") {
		return false
	}
	for _, prefix := range expoPrefixes {
		if strings.HasPrefix(token, prefix) && len(token) > len(prefix)+1 {
			return true
		}
	}
	return false
}

// Partition splits device tokens into the Expo and FCM channels. Each token
// value lands in exactly one list, once.
func Partition(tokens []dispatch.DeviceToken) (expo []string, fcm []string) {
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if t.Token == "" {
			continue
		}
		if _, dup := seen[t.Token]; dup {
			continue
		}
		seen[t.Token] = struct{}{}

		if IsExpoToken(t.Token) {
			expo = append(expo, t.Token)
		} else {
			fcm = append(fcm, t.Token)
		}
	}
	return expo, fcm
}

// Chunk splits tokens into consecutive slices of at most size elements.
func Chunk(tokens []string, size int) [][]string {
	if len(tokens) == 0 {
		return nil
	}
	if size <= 0 {
		size = len(tokens)
	}
	chunks := make([][]string, 0, (len(tokens)+size-1)/size)
	for start := 0; start < len(tokens); start += size {
		end := min(start+size, len(tokens))
		chunks = append(chunks, tokens[start:end])
	}
	return chunks
}
