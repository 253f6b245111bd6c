// Package dispatch contains the contracts shared by the delivery engine:
// device tokens, provider clients, delivery errors, reports and queue jobs.
package dispatch

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Platform is the operating system a device token was issued for.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformUnknown Platform = "unknown"
)

// NormalizePlatform maps free-form client input onto a known Platform.
func NormalizePlatform(p string) Platform {
	switch Platform(strings.ToLower(strings.TrimSpace(p))) {
	case PlatformIOS:
		return PlatformIOS
	case PlatformAndroid:
		return PlatformAndroid
	default:
		return PlatformUnknown
	}
}

// DeviceToken is one registered app installation.
type DeviceToken struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	DeviceID  string    `json:"deviceId"`
	Platform  Platform  `json:"platform"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Registration is the input of TokenStore.Register.
type Registration struct {
	UserID   string
	Token    string
	DeviceID string
	Platform Platform
}

// Channel identifies a push gateway.
type Channel string

const (
	// ChannelExpo is the batch gateway for ExponentPushToken[...] tokens.
	ChannelExpo Channel = "expo"
	// ChannelFCM is Firebase Cloud Messaging, used for every other token.
	ChannelFCM Channel = "fcm"
)

const (
	dataKeyType       = "type"
	dataKeyChatRoomID = "chatRoomId"
	chatType          = "CHAT"
)

// Message is the logical, channel-agnostic notification handed to providers.
type Message struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data,omitempty"`
}

// Type returns the notification type carried in the data map.
func (m Message) Type() string {
	return m.dataString(dataKeyType)
}

// IsChat reports whether the message belongs to a chat conversation.
func (m Message) IsChat() bool {
	return m.Type() == chatType
}

// GroupID is the thread/group identifier clients use to cluster a
// conversation's notifications. Empty for non-chat messages.
func (m Message) GroupID() string {
	if !m.IsChat() {
		return ""
	}
	room := m.dataString(dataKeyChatRoomID)
	if room == "" {
		return ""
	}
	return "chat_" + room
}

func (m Message) dataString(key string) string {
	v, ok := m.Data[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Response is the provider's answer to one outbound request.
type Response struct {
	StatusCode int             `json:"statusCode"`
	Body       json.RawMessage `json:"body,omitempty"`
}

// ChunkResult records one outbound request and its outcome.
type ChunkResult struct {
	Tokens   int       `json:"tokens"`
	Response *Response `json:"response,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// ChannelReport aggregates the outcome of every request sent on one channel.
type ChannelReport struct {
	Channel  Channel       `json:"channel"`
	Tokens   int           `json:"tokens"`
	Requests int           `json:"requests"`
	Sent     int           `json:"sent"`
	Failed   int           `json:"failed"`
	Skipped  bool          `json:"skipped,omitempty"`
	Evicted  []string      `json:"evicted,omitempty"`
	Chunks   []ChunkResult `json:"chunks,omitempty"`
}

// Record appends the outcome of one request covering the given token count.
func (r *ChannelReport) Record(tokens int, resp *Response, err error) {
	r.Requests++
	chunk := ChunkResult{Tokens: tokens, Response: resp}
	if err != nil {
		chunk.Error = err.Error()
		r.Failed += tokens
	} else {
		r.Sent += tokens
	}
	r.Chunks = append(r.Chunks, chunk)
}

// Merge folds another report for the same channel into r.
func (r *ChannelReport) Merge(other ChannelReport) {
	r.Tokens += other.Tokens
	r.Requests += other.Requests
	r.Sent += other.Sent
	r.Failed += other.Failed
	r.Evicted = append(r.Evicted, other.Evicted...)
	r.Chunks = append(r.Chunks, other.Chunks...)
}

// Report is the best-effort telemetry returned by a dispatch. It is never a
// success/failure gate for the action that triggered the notification.
type Report struct {
	Recipients int           `json:"recipients"`
	Tokens     int           `json:"tokens"`
	Expo       ChannelReport `json:"expo"`
	FCM        ChannelReport `json:"fcm"`
}

// JobKind selects the delivery path of a queued job.
type JobKind string

const (
	JobSingle JobKind = "single"
	JobBulk   JobKind = "bulk"
)

// Job is the unit of work placed on the dispatch queue.
type Job struct {
	ID         string    `json:"id"`
	Kind       JobKind   `json:"kind"`
	UserIDs    []string  `json:"userIds"`
	Message    Message   `json:"message"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// Validate checks the job is routable.
func (j Job) Validate() error {
	switch j.Kind {
	case JobSingle:
		if len(j.UserIDs) != 1 || j.UserIDs[0] == "" {
			return fmt.Errorf("single job %s requires exactly one user id", j.ID)
		}
	case JobBulk:
		if len(j.UserIDs) == 0 {
			return fmt.Errorf("bulk job %s has no recipients", j.ID)
		}
	default:
		return fmt.Errorf("job %s has unknown kind %q", j.ID, j.Kind)
	}
	return nil
}
