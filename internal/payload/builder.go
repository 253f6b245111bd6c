package payload

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"

	"firebase.google.com/go/v4/messaging"

	"github.com/samuelzanatto/petapp-notification-service/pkg/dispatch"
)

const (
	dateKey       = "date"
	imageURLKey   = "imageUrl"
	isoTimeLayout = "2006-01-02T15:04:05.000Z07:00"

	chatChannelID    = "chat"
	defaultChannelID = "default"
	defaultSound     = "default"
	highPriority     = "high"
)

// Options holds the app-specific presentation hints stamped on every payload.
type Options struct {
	APNSTopic    string
	AndroidIcon  string
	AndroidColor string
}

// Builder renders wire payloads. It is safe for concurrent use.
type Builder struct {
	opts Options
	now  func() time.Time
}

// NewBuilder creates a Builder. A nil clock uses time.Now.
func NewBuilder(opts Options, now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	if opts.AndroidIcon == "" {
		opts.AndroidIcon = "ic_notification"
	}
	if opts.AndroidColor == "" {
		opts.AndroidColor = "#FF8C42"
	}
	return &Builder{opts: opts, now: now}
}

// ExpoMessage is the Expo push API request item.
type ExpoMessage struct {
	To        []string       `json:"to"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Data      map[string]any `json:"data"`
	Sound     string         `json:"sound"`
	Badge     int            `json:"badge"`
	Priority  string         `json:"priority"`
	ChannelID string         `json:"channelId"`
}

// FCMRequest is the body of an FCM HTTP v1 messages:send call.
type FCMRequest struct {
	Message *messaging.Message `json:"message"`
}

// LegacyNotification is the notification block of the legacy batch API.
type LegacyNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Sound string `json:"sound,omitempty"`
	Image string `json:"image,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// LegacyRequest is the body of a legacy fcm/send batch call.
type LegacyRequest struct {
	RegistrationIDs []string                 `json:"registration_ids"`
	Notification    LegacyNotification       `json:"notification"`
	Data            map[string]string        `json:"data"`
	Priority        string                   `json:"priority"`
	Android         *messaging.AndroidConfig `json:"android,omitempty"`
	APNS            *messaging.APNSConfig    `json:"apns,omitempty"`
}

// Expo renders one Expo request item addressed to every token in the chunk.
func (b *Builder) Expo(tokens []string, msg dispatch.Message) ExpoMessage {
	channelID := defaultChannelID
	if msg.IsChat() {
		channelID = chatChannelID
	}
	return ExpoMessage{
		To:        tokens,
		Title:     msg.Title,
		Body:      msg.Body,
		Data:      b.stampedData(msg),
		Sound:     defaultSound,
		Badge:     1,
		Priority:  highPriority,
		ChannelID: channelID,
	}
}

// FCM renders the HTTP v1 message for a single registration token.
func (b *Builder) FCM(token string, msg dispatch.Message) *messaging.Message {
	return &messaging.Message{
		Token:        token,
		Notification: b.fcmNotification(msg),
		Data:         StringData(b.stampedData(msg)),
		Android:      b.androidConfig(msg),
		APNS:         b.apnsConfig(msg),
	}
}

// Legacy renders one legacy batch request for a chunk of registration ids.
// Title and body are duplicated into the data block for clients that only
// read data messages. The chat group rides on the shared notification tag;
// the nested platform blocks carry no per-recipient thread identifiers.
func (b *Builder) Legacy(tokens []string, msg dispatch.Message) LegacyRequest {
	data := StringData(b.stampedData(msg))
	data["title"] = msg.Title
	data["body"] = msg.Body

	android := b.androidConfig(msg)
	android.Notification.Tag = ""
	apns := b.apnsConfig(msg)
	apns.Payload.Aps.ThreadID = ""

	return LegacyRequest{
		RegistrationIDs: tokens,
		Notification: LegacyNotification{
			Title: msg.Title,
			Body:  msg.Body,
			Sound: defaultSound,
			Image: imageURL(msg),
			Tag:   msg.GroupID(),
		},
		Data:     data,
		Priority: highPriority,
		Android:  android,
		APNS:     apns,
	}
}

func (b *Builder) stampedData(msg dispatch.Message) map[string]any {
	data := make(map[string]any, len(msg.Data)+1)
	maps.Copy(data, msg.Data)
	data[dateKey] = b.now().UTC().Format(isoTimeLayout)
	return data
}

func (b *Builder) fcmNotification(msg dispatch.Message) *messaging.Notification {
	return &messaging.Notification{
		Title:    msg.Title,
		Body:     msg.Body,
		ImageURL: imageURL(msg),
	}
}

func (b *Builder) androidConfig(msg dispatch.Message) *messaging.AndroidConfig {
	channelID := defaultChannelID
	if msg.IsChat() {
		channelID = chatChannelID
	}
	return &messaging.AndroidConfig{
		Priority: highPriority,
		Notification: &messaging.AndroidNotification{
			ChannelID: channelID,
			Icon:      b.opts.AndroidIcon,
			Color:     b.opts.AndroidColor,
			Sound:     defaultSound,
			Tag:       msg.GroupID(),
		},
	}
}

func (b *Builder) apnsConfig(msg dispatch.Message) *messaging.APNSConfig {
	badge := 1
	headers := map[string]string{
		"apns-priority":  "10",
		"apns-push-type": "alert",
	}
	if b.opts.APNSTopic != "" {
		headers["apns-topic"] = b.opts.APNSTopic
	}
	return &messaging.APNSConfig{
		Headers: headers,
		Payload: &messaging.APNSPayload{
			Aps: &messaging.Aps{
				ContentAvailable: true,
				Badge:            &badge,
				Sound:            defaultSound,
				ThreadID:         msg.GroupID(),
			},
		},
	}
}

func imageURL(msg dispatch.Message) string {
	if v, ok := msg.Data[imageURLKey].(string); ok {
		return v
	}
	return ""
}

// StringData coerces an opaque data map to the string-only form FCM requires.
// Strings pass through; nil becomes ""; everything else is JSON-encoded.
func StringData(data map[string]any) map[string]string {
	out := make(map[string]string, len(data))
	for k, v := range data {
		switch val := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = val
		default:
			encoded, err := json.Marshal(val)
			if err != nil {
				out[k] = fmt.Sprint(val)
				continue
			}
			out[k] = string(encoded)
		}
	}
	return out
}
