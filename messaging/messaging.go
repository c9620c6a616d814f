// Copyright 2017 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package messaging contains functions for sending messages and managing
// device subscriptions with Firebase Cloud Messaging.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fbadmin/admin-sdk-go/credentials"
	"github.com/fbadmin/admin-sdk-go/internal"
)

const (
	defaultFCMAuthority = "fcm.googleapis.com"
	defaultIIDAuthority = "iid.googleapis.com"

	messagingErrorCodeKey = "messagingErrorCode"
	fcmErrorType          = "type.googleapis.com/google.firebase.fcm.v1.FcmError"
)

var fcmScopes = []string{
	credentials.ScopeCloudPlatform,
	credentials.ScopeFirebaseMessaging,
}

// Message to be sent via Firebase Cloud Messaging.
//
// Message contains payload data, recipient information and platform-specific configuration
// options. A Message must specify exactly one of Token, Topic or Condition fields. Apart from
// that a Message may specify any combination of Data, Notification, Android, Webpush and APNS
// fields. See https://firebase.google.com/docs/reference/fcm/rest/v1/projects.messages for more
// details on how the backend FCM servers handle different message parameters.
type Message struct {
	Data         map[string]string `json:"data,omitempty"`
	Notification *Notification     `json:"notification,omitempty"`
	Android      *AndroidConfig    `json:"android,omitempty"`
	Webpush      *WebpushConfig    `json:"webpush,omitempty"`
	APNS         *APNSConfig       `json:"apns,omitempty"`
	FCMOptions   *FCMOptions       `json:"fcmOptions,omitempty"`
	Token        string            `json:"token,omitempty"`
	Topic        string            `json:"-"`
	Condition    string            `json:"condition,omitempty"`
}

// MarshalJSON marshals a Message into JSON (for internal use only).
func (m *Message) MarshalJSON() ([]byte, error) {
	// Create a new type to prevent infinite recursion. We use this technique whenever it is needed
	// to customize how a subset of the fields in a struct should be serialized.
	type messageInternal Message
	temp := &struct {
		BareTopic string `json:"topic,omitempty"`
		*messageInternal
	}{
		BareTopic:       strings.TrimPrefix(m.Topic, "/topics/"),
		messageInternal: (*messageInternal)(m),
	}
	return json.Marshal(temp)
}

// Notification is the basic notification template to use across all platforms.
type Notification struct {
	Title    string `json:"title,omitempty"`
	Body     string `json:"body,omitempty"`
	ImageURL string `json:"image,omitempty"`
}

// FCMOptions contains additional options to use across all platforms.
type FCMOptions struct {
	AnalyticsLabel string `json:"analyticsLabel,omitempty"`
}

// AndroidConfig contains messaging options specific to the Android platform.
type AndroidConfig struct {
	CollapseKey           string               `json:"collapseKey,omitempty"`
	Priority              string               `json:"priority,omitempty"` // one of "normal" or "high"
	TTL                   *time.Duration       `json:"-"`
	RestrictedPackageName string               `json:"restrictedPackageName,omitempty"`
	Data                  map[string]string    `json:"data,omitempty"` // if specified, overrides the Data field on Message type
	Notification          *AndroidNotification `json:"notification,omitempty"`
	FCMOptions            *AndroidFCMOptions   `json:"fcmOptions,omitempty"`
}

// MarshalJSON marshals an AndroidConfig into JSON (for internal use only).
func (a *AndroidConfig) MarshalJSON() ([]byte, error) {
	var ttl string
	if a.TTL != nil {
		seconds := int64(*a.TTL / time.Second)
		nanos := int64((*a.TTL - time.Duration(seconds)*time.Second) / time.Nanosecond)
		if nanos > 0 {
			ttl = fmt.Sprintf("%d.%09ds", seconds, nanos)
		} else {
			ttl = fmt.Sprintf("%ds", seconds)
		}
	}

	type androidInternal AndroidConfig
	temp := &struct {
		TTL string `json:"ttl,omitempty"`
		*androidInternal
	}{
		TTL:             ttl,
		androidInternal: (*androidInternal)(a),
	}
	return json.Marshal(temp)
}

// AndroidNotification is a notification to send to Android devices.
type AndroidNotification struct {
	Title        string   `json:"title,omitempty"` // if specified, overrides the Title field of the Notification type
	Body         string   `json:"body,omitempty"`  // if specified, overrides the Body field of the Notification type
	Icon         string   `json:"icon,omitempty"`
	Color        string   `json:"color,omitempty"` // notification color in #RRGGBB format
	Sound        string   `json:"sound,omitempty"`
	Tag          string   `json:"tag,omitempty"`
	ClickAction  string   `json:"clickAction,omitempty"`
	BodyLocKey   string   `json:"bodyLocKey,omitempty"`
	BodyLocArgs  []string `json:"bodyLocArgs,omitempty"`
	TitleLocKey  string   `json:"titleLocKey,omitempty"`
	TitleLocArgs []string `json:"titleLocArgs,omitempty"`
	ChannelID    string   `json:"channelId,omitempty"`
	ImageURL     string   `json:"image,omitempty"`
}

// AndroidFCMOptions contains additional options for features provided by the FCM Android SDK.
type AndroidFCMOptions struct {
	AnalyticsLabel string `json:"analyticsLabel,omitempty"`
}

// WebpushConfig contains messaging options specific to the WebPush protocol.
//
// See https://tools.ietf.org/html/rfc8030#section-5 for additional details, and supported
// headers.
type WebpushConfig struct {
	Headers      map[string]string    `json:"headers,omitempty"`
	Data         map[string]string    `json:"data,omitempty"`
	Notification *WebpushNotification `json:"notification,omitempty"`
	FCMOptions   *WebpushFCMOptions   `json:"fcmOptions,omitempty"`
}

// WebpushNotification is a notification to send via WebPush protocol.
//
// See https://developer.mozilla.org/en-US/docs/Web/API/notification/Notification for additional
// details.
type WebpushNotification struct {
	Title      string                 `json:"title,omitempty"` // if specified, overrides the Title field of the Notification type
	Body       string                 `json:"body,omitempty"`  // if specified, overrides the Body field of the Notification type
	Icon       string                 `json:"icon,omitempty"`
	Image      string                 `json:"image,omitempty"`
	Direction  string                 `json:"dir,omitempty"` // one of 'ltr' or 'rtl'
	Tag        string                 `json:"tag,omitempty"`
	Renotify   bool                   `json:"renotify,omitempty"`
	Silent     bool                   `json:"silent,omitempty"`
	CustomData map[string]interface{} `json:"-"`
}

// standardFields creates a map containing all the fields except the custom data.
func (n *WebpushNotification) standardFields() map[string]interface{} {
	m := make(map[string]interface{})
	addNonEmpty := func(key, value string) {
		if value != "" {
			m[key] = value
		}
	}
	addTrue := func(key string, value bool) {
		if value {
			m[key] = value
		}
	}
	addNonEmpty("title", n.Title)
	addNonEmpty("body", n.Body)
	addNonEmpty("icon", n.Icon)
	addNonEmpty("image", n.Image)
	addNonEmpty("dir", n.Direction)
	addNonEmpty("tag", n.Tag)
	addTrue("renotify", n.Renotify)
	addTrue("silent", n.Silent)
	return m
}

// MarshalJSON marshals a WebpushNotification into JSON (for internal use only).
func (n *WebpushNotification) MarshalJSON() ([]byte, error) {
	m := n.standardFields()
	for k, v := range n.CustomData {
		m[k] = v
	}
	return json.Marshal(m)
}

// WebpushFCMOptions contains additional options for features provided by the FCM web SDK.
type WebpushFCMOptions struct {
	Link string `json:"link,omitempty"`
}

// APNSConfig contains messaging options specific to the Apple Push Notification Service (APNs).
//
// See https://developer.apple.com/library/content/documentation/NetworkingInternet/Conceptual/RemoteNotificationsPG/CommunicatingwithAPNs.html
// for more details on supported headers and payload keys.
type APNSConfig struct {
	Headers    map[string]string `json:"headers,omitempty"`
	Payload    *APNSPayload      `json:"payload,omitempty"`
	FCMOptions *APNSFCMOptions   `json:"fcmOptions,omitempty"`
}

// APNSPayload is the payload that can be included in an APNs message.
//
// The payload mainly consists of the aps dictionary. Additionally it may contain arbitrary
// key-values pairs as custom data fields.
//
// See https://developer.apple.com/library/content/documentation/NetworkingInternet/Conceptual/RemoteNotificationsPG/PayloadKeyReference.html
// for a full list of supported payload fields.
type APNSPayload struct {
	Aps        *Aps                   `json:"aps,omitempty"`
	CustomData map[string]interface{} `json:"-"`
}

// MarshalJSON marshals an APNSPayload into JSON (for internal use only).
func (p *APNSPayload) MarshalJSON() ([]byte, error) {
	m := map[string]interface{}{}
	if p.Aps != nil {
		m["aps"] = p.Aps
	}
	for k, v := range p.CustomData {
		m[k] = v
	}
	return json.Marshal(m)
}

// Aps represents the aps dictionary that may be included in an APNSPayload.
//
// Alert may be specified as a string (via the AlertString field), or as a struct (via the Alert
// field). Sound is omitted from the payload when empty.
type Aps struct {
	AlertString      string                 `json:"-"`
	Alert            *ApsAlert              `json:"-"`
	Badge            *int                   `json:"badge,omitempty"`
	Sound            string                 `json:"sound,omitempty"`
	ContentAvailable bool                   `json:"-"`
	MutableContent   bool                   `json:"-"`
	Category         string                 `json:"category,omitempty"`
	ThreadID         string                 `json:"thread-id,omitempty"`
	CustomData       map[string]interface{} `json:"-"`
}

// standardFields creates a map containing all the fields except the custom data.
func (a *Aps) standardFields() map[string]interface{} {
	m := make(map[string]interface{})
	if a.Alert != nil {
		m["alert"] = a.Alert
	} else if a.AlertString != "" {
		m["alert"] = a.AlertString
	}
	if a.ContentAvailable {
		m["content-available"] = 1
	}
	if a.MutableContent {
		m["mutable-content"] = 1
	}
	if a.Badge != nil {
		m["badge"] = *a.Badge
	}
	if a.Sound != "" {
		m["sound"] = a.Sound
	}
	if a.Category != "" {
		m["category"] = a.Category
	}
	if a.ThreadID != "" {
		m["thread-id"] = a.ThreadID
	}
	return m
}

// MarshalJSON marshals an Aps into JSON (for internal use only).
func (a *Aps) MarshalJSON() ([]byte, error) {
	m := a.standardFields()
	for k, v := range a.CustomData {
		m[k] = v
	}
	return json.Marshal(m)
}

// ApsAlert is the alert payload that can be included in an Aps.
//
// See https://developer.apple.com/library/content/documentation/NetworkingInternet/Conceptual/RemoteNotificationsPG/PayloadKeyReference.html
// for supported fields.
type ApsAlert struct {
	Title        string   `json:"title,omitempty"` // if specified, overrides the Title field of the Notification type
	SubTitle     string   `json:"subtitle,omitempty"`
	Body         string   `json:"body,omitempty"` // if specified, overrides the Body field of the Notification type
	LocKey       string   `json:"loc-key,omitempty"`
	LocArgs      []string `json:"loc-args,omitempty"`
	TitleLocKey  string   `json:"title-loc-key,omitempty"`
	TitleLocArgs []string `json:"title-loc-args,omitempty"`
	ActionLocKey string   `json:"action-loc-key,omitempty"`
	LaunchImage  string   `json:"launch-image,omitempty"`
}

// APNSFCMOptions contains additional options for features provided by the FCM Aps SDK.
type APNSFCMOptions struct {
	AnalyticsLabel string `json:"analyticsLabel,omitempty"`
	ImageURL       string `json:"image,omitempty"`
}

// SendMessageRequest is the request body of the FCM send API.
//
// ValidateOnly is always serialized, and is false unless the message is sent in the dry run
// mode.
type SendMessageRequest struct {
	Message      *Message `json:"message"`
	ValidateOnly bool     `json:"validateOnly"`
}

// SendMessageResponse is the response of the FCM send API.
type SendMessageResponse struct {
	// Name is the identifier of the message sent, in the format of
	// projects/*/messages/{message_id}.
	Name string `json:"name"`
}

// ValidateResponse checks that the required fields of the response are present.
func (r *SendMessageResponse) ValidateResponse() error {
	if r.Name == "" {
		return errors.New("message name is missing from the response")
	}
	return nil
}

// Client is the interface for the Firebase Cloud Messaging (FCM) service.
type Client struct {
	transport internal.Transport
	fcm       *internal.URIBuilder
	iid       *internal.URIBuilder
	projectID string
}

// NewClient creates a new instance of the Firebase Cloud Messaging Client.
//
// This function can only be invoked from within the SDK. Client applications should access the
// Messaging service through firebase.App.
func NewClient(ctx context.Context, c *internal.MessagingConfig) (*Client, error) {
	if c.ProjectID == "" {
		return nil, errors.New("project ID is required to access Firebase Cloud Messaging client")
	}
	if c.Transport == nil {
		return nil, errors.New("transport is required to access Firebase Cloud Messaging client")
	}

	scheme, authority := "https", defaultFCMAuthority
	if c.EmulatorHost != "" {
		scheme, authority = "http", c.EmulatorHost
	}
	fcm, err := internal.NewURIBuilder(scheme, authority, "/v1/projects/"+c.ProjectID)
	if err != nil {
		return nil, err
	}
	iid, err := internal.NewURIBuilder("https", defaultIIDAuthority, "")
	if err != nil {
		return nil, err
	}

	return &Client{
		transport: c.Transport,
		fcm:       fcm,
		iid:       iid,
		projectID: c.ProjectID,
	}, nil
}

// Send sends a Message to Firebase Cloud Messaging.
//
// The Message must specify exactly one of Token, Topic and Condition fields. FCM will
// customize the message for each target platform based on the arguments specified in the
// Message.
func (c *Client) Send(ctx context.Context, message *Message) (string, error) {
	return c.send(ctx, message, false)
}

// SendDryRun sends a Message to Firebase Cloud Messaging in the dry run (validation only) mode.
//
// This function does not actually deliver the message to target devices. Instead, it performs all
// the SDK-level and backend validations on the message, and emulates the send operation.
func (c *Client) SendDryRun(ctx context.Context, message *Message) (string, error) {
	return c.send(ctx, message, true)
}

func (c *Client) send(ctx context.Context, message *Message, dryRun bool) (string, error) {
	resp, err := c.SendMessage(ctx, &SendMessageRequest{
		Message:      message,
		ValidateOnly: dryRun,
	})
	if err != nil {
		return "", err
	}
	return resp.Name, nil
}

// SendMessage sends a SendMessageRequest to the FCM send API, and returns the raw response.
func (c *Client) SendMessage(ctx context.Context, req *SendMessageRequest) (*SendMessageResponse, error) {
	if req == nil {
		return nil, errors.New("request must not be nil")
	}
	if err := validateMessage(req.Message); err != nil {
		return nil, err
	}

	uri, err := c.fcm.Build(internal.FCMSendMessage)
	if err != nil {
		return nil, err
	}
	resp, err := internal.SendRequestBody[*SendMessageRequest, SendMessageResponse](
		ctx, c.transport, uri, http.MethodPost, req, fcmScopes)
	if err != nil {
		return nil, handleFCMError(err)
	}
	return resp, nil
}

// handleFCMError extracts the FCM specific error code from the details of a remote error.
func handleFCMError(err error) error {
	fe, ok := internal.AsFirebaseError(err)
	if !ok || fe.Kind != internal.KindRemoteError || fe.Remote == nil {
		return err
	}

	for _, d := range fe.Remote.Details {
		if d["@type"] != fcmErrorType {
			continue
		}
		if code, ok := d["errorCode"].(string); ok && code != "" {
			if fe.Ext == nil {
				fe.Ext = make(map[string]interface{})
			}
			fe.Ext[messagingErrorCodeKey] = code
			break
		}
	}
	return fe
}

func hasMessagingErrorCode(err error, code string) bool {
	fe, ok := internal.AsFirebaseError(err)
	if !ok {
		return false
	}
	got, ok := fe.Ext[messagingErrorCodeKey]
	return ok && got == code
}

// IsInternal checks if the given error was due to an internal server error.
func IsInternal(err error) bool {
	return hasMessagingErrorCode(err, "INTERNAL")
}

// IsInvalidArgument checks if the given error was due to an invalid argument in the request.
func IsInvalidArgument(err error) bool {
	return hasMessagingErrorCode(err, "INVALID_ARGUMENT")
}

// IsQuotaExceeded checks if the given error was due to the client exceeding a quota.
func IsQuotaExceeded(err error) bool {
	return hasMessagingErrorCode(err, "QUOTA_EXCEEDED")
}

// IsSenderIDMismatch checks if the given error was due to a sender ID mismatch.
func IsSenderIDMismatch(err error) bool {
	return hasMessagingErrorCode(err, "SENDER_ID_MISMATCH")
}

// IsThirdPartyAuthError checks if the given error was due to an APNs or web push credential
// error.
func IsThirdPartyAuthError(err error) bool {
	return hasMessagingErrorCode(err, "THIRD_PARTY_AUTH_ERROR")
}

// IsUnavailable checks if the given error was due to the backend server being temporarily
// unavailable.
func IsUnavailable(err error) bool {
	return hasMessagingErrorCode(err, "UNAVAILABLE")
}

// IsUnregistered checks if the given error was due to a registration token that became invalid.
func IsUnregistered(err error) bool {
	return hasMessagingErrorCode(err, "UNREGISTERED")
}
