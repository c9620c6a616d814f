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

// Package auth contains functions for managing Firebase Auth users, and for verifying ID
// tokens and session cookies.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fbadmin/admin-sdk-go/credentials"
	"github.com/fbadmin/admin-sdk-go/internal"
)

const (
	defaultAuthAuthority = "identitytoolkit.googleapis.com"

	authErrorCodeKey = "authErrorCode"
)

var authScopes = []string{
	credentials.ScopeCloudPlatform,
	credentials.ScopeIdentityToolkit,
	credentials.ScopeUserInfoEmail,
}

// Client is the interface for the Firebase Auth service.
//
// Client facilitates user management and session cookie creation through the Identity
// Toolkit REST API.
type Client struct {
	transport internal.Transport
	builder   *internal.URIBuilder
	projectID string
}

// NewClient creates a new instance of the Firebase Auth Client.
//
// This function can only be invoked from within the SDK. Client applications should access the
// Auth service through firebase.App.
func NewClient(ctx context.Context, conf *internal.AuthConfig) (*Client, error) {
	if conf.ProjectID == "" {
		return nil, errors.New("project ID is required to access Firebase Auth client")
	}
	if conf.Transport == nil {
		return nil, errors.New("transport is required to access Firebase Auth client")
	}

	prefix := "/v1/projects/" + conf.ProjectID
	scheme, authority := "https", defaultAuthAuthority
	if conf.EmulatorHost != "" {
		scheme, authority = "http", conf.EmulatorHost
		prefix = "/" + defaultAuthAuthority + prefix
	}
	builder, err := internal.NewURIBuilder(scheme, authority, prefix)
	if err != nil {
		return nil, err
	}

	return &Client{
		transport: conf.Transport,
		builder:   builder,
		projectID: conf.ProjectID,
	}, nil
}

func post[Req, Resp any](ctx context.Context, c *Client, e internal.AuthEndpoint, body Req) (*Resp, error) {
	uri, err := c.builder.Build(e)
	if err != nil {
		return nil, err
	}
	resp, err := internal.SendRequestBody[Req, Resp](ctx, c.transport, uri, http.MethodPost, body, authScopes)
	if err != nil {
		return nil, handleAuthError(err)
	}
	return resp, nil
}

const (
	fiveMinutes    = 5 * time.Minute
	fourteenDays   = 14 * 24 * time.Hour
	idTokenMaxSize = 4096
)

type sessionCookieRequest struct {
	IDToken       string `json:"idToken"`
	ValidDuration int64  `json:"validDuration"`
}

type sessionCookieResponse struct {
	SessionCookie string `json:"sessionCookie"`
}

func (r *sessionCookieResponse) ValidateResponse() error {
	if r.SessionCookie == "" {
		return errors.New("session cookie is missing from the response")
	}
	return nil
}

// SessionCookie creates a new Firebase session cookie from the given ID token and expiry
// duration. The returned JWT can be set as a server-side session cookie with a custom cookie
// policy. Expiry duration must be at least 5 minutes but may not exceed 14 days.
func (c *Client) SessionCookie(ctx context.Context, idToken string, expiresIn time.Duration) (string, error) {
	if idToken == "" {
		return "", errors.New("id token must not be empty")
	}
	if len(idToken) > idTokenMaxSize {
		return "", fmt.Errorf("id token must not be longer than %d bytes", idTokenMaxSize)
	}
	if expiresIn < fiveMinutes || expiresIn > fourteenDays {
		return "", errors.New("expiry duration must be between 5 minutes and 14 days")
	}

	resp, err := post[*sessionCookieRequest, sessionCookieResponse](ctx, c, internal.AuthCreateSessionCookie,
		&sessionCookieRequest{
			IDToken:       idToken,
			ValidDuration: int64(expiresIn.Seconds()),
		})
	if err != nil {
		return "", err
	}
	return resp.SessionCookie, nil
}

// Identity Toolkit reports the reason of a failure as the message of the error body, in the
// form of "CODE" or "CODE : details".
var authErrorCodes = map[string]internal.ErrorCode{
	"CONFIGURATION_NOT_FOUND": internal.NotFound,
	"DUPLICATE_EMAIL":         internal.AlreadyExists,
	"DUPLICATE_LOCAL_ID":      internal.AlreadyExists,
	"EMAIL_EXISTS":            internal.AlreadyExists,
	"EMAIL_NOT_FOUND":         internal.NotFound,
	"INVALID_ID_TOKEN":        internal.InvalidArgument,
	"PHONE_NUMBER_EXISTS":     internal.AlreadyExists,
	"TOKEN_EXPIRED":           internal.InvalidArgument,
	"UID_ALREADY_EXISTS":      internal.AlreadyExists,
	"USER_NOT_FOUND":          internal.NotFound,
}

const (
	userNotFound            = "USER_NOT_FOUND"
	emailAlreadyExists      = "EMAIL_EXISTS"
	uidAlreadyExists        = "UID_ALREADY_EXISTS"
	phoneNumberAlreadyExist = "PHONE_NUMBER_EXISTS"
	invalidIDToken          = "INVALID_ID_TOKEN"
)

func handleAuthError(err error) error {
	fe, ok := internal.AsFirebaseError(err)
	if !ok || fe.Kind != internal.KindRemoteError || fe.Remote == nil {
		return err
	}

	code := fe.Remote.Message
	detail := ""
	if idx := strings.Index(code, ":"); idx != -1 {
		detail = strings.TrimSpace(code[idx+1:])
		code = strings.TrimSpace(code[:idx])
	}
	if ec, ok := authErrorCodes[code]; ok {
		fe.ErrorCode = ec
	}
	if fe.Ext == nil {
		fe.Ext = make(map[string]interface{})
	}
	fe.Ext[authErrorCodeKey] = code
	if detail != "" {
		fe.String = fmt.Sprintf("%s: %s", code, detail)
	}
	return fe
}

func newUserNotFoundError(msg string) error {
	fe := internal.Error(internal.KindRemoteError, msg)
	fe.ErrorCode = internal.NotFound
	fe.Ext = map[string]interface{}{authErrorCodeKey: userNotFound}
	return fe
}

func hasAuthErrorCode(err error, code string) bool {
	fe, ok := internal.AsFirebaseError(err)
	if !ok {
		return false
	}
	got, ok := fe.Ext[authErrorCodeKey]
	return ok && got == code
}

// IsUserNotFound checks if the given error was due to a non-existing user.
func IsUserNotFound(err error) bool {
	return hasAuthErrorCode(err, userNotFound)
}

// IsEmailAlreadyExists checks if the given error was due to a duplicate email.
func IsEmailAlreadyExists(err error) bool {
	return hasAuthErrorCode(err, emailAlreadyExists)
}

// IsUIDAlreadyExists checks if the given error was due to a duplicate uid.
func IsUIDAlreadyExists(err error) bool {
	return hasAuthErrorCode(err, uidAlreadyExists)
}

// IsPhoneNumberAlreadyExists checks if the given error was due to a duplicate phone number.
func IsPhoneNumberAlreadyExists(err error) bool {
	return hasAuthErrorCode(err, phoneNumberAlreadyExist)
}

// IsInvalidIDToken checks if the given error was due to an ID token rejected by the backend.
func IsInvalidIDToken(err error) bool {
	return hasAuthErrorCode(err, invalidIDToken)
}
