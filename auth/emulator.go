// Copyright 2023 Google Inc. All Rights Reserved.
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

package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/fbadmin/admin-sdk-go/internal"
)

// EmulatorClient manages the state of a local Auth emulator: its accounts, its configuration
// and the out-of-band codes it has issued.
type EmulatorClient struct {
	transport internal.Transport
	builder   *internal.URIBuilder
}

// NewEmulatorClient creates a new instance of the Auth emulator admin client.
//
// This function can only be invoked from within the SDK. Client applications should access the
// emulator admin API through an emulated firebase.App.
func NewEmulatorClient(ctx context.Context, conf *internal.AuthEmulatorConfig) (*EmulatorClient, error) {
	if conf.ProjectID == "" {
		return nil, errors.New("project ID is required to access the Auth emulator")
	}
	if conf.EmulatorHost == "" {
		return nil, errors.New("emulator host is required to access the Auth emulator")
	}
	if conf.Transport == nil {
		return nil, errors.New("transport is required to access the Auth emulator")
	}

	builder, err := internal.NewURIBuilder("http", conf.EmulatorHost, "/emulator/v1/projects/"+conf.ProjectID)
	if err != nil {
		return nil, err
	}
	return &EmulatorClient{
		transport: conf.Transport,
		builder:   builder,
	}, nil
}

// EmulatorConfiguration is the project configuration held by the Auth emulator.
type EmulatorConfiguration struct {
	SignIn EmulatorSignInConfig `json:"signIn"`
}

// EmulatorSignInConfig holds the sign-in settings of the Auth emulator.
type EmulatorSignInConfig struct {
	AllowDuplicateEmails bool `json:"allowDuplicateEmails"`
}

// OobCode is an out-of-band code issued by the emulator, such as an email verification or a
// password reset code.
type OobCode struct {
	Email       string `json:"email"`
	OobCode     string `json:"oobCode"`
	OobLink     string `json:"oobLink"`
	RequestType string `json:"requestType"`
}

// SMSVerificationCode is a phone verification code issued by the emulator.
type SMSVerificationCode struct {
	Code        string `json:"code"`
	PhoneNumber string `json:"phoneNumber"`
	SessionInfo string `json:"sessionInfo"`
}

// ClearUserAccounts deletes every user account held by the emulator for the project.
func (c *EmulatorClient) ClearUserAccounts(ctx context.Context) error {
	_, err := emulatorRequest[internal.Empty](ctx, c, http.MethodDelete, internal.AuthEmulatorClearUserAccounts)
	return err
}

// Configuration returns the current emulator configuration of the project.
func (c *EmulatorClient) Configuration(ctx context.Context) (*EmulatorConfiguration, error) {
	return emulatorRequest[EmulatorConfiguration](ctx, c, http.MethodGet, internal.AuthEmulatorConfiguration)
}

// UpdateConfiguration replaces the emulator configuration of the project, and returns the
// configuration now in effect.
func (c *EmulatorClient) UpdateConfiguration(
	ctx context.Context, conf *EmulatorConfiguration) (*EmulatorConfiguration, error) {
	if conf == nil {
		return nil, errors.New("configuration must not be nil")
	}
	uri, err := c.builder.Build(internal.AuthEmulatorConfiguration)
	if err != nil {
		return nil, err
	}
	return internal.SendRequestBody[*EmulatorConfiguration, EmulatorConfiguration](
		ctx, c.transport, uri, http.MethodPatch, conf, nil)
}

// OobCodes lists the out-of-band codes issued by the emulator.
func (c *EmulatorClient) OobCodes(ctx context.Context) ([]*OobCode, error) {
	resp, err := emulatorRequest[struct {
		OobCodes []*OobCode `json:"oobCodes"`
	}](ctx, c, http.MethodGet, internal.AuthEmulatorOobCodes)
	if err != nil {
		return nil, err
	}
	return resp.OobCodes, nil
}

// SMSVerificationCodes lists the phone verification codes issued by the emulator.
func (c *EmulatorClient) SMSVerificationCodes(ctx context.Context) ([]*SMSVerificationCode, error) {
	resp, err := emulatorRequest[struct {
		VerificationCodes []*SMSVerificationCode `json:"verificationCodes"`
	}](ctx, c, http.MethodGet, internal.AuthEmulatorSMSVerificationCodes)
	if err != nil {
		return nil, err
	}
	return resp.VerificationCodes, nil
}

// Emulator requests need no scopes; the emulator accepts unauthenticated calls.
func emulatorRequest[Resp any](
	ctx context.Context, c *EmulatorClient, method string, e internal.AuthEmulatorEndpoint) (*Resp, error) {
	uri, err := c.builder.Build(e)
	if err != nil {
		return nil, err
	}
	return internal.SendRequest[Resp](ctx, c.transport, uri, method, nil)
}
