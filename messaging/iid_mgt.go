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

package messaging

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/fbadmin/admin-sdk-go/internal"
)

const maxAPNsTokens = 100

// RegistrationToken is the result produced by Instance ID service's batchImport method.
type RegistrationToken struct {
	ApnsToken         string `json:"apns_token"`
	Status            string `json:"status"`
	RegistrationToken string `json:"registration_token,omitempty"`
}

type iidBatchImportRequest struct {
	Application string   `json:"application"`
	Sandbox     bool     `json:"sandbox"`
	ApnsTokens  []string `json:"apns_tokens"`
}

type iidRegistrationTokens struct {
	Results []RegistrationToken `json:"results"`
}

// GetRegistrationFromAPNs creates registration tokens for APNs tokens.
//
// Using the Instance ID service's batchImport method, existing iOS APNs tokens are imported
// to Firebase Cloud Messaging, and mapped to valid registration tokens.
//
// https://developers.google.com/instance-id/reference/server#create_registration_tokens_for_apns_tokens
func (c *Client) GetRegistrationFromAPNs(
	ctx context.Context, application string, tokens []string) ([]RegistrationToken, error) {
	return c.getRegistrationFromAPNs(ctx, application, tokens, false)
}

// GetRegistrationFromAPNsDryRun creates registration tokens for APNs tokens in the sandbox
// environment.
func (c *Client) GetRegistrationFromAPNsDryRun(
	ctx context.Context, application string, tokens []string) ([]RegistrationToken, error) {
	return c.getRegistrationFromAPNs(ctx, application, tokens, true)
}

func (c *Client) getRegistrationFromAPNs(
	ctx context.Context, application string, tokens []string, sandbox bool) ([]RegistrationToken, error) {

	if application == "" {
		return nil, errors.New("application id not specified")
	}
	if len(tokens) == 0 {
		return nil, errors.New("no APNs tokens specified")
	}
	if len(tokens) > maxAPNsTokens {
		return nil, errors.New("too many APNs tokens specified")
	}
	for _, token := range tokens {
		if token == "" {
			return nil, errors.New("tokens list must not contain empty strings")
		}
	}

	uri, err := c.iid.Build(internal.IIDBatchImport)
	if err != nil {
		return nil, err
	}
	req := &iidBatchImportRequest{
		Application: application,
		Sandbox:     sandbox,
		ApnsTokens:  tokens,
	}
	resp, err := internal.SendRequestBody[*iidBatchImportRequest, iidRegistrationTokens](
		ctx, c.transport, uri, http.MethodPost, req, fcmScopes, iidAuthHeader)
	if err != nil {
		return nil, handleIIDError(err)
	}
	return resp.Results, nil
}

// Topics maps the names of the topics a token is subscribed to, to the subscription details.
type Topics map[string]struct {
	AddDate string `json:"addDate"`
}

// TokenDetails is the information the Instance ID service holds about an app instance.
type TokenDetails struct {
	ApplicationVersion string `json:"applicationVersion"`
	Application        string `json:"application"`
	AuthorizedEntity   string `json:"authorizedEntity"`
	Rel                struct {
		Topics Topics `json:"topics"`
	} `json:"rel"`
	Platform string `json:"platform"`
}

// iidInfo is the per-token info endpoint of the Instance ID service.
type iidInfo string

func (token iidInfo) Path() string {
	return "/iid/info/" + url.PathEscape(string(token)) + "?details=true"
}

// GetSubscriptions returns the topics the given registration token is subscribed to.
func (c *Client) GetSubscriptions(ctx context.Context, token string) (Topics, error) {
	res, err := c.GetTokenDetails(ctx, token)
	if err != nil {
		return nil, err
	}
	return res.Rel.Topics, nil
}

// GetTokenDetails returns information about the app instance the given registration token
// belongs to.
//
// https://developers.google.com/instance-id/reference/server#get_information_about_app_instances
func (c *Client) GetTokenDetails(ctx context.Context, token string) (*TokenDetails, error) {
	if token == "" {
		return nil, errors.New("token not specified")
	}

	uri, err := c.iid.Build(iidInfo(token))
	if err != nil {
		return nil, err
	}
	resp, err := internal.SendRequest[TokenDetails](ctx, c.transport, uri, http.MethodGet, fcmScopes, iidAuthHeader)
	if err != nil {
		return nil, handleIIDError(err)
	}
	return resp, nil
}
