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

package internal

import (
	"context"
	"net/url"
)

// Transport sends a Request on behalf of a service client, and decodes a successful response
// into result.
type Transport interface {
	Send(ctx context.Context, req *Request, result interface{}) (*Response, error)
}

// AuthenticatedClient is a Transport that authorizes every outgoing request with a token
// obtained from a CredentialsProvider for the scopes of that request.
//
// Requests are sent without an Authorization header when the provider returns no token.
// AuthenticatedClient holds no mutable state, and is safe for concurrent use.
type AuthenticatedClient struct {
	Credentials CredentialsProvider
	HTTPClient  *HTTPClient
}

// NewAuthenticatedClient creates a new AuthenticatedClient.
func NewAuthenticatedClient(creds CredentialsProvider, hc *HTTPClient) *AuthenticatedClient {
	if hc == nil {
		hc = NewHTTPClient(nil)
	}
	return &AuthenticatedClient{
		Credentials: creds,
		HTTPClient:  hc,
	}
}

// Send executes the request pipeline: the body is serialized, a token is obtained for the
// request scopes, the HTTP exchange is executed exactly once, and the response is decoded.
func (c *AuthenticatedClient) Send(ctx context.Context, req *Request, result interface{}) (*Response, error) {
	out := *req
	if req.Body != nil {
		b, err := req.Body.Bytes()
		if err != nil {
			return nil, WrapError(KindSerialization, err, "error while encoding request body")
		}
		out.Body = rawJSONEntity(b)
	}

	token, err := c.Credentials.Token(ctx, req.Scopes...)
	if err != nil {
		if HasErrorKind(err, KindAuthenticationFailure) {
			return nil, err
		}
		return nil, WrapError(KindAuthenticationFailure, err, "failed to obtain access token")
	}
	if token != nil {
		out.Opts = append([]HTTPOption{WithHeader("Authorization", "Bearer "+token.AccessToken)}, req.Opts...)
	}

	return c.HTTPClient.DoAndUnmarshal(ctx, &out, result)
}

// SendRequestBody sends body as JSON to uri, and decodes the successful response into a new
// Resp value.
func SendRequestBody[Req, Resp any](
	ctx context.Context, t Transport, uri *url.URL, method string, body Req, scopes []string, opts ...HTTPOption) (*Resp, error) {
	req := &Request{
		Method: method,
		URL:    uri.String(),
		Body:   NewJSONEntity(body),
		Scopes: scopes,
		Opts:   opts,
	}
	return send[Resp](ctx, t, req)
}

// SendRequest is like SendRequestBody for requests without a body, such as GET and DELETE.
func SendRequest[Resp any](
	ctx context.Context, t Transport, uri *url.URL, method string, scopes []string, opts ...HTTPOption) (*Resp, error) {
	req := &Request{
		Method: method,
		URL:    uri.String(),
		Scopes: scopes,
		Opts:   opts,
	}
	return send[Resp](ctx, t, req)
}

func send[Resp any](ctx context.Context, t Transport, req *Request) (*Resp, error) {
	var result Resp
	if _, err := t.Send(ctx, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Empty is the response type of calls whose successful response carries no fields of interest.
type Empty struct{}
