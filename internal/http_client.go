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

package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fbadmin/admin-sdk-go/internal/logging"
)

const defaultTimeout = 60 * time.Second

// HTTPClient executes plain HTTP exchanges on behalf of the SDK.
//
// HTTPClient handles entity serialization, header and query parameter options, and the
// classification of failures. It never retries: every Request results in at most one HTTP
// exchange.
type HTTPClient struct {
	Client      *http.Client
	CreateErrFn CreateErrFn
	Opts        []HTTPOption
	Logger      *zap.SugaredLogger
}

// NewHTTPClient creates a new HTTPClient that sends requests with hc. A nil hc selects a
// client with a default timeout.
func NewHTTPClient(hc *http.Client) *HTTPClient {
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &HTTPClient{Client: hc}
}

// Do executes the given Request, and returns a Response.
//
// Do does not inspect the response status. Transport failures are reported as
// FAILED_TO_SEND_REQUEST errors that wrap the underlying error.
func (c *HTTPClient) Do(ctx context.Context, r *Request) (*Response, error) {
	req, err := r.buildHTTPRequest(ctx, c.Opts)
	if err != nil {
		return nil, err
	}

	logger := logging.FromContextOr(ctx, c.Logger).With("requestID", uuid.NewString())
	logger.Debugw("sending request", "method", req.Method, "url", req.URL.String())
	start := time.Now()

	resp, err := c.Client.Do(req)
	if err != nil {
		logger.Debugw("request failed", "error", err)
		return nil, WrapError(KindFailedToSendRequest, err, fmt.Sprintf("error while calling %s %s", req.Method, req.URL.Redacted()))
	}
	defer resp.Body.Close()

	result, err := newResponse(resp)
	if err != nil {
		return nil, WrapError(KindFailedToSendRequest, err, "error while reading response body")
	}
	logger.Debugw("received response", "status", result.Status, "elapsed", time.Since(start))
	return result, nil
}

// DoAndUnmarshal executes the given Request, and unmarshals the response body into v.
//
// A non-2xx response is converted into an error by CreateErrFn, or by
// NewFirebaseErrorOnePlatform when no CreateErrFn is set. If v implements ResponseValidator
// the decoded value is validated as well.
func (c *HTTPClient) DoAndUnmarshal(ctx context.Context, req *Request, v interface{}) (*Response, error) {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	if !resp.IsSuccess() {
		return nil, c.handleError(resp)
	}

	if err := resp.Decode(v); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *HTTPClient) handleError(resp *Response) error {
	if c.CreateErrFn != nil {
		if err := c.CreateErrFn(resp); err != nil {
			return err
		}
	}
	return NewFirebaseErrorOnePlatform(resp)
}

// Request contains all the parameters required to construct an outgoing HTTP request.
type Request struct {
	Method string
	URL    string
	Body   HTTPEntity
	Scopes []string
	Opts   []HTTPOption
}

func (r *Request) buildHTTPRequest(ctx context.Context, defaults []HTTPOption) (*http.Request, error) {
	var opts []HTTPOption
	var data io.Reader
	if r.Body != nil {
		b, err := r.Body.Bytes()
		if err != nil {
			return nil, WrapError(KindSerialization, err, "error while encoding request body")
		}
		data = bytes.NewBuffer(b)
		opts = append(opts, WithHeader("Content-Type", r.Body.Mime()))
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, data)
	if err != nil {
		return nil, WrapError(KindInvalidURI, err, fmt.Sprintf("error while building %s request", r.Method))
	}

	opts = append(opts, defaults...)
	opts = append(opts, r.Opts...)
	for _, o := range opts {
		o(req)
	}
	return req, nil
}

// HTTPEntity represents a payload that can be included in an outgoing HTTP request.
type HTTPEntity interface {
	Bytes() ([]byte, error)
	Mime() string
}

type jsonEntity struct {
	Val interface{}
}

// NewJSONEntity creates a new HTTPEntity that will be serialized into JSON.
func NewJSONEntity(v interface{}) HTTPEntity {
	return &jsonEntity{Val: v}
}

func (e *jsonEntity) Bytes() ([]byte, error) {
	return json.Marshal(e.Val)
}

func (e *jsonEntity) Mime() string {
	return "application/json"
}

type rawJSONEntity []byte

func (e rawJSONEntity) Bytes() ([]byte, error) {
	return e, nil
}

func (e rawJSONEntity) Mime() string {
	return "application/json"
}

// Response contains information extracted from an HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	resp   *http.Response
}

func newResponse(resp *http.Response) (*Response, error) {
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{
		Status: resp.StatusCode,
		Body:   b,
		Header: resp.Header,
		resp:   resp,
	}, nil
}

// IsSuccess reports whether the response carries a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.Status >= http.StatusOK && r.Status < http.StatusMultipleChoices
}

// LowLevelResponse returns the http.Response this Response was created from. The body of the
// returned value has already been consumed.
func (r *Response) LowLevelResponse() *http.Response {
	if r.resp == nil {
		return &http.Response{
			StatusCode: r.Status,
			Header:     r.Header,
			Body:       io.NopCloser(bytes.NewBuffer(r.Body)),
		}
	}
	resp := *r.resp
	resp.Body = io.NopCloser(bytes.NewBuffer(r.Body))
	return &resp
}

// Decode unmarshals the response body into v, and validates the result when v implements
// ResponseValidator. A nil v skips decoding.
func (r *Response) Decode(v interface{}) error {
	if v == nil {
		return nil
	}
	body := bytes.TrimSpace(r.Body)
	if len(body) == 0 {
		body = []byte("{}")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return WrapError(KindResponseDecode, err, "error while parsing response")
	}
	if rv, ok := v.(ResponseValidator); ok {
		if err := rv.ValidateResponse(); err != nil {
			return WrapError(KindResponseDecode, err, "invalid response")
		}
	}
	return nil
}

// ResponseValidator is implemented by response types that have required fields.
type ResponseValidator interface {
	ValidateResponse() error
}

// CreateErrFn is a function that creates an error from a given Response. Returning nil
// selects the default error handling.
type CreateErrFn func(r *Response) error

// HTTPOption is an additional parameter that can be specified to customize an outgoing request.
type HTTPOption func(*http.Request)

// WithHeader creates an HTTPOption that will set an HTTP header on the request.
func WithHeader(key, value string) HTTPOption {
	return func(r *http.Request) {
		r.Header.Set(key, value)
	}
}

// WithQueryParam creates an HTTPOption that will set a query parameter on the request.
func WithQueryParam(key, value string) HTTPOption {
	return func(r *http.Request) {
		q := r.URL.Query()
		q.Add(key, value)
		r.URL.RawQuery = q.Encode()
	}
}

// WithQueryParams creates an HTTPOption that will set all the entries of qp as query parameters
// on the request.
func WithQueryParams(qp map[string]string) HTTPOption {
	return func(r *http.Request) {
		q := r.URL.Query()
		for k, v := range qp {
			q.Add(k, v)
		}
		r.URL.RawQuery = q.Encode()
	}
}
