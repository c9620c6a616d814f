// Copyright 2019 Google Inc. All Rights Reserved.
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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/fbadmin/admin-sdk-go/internal"
)

const maxTopicTokens = 1000

var topicNamePattern = regexp.MustCompile("^(/topics/)?(private/)?[a-zA-Z0-9-_.~%]+$")

var iidErrorCodes = map[string]struct {
	Code      internal.ErrorCode
	Messaging string
	Msg       string
}{
	"INVALID_ARGUMENT": {
		internal.InvalidArgument,
		"INVALID_ARGUMENT",
		"request contains an invalid argument",
	},
	"NOT_FOUND": {
		internal.NotFound,
		"UNREGISTERED",
		"request contains an invalid argument; registration token not registered",
	},
	"INTERNAL": {
		internal.Internal,
		"INTERNAL",
		"server encountered an internal error",
	},
	"TOO_MANY_TOPICS": {
		internal.ResourceExhausted,
		"TOO_MANY_TOPICS",
		"client exceeded the number of allowed topics",
	},
}

// ErrorInfo is a topic management error.
type ErrorInfo struct {
	Index  int
	Reason string
}

// TopicManagementResponse is the result produced by topic management operations.
//
// TopicManagementResponse provides an overview of how many input tokens were successfully handled,
// and how many failed. In case of failures, the Errors list provides specific details concerning
// each error.
type TopicManagementResponse struct {
	SuccessCount int
	FailureCount int
	Errors       []*ErrorInfo
}

func newTopicManagementResponse(resp *iidResponse) *TopicManagementResponse {
	tmr := &TopicManagementResponse{}
	for idx, res := range resp.Results {
		if res.Error == "" {
			tmr.SuccessCount++
			continue
		}

		tmr.FailureCount++
		reason := "unknown-error"
		if info, ok := iidErrorCodes[res.Error]; ok {
			reason = info.Msg
		}
		tmr.Errors = append(tmr.Errors, &ErrorInfo{
			Index:  idx,
			Reason: reason,
		})
	}
	return tmr
}

// SubscribeToTopic subscribes a list of registration tokens to a topic.
//
// The tokens list must not be empty, and have at most 1000 tokens.
func (c *Client) SubscribeToTopic(ctx context.Context, tokens []string, topic string) (*TopicManagementResponse, error) {
	return c.makeTopicManagementRequest(ctx, internal.IIDBatchAdd, &iidRequest{
		Topic:  topic,
		Tokens: tokens,
	})
}

// UnsubscribeFromTopic unsubscribes a list of registration tokens from a topic.
//
// The tokens list must not be empty, and have at most 1000 tokens.
func (c *Client) UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) (*TopicManagementResponse, error) {
	return c.makeTopicManagementRequest(ctx, internal.IIDBatchRemove, &iidRequest{
		Topic:  topic,
		Tokens: tokens,
	})
}

type iidRequest struct {
	Topic  string   `json:"to"`
	Tokens []string `json:"registration_tokens"`
}

type iidResponse struct {
	Results []struct {
		Error string `json:"error,omitempty"`
	} `json:"results"`
}

func (c *Client) makeTopicManagementRequest(
	ctx context.Context, op internal.IIDEndpoint, req *iidRequest) (*TopicManagementResponse, error) {

	if len(req.Tokens) == 0 {
		return nil, errors.New("no tokens specified")
	}
	if len(req.Tokens) > maxTopicTokens {
		return nil, fmt.Errorf("tokens list must not contain more than %d items", maxTopicTokens)
	}
	for _, token := range req.Tokens {
		if token == "" {
			return nil, errors.New("tokens list must not contain empty strings")
		}
	}

	if req.Topic == "" {
		return nil, errors.New("topic name not specified")
	}
	if !topicNamePattern.MatchString(req.Topic) {
		return nil, fmt.Errorf("invalid topic name: %q", req.Topic)
	}
	if !strings.HasPrefix(req.Topic, "/topics/") {
		req.Topic = "/topics/" + req.Topic
	}

	uri, err := c.iid.Build(op)
	if err != nil {
		return nil, err
	}
	resp, err := internal.SendRequestBody[*iidRequest, iidResponse](
		ctx, c.transport, uri, http.MethodPost, req, fcmScopes, iidAuthHeader)
	if err != nil {
		return nil, handleIIDError(err)
	}
	return newTopicManagementResponse(resp), nil
}

var iidAuthHeader = internal.WithHeader("access_token_auth", "true")

// handleIIDError reinterprets remote errors reported by the Instance ID service, which uses
// the {"error": "CODE"} payload format instead of the standard Google API error format.
func handleIIDError(err error) error {
	fe, ok := internal.AsFirebaseError(err)
	if !ok || fe.Kind != internal.KindRemoteError || fe.Response == nil {
		return err
	}

	b, rerr := io.ReadAll(fe.Response.Body)
	fe.Response.Body = io.NopCloser(bytes.NewBuffer(b))
	if rerr != nil {
		return fe
	}

	var ie struct {
		Error string `json:"error"`
	}
	json.Unmarshal(b, &ie) // ignore any json parse errors at this level
	info, ok := iidErrorCodes[ie.Error]
	if !ok {
		return fe
	}

	fe.ErrorCode = info.Code
	fe.String = fmt.Sprintf("http error status: %d; reason: %s", fe.StatusCode(), info.Msg)
	if fe.Ext == nil {
		fe.Ext = make(map[string]interface{})
	}
	fe.Ext[messagingErrorCodeKey] = info.Messaging
	return fe
}
