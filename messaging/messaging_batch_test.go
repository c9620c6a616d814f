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
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/fbadmin/admin-sdk-go/internal"
)

// batchServer echoes the target token of every message, and fails the messages sent to
// tokens prefixed with "bad".
type batchServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests int
	dryRun   []bool
}

func newBatchServer() *batchServer {
	s := &batchServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Message struct {
				Token string `json:"token"`
			} `json:"message"`
			ValidateOnly bool `json:"validateOnly"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		s.mu.Lock()
		s.requests++
		s.dryRun = append(s.dryRun, req.ValidateOnly)
		s.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if strings.HasPrefix(req.Message.Token, "bad") {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error": {"status": "NOT_FOUND", "message": "not found", "details": [` +
				`{"@type": "type.googleapis.com/google.firebase.fcm.v1.FcmError", "errorCode": "UNREGISTERED"}]}}`))
			return
		}
		w.Write([]byte(`{"name": "projects/test-project/messages/` + req.Message.Token + `"}`))
	}))
	return s
}

func TestSendEach(t *testing.T) {
	ts := newBatchServer()
	defer ts.Close()
	client := newTestClient(t, ts.Server, liveCredentials())

	messages := []*Message{
		{Token: "t1"},
		{Token: "bad1"},
		{Token: "t2"},
	}
	br, err := client.SendEach(context.Background(), messages)
	if err != nil {
		t.Fatal(err)
	}

	if br.SuccessCount != 2 || br.FailureCount != 1 {
		t.Errorf("SendEach() = (%d, %d); want = (2, 1)", br.SuccessCount, br.FailureCount)
	}
	if len(br.Responses) != len(messages) {
		t.Fatalf("Responses = %d; want = %d", len(br.Responses), len(messages))
	}
	for idx, want := range []string{"t1", "", "t2"} {
		r := br.Responses[idx]
		if want == "" {
			if r.Success || !IsUnregistered(r.Error) {
				t.Errorf("Responses[%d] = %#v; want unregistered error", idx, r)
			}
			continue
		}
		wantID := "projects/test-project/messages/" + want
		if !r.Success || r.MessageID != wantID || r.Error != nil {
			t.Errorf("Responses[%d] = %#v; want = %q", idx, r, wantID)
		}
	}
	if ts.requests != len(messages) {
		t.Errorf("Requests = %d; want = %d", ts.requests, len(messages))
	}
}

func TestSendEachDryRun(t *testing.T) {
	ts := newBatchServer()
	defer ts.Close()
	client := newTestClient(t, ts.Server, liveCredentials())

	br, err := client.SendEachDryRun(context.Background(), []*Message{{Token: "t1"}, {Token: "t2"}})
	if err != nil {
		t.Fatal(err)
	}
	if br.SuccessCount != 2 {
		t.Errorf("SuccessCount = %d; want = 2", br.SuccessCount)
	}
	for _, d := range ts.dryRun {
		if !d {
			t.Errorf("validateOnly = false; want = true")
		}
	}
}

func TestSendEachForMulticast(t *testing.T) {
	ts := newBatchServer()
	defer ts.Close()
	client := newTestClient(t, ts.Server, liveCredentials())

	tokens := make([]string, 25)
	for i := range tokens {
		tokens[i] = "token" + strings.Repeat("x", i)
	}
	br, err := client.SendEachForMulticast(context.Background(), &MulticastMessage{
		Tokens:       tokens,
		Notification: &Notification{Title: "t"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if br.SuccessCount != len(tokens) || br.FailureCount != 0 {
		t.Errorf("SendEachForMulticast() = (%d, %d); want = (%d, 0)", br.SuccessCount, br.FailureCount, len(tokens))
	}
	for idx, r := range br.Responses {
		want := "projects/test-project/messages/" + tokens[idx]
		if r.MessageID != want {
			t.Errorf("Responses[%d].MessageID = %q; want = %q", idx, r.MessageID, want)
		}
	}
}

func TestSendEachInvalidInput(t *testing.T) {
	ts := newBatchServer()
	defer ts.Close()
	client := newTestClient(t, ts.Server, liveCredentials())
	ctx := context.Background()

	tooMany := make([]*Message, maxMessages+1)
	for i := range tooMany {
		tooMany[i] = &Message{Topic: "topic"}
	}

	cases := []struct {
		name     string
		messages []*Message
		want     string
	}{
		{"NilMessages", nil, "messages must not be nil or empty"},
		{"TooManyMessages", tooMany, "messages must not contain more than 500 elements"},
		{"InvalidMessage", []*Message{{Topic: "topic"}, {}}, "invalid message at index 1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			br, err := client.SendEach(ctx, tc.messages)
			if br != nil || err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("SendEach() = (%v, %v); want = (nil, %q)", br, err, tc.want)
			}
		})
	}

	if _, err := client.SendEachForMulticast(ctx, nil); err == nil {
		t.Errorf("SendEachForMulticast(nil) = nil; want error")
	}
	if _, err := client.SendEachForMulticast(ctx, &MulticastMessage{}); err == nil {
		t.Errorf("SendEachForMulticast(empty) = nil; want error")
	}
	if ts.requests != 0 {
		t.Errorf("Requests = %d; want = 0", ts.requests)
	}
}

func TestSendEachTransportFailure(t *testing.T) {
	ts := newBatchServer()
	client := newTestClient(t, ts.Server, liveCredentials())
	ts.Close()

	br, err := client.SendEach(context.Background(), []*Message{{Token: "t1"}, {Token: "t2"}})
	if err != nil {
		t.Fatal(err)
	}
	if br.FailureCount != 2 {
		t.Errorf("FailureCount = %d; want = 2", br.FailureCount)
	}
	for idx, r := range br.Responses {
		if !internal.HasErrorKind(r.Error, internal.KindFailedToSendRequest) {
			t.Errorf("Responses[%d].Error = %v; want = %s", idx, r.Error, internal.KindFailedToSendRequest)
		}
	}
}
