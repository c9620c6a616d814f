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
	"net/http"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const rfBody = `{"results": [{"apns_token": "id1", "status": "OK", "registration_token": "test-id1"},` +
	`{"apns_token": "id2", "status": "Internal Server Error"}]}`

func TestGetRegistrationFromAPNs(t *testing.T) {
	for _, sandbox := range []bool{false, true} {
		ts := newFCMServer(http.StatusOK, rfBody)
		client := newTestClient(t, ts.Server, liveCredentials())

		var resp []RegistrationToken
		var err error
		if sandbox {
			resp, err = client.GetRegistrationFromAPNsDryRun(context.Background(), "test-app", []string{"id1", "id2"})
		} else {
			resp, err = client.GetRegistrationFromAPNs(context.Background(), "test-app", []string{"id1", "id2"})
		}
		if err != nil {
			t.Fatal(err)
		}

		wantBody := map[string]interface{}{
			"application": "test-app",
			"sandbox":     sandbox,
			"apns_tokens": []interface{}{"id1", "id2"},
		}
		if diff := cmp.Diff(wantBody, ts.lastBody(t)); diff != "" {
			t.Errorf("Body mismatch (-want +got):\n%s", diff)
		}
		tr := ts.requests[0]
		if tr.URL.Path != "/iid/v1:batchImport" {
			t.Errorf("Path = %q; want = %q", tr.URL.Path, "/iid/v1:batchImport")
		}
		if h := tr.Header.Get("Access_token_auth"); h != "true" {
			t.Errorf("Access_token_auth = %q; want = %q", h, "true")
		}

		want := []RegistrationToken{
			{ApnsToken: "id1", Status: "OK", RegistrationToken: "test-id1"},
			{ApnsToken: "id2", Status: "Internal Server Error"},
		}
		if diff := cmp.Diff(want, resp); diff != "" {
			t.Errorf("GetRegistrationFromAPNs() mismatch (-want +got):\n%s", diff)
		}
		ts.Close()
	}
}

func TestInvalidGetRegistrationFromAPNs(t *testing.T) {
	ts := newFCMServer(http.StatusOK, rfBody)
	defer ts.Close()
	client := newTestClient(t, ts.Server, liveCredentials())

	cases := []struct {
		name   string
		tokens []string
		app    string
		want   string
	}{
		{"NoTokens", nil, "app", "no APNs tokens specified"},
		{"NoApplicationID", []string{"token1"}, "", "application id not specified"},
		{"TooManyTokens", strings.Split("a"+strings.Repeat(",a", 100), ","), "app", "too many APNs tokens specified"},
		{"EmptyToken", []string{"foo", ""}, "app", "tokens list must not contain empty strings"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := client.GetRegistrationFromAPNs(context.Background(), tc.app, tc.tokens)
			if err == nil || err.Error() != tc.want {
				t.Errorf("GetRegistrationFromAPNs(%s) = (%#v, %v); want = (nil, %q)", tc.name, resp, err, tc.want)
			}
		})
	}
	if len(ts.requests) != 0 {
		t.Errorf("Requests = %d; want = 0", len(ts.requests))
	}
}

func TestGetTokenDetails(t *testing.T) {
	ts := newFCMServer(http.StatusOK, `{"application": "com.iid.example", "authorizedEntity": "123456782354",`+
		`"platform": "Android", "rel": {"topics": {"topicName1": {"addDate": "2015-07-30"}}}}`)
	defer ts.Close()
	client := newTestClient(t, ts.Server, liveCredentials())

	details, err := client.GetTokenDetails(context.Background(), "token1")
	if err != nil {
		t.Fatal(err)
	}
	if details.Application != "com.iid.example" || details.Platform != "Android" {
		t.Errorf("GetTokenDetails() = %#v; want application and platform", details)
	}

	tr := ts.requests[0]
	if tr.Method != http.MethodGet {
		t.Errorf("Method = %q; want = %q", tr.Method, http.MethodGet)
	}
	if tr.URL.Path != "/iid/info/token1" {
		t.Errorf("Path = %q; want = %q", tr.URL.Path, "/iid/info/token1")
	}
	if q := tr.URL.Query().Get("details"); q != "true" {
		t.Errorf("details = %q; want = %q", q, "true")
	}
	if len(ts.bodies[0]) != 0 {
		t.Errorf("Body = %q; want empty", ts.bodies[0])
	}

	topics, err := client.GetSubscriptions(context.Background(), "token1")
	if err != nil {
		t.Fatal(err)
	}
	if topics["topicName1"].AddDate != "2015-07-30" {
		t.Errorf("GetSubscriptions() = %#v; want topicName1", topics)
	}
}

func TestGetTokenDetailsInvalidToken(t *testing.T) {
	ts := newFCMServer(http.StatusOK, `{}`)
	defer ts.Close()
	client := newTestClient(t, ts.Server, liveCredentials())

	if _, err := client.GetTokenDetails(context.Background(), ""); err == nil || err.Error() != "token not specified" {
		t.Errorf("GetTokenDetails(\"\") = %v; want = %q", err, "token not specified")
	}
	if len(ts.requests) != 0 {
		t.Errorf("Requests = %d; want = 0", len(ts.requests))
	}
}
