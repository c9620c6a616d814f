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

package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/fbadmin/admin-sdk-go/internal"
	"github.com/fbadmin/admin-sdk-go/internal/testutil"
)

var fcmScopes = []string{ScopeCloudPlatform, ScopeFirebaseMessaging}

func TestEmulated(t *testing.T) {
	creds := NewEmulated("demo-project")

	projectID, err := creds.ProjectID(context.Background())
	if err != nil || projectID != "demo-project" {
		t.Errorf("ProjectID() = (%q, %v); want = (%q, nil)", projectID, err, "demo-project")
	}

	for _, scopes := range [][]string{nil, fcmScopes, FirebaseScopes} {
		token, err := creds.Token(context.Background(), scopes...)
		if token != nil || err != nil {
			t.Errorf("Token(%v) = (%v, %v); want = (nil, nil)", scopes, token, err)
		}
	}
}

func TestEmulatedWithoutProjectID(t *testing.T) {
	_, err := NewEmulated("").ProjectID(context.Background())
	if !internal.HasErrorKind(err, internal.KindCredentials) {
		t.Errorf("ProjectID() = %v; want = CREDENTIALS", err)
	}
}

func TestServiceAccount(t *testing.T) {
	ts := testutil.NewTokenServer()
	defer ts.Close()

	creds, err := NewServiceAccount(testutil.ServiceAccountKey("mock-project-id", ts.URL))
	if err != nil {
		t.Fatal(err)
	}

	projectID, err := creds.ProjectID(context.Background())
	if err != nil || projectID != "mock-project-id" {
		t.Errorf("ProjectID() = (%q, %v); want = (%q, nil)", projectID, err, "mock-project-id")
	}

	token, err := creds.Token(context.Background(), ScopeFirebaseMessaging, ScopeCloudPlatform)
	if err != nil {
		t.Fatal(err)
	}
	if token.AccessToken != "mock-token-1" {
		t.Errorf("AccessToken = %q; want = %q", token.AccessToken, "mock-token-1")
	}
	if !token.Covers(fcmScopes...) {
		t.Errorf("Scopes = %v; want superset of %v", token.Scopes, fcmScopes)
	}
	expiresIn := time.Until(token.Expiry)
	if expiresIn < 55*time.Minute || expiresIn > 60*time.Minute {
		t.Errorf("Expiry in %v; want ~1h", expiresIn)
	}

	want := []string{ScopeCloudPlatform + " " + ScopeFirebaseMessaging}
	if diff := cmp.Diff(want, ts.Scopes()); diff != "" {
		t.Errorf("granted scopes mismatch (-want +got):\n%s", diff)
	}
}

func TestServiceAccountScopeCoverage(t *testing.T) {
	ts := testutil.NewTokenServer()
	defer ts.Close()

	creds, err := NewServiceAccount(testutil.ServiceAccountKey("mock-project-id", ts.URL))
	if err != nil {
		t.Fatal(err)
	}

	authScopes := []string{ScopeCloudPlatform, ScopeIdentityToolkit, ScopeUserInfoEmail}
	calls := [][]string{
		fcmScopes,
		{ScopeFirebaseMessaging, ScopeCloudPlatform, ScopeCloudPlatform},
		authScopes,
		fcmScopes,
		authScopes,
	}
	for i, scopes := range calls {
		token, err := creds.Token(context.Background(), scopes...)
		if err != nil {
			t.Fatalf("[%d] Token() = %v", i, err)
		}
		if !token.Covers(scopes...) {
			t.Errorf("[%d] Token(%v).Scopes = %v; want superset", i, scopes, token.Scopes)
		}
	}

	// One grant per distinct scope set.
	if ts.Count() != 2 {
		t.Errorf("tokens issued = %d; want = 2", ts.Count())
	}
}

func TestServiceAccountDefaultScopes(t *testing.T) {
	ts := testutil.NewTokenServer()
	defer ts.Close()

	creds, err := NewServiceAccount(testutil.ServiceAccountKey("mock-project-id", ts.URL))
	if err != nil {
		t.Fatal(err)
	}
	token, err := creds.Token(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !token.Covers(FirebaseScopes...) {
		t.Errorf("Scopes = %v; want = %v", token.Scopes, FirebaseScopes)
	}
}

func TestServiceAccountFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service_account.json")
	if err := os.WriteFile(path, testutil.ServiceAccountKey("mock-project-id", "https://oauth2.googleapis.com/token"), 0600); err != nil {
		t.Fatal(err)
	}

	creds, err := NewServiceAccountFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if creds.keyProjectID != "mock-project-id" {
		t.Errorf("keyProjectID = %q; want = %q", creds.keyProjectID, "mock-project-id")
	}

	_, err = NewServiceAccountFile(filepath.Join(t.TempDir(), "missing.json"))
	if !internal.HasErrorKind(err, internal.KindCredentials) {
		t.Errorf("NewServiceAccountFile(missing) = %v; want = CREDENTIALS", err)
	}
}

func TestServiceAccountInvalidKey(t *testing.T) {
	valid := map[string]string{}
	if err := json.Unmarshal(testutil.ServiceAccountKey("mock-project-id", "https://oauth2.googleapis.com/token"), &valid); err != nil {
		t.Fatal(err)
	}

	for _, field := range []string{"client_email", "private_key", "private_key_id"} {
		m := map[string]string{}
		for k, v := range valid {
			if k != field {
				m[k] = v
			}
		}
		b, _ := json.Marshal(m)

		creds, err := NewServiceAccount(b)
		if creds != nil || !internal.HasErrorKind(err, internal.KindCredentials) {
			t.Errorf("NewServiceAccount(no %s) = (%v, %v); want = (nil, CREDENTIALS)", field, creds, err)
		}
	}

	for _, b := range []string{"", "not json", `{"type": "authorized_user"}`} {
		if _, err := NewServiceAccount([]byte(b)); !internal.HasErrorKind(err, internal.KindCredentials) {
			t.Errorf("NewServiceAccount(%q) = %v; want = CREDENTIALS", b, err)
		}
	}
}

func TestProjectIDOverride(t *testing.T) {
	creds, err := NewServiceAccount(
		testutil.ServiceAccountKey("mock-project-id", "https://oauth2.googleapis.com/token"),
		WithProjectID("explicit-project"))
	if err != nil {
		t.Fatal(err)
	}
	projectID, err := creds.ProjectID(context.Background())
	if err != nil || projectID != "explicit-project" {
		t.Errorf("ProjectID() = (%q, %v); want = (%q, nil)", projectID, err, "explicit-project")
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestProjectIDFromMetadata(t *testing.T) {
	var requests []*http.Request
	hc := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		requests = append(requests, r)
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"application/text"}},
			Body:       io.NopCloser(strings.NewReader("metadata-project")),
			Request:    r,
		}, nil
	})}

	creds, err := NewServiceAccount(
		testutil.ServiceAccountKey("", "https://oauth2.googleapis.com/token"),
		WithHTTPClient(hc))
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		projectID, err := creds.ProjectID(context.Background())
		if err != nil || projectID != "metadata-project" {
			t.Errorf("ProjectID() = (%q, %v); want = (%q, nil)", projectID, err, "metadata-project")
		}
	}
	if len(requests) != 1 {
		t.Fatalf("metadata requests = %d; want = 1", len(requests))
	}
	if !strings.HasSuffix(requests[0].URL.Path, "/project/project-id") {
		t.Errorf("metadata path = %q; want = .../project/project-id", requests[0].URL.Path)
	}
	if requests[0].Header.Get("Metadata-Flavor") != "Google" {
		t.Errorf("Metadata-Flavor = %q; want = %q", requests[0].Header.Get("Metadata-Flavor"), "Google")
	}
}

func TestProjectIDMetadataFailure(t *testing.T) {
	ft := &testutil.FailingTransport{Err: errors.New("metadata server unreachable")}
	creds, err := NewServiceAccount(
		testutil.ServiceAccountKey("", "https://oauth2.googleapis.com/token"),
		WithHTTPClient(&http.Client{Transport: ft}))
	if err != nil {
		t.Fatal(err)
	}

	projectID, err := creds.ProjectID(context.Background())
	if projectID != "" || !internal.HasErrorKind(err, internal.KindCredentials) {
		t.Errorf("ProjectID() = (%q, %v); want = (\"\", CREDENTIALS)", projectID, err)
	}
	if !errors.Is(err, ft.Err) {
		t.Errorf("errors.Is(err, cause) = false; want = true")
	}

	// Failures are not memoized.
	creds.ProjectID(context.Background())
	if ft.Calls() < 2 {
		t.Errorf("metadata calls = %d; want >= 2", ft.Calls())
	}
}

func TestProjectIDMetadataPerCredential(t *testing.T) {
	ok := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader("metadata-project\n")),
			Request:    r,
		}, nil
	})}
	first, err := NewServiceAccount(
		testutil.ServiceAccountKey("", "https://oauth2.googleapis.com/token"),
		WithHTTPClient(ok))
	if err != nil {
		t.Fatal(err)
	}
	if projectID, err := first.ProjectID(context.Background()); err != nil || projectID != "metadata-project" {
		t.Fatalf("ProjectID() = (%q, %v); want = (%q, nil)", projectID, err, "metadata-project")
	}

	ft := &testutil.FailingTransport{Err: errors.New("metadata server unreachable")}
	second, err := NewServiceAccount(
		testutil.ServiceAccountKey("", "https://oauth2.googleapis.com/token"),
		WithHTTPClient(&http.Client{Transport: ft}))
	if err != nil {
		t.Fatal(err)
	}
	projectID, err := second.ProjectID(context.Background())
	if projectID != "" || !internal.HasErrorKind(err, internal.KindCredentials) {
		t.Errorf("ProjectID() = (%q, %v); want = (\"\", CREDENTIALS)", projectID, err)
	}
	if ft.Calls() == 0 {
		t.Errorf("metadata calls = 0; want > 0")
	}
}

func TestTokenEndpointFailure(t *testing.T) {
	ft := &testutil.FailingTransport{Err: errors.New("token endpoint unreachable")}
	creds, err := NewServiceAccount(
		testutil.ServiceAccountKey("mock-project-id", "https://oauth2.googleapis.com/token"),
		WithHTTPClient(&http.Client{Transport: ft}))
	if err != nil {
		t.Fatal(err)
	}

	token, err := creds.Token(context.Background(), fcmScopes...)
	if token != nil || !internal.HasErrorKind(err, internal.KindAuthenticationFailure) {
		t.Errorf("Token() = (%v, %v); want = (nil, AUTHENTICATION_FAILURE)", token, err)
	}
	if ft.Calls() != 1 {
		t.Errorf("token requests = %d; want = 1", ft.Calls())
	}
}

type blockingTokenSource struct {
	release chan struct{}
}

func (ts *blockingTokenSource) Token() (*oauth2.Token, error) {
	<-ts.release
	return &oauth2.Token{AccessToken: "late"}, nil
}

func TestTokenContextCancelled(t *testing.T) {
	src := &blockingTokenSource{release: make(chan struct{})}
	defer close(src.release)
	creds := NewTokenSource(src, nil, WithProjectID("mock-project-id"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	token, err := creds.Token(ctx, fcmScopes...)
	if token != nil || !internal.HasErrorKind(err, internal.KindAuthenticationFailure) {
		t.Errorf("Token() = (%v, %v); want = (nil, AUTHENTICATION_FAILURE)", token, err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("errors.Is(err, DeadlineExceeded) = false; want = true")
	}
}

func TestTokenSourceDeclaredScopes(t *testing.T) {
	creds := NewTokenSource(&internal.MockTokenSource{AccessToken: "test-token"}, fcmScopes)

	token, err := creds.Token(context.Background(), ScopeFirebaseMessaging)
	if err != nil {
		t.Fatal(err)
	}
	if token.AccessToken != "test-token" {
		t.Errorf("AccessToken = %q; want = %q", token.AccessToken, "test-token")
	}
	if !token.Covers(fcmScopes...) {
		t.Errorf("Scopes = %v; want = %v", token.Scopes, fcmScopes)
	}

	token, err = creds.Token(context.Background(), ScopeIdentityToolkit)
	if token != nil || !internal.HasErrorKind(err, internal.KindAuthenticationFailure) {
		t.Errorf("Token(identitytoolkit) = (%v, %v); want = (nil, AUTHENTICATION_FAILURE)", token, err)
	}
}

func TestTokenSourceUndeclaredScopes(t *testing.T) {
	creds := NewTokenSource(&internal.MockTokenSource{AccessToken: "test-token"}, nil)

	for _, scopes := range [][]string{fcmScopes, {ScopeIdentityToolkit}} {
		token, err := creds.Token(context.Background(), scopes...)
		if err != nil {
			t.Fatal(err)
		}
		if !token.Covers(scopes...) {
			t.Errorf("Token(%v).Scopes = %v; want superset", scopes, token.Scopes)
		}
	}
}

func TestRefreshToken(t *testing.T) {
	b := []byte(`{
		"type": "authorized_user",
		"client_id": "mock.apps.googleusercontent.com",
		"client_secret": "mock-secret",
		"refresh_token": "mock-refresh-token",
		"quota_project_id": "mock-project-id"
	}`)
	creds, err := NewRefreshToken(b)
	if err != nil {
		t.Fatal(err)
	}
	if creds.scoped {
		t.Errorf("scoped = true; want = false")
	}
	projectID, err := creds.ProjectID(context.Background())
	if err != nil || projectID != "mock-project-id" {
		t.Errorf("ProjectID() = (%q, %v); want = (%q, nil)", projectID, err, "mock-project-id")
	}
}

func TestRefreshTokenScopes(t *testing.T) {
	var calls int
	hc := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		calls++
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body: io.NopCloser(strings.NewReader(
				`{"access_token": "refreshed-token", "token_type": "Bearer", "expires_in": 3600}`)),
			Request: r,
		}, nil
	})}
	b := []byte(`{
		"type": "authorized_user",
		"client_id": "mock.apps.googleusercontent.com",
		"client_secret": "mock-secret",
		"refresh_token": "mock-refresh-token"
	}`)
	creds, err := NewRefreshToken(b, WithHTTPClient(hc))
	if err != nil {
		t.Fatal(err)
	}

	token, err := creds.Token(context.Background(), fcmScopes...)
	if err != nil {
		t.Fatal(err)
	}
	if token.AccessToken != "refreshed-token" {
		t.Errorf("AccessToken = %q; want = %q", token.AccessToken, "refreshed-token")
	}
	if diff := cmp.Diff(canonicalScopes(FirebaseScopes), token.Scopes); diff != "" {
		t.Errorf("Scopes mismatch (-want +got):\n%s", diff)
	}

	const other = "https://www.googleapis.com/auth/devstorage.read_only"
	token, err = creds.Token(context.Background(), ScopeCloudPlatform, other)
	if token != nil || !internal.HasErrorKind(err, internal.KindAuthenticationFailure) {
		t.Errorf("Token(%s) = (%v, %v); want = (nil, AUTHENTICATION_FAILURE)", other, token, err)
	}
	if calls != 1 {
		t.Errorf("token requests = %d; want = 1", calls)
	}
}

func TestRefreshTokenInvalid(t *testing.T) {
	invalid := []string{
		`not json`,
		`{"type": "service_account", "client_id": "a", "client_secret": "b", "refresh_token": "c"}`,
		`{"type": "authorized_user", "client_secret": "b", "refresh_token": "c"}`,
		`{"type": "authorized_user", "client_id": "a", "refresh_token": "c"}`,
		`{"type": "authorized_user", "client_id": "a", "client_secret": "b"}`,
	}
	for _, b := range invalid {
		creds, err := NewRefreshToken([]byte(b))
		if creds != nil || !internal.HasErrorKind(err, internal.KindCredentials) {
			t.Errorf("NewRefreshToken(%s) = (%v, %v); want = (nil, CREDENTIALS)", b, creds, err)
		}
	}
}

func TestNewFromDefaultCredentials(t *testing.T) {
	ts := testutil.NewTokenServer()
	defer ts.Close()

	key := testutil.ServiceAccountKey("", ts.URL)
	creds, err := NewFromDefaultCredentials(&google.Credentials{
		ProjectID:   "default-project",
		JSON:        key,
		TokenSource: &internal.MockTokenSource{AccessToken: "unused"},
	}, FirebaseScopes)
	if err != nil {
		t.Fatal(err)
	}
	if !creds.scoped {
		t.Errorf("scoped = false; want = true for service account JSON")
	}
	projectID, err := creds.ProjectID(context.Background())
	if err != nil || projectID != "default-project" {
		t.Errorf("ProjectID() = (%q, %v); want = (%q, nil)", projectID, err, "default-project")
	}
	token, err := creds.Token(context.Background(), fcmScopes...)
	if err != nil || token.AccessToken != "mock-token-1" {
		t.Errorf("Token() = (%v, %v); want = mock-token-1", token, err)
	}

	creds, err = NewFromDefaultCredentials(&google.Credentials{
		ProjectID:   "gce-project",
		TokenSource: &internal.MockTokenSource{AccessToken: "gce-token"},
	}, FirebaseScopes)
	if err != nil {
		t.Fatal(err)
	}
	token, err = creds.Token(context.Background(), fcmScopes...)
	if err != nil || token.AccessToken != "gce-token" {
		t.Errorf("Token() = (%v, %v); want = gce-token", token, err)
	}

	if _, err := NewFromDefaultCredentials(nil, nil); !internal.HasErrorKind(err, internal.KindCredentials) {
		t.Errorf("NewFromDefaultCredentials(nil) = %v; want = CREDENTIALS", err)
	}
}

func TestAsTokenSource(t *testing.T) {
	live := NewTokenSource(&internal.MockTokenSource{AccessToken: "test-token"}, nil)
	token, err := AsTokenSource(live, ScopeCloudPlatform).Token()
	if err != nil || token.AccessToken != "test-token" || token.TokenType != "Bearer" {
		t.Errorf("Token() = (%v, %v); want = Bearer test-token", token, err)
	}

	if _, err := AsTokenSource(NewEmulated("demo-project")).Token(); !internal.HasErrorKind(err, internal.KindAuthenticationFailure) {
		t.Errorf("Token() = %v; want = AUTHENTICATION_FAILURE", err)
	}
}

func TestCanonicalScopes(t *testing.T) {
	got := canonicalScopes([]string{"b", "a", "", "b", "c"})
	if diff := cmp.Diff([]string{"a", "b", "c"}, got); diff != "" {
		t.Errorf("canonicalScopes() mismatch (-want +got):\n%s", diff)
	}
	if got := canonicalScopes(nil); got != nil {
		t.Errorf("canonicalScopes(nil) = %v; want = nil", got)
	}
}
