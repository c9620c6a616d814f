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
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"

	"cloud.google.com/go/compute/metadata"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/fbadmin/admin-sdk-go/internal"
	"github.com/fbadmin/admin-sdk-go/internal/logging"
)

// Option configures Live credentials.
type Option func(*Live)

// WithHTTPClient sets the HTTP client used to call the OAuth2 token endpoint and the metadata
// server.
func WithHTTPClient(hc *http.Client) Option {
	return func(l *Live) {
		l.hc = hc
	}
}

// WithProjectID overrides the project ID found in the key material or the runtime environment.
func WithProjectID(projectID string) Option {
	return func(l *Live) {
		l.override = projectID
	}
}

// WithLogger sets the logger of the credentials.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(l *Live) {
		l.logger = logger
	}
}

type tokenSourceFunc func(ctx context.Context, scopes []string) (oauth2.TokenSource, error)

// Live credentials authorize requests with OAuth2 access tokens.
//
// Credentials created from a service account key mint a token for exactly the scopes of each
// request. Credentials created from any other source return the token of that source, which
// must be valid for the scopes it was declared with. Tokens are cached and refreshed per scope
// set. Live is safe for concurrent use.
type Live struct {
	hc       *http.Client
	logger   *zap.SugaredLogger
	override string

	keyProjectID string
	newSource    tokenSourceFunc
	scoped       bool
	declared     []string

	mu      sync.Mutex
	sources map[string]oauth2.TokenSource

	projectMu sync.Mutex
	projectID string
}

func newLive(keyProjectID string, newSource tokenSourceFunc, scoped bool, declared []string, opts []Option) *Live {
	l := &Live{
		keyProjectID: keyProjectID,
		newSource:    newSource,
		scoped:       scoped,
		declared:     canonicalScopes(declared),
		sources:      make(map[string]oauth2.TokenSource),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// NewServiceAccount creates Live credentials from the provided service account key JSON.
//
// Service account keys can be downloaded from the "Settings" tab of a Firebase project in the
// Firebase console. The project ID of the credentials is taken from the project_id field of the
// key when present.
func NewServiceAccount(b []byte, opts ...Option) (*Live, error) {
	config, err := google.JWTConfigFromJSON(b)
	if err != nil {
		return nil, internal.WrapError(internal.KindCredentials, err, "invalid service account key")
	}

	if config.Email == "" {
		return nil, internal.Error(internal.KindCredentials, "'client_email' field not available")
	} else if config.TokenURL == "" {
		return nil, internal.Error(internal.KindCredentials, "'token_uri' field not available")
	} else if len(config.PrivateKey) == 0 {
		return nil, internal.Error(internal.KindCredentials, "'private_key' field not available")
	} else if config.PrivateKeyID == "" {
		return nil, internal.Error(internal.KindCredentials, "'private_key_id' field not available")
	}

	s := &struct {
		ProjectID string `json:"project_id"`
	}{}
	if err := json.Unmarshal(b, s); err != nil {
		return nil, internal.WrapError(internal.KindCredentials, err, "invalid service account key")
	}

	newSource := func(ctx context.Context, scopes []string) (oauth2.TokenSource, error) {
		c := *config
		c.Scopes = scopes
		return c.TokenSource(ctx), nil
	}
	return newLive(s.ProjectID, newSource, true, nil, opts), nil
}

// NewServiceAccountFile creates Live credentials from the service account key file at path.
func NewServiceAccountFile(path string, opts ...Option) (*Live, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, internal.WrapError(internal.KindCredentials, err, fmt.Sprintf("failed to read service account key file %q", path))
	}
	return NewServiceAccount(b, opts...)
}

// NewRefreshToken creates Live credentials from the provided refresh token JSON.
//
// The refresh token JSON must contain refresh_token, client_id and client_secret fields in
// addition to a type field set to the value "authorized_user". These files are usually created
// and managed by the Google Cloud SDK. The token is requested for FirebaseScopes, and a request
// for a scope outside of that set fails.
func NewRefreshToken(b []byte, opts ...Option) (*Live, error) {
	rt := &struct {
		Type           string `json:"type"`
		ClientSecret   string `json:"client_secret"`
		ClientID       string `json:"client_id"`
		RefreshToken   string `json:"refresh_token"`
		QuotaProjectID string `json:"quota_project_id"`
	}{}
	if err := json.Unmarshal(b, rt); err != nil {
		return nil, internal.WrapError(internal.KindCredentials, err, "invalid refresh token")
	}
	if rt.Type != "authorized_user" {
		return nil, internal.Errorf(internal.KindCredentials, "'type' field is '%s' (expected 'authorized_user')", rt.Type)
	} else if rt.ClientID == "" {
		return nil, internal.Error(internal.KindCredentials, "'client_id' field not available")
	} else if rt.ClientSecret == "" {
		return nil, internal.Error(internal.KindCredentials, "'client_secret' field not available")
	} else if rt.RefreshToken == "" {
		return nil, internal.Error(internal.KindCredentials, "'refresh_token' field not available")
	}

	config := &oauth2.Config{
		ClientID:     rt.ClientID,
		ClientSecret: rt.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       FirebaseScopes,
	}
	token := &oauth2.Token{
		RefreshToken: rt.RefreshToken,
	}
	newSource := func(ctx context.Context, scopes []string) (oauth2.TokenSource, error) {
		return config.TokenSource(ctx, token), nil
	}
	return newLive(rt.QuotaProjectID, newSource, false, FirebaseScopes, opts), nil
}

// NewAppDefault creates Live credentials based on the runtime environment.
//
// NewAppDefault inspects the runtime environment to fetch a valid set of authentication
// credentials. This is particularly useful when deployed in a managed cloud environment such as
// Google Compute Engine or Cloud Run. When the environment points to a service account key, the
// credentials mint tokens scoped to each request as NewServiceAccount does.
func NewAppDefault(ctx context.Context, opts ...Option) (*Live, error) {
	creds, err := google.FindDefaultCredentials(ctx, FirebaseScopes...)
	if err != nil {
		return nil, internal.WrapError(internal.KindCredentials, err, "failed to find application default credentials")
	}
	return NewFromDefaultCredentials(creds, FirebaseScopes, opts...)
}

// NewFromDefaultCredentials creates Live credentials from credentials discovered by the
// golang.org/x/oauth2/google package, whose token source was created for scopes.
func NewFromDefaultCredentials(creds *google.Credentials, scopes []string, opts ...Option) (*Live, error) {
	if creds == nil {
		return nil, internal.Error(internal.KindCredentials, "credentials must not be nil")
	}

	var kind struct {
		Type string `json:"type"`
	}
	if len(creds.JSON) > 0 && json.Unmarshal(creds.JSON, &kind) == nil && kind.Type == "service_account" {
		l, err := NewServiceAccount(creds.JSON, opts...)
		if err != nil {
			return nil, err
		}
		if l.keyProjectID == "" {
			l.keyProjectID = creds.ProjectID
		}
		return l, nil
	}

	ts := creds.TokenSource
	newSource := func(ctx context.Context, _ []string) (oauth2.TokenSource, error) {
		return ts, nil
	}
	return newLive(creds.ProjectID, newSource, false, scopes, opts), nil
}

// NewTokenSource creates Live credentials that authorize requests with the tokens of ts.
//
// scopes declares the scopes the tokens of ts are valid for. A request for a scope outside of
// that set fails. An empty scopes trusts ts for every request. The project ID must be supplied
// with WithProjectID unless it can be read from the metadata server.
func NewTokenSource(ts oauth2.TokenSource, scopes []string, opts ...Option) *Live {
	newSource := func(ctx context.Context, _ []string) (oauth2.TokenSource, error) {
		return ts, nil
	}
	return newLive("", newSource, false, scopes, opts)
}

// ProjectID returns the ID of the project the credentials belong to.
//
// The project ID is resolved on the first call, and memoized once resolved. It is taken from
// WithProjectID, then from the key material, and finally from the metadata server of the
// runtime environment.
func (l *Live) ProjectID(ctx context.Context) (string, error) {
	l.projectMu.Lock()
	defer l.projectMu.Unlock()
	if l.projectID != "" {
		return l.projectID, nil
	}

	logger := logging.FromContextOr(ctx, l.logger)
	projectID, source := l.override, "option"
	if projectID == "" {
		projectID, source = l.keyProjectID, "key"
	}
	if projectID == "" {
		// Uncached lookup. ProjectIDWithContext memoizes per process, not per client.
		id, err := metadata.NewClient(l.hc).GetWithContext(ctx, "project/project-id")
		if err != nil {
			return "", internal.WrapError(internal.KindCredentials, err, "failed to resolve project id from the metadata server")
		}
		projectID, source = strings.TrimSpace(id), "metadata"
	}
	if projectID == "" {
		return "", internal.Error(internal.KindCredentials, "project id not available")
	}

	logger.Debugw("resolved project id", "projectID", projectID, "source", source)
	l.projectID = projectID
	return projectID, nil
}

// Token returns an access token valid for all of the given scopes. When no scopes are given
// the token covers FirebaseScopes.
//
// Token honors the cancellation of ctx. A refresh already in progress completes in the
// background, and its result is cached for the next call.
func (l *Live) Token(ctx context.Context, scopes ...string) (*Token, error) {
	requested := canonicalScopes(scopes)
	if len(requested) == 0 {
		requested = canonicalScopes(FirebaseScopes)
	}

	granted := requested
	key := strings.Join(requested, " ")
	if !l.scoped {
		key = ""
		if len(l.declared) > 0 {
			t := &Token{Scopes: l.declared}
			if !t.Covers(requested...) {
				return nil, internal.Errorf(internal.KindAuthenticationFailure,
					"credentials are not valid for the requested scopes: %v", requested)
			}
			granted = l.declared
		}
	}

	ts, err := l.source(key, requested)
	if err != nil {
		return nil, internal.WrapError(internal.KindAuthenticationFailure, err, "failed to create token source")
	}

	type result struct {
		token *oauth2.Token
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		t, err := ts.Token()
		ch <- result{t, err}
	}()

	var r result
	select {
	case <-ctx.Done():
		return nil, internal.WrapError(internal.KindAuthenticationFailure, ctx.Err(), "failed to obtain access token")
	case r = <-ch:
	}
	if r.err != nil {
		return nil, internal.WrapError(internal.KindAuthenticationFailure, r.err, "failed to obtain access token")
	}
	if r.token == nil || r.token.AccessToken == "" {
		return nil, internal.Error(internal.KindAuthenticationFailure, "token source returned an empty access token")
	}

	return &Token{
		AccessToken: r.token.AccessToken,
		Scopes:      append([]string(nil), granted...),
		Expiry:      r.token.Expiry,
	}, nil
}

func (l *Live) source(key string, scopes []string) (oauth2.TokenSource, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ts, ok := l.sources[key]; ok {
		return ts, nil
	}

	ctx := context.Background()
	if l.hc != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, l.hc)
	}
	ts, err := l.newSource(ctx, scopes)
	if err != nil {
		return nil, err
	}
	ts = oauth2.ReuseTokenSource(nil, ts)
	l.sources[key] = ts
	return ts, nil
}

// canonicalScopes returns the sorted set of the given scopes.
func canonicalScopes(scopes []string) []string {
	if len(scopes) == 0 {
		return nil
	}
	set := make(map[string]bool, len(scopes))
	var result []string
	for _, s := range scopes {
		if s == "" || set[s] {
			continue
		}
		set[s] = true
		result = append(result, s)
	}
	sort.Strings(result)
	return result
}

// AsTokenSource adapts p into an oauth2.TokenSource that requests tokens for the given scopes.
// It allows Google Cloud client libraries to share the credentials of an App.
func AsTokenSource(p Provider, scopes ...string) oauth2.TokenSource {
	return &providerTokenSource{p: p, scopes: scopes}
}

type providerTokenSource struct {
	p      Provider
	scopes []string
}

func (s *providerTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.p.Token(context.Background(), s.scopes...)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, internal.Error(internal.KindAuthenticationFailure, "credentials do not issue access tokens")
	}
	return &oauth2.Token{
		AccessToken: t.AccessToken,
		TokenType:   "Bearer",
		Expiry:      t.Expiry,
	}, nil
}
