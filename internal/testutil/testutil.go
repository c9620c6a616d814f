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

// Package testutil provides key material and an OAuth2 token endpoint for tests.
package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// ClientEmail is the service account email of the keys created by ServiceAccountKey.
const ClientEmail = "mock-email@mock-project.iam.gserviceaccount.com"

var (
	keyOnce sync.Once
	key     *rsa.PrivateKey
)

// PrivateKey returns an RSA key shared by all the tests of a package.
func PrivateKey() *rsa.PrivateKey {
	keyOnce.Do(func() {
		var err error
		key, err = rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
	})
	return key
}

// ServiceAccountKey returns a service account key JSON signed with PrivateKey. An empty
// projectID omits the project_id field.
func ServiceAccountKey(projectID, tokenURL string) []byte {
	der, err := x509.MarshalPKCS8PrivateKey(PrivateKey())
	if err != nil {
		panic(err)
	}
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	m := map[string]string{
		"type":           "service_account",
		"private_key_id": "mock-key-id-1",
		"private_key":    string(pemKey),
		"client_email":   ClientEmail,
		"client_id":      "1234567890",
		"auth_uri":       "https://accounts.google.com/o/oauth2/auth",
		"token_uri":      tokenURL,
	}
	if projectID != "" {
		m["project_id"] = projectID
	}
	b, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}
	return b
}

// TokenServer is an OAuth2 token endpoint that accepts JWT bearer grants, and issues a new
// access token for every grant.
type TokenServer struct {
	*httptest.Server

	mu     sync.Mutex
	scopes []string
	count  int
}

// NewTokenServer starts a new TokenServer.
func NewTokenServer() *TokenServer {
	ts := &TokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(ts.handle))
	return ts
}

func (ts *TokenServer) handle(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	scope, err := assertionScope(r.PostForm.Get("assertion"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ts.mu.Lock()
	ts.count++
	ts.scopes = append(ts.scopes, scope)
	token := fmt.Sprintf("mock-token-%d", ts.count)
	ts.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
}

// Scopes returns the scope claim of every grant received so far.
func (ts *TokenServer) Scopes() []string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]string(nil), ts.scopes...)
}

// Count returns the number of tokens issued so far.
func (ts *TokenServer) Count() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.count
}

func assertionScope(assertion string) (string, error) {
	segments := strings.Split(assertion, ".")
	if len(segments) != 3 {
		return "", fmt.Errorf("malformed assertion")
	}
	payload, err := base64.RawURLEncoding.DecodeString(segments[1])
	if err != nil {
		return "", err
	}
	var claims struct {
		Scope string `json:"scope"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", err
	}
	return claims.Scope, nil
}

// FailingTransport is an http.RoundTripper that fails every request with Err.
type FailingTransport struct {
	Err error

	mu    sync.Mutex
	calls int
}

// RoundTrip implements http.RoundTripper.
func (t *FailingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	t.mu.Lock()
	t.calls++
	t.mu.Unlock()
	return nil, t.Err
}

// Calls returns the number of requests attempted through t.
func (t *FailingTransport) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// JWKS returns a JSON web key set that publishes the public half of PrivateKey under kid.
func JWKS(kid string) []byte {
	pub := PrivateKey().PublicKey
	b, err := json.Marshal(map[string]interface{}{
		"keys": []map[string]string{{
			"kty": "RSA",
			"alg": "RS256",
			"use": "sig",
			"kid": kid,
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
	if err != nil {
		panic(err)
	}
	return b
}
