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

// Package internal contains functionality that is only accessible from within the Admin SDK.
package internal

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

// Token is an OAuth2 bearer token together with the scopes it was issued for.
type Token struct {
	AccessToken string
	Scopes      []string
	Expiry      time.Time
}

// Covers reports whether the token is valid for every one of the given scopes.
func (t *Token) Covers(scopes ...string) bool {
	granted := make(map[string]bool, len(t.Scopes))
	for _, s := range t.Scopes {
		granted[s] = true
	}
	for _, s := range scopes {
		if !granted[s] {
			return false
		}
	}
	return true
}

// CredentialsProvider resolves the project identity and the authorization material
// attached to outgoing requests.
//
// Token returns a nil Token and a nil error when requests must be sent unauthenticated.
type CredentialsProvider interface {
	ProjectID(ctx context.Context) (string, error)
	Token(ctx context.Context, scopes ...string) (*Token, error)
}

// AuthConfig represents the configuration of Firebase Auth service.
type AuthConfig struct {
	ProjectID    string
	Transport    Transport
	EmulatorHost string
}

// AuthEmulatorConfig represents the configuration of the Auth emulator admin service.
type AuthEmulatorConfig struct {
	ProjectID    string
	Transport    Transport
	EmulatorHost string
}

// MessagingConfig represents the configuration of Firebase Cloud Messaging service.
type MessagingConfig struct {
	ProjectID    string
	Transport    Transport
	EmulatorHost string
}

// TokenVerifierConfig represents the configuration of the ID token and session cookie
// verifiers.
type TokenVerifierConfig struct {
	ProjectID  string
	HTTPClient *http.Client
	Emulated   bool
	Logger     *zap.SugaredLogger
}

// StorageConfig represents the configuration of Google Cloud Storage service.
type StorageConfig struct {
	Opts   []option.ClientOption
	Bucket string
}

// HashConfig holds the password hash fields of a user import request. Numeric parameters are
// pointers so that an explicit zero is sent while unused parameters are left out.
type HashConfig struct {
	HashAlgorithm     string  `json:"hashAlgorithm"`
	SignerKey         string  `json:"signerKey,omitempty"`
	SaltSeparator     *string `json:"saltSeparator,omitempty"`
	Rounds            *int    `json:"rounds,omitempty"`
	MemoryCost        *int    `json:"memoryCost,omitempty"`
	BlockSize         *int    `json:"blockSize,omitempty"`
	Parallelization   *int    `json:"parallelization,omitempty"`
	DerivedKeyLength  *int    `json:"dkLen,omitempty"`
	PasswordHashOrder string  `json:"passwordHashOrder,omitempty"`
}

// MockTokenSource is a TokenSource implementation that can be used for testing.
type MockTokenSource struct {
	AccessToken string
}

// Token returns the test token associated with the TokenSource.
func (ts *MockTokenSource) Token() (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: ts.AccessToken}, nil
}
