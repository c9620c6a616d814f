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

// Package credentials provides the credentials that authorize the requests sent by the
// Firebase Admin SDK.
//
// Live credentials obtain OAuth2 access tokens from service account keys, refresh tokens or the
// runtime environment. Emulated credentials send every request unauthenticated, and are used
// with the Firebase Local Emulator Suite.
package credentials

import (
	"context"

	"github.com/fbadmin/admin-sdk-go/internal"
)

// OAuth2 scopes used by the Firebase services.
const (
	ScopeCloudPlatform     = "https://www.googleapis.com/auth/cloud-platform"
	ScopeFirebase          = "https://www.googleapis.com/auth/firebase"
	ScopeFirebaseMessaging = "https://www.googleapis.com/auth/firebase.messaging"
	ScopeIdentityToolkit   = "https://www.googleapis.com/auth/identitytoolkit"
	ScopeUserInfoEmail     = "https://www.googleapis.com/auth/userinfo.email"
)

// FirebaseScopes is the set of scopes that covers every API called by the SDK.
var FirebaseScopes = []string{
	ScopeCloudPlatform,
	ScopeFirebase,
	ScopeFirebaseMessaging,
	ScopeIdentityToolkit,
	ScopeUserInfoEmail,
}

// Token is an OAuth2 access token together with the scopes it is valid for.
type Token = internal.Token

// Provider supplies the project identity and the authorization of outgoing requests.
//
// Token returns a nil Token and a nil error when requests must be sent without an
// Authorization header.
type Provider = internal.CredentialsProvider

// Emulated credentials carry a caller-supplied project ID and never authorize requests.
type Emulated struct {
	projectID string
}

// NewEmulated creates credentials for the project with the given ID, to be used against the
// Firebase Local Emulator Suite.
func NewEmulated(projectID string) *Emulated {
	return &Emulated{projectID: projectID}
}

// ProjectID returns the project ID the credentials were created with. It never performs I/O.
func (e *Emulated) ProjectID(ctx context.Context) (string, error) {
	if e.projectID == "" {
		return "", internal.Error(internal.KindCredentials, "project id is required for emulated credentials")
	}
	return e.projectID, nil
}

// Token always returns a nil Token.
func (e *Emulated) Token(ctx context.Context, scopes ...string) (*Token, error) {
	return nil, nil
}

var (
	_ Provider = (*Emulated)(nil)
	_ Provider = (*Live)(nil)
)
