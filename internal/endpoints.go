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

// AuthEndpoint is a Firebase Auth admin REST API endpoint. Each constant is its own path
// fragment, relative to /v1/projects/{projectId}.
type AuthEndpoint string

// Firebase Auth admin REST API endpoints.
const (
	AuthCreateUser          AuthEndpoint = "/accounts"
	AuthGetUsers            AuthEndpoint = "/accounts:lookup"
	AuthListUsers           AuthEndpoint = "/accounts:batchGet"
	AuthDeleteUser          AuthEndpoint = "/accounts:delete"
	AuthDeleteUsers         AuthEndpoint = "/accounts:batchDelete"
	AuthUpdateUser          AuthEndpoint = "/accounts:update"
	AuthImportUsers         AuthEndpoint = "/accounts:batchCreate"
	AuthCreateSessionCookie AuthEndpoint = ":createSessionCookie"
	AuthSendOobCode         AuthEndpoint = "/accounts:sendOobCode"
)

// Path returns the path fragment of the endpoint.
func (e AuthEndpoint) Path() string {
	return string(e)
}

// FCMEndpoint is a Firebase Cloud Messaging REST API endpoint, relative to
// /v1/projects/{projectId}.
type FCMEndpoint string

// Firebase Cloud Messaging REST API endpoints.
const (
	FCMSendMessage FCMEndpoint = "/messages:send"
)

// Path returns the path fragment of the endpoint.
func (e FCMEndpoint) Path() string {
	return string(e)
}

// AuthEmulatorEndpoint is an administrative endpoint only served by the Auth emulator,
// relative to /emulator/v1/projects/{projectId}.
type AuthEmulatorEndpoint string

// Firebase Auth emulator REST API endpoints.
const (
	AuthEmulatorClearUserAccounts    AuthEmulatorEndpoint = "/accounts"
	AuthEmulatorConfiguration        AuthEmulatorEndpoint = "/config"
	AuthEmulatorOobCodes             AuthEmulatorEndpoint = "/oobCodes"
	AuthEmulatorSMSVerificationCodes AuthEmulatorEndpoint = "/verificationCodes"
)

// Path returns the path fragment of the endpoint.
func (e AuthEmulatorEndpoint) Path() string {
	return string(e)
}

// IIDEndpoint is an Instance ID service endpoint. Instance ID endpoints carry no project
// prefix.
type IIDEndpoint string

// Instance ID service endpoints used for topic management and APNs token import.
const (
	IIDBatchAdd    IIDEndpoint = "/iid/v1:batchAdd"
	IIDBatchRemove IIDEndpoint = "/iid/v1:batchRemove"
	IIDBatchImport IIDEndpoint = "/iid/v1:batchImport"
)

// Path returns the path fragment of the endpoint.
func (e IIDEndpoint) Path() string {
	return string(e)
}
