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

package auth

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/fbadmin/admin-sdk-go/internal"
)

const testUserJSON = `{
	"localId": "testuser",
	"email": "testuser@example.com",
	"phoneNumber": "+1234567890",
	"emailVerified": true,
	"displayName": "Test User",
	"photoUrl": "http://www.example.com/testuser/photo.png",
	"passwordHash": "passwordhash",
	"salt": "salt===",
	"validSince": "1494364393",
	"disabled": false,
	"createdAt": "1234567890000",
	"lastLoginAt": "1233211232000",
	"lastRefreshAt": "2020-01-01T00:00:00Z",
	"customAttributes": "{\"admin\": true, \"package\": \"gold\"}",
	"providerUserInfo": [
		{
			"providerId": "password",
			"displayName": "Test User",
			"photoUrl": "http://www.example.com/testuser/photo.png",
			"email": "testuser@example.com",
			"rawId": "testuid"
		},
		{
			"providerId": "phone",
			"phoneNumber": "+1234567890",
			"rawId": "testuid"
		}
	]
}`

var testGetUserResponse = `{"users": [` + testUserJSON + `]}`

var testUser = &UserRecord{
	UserInfo: &UserInfo{
		UID:         "testuser",
		Email:       "testuser@example.com",
		PhoneNumber: "+1234567890",
		DisplayName: "Test User",
		PhotoURL:    "http://www.example.com/testuser/photo.png",
		ProviderID:  defaultProviderID,
	},
	Disabled:      false,
	EmailVerified: true,
	ProviderUserInfo: []*UserInfo{
		{
			ProviderID:  "password",
			DisplayName: "Test User",
			PhotoURL:    "http://www.example.com/testuser/photo.png",
			Email:       "testuser@example.com",
			UID:         "testuid",
		},
		{
			ProviderID:  "phone",
			PhoneNumber: "+1234567890",
			UID:         "testuid",
		},
	},
	TokensValidAfterMillis: 1494364393000,
	UserMetadata: &UserMetadata{
		CreationTimestamp:    1234567890000,
		LastLogInTimestamp:   1233211232000,
		LastRefreshTimestamp: 1577836800000,
	},
	CustomClaims: map[string]interface{}{"admin": true, "package": "gold"},
}

func TestGetUser(t *testing.T) {
	s := echoServer(testGetUserResponse)
	defer s.Close()
	client := newLiveTestClient(t, s)

	user, err := client.GetUser(context.Background(), "testuser")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(testUser, user); diff != "" {
		t.Errorf("GetUser() mismatch (-want +got):\n%s", diff)
	}

	r, body := s.request(t, 0)
	checkLiveRequest(t, r, http.MethodPost, "/accounts:lookup")
	want := map[string]interface{}{"localId": []interface{}{"testuser"}}
	if diff := cmp.Diff(want, body); diff != "" {
		t.Errorf("Body mismatch (-want +got):\n%s", diff)
	}
}

func TestGetUserByEmailAndPhone(t *testing.T) {
	s := echoServer(testGetUserResponse)
	defer s.Close()
	client := newLiveTestClient(t, s)

	user, err := client.GetUserByEmail(context.Background(), "testuser@example.com")
	if err != nil || user.UID != "testuser" {
		t.Errorf("GetUserByEmail() = (%v, %v); want = (testuser, nil)", user, err)
	}
	_, body := s.request(t, 0)
	if diff := cmp.Diff(map[string]interface{}{"email": []interface{}{"testuser@example.com"}}, body); diff != "" {
		t.Errorf("Body mismatch (-want +got):\n%s", diff)
	}

	user, err = client.GetUserByPhoneNumber(context.Background(), "+1234567890")
	if err != nil || user.UID != "testuser" {
		t.Errorf("GetUserByPhoneNumber() = (%v, %v); want = (testuser, nil)", user, err)
	}
	_, body = s.request(t, 1)
	if diff := cmp.Diff(map[string]interface{}{"phoneNumber": []interface{}{"+1234567890"}}, body); diff != "" {
		t.Errorf("Body mismatch (-want +got):\n%s", diff)
	}
}

func TestGetUserNotFound(t *testing.T) {
	s := echoServer(`{"users": []}`)
	defer s.Close()
	client := newLiveTestClient(t, s)

	user, err := client.GetUser(context.Background(), "ghost")
	if user != nil || !IsUserNotFound(err) {
		t.Errorf("GetUser() = (%v, %v); want = (nil, user-not-found)", user, err)
	}
	if !internal.HasPlatformErrorCode(err, internal.NotFound) {
		t.Errorf("GetUser() = %v; want code = %s", err, internal.NotFound)
	}
	want := `cannot find user from uid: "ghost"`
	if err.Error() != want {
		t.Errorf("Error() = %q; want = %q", err.Error(), want)
	}
}

func TestInvalidGetUser(t *testing.T) {
	s := echoServer(testGetUserResponse)
	defer s.Close()
	client := newLiveTestClient(t, s)

	if _, err := client.GetUser(context.Background(), ""); err == nil {
		t.Error("GetUser('') = nil; want = error")
	}
	if _, err := client.GetUser(context.Background(), strings.Repeat("a", 129)); err == nil {
		t.Error("GetUser(long) = nil; want = error")
	}
	if _, err := client.GetUserByEmail(context.Background(), "not-an-email"); err == nil {
		t.Error("GetUserByEmail(malformed) = nil; want = error")
	}
	if _, err := client.GetUserByPhoneNumber(context.Background(), "1234"); err == nil {
		t.Error("GetUserByPhoneNumber(no plus) = nil; want = error")
	}
	if s.count() != 0 {
		t.Errorf("Requests = %d; want = 0", s.count())
	}
}

func TestGetUsers(t *testing.T) {
	s := echoServer(`{"users": [
		{"localId": "uid1"},
		{"localId": "uid2", "email": "user2@example.com"},
		{"localId": "uid3", "phoneNumber": "+15555550003"}
	]}`)
	defer s.Close()
	client := newLiveTestClient(t, s)

	result, err := client.GetUsers(context.Background(), []UserIdentifier{
		UIDIdentifier{"uid1"},
		EmailIdentifier{"user2@example.com"},
		PhoneIdentifier{"+15555550003"},
		UIDIdentifier{"uid-missing"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Users) != 3 {
		t.Errorf("len(Users) = %d; want = 3", len(result.Users))
	}
	if diff := cmp.Diff([]UserIdentifier{UIDIdentifier{"uid-missing"}}, result.NotFound); diff != "" {
		t.Errorf("NotFound mismatch (-want +got):\n%s", diff)
	}

	_, body := s.request(t, 0)
	want := map[string]interface{}{
		"localId":     []interface{}{"uid1", "uid-missing"},
		"email":       []interface{}{"user2@example.com"},
		"phoneNumber": []interface{}{"+15555550003"},
	}
	if diff := cmp.Diff(want, body); diff != "" {
		t.Errorf("Body mismatch (-want +got):\n%s", diff)
	}
}

func TestGetUsersEmpty(t *testing.T) {
	s := echoServer(`{}`)
	defer s.Close()
	client := newLiveTestClient(t, s)

	result, err := client.GetUsers(context.Background(), nil)
	if err != nil || len(result.Users) != 0 || len(result.NotFound) != 0 {
		t.Errorf("GetUsers(nil) = (%v, %v); want = (empty, nil)", result, err)
	}
	if s.count() != 0 {
		t.Errorf("Requests = %d; want = 0", s.count())
	}
}

func TestInvalidGetUsers(t *testing.T) {
	s := echoServer(`{}`)
	defer s.Close()
	client := newLiveTestClient(t, s)

	var tooMany []UserIdentifier
	for i := 0; i <= maxGetUsersIDs; i++ {
		tooMany = append(tooMany, UIDIdentifier{"uid"})
	}
	if _, err := client.GetUsers(context.Background(), tooMany); err == nil {
		t.Error("GetUsers(too many) = nil; want = error")
	}

	_, err := client.GetUsers(context.Background(), []UserIdentifier{
		UIDIdentifier{""},
		EmailIdentifier{"bad"},
		nil,
	})
	if err == nil {
		t.Fatal("GetUsers(invalid) = nil; want = error")
	}
	for _, want := range []string{"uid must be a non-empty string", "malformed email", "unsupported identifier"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("GetUsers() = %q; want to contain %q", err.Error(), want)
		}
	}
	if s.count() != 0 {
		t.Errorf("Requests = %d; want = 0", s.count())
	}
}

func TestCreateUser(t *testing.T) {
	s := newAuthServer(map[string]string{
		"/accounts":        `{"localId": "testuser"}`,
		"/accounts:lookup": testGetUserResponse,
	}, `{}`)
	defer s.Close()
	client := newLiveTestClient(t, s)

	params := (&UserToCreate{}).
		UID("testuser").
		Email("testuser@example.com").
		EmailVerified(false).
		Password("secret").
		PhoneNumber("+1234567890").
		DisplayName("Test User").
		PhotoURL("http://www.example.com/testuser/photo.png").
		Disabled(false)
	user, err := client.CreateUser(context.Background(), params)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(testUser, user); diff != "" {
		t.Errorf("CreateUser() mismatch (-want +got):\n%s", diff)
	}

	r, body := s.request(t, 0)
	checkLiveRequest(t, r, http.MethodPost, "/accounts")
	want := map[string]interface{}{
		"localId":       "testuser",
		"email":         "testuser@example.com",
		"emailVerified": false,
		"password":      "secret",
		"phoneNumber":   "+1234567890",
		"displayName":   "Test User",
		"photoUrl":      "http://www.example.com/testuser/photo.png",
		"disabled":      false,
	}
	if diff := cmp.Diff(want, body); diff != "" {
		t.Errorf("Body mismatch (-want +got):\n%s", diff)
	}
	if s.count() != 2 {
		t.Errorf("Requests = %d; want = 2", s.count())
	}
}

func TestCreateUserNoParams(t *testing.T) {
	s := newAuthServer(map[string]string{
		"/accounts":        `{"localId": "testuser"}`,
		"/accounts:lookup": testGetUserResponse,
	}, `{}`)
	defer s.Close()
	client := newLiveTestClient(t, s)

	if _, err := client.CreateUser(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	_, body := s.request(t, 0)
	if len(body) != 0 {
		t.Errorf("Body = %v; want = {}", body)
	}
}

func TestCreateUserMissingUID(t *testing.T) {
	s := echoServer(`{}`)
	defer s.Close()
	client := newLiveTestClient(t, s)

	_, err := client.CreateUser(context.Background(), (&UserToCreate{}).Email("a@b.com"))
	if !internal.HasErrorKind(err, internal.KindResponseDecode) {
		t.Errorf("CreateUser() = %v; want = %s", err, internal.KindResponseDecode)
	}
}

func TestInvalidCreateUser(t *testing.T) {
	s := echoServer(`{}`)
	defer s.Close()
	client := newLiveTestClient(t, s)

	params := (&UserToCreate{}).
		UID(strings.Repeat("a", 129)).
		Email("not-an-email").
		Password("short").
		PhoneNumber("1234").
		DisplayName("").
		PhotoURL("")
	_, err := client.CreateUser(context.Background(), params)
	if err == nil {
		t.Fatal("CreateUser() = nil; want = error")
	}
	for _, want := range []string{
		"uid string must not be longer than 128 characters",
		"malformed email string",
		"password must be a string at least 6 characters long",
		"phone number must be a valid, E.164 compliant identifier",
		"display name must be a non-empty string",
		"photo url must be a non-empty string",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("CreateUser() = %q; want to contain %q", err.Error(), want)
		}
	}
	if s.count() != 0 {
		t.Errorf("Requests = %d; want = 0", s.count())
	}
}

func TestUpdateUser(t *testing.T) {
	cases := []struct {
		name   string
		params *UserToUpdate
		want   map[string]interface{}
	}{
		{
			name:   "Set",
			params: (&UserToUpdate{}).DisplayName("New Name").PhotoURL("http://photo").PhoneNumber("+1234567890"),
			want: map[string]interface{}{
				"displayName": "New Name",
				"photoUrl":    "http://photo",
				"phoneNumber": "+1234567890",
			},
		},
		{
			name:   "Delete",
			params: (&UserToUpdate{}).DisplayName("").PhotoURL("").PhoneNumber(""),
			want: map[string]interface{}{
				"deleteAttribute": []interface{}{"DISPLAY_NAME", "PHOTO_URL"},
				"deleteProvider":  []interface{}{"phone"},
			},
		},
		{
			name:   "Flags",
			params: (&UserToUpdate{}).Disabled(false).EmailVerified(true).Email("new@example.com").Password("secret"),
			want: map[string]interface{}{
				"disableUser":   false,
				"emailVerified": true,
				"email":         "new@example.com",
				"password":      "secret",
			},
		},
		{
			name:   "Claims",
			params: (&UserToUpdate{}).CustomClaims(map[string]interface{}{"admin": true}),
			want: map[string]interface{}{
				"customAttributes": `{"admin":true}`,
			},
		},
		{
			name:   "ClearClaims",
			params: (&UserToUpdate{}).CustomClaims(nil),
			want: map[string]interface{}{
				"customAttributes": `{}`,
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newAuthServer(map[string]string{
				"/accounts:update": `{"localId": "testuser"}`,
				"/accounts:lookup": testGetUserResponse,
			}, `{}`)
			defer s.Close()
			client := newLiveTestClient(t, s)

			user, err := client.UpdateUser(context.Background(), "testuser", tc.params)
			if err != nil {
				t.Fatal(err)
			}
			if user.UID != "testuser" {
				t.Errorf("UpdateUser().UID = %q; want = %q", user.UID, "testuser")
			}

			r, body := s.request(t, 0)
			checkLiveRequest(t, r, http.MethodPost, "/accounts:update")
			tc.want["localId"] = "testuser"
			if diff := cmp.Diff(tc.want, body); diff != "" {
				t.Errorf("Body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestInvalidUpdateUser(t *testing.T) {
	s := echoServer(`{"localId": "testuser"}`)
	defer s.Close()
	client := newLiveTestClient(t, s)

	cases := []struct {
		name   string
		uid    string
		params *UserToUpdate
		want   string
	}{
		{"Nil", "uid", nil, "update parameters must not be nil or empty"},
		{"Empty", "uid", &UserToUpdate{}, "update parameters must not be nil or empty"},
		{"NoUID", "", (&UserToUpdate{}).Disabled(true), "uid must be a non-empty string"},
		{"BadEmail", "uid", (&UserToUpdate{}).Email("bad"), "malformed email string"},
		{"ShortPassword", "uid", (&UserToUpdate{}).Password("abc"), "password must be a string at least 6 characters long"},
		{"BadPhone", "uid", (&UserToUpdate{}).PhoneNumber("555"), "E.164"},
		{"ReservedClaim", "uid", (&UserToUpdate{}).CustomClaims(map[string]interface{}{"sub": "x"}), `claim "sub" is reserved`},
		{"LargeClaims", "uid", (&UserToUpdate{}).CustomClaims(map[string]interface{}{"k": strings.Repeat("a", 1000)}),
			"serialized custom claims must not exceed 1000 characters"},
	}
	for _, tc := range cases {
		user, err := client.UpdateUser(context.Background(), tc.uid, tc.params)
		if user != nil || err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("UpdateUser(%s) = (%v, %v); want = (nil, %q)", tc.name, user, err, tc.want)
		}
	}
	if s.count() != 0 {
		t.Errorf("Requests = %d; want = 0", s.count())
	}
}

func TestSetCustomUserClaims(t *testing.T) {
	s := echoServer(`{"localId": "testuser"}`)
	defer s.Close()
	client := newLiveTestClient(t, s)

	if err := client.SetCustomUserClaims(context.Background(), "testuser", map[string]interface{}{"role": "admin"}); err != nil {
		t.Fatal(err)
	}
	if s.count() != 1 {
		t.Errorf("Requests = %d; want = 1", s.count())
	}
	r, body := s.request(t, 0)
	checkLiveRequest(t, r, http.MethodPost, "/accounts:update")
	want := map[string]interface{}{
		"localId":          "testuser",
		"customAttributes": `{"role":"admin"}`,
	}
	if diff := cmp.Diff(want, body); diff != "" {
		t.Errorf("Body mismatch (-want +got):\n%s", diff)
	}
}

func TestDeleteUser(t *testing.T) {
	s := echoServer(`{"kind": "identitytoolkit#DeleteAccountResponse"}`)
	defer s.Close()
	client := newLiveTestClient(t, s)

	if err := client.DeleteUser(context.Background(), "testuser"); err != nil {
		t.Fatal(err)
	}
	r, body := s.request(t, 0)
	checkLiveRequest(t, r, http.MethodPost, "/accounts:delete")
	if diff := cmp.Diff(map[string]interface{}{"localId": "testuser"}, body); diff != "" {
		t.Errorf("Body mismatch (-want +got):\n%s", diff)
	}

	if err := client.DeleteUser(context.Background(), ""); err == nil {
		t.Error("DeleteUser('') = nil; want = error")
	}
}

func TestDeleteUsers(t *testing.T) {
	s := echoServer(`{"errors": [{"index": 1, "localId": "uid2", "message": "NOT_DISABLED : Disable the account before batch deletion."}]}`)
	defer s.Close()
	client := newLiveTestClient(t, s)

	result, err := client.DeleteUsers(context.Background(), []string{"uid1", "uid2", "uid3"})
	if err != nil {
		t.Fatal(err)
	}
	want := &DeleteUsersResult{
		SuccessCount: 2,
		FailureCount: 1,
		Errors: []*DeleteUsersErrorInfo{
			{Index: 1, Reason: "NOT_DISABLED : Disable the account before batch deletion."},
		},
	}
	if diff := cmp.Diff(want, result); diff != "" {
		t.Errorf("DeleteUsers() mismatch (-want +got):\n%s", diff)
	}

	r, body := s.request(t, 0)
	checkLiveRequest(t, r, http.MethodPost, "/accounts:batchDelete")
	wantBody := map[string]interface{}{
		"localIds": []interface{}{"uid1", "uid2", "uid3"},
		"force":    true,
	}
	if diff := cmp.Diff(wantBody, body); diff != "" {
		t.Errorf("Body mismatch (-want +got):\n%s", diff)
	}
}

func TestInvalidDeleteUsers(t *testing.T) {
	s := echoServer(`{}`)
	defer s.Close()
	client := newLiveTestClient(t, s)

	result, err := client.DeleteUsers(context.Background(), nil)
	if err != nil || result.SuccessCount != 0 || result.FailureCount != 0 {
		t.Errorf("DeleteUsers(nil) = (%v, %v); want = (empty, nil)", result, err)
	}

	tooMany := make([]string, maxDeleteUsersIDs+1)
	for i := range tooMany {
		tooMany[i] = "uid"
	}
	if _, err := client.DeleteUsers(context.Background(), tooMany); err == nil {
		t.Error("DeleteUsers(too many) = nil; want = error")
	}
	if _, err := client.DeleteUsers(context.Background(), []string{"ok", ""}); err == nil {
		t.Error("DeleteUsers(empty uid) = nil; want = error")
	}
	if s.count() != 0 {
		t.Errorf("Requests = %d; want = 0", s.count())
	}
}

func TestRedactedPasswordHash(t *testing.T) {
	r := &userQueryResponse{UID: "uid", PasswordHash: "UkVEQUNURUQ="}
	eu, err := r.makeExportedUserRecord()
	if err != nil {
		t.Fatal(err)
	}
	if eu.PasswordHash != "" {
		t.Errorf("PasswordHash = %q; want = %q", eu.PasswordHash, "")
	}
}

func TestInvalidCustomAttributes(t *testing.T) {
	s := echoServer(`{"users": [{"localId": "uid", "customAttributes": "not json"}]}`)
	defer s.Close()
	client := newLiveTestClient(t, s)

	_, err := client.GetUser(context.Background(), "uid")
	if !internal.HasErrorKind(err, internal.KindResponseDecode) {
		t.Errorf("GetUser() = %v; want = %s", err, internal.KindResponseDecode)
	}
}
