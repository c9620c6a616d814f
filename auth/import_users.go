// Copyright 2018 Google Inc. All Rights Reserved.
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
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/fbadmin/admin-sdk-go/internal"
	"github.com/fbadmin/admin-sdk-go/ptr"
)

const maxImportUsers = 1000

// UserToImport represents a user account that can be bulk imported into Firebase Auth.
type UserToImport struct {
	info   *importedUser
	claims map[string]interface{}
}

type importedUser struct {
	UID              string          `json:"localId"`
	Email            string          `json:"email,omitempty"`
	DisplayName      string          `json:"displayName,omitempty"`
	PhotoURL         string          `json:"photoUrl,omitempty"`
	PhoneNumber      string          `json:"phoneNumber,omitempty"`
	CreatedAt        int64           `json:"createdAt,string,omitempty"`
	LastLoginAt      int64           `json:"lastLoginAt,string,omitempty"`
	Disabled         *bool           `json:"disabled,omitempty"`
	EmailVerified    *bool           `json:"emailVerified,omitempty"`
	PasswordHash     string          `json:"passwordHash,omitempty"`
	Salt             string          `json:"salt,omitempty"`
	CustomAttributes string          `json:"customAttributes,omitempty"`
	ProviderUserInfo []*UserProvider `json:"providerUserInfo,omitempty"`
}

// UserImportOption is an option for the ImportUsers() function.
type UserImportOption interface {
	applyTo(req *importUsersRequest) error
}

type importUsersRequest struct {
	Users []*importedUser `json:"users"`
	*internal.HashConfig
}

// UserImportResult represents the result of an ImportUsers() call.
type UserImportResult struct {
	SuccessCount int
	FailureCount int
	Errors       []*ErrorInfo
}

// ErrorInfo represents an error encountered while importing a single user account.
//
// The Index field corresponds to the index of the failed user in the users array that was passed
// to ImportUsers().
type ErrorInfo struct {
	Index  int    `json:"index"`
	Reason string `json:"message"`
}

type importUsersResponse struct {
	Errors []*ErrorInfo `json:"error"`
}

// ImportUsers imports an array of users to Firebase Auth.
//
// No more than 1000 users can be imported in a single call. If at least one user specifies a
// password, a UserImportHash must be specified as an option.
func (c *Client) ImportUsers(ctx context.Context, users []*UserToImport, opts ...UserImportOption) (*UserImportResult, error) {
	if len(users) == 0 {
		return nil, errors.New("users list must not be empty")
	}
	if len(users) > maxImportUsers {
		return nil, fmt.Errorf("users list must not contain more than %d elements", maxImportUsers)
	}

	var merr *multierror.Error
	var validated []*importedUser
	hashRequired := false
	for idx, u := range users {
		vu, err := u.validatedUserInfo()
		if err != nil {
			merr = multierror.Append(merr, fmt.Errorf("user at index %d: %v", idx, err))
			continue
		}
		if vu.PasswordHash != "" {
			hashRequired = true
		}
		validated = append(validated, vu)
	}
	if err := merr.ErrorOrNil(); err != nil {
		return nil, err
	}

	req := &importUsersRequest{Users: validated}
	for _, opt := range opts {
		if err := opt.applyTo(req); err != nil {
			return nil, err
		}
	}
	if hashRequired && (req.HashConfig == nil || req.HashAlgorithm == "") {
		return nil, errors.New("hash algorithm option is required to import users with passwords")
	}

	resp, err := post[*importUsersRequest, importUsersResponse](ctx, c, internal.AuthImportUsers, req)
	if err != nil {
		return nil, err
	}
	return &UserImportResult{
		SuccessCount: len(users) - len(resp.Errors),
		FailureCount: len(resp.Errors),
		Errors:       resp.Errors,
	}, nil
}

// UID setter. This field is required.
func (u *UserToImport) UID(uid string) *UserToImport {
	u.userInfo().UID = uid
	return u
}

// Email setter.
func (u *UserToImport) Email(email string) *UserToImport {
	u.userInfo().Email = email
	return u
}

// DisplayName setter.
func (u *UserToImport) DisplayName(displayName string) *UserToImport {
	u.userInfo().DisplayName = displayName
	return u
}

// PhotoURL setter.
func (u *UserToImport) PhotoURL(url string) *UserToImport {
	u.userInfo().PhotoURL = url
	return u
}

// PhoneNumber setter.
func (u *UserToImport) PhoneNumber(phoneNumber string) *UserToImport {
	u.userInfo().PhoneNumber = phoneNumber
	return u
}

// Metadata setter.
func (u *UserToImport) Metadata(metadata *UserMetadata) *UserToImport {
	info := u.userInfo()
	info.CreatedAt = metadata.CreationTimestamp
	info.LastLoginAt = metadata.LastLogInTimestamp
	return u
}

// UserProvider represents a user identity provider.
//
// One or more user providers can be specified for each user when importing in bulk.
// See UserToImport type.
type UserProvider struct {
	UID         string `json:"rawId"`
	ProviderID  string `json:"providerId"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	PhotoURL    string `json:"photoUrl,omitempty"`
}

// ProviderData setter.
func (u *UserToImport) ProviderData(providers []*UserProvider) *UserToImport {
	u.userInfo().ProviderUserInfo = providers
	return u
}

// CustomClaims setter.
func (u *UserToImport) CustomClaims(claims map[string]interface{}) *UserToImport {
	u.claims = claims
	return u
}

// Disabled setter.
func (u *UserToImport) Disabled(disabled bool) *UserToImport {
	u.userInfo().Disabled = ptr.Bool(disabled)
	return u
}

// EmailVerified setter.
func (u *UserToImport) EmailVerified(emailVerified bool) *UserToImport {
	u.userInfo().EmailVerified = ptr.Bool(emailVerified)
	return u
}

// PasswordHash setter. When set a UserImportHash must be specified as an option to call
// ImportUsers().
func (u *UserToImport) PasswordHash(password []byte) *UserToImport {
	u.userInfo().PasswordHash = base64.RawURLEncoding.EncodeToString(password)
	return u
}

// PasswordSalt setter.
func (u *UserToImport) PasswordSalt(salt []byte) *UserToImport {
	u.userInfo().Salt = base64.RawURLEncoding.EncodeToString(salt)
	return u
}

func (u *UserToImport) userInfo() *importedUser {
	if u.info == nil {
		u.info = &importedUser{}
	}
	return u.info
}

func (u *UserToImport) validatedUserInfo() (*importedUser, error) {
	if u == nil || u.info == nil {
		return nil, errors.New("no parameters are set on the user to import")
	}
	info := *u.info
	if err := validateUID(info.UID); err != nil {
		return nil, err
	}
	if info.Email != "" {
		if err := validateEmail(info.Email); err != nil {
			return nil, err
		}
	}
	if info.PhoneNumber != "" {
		if err := validatePhone(info.PhoneNumber); err != nil {
			return nil, err
		}
	}
	if len(u.claims) > 0 {
		cc, err := marshalCustomClaims(u.claims)
		if err != nil {
			return nil, err
		}
		info.CustomAttributes = cc
	}

	for _, p := range info.ProviderUserInfo {
		if p.UID == "" {
			return nil, errors.New("user provider must specify a uid")
		}
		if p.ProviderID == "" {
			return nil, errors.New("user provider must specify a provider ID")
		}
	}
	return &info, nil
}

// WithHash returns a UserImportOption that specifies a hash configuration.
func WithHash(hash UserImportHash) UserImportOption {
	return withHash{hash}
}

// UserImportHash represents a hash algorithm and the associated configuration that can be used to
// hash user passwords.
//
// A UserImportHash must be specified in the form of a UserImportOption when importing users with
// passwords. See ImportUsers() and WithHash() functions.
type UserImportHash interface {
	Config() (internal.HashConfig, error)
}

type withHash struct {
	hash UserImportHash
}

func (w withHash) applyTo(req *importUsersRequest) error {
	conf, err := w.hash.Config()
	if err != nil {
		return err
	}
	req.HashConfig = &conf
	return nil
}
