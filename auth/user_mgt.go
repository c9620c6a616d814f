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
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/fbadmin/admin-sdk-go/internal"
	"github.com/fbadmin/admin-sdk-go/ptr"
)

const (
	maxLenPayloadCC   = 1000
	defaultProviderID = "firebase"
	maxGetUsersIDs    = 100
	maxDeleteUsersIDs = 1000
)

var reservedClaims = []string{
	"acr", "amr", "at_hash", "aud", "auth_time", "azp", "cnf", "c_hash",
	"exp", "firebase", "iat", "iss", "jti", "nbf", "nonce", "sub",
}

// UserInfo is a collection of standard profile information for a user.
type UserInfo struct {
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	PhotoURL    string `json:"photoUrl,omitempty"`
	// In the ProviderUserInfo[] ProviderID can be a short domain name (e.g. google.com),
	// or the identity of an OpenID identity provider.
	// In UserRecord.UserInfo it will return the constant string "firebase".
	ProviderID string `json:"providerId,omitempty"`
	UID        string `json:"rawId,omitempty"`
}

// UserMetadata contains additional metadata associated with a user account.
// Timestamps are in milliseconds since epoch.
type UserMetadata struct {
	CreationTimestamp  int64
	LastLogInTimestamp int64
	// The time at which the user was last active (ID token refreshed), or 0 if
	// the user was never active.
	LastRefreshTimestamp int64
}

// UserRecord contains metadata associated with a Firebase user account.
type UserRecord struct {
	*UserInfo
	CustomClaims           map[string]interface{}
	Disabled               bool
	EmailVerified          bool
	ProviderUserInfo       []*UserInfo
	TokensValidAfterMillis int64 // milliseconds since epoch.
	UserMetadata           *UserMetadata
}

// ExportedUserRecord is the returned user value used when listing all the users.
type ExportedUserRecord struct {
	*UserRecord
	PasswordHash string
	PasswordSalt string
}

// UserToCreate is the parameter struct for the CreateUser function.
type UserToCreate struct {
	req createUserRequest
}

type createUserRequest struct {
	UID           *string `json:"localId,omitempty"`
	DisplayName   *string `json:"displayName,omitempty"`
	Email         *string `json:"email,omitempty"`
	EmailVerified *bool   `json:"emailVerified,omitempty"`
	Password      *string `json:"password,omitempty"`
	PhoneNumber   *string `json:"phoneNumber,omitempty"`
	PhotoURL      *string `json:"photoUrl,omitempty"`
	Disabled      *bool   `json:"disabled,omitempty"`
}

// Disabled setter.
func (u *UserToCreate) Disabled(disabled bool) *UserToCreate {
	u.req.Disabled = ptr.Bool(disabled)
	return u
}

// DisplayName setter.
func (u *UserToCreate) DisplayName(name string) *UserToCreate {
	u.req.DisplayName = ptr.String(name)
	return u
}

// Email setter.
func (u *UserToCreate) Email(email string) *UserToCreate {
	u.req.Email = ptr.String(email)
	return u
}

// EmailVerified setter.
func (u *UserToCreate) EmailVerified(verified bool) *UserToCreate {
	u.req.EmailVerified = ptr.Bool(verified)
	return u
}

// Password setter.
func (u *UserToCreate) Password(pw string) *UserToCreate {
	u.req.Password = ptr.String(pw)
	return u
}

// PhoneNumber setter.
func (u *UserToCreate) PhoneNumber(phone string) *UserToCreate {
	u.req.PhoneNumber = ptr.String(phone)
	return u
}

// PhotoURL setter.
func (u *UserToCreate) PhotoURL(url string) *UserToCreate {
	u.req.PhotoURL = ptr.String(url)
	return u
}

// UID setter.
func (u *UserToCreate) UID(uid string) *UserToCreate {
	u.req.UID = ptr.String(uid)
	return u
}

func (u *UserToCreate) validatedRequest() (*createUserRequest, error) {
	if u == nil {
		return &createUserRequest{}, nil
	}

	req := u.req
	var merr *multierror.Error
	check := func(v *string, validate func(string) error) {
		if v != nil {
			merr = multierror.Append(merr, validate(*v))
		}
	}
	check(req.UID, validateUID)
	check(req.DisplayName, validateDisplayName)
	check(req.Email, validateEmail)
	check(req.Password, validatePassword)
	check(req.PhoneNumber, validatePhone)
	check(req.PhotoURL, validatePhotoURL)
	if err := merr.ErrorOrNil(); err != nil {
		return nil, err
	}
	return &req, nil
}

// UserToUpdate is the parameter struct for the UpdateUser function.
type UserToUpdate struct {
	displayName   *string
	email         *string
	emailVerified *bool
	password      *string
	phoneNumber   *string
	photoURL      *string
	disabled      *bool
	customClaims  map[string]interface{}
	claimsSet     bool
}

type updateUserRequest struct {
	LocalID          string   `json:"localId"`
	DisplayName      *string  `json:"displayName,omitempty"`
	Email            *string  `json:"email,omitempty"`
	EmailVerified    *bool    `json:"emailVerified,omitempty"`
	Password         *string  `json:"password,omitempty"`
	PhoneNumber      *string  `json:"phoneNumber,omitempty"`
	PhotoURL         *string  `json:"photoUrl,omitempty"`
	DisableUser      *bool    `json:"disableUser,omitempty"`
	CustomAttributes *string  `json:"customAttributes,omitempty"`
	DeleteAttribute  []string `json:"deleteAttribute,omitempty"`
	DeleteProvider   []string `json:"deleteProvider,omitempty"`
}

// CustomClaims setter. A nil or empty map removes all the custom claims of the user.
func (u *UserToUpdate) CustomClaims(claims map[string]interface{}) *UserToUpdate {
	u.customClaims = claims
	u.claimsSet = true
	return u
}

// Disabled setter.
func (u *UserToUpdate) Disabled(disabled bool) *UserToUpdate {
	u.disabled = ptr.Bool(disabled)
	return u
}

// DisplayName setter. Set to empty string to remove the display name from the user account.
func (u *UserToUpdate) DisplayName(name string) *UserToUpdate {
	u.displayName = ptr.String(name)
	return u
}

// Email setter.
func (u *UserToUpdate) Email(email string) *UserToUpdate {
	u.email = ptr.String(email)
	return u
}

// EmailVerified setter.
func (u *UserToUpdate) EmailVerified(verified bool) *UserToUpdate {
	u.emailVerified = ptr.Bool(verified)
	return u
}

// Password setter.
func (u *UserToUpdate) Password(pw string) *UserToUpdate {
	u.password = ptr.String(pw)
	return u
}

// PhoneNumber setter. Set to empty string to remove the phone number and the corresponding
// auth provider from the user account.
func (u *UserToUpdate) PhoneNumber(phone string) *UserToUpdate {
	u.phoneNumber = ptr.String(phone)
	return u
}

// PhotoURL setter. Set to empty string to remove the photo URL from the user account.
func (u *UserToUpdate) PhotoURL(url string) *UserToUpdate {
	u.photoURL = ptr.String(url)
	return u
}

func (u *UserToUpdate) isEmpty() bool {
	return u.displayName == nil && u.email == nil && u.emailVerified == nil && u.password == nil &&
		u.phoneNumber == nil && u.photoURL == nil && u.disabled == nil && !u.claimsSet
}

func (u *UserToUpdate) validatedRequest(uid string) (*updateUserRequest, error) {
	if u == nil || u.isEmpty() {
		return nil, errors.New("update parameters must not be nil or empty")
	}
	req := &updateUserRequest{
		LocalID:       uid,
		Email:         u.email,
		EmailVerified: u.emailVerified,
		Password:      u.password,
		DisableUser:   u.disabled,
	}

	var merr *multierror.Error
	merr = multierror.Append(merr, validateUID(uid))
	if u.email != nil {
		merr = multierror.Append(merr, validateEmail(*u.email))
	}
	if u.password != nil {
		merr = multierror.Append(merr, validatePassword(*u.password))
	}

	if u.displayName != nil {
		if *u.displayName == "" {
			req.DeleteAttribute = append(req.DeleteAttribute, "DISPLAY_NAME")
		} else {
			req.DisplayName = u.displayName
		}
	}
	if u.photoURL != nil {
		if *u.photoURL == "" {
			req.DeleteAttribute = append(req.DeleteAttribute, "PHOTO_URL")
		} else {
			req.PhotoURL = u.photoURL
		}
	}
	if u.phoneNumber != nil {
		if *u.phoneNumber == "" {
			req.DeleteProvider = append(req.DeleteProvider, "phone")
		} else {
			merr = multierror.Append(merr, validatePhone(*u.phoneNumber))
			req.PhoneNumber = u.phoneNumber
		}
	}
	if u.claimsSet {
		cc, err := marshalCustomClaims(u.customClaims)
		merr = multierror.Append(merr, err)
		req.CustomAttributes = ptr.String(cc)
	}

	if err := merr.ErrorOrNil(); err != nil {
		return nil, err
	}
	return req, nil
}

type userIDResponse struct {
	UID string `json:"localId"`
}

func (r *userIDResponse) ValidateResponse() error {
	if r.UID == "" {
		return errors.New("user id is missing from the response")
	}
	return nil
}

// CreateUser creates a new user with the specified properties.
func (c *Client) CreateUser(ctx context.Context, user *UserToCreate) (*UserRecord, error) {
	req, err := user.validatedRequest()
	if err != nil {
		return nil, err
	}
	resp, err := post[*createUserRequest, userIDResponse](ctx, c, internal.AuthCreateUser, req)
	if err != nil {
		return nil, err
	}
	return c.GetUser(ctx, resp.UID)
}

// UpdateUser updates an existing user account with the specified properties.
func (c *Client) UpdateUser(ctx context.Context, uid string, user *UserToUpdate) (*UserRecord, error) {
	if err := c.updateUser(ctx, uid, user); err != nil {
		return nil, err
	}
	return c.GetUser(ctx, uid)
}

// SetCustomUserClaims sets additional claims on an existing user account.
//
// Custom claims set via this function can be used to define user roles and privilege levels.
// These claims propagate to all the devices where the user is already signed in (after token
// expiration or when token refresh is forced), and next time the user signs in. The claims
// can be accessed via the user's ID token JWT. If a reserved OIDC claim is specified (sub, iat,
// iss, etc), an error is thrown. Claims payload must also not be larger then 1000 characters
// when serialized into a JSON string.
func (c *Client) SetCustomUserClaims(ctx context.Context, uid string, customClaims map[string]interface{}) error {
	return c.updateUser(ctx, uid, (&UserToUpdate{}).CustomClaims(customClaims))
}

func (c *Client) updateUser(ctx context.Context, uid string, user *UserToUpdate) error {
	req, err := user.validatedRequest(uid)
	if err != nil {
		return err
	}
	_, err = post[*updateUserRequest, userIDResponse](ctx, c, internal.AuthUpdateUser, req)
	return err
}

// DeleteUser deletes the user by the given UID.
func (c *Client) DeleteUser(ctx context.Context, uid string) error {
	if err := validateUID(uid); err != nil {
		return err
	}
	req := map[string]string{"localId": uid}
	_, err := post[map[string]string, internal.Empty](ctx, c, internal.AuthDeleteUser, req)
	return err
}

// DeleteUsersResult is the result of the DeleteUsers operation.
type DeleteUsersResult struct {
	SuccessCount int
	FailureCount int
	Errors       []*DeleteUsersErrorInfo
}

// DeleteUsersErrorInfo represents an error encountered while deleting a user account.
//
// The Index field corresponds to the index of the failed user in the uids array that was passed
// to DeleteUsers.
type DeleteUsersErrorInfo struct {
	Index  int    `json:"index,omitempty"`
	Reason string `json:"message,omitempty"`
}

type batchDeleteRequest struct {
	LocalIDs []string `json:"localIds"`
	Force    bool     `json:"force"`
}

type batchDeleteResponse struct {
	Errors []*DeleteUsersErrorInfo `json:"errors"`
}

// DeleteUsers deletes the users specified by the given identifiers.
//
// Deleting a non-existing user won't generate an error. (i.e. this method is idempotent.)
// Non-existing users are considered to be successfully deleted, and are therefore counted in
// the DeleteUsersResult.SuccessCount value.
//
// A maximum of 1000 identifiers may be supplied. If more than 1000 identifiers are supplied,
// this method returns an error.
//
// This API is currently rate limited at the server to 1 QPS. If you exceed this, you may get a
// quota exceeded error. Therefore, if you want to delete more than 1000 users, you may need to
// add a delay to ensure you don't go over the limit.
func (c *Client) DeleteUsers(ctx context.Context, uids []string) (*DeleteUsersResult, error) {
	if len(uids) == 0 {
		return &DeleteUsersResult{}, nil
	}
	if len(uids) > maxDeleteUsersIDs {
		return nil, fmt.Errorf("`uids` parameter must have <= %d entries", maxDeleteUsersIDs)
	}

	var merr *multierror.Error
	for _, uid := range uids {
		merr = multierror.Append(merr, validateUID(uid))
	}
	if err := merr.ErrorOrNil(); err != nil {
		return nil, err
	}

	resp, err := post[*batchDeleteRequest, batchDeleteResponse](
		ctx, c, internal.AuthDeleteUsers, &batchDeleteRequest{LocalIDs: uids, Force: true})
	if err != nil {
		return nil, err
	}

	return &DeleteUsersResult{
		SuccessCount: len(uids) - len(resp.Errors),
		FailureCount: len(resp.Errors),
		Errors:       resp.Errors,
	}, nil
}

// UserIdentifier identifies a user to be looked up.
type UserIdentifier interface {
	matches(ur *UserRecord) bool
	populate(req *getAccountInfoRequest)
}

// UIDIdentifier is used for looking up an account by uid.
//
// See GetUsers function.
type UIDIdentifier struct {
	UID string
}

func (id UIDIdentifier) matches(ur *UserRecord) bool {
	return id.UID == ur.UID
}

func (id UIDIdentifier) populate(req *getAccountInfoRequest) {
	req.LocalID = append(req.LocalID, id.UID)
}

// EmailIdentifier is used for looking up an account by email.
//
// See GetUsers function.
type EmailIdentifier struct {
	Email string
}

func (id EmailIdentifier) matches(ur *UserRecord) bool {
	return id.Email == ur.Email
}

func (id EmailIdentifier) populate(req *getAccountInfoRequest) {
	req.Email = append(req.Email, id.Email)
}

// PhoneIdentifier is used for looking up an account by phone number.
//
// See GetUsers function.
type PhoneIdentifier struct {
	PhoneNumber string
}

func (id PhoneIdentifier) matches(ur *UserRecord) bool {
	return id.PhoneNumber == ur.PhoneNumber
}

func (id PhoneIdentifier) populate(req *getAccountInfoRequest) {
	req.PhoneNumber = append(req.PhoneNumber, id.PhoneNumber)
}

type getAccountInfoRequest struct {
	LocalID     []string `json:"localId,omitempty"`
	Email       []string `json:"email,omitempty"`
	PhoneNumber []string `json:"phoneNumber,omitempty"`
}

type getAccountInfoResponse struct {
	Users []*userQueryResponse `json:"users"`
}

// GetUser gets the user data corresponding to the specified user ID.
func (c *Client) GetUser(ctx context.Context, uid string) (*UserRecord, error) {
	if err := validateUID(uid); err != nil {
		return nil, err
	}
	return c.getUser(ctx, UIDIdentifier{UID: uid}, fmt.Sprintf("cannot find user from uid: %q", uid))
}

// GetUserByEmail gets the user data corresponding to the specified email.
func (c *Client) GetUserByEmail(ctx context.Context, email string) (*UserRecord, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	return c.getUser(ctx, EmailIdentifier{Email: email}, fmt.Sprintf("cannot find user from email: %q", email))
}

// GetUserByPhoneNumber gets the user data corresponding to the specified user phone number.
func (c *Client) GetUserByPhoneNumber(ctx context.Context, phone string) (*UserRecord, error) {
	if err := validatePhone(phone); err != nil {
		return nil, err
	}
	return c.getUser(ctx, PhoneIdentifier{PhoneNumber: phone}, fmt.Sprintf("cannot find user from phone number: %q", phone))
}

func (c *Client) getUser(ctx context.Context, id UserIdentifier, notFound string) (*UserRecord, error) {
	req := &getAccountInfoRequest{}
	id.populate(req)
	resp, err := post[*getAccountInfoRequest, getAccountInfoResponse](ctx, c, internal.AuthGetUsers, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Users) == 0 {
		return nil, newUserNotFoundError(notFound)
	}

	eu, err := resp.Users[0].makeExportedUserRecord()
	if err != nil {
		return nil, err
	}
	return eu.UserRecord, nil
}

// GetUsersResult is the result of the GetUsers function.
type GetUsersResult struct {
	// Set of UserRecords corresponding to the set of users that were requested. Only users
	// that were found are listed here. The result set is unordered.
	Users []*UserRecord

	// Set of UserIdentifiers that were requested, but not found.
	NotFound []UserIdentifier
}

// GetUsers returns the user data corresponding to the specified identifiers.
//
// There are no ordering guarantees; in particular, the nth entry in the users result list is
// not guaranteed to correspond to the nth entry in the input parameters list.
//
// A maximum of 100 identifiers may be supplied. If more than 100 identifiers are supplied,
// this method returns an error.
func (c *Client) GetUsers(ctx context.Context, identifiers []UserIdentifier) (*GetUsersResult, error) {
	if len(identifiers) == 0 {
		return &GetUsersResult{[]*UserRecord{}, []UserIdentifier{}}, nil
	}
	if len(identifiers) > maxGetUsersIDs {
		return nil, fmt.Errorf("`identifiers` parameter must have <= %d entries", maxGetUsersIDs)
	}

	var merr *multierror.Error
	req := &getAccountInfoRequest{}
	for _, id := range identifiers {
		switch v := id.(type) {
		case UIDIdentifier:
			merr = multierror.Append(merr, validateUID(v.UID))
		case EmailIdentifier:
			merr = multierror.Append(merr, validateEmail(v.Email))
		case PhoneIdentifier:
			merr = multierror.Append(merr, validatePhone(v.PhoneNumber))
		default:
			merr = multierror.Append(merr, fmt.Errorf("unsupported identifier: %T", id))
			continue
		}
		id.populate(req)
	}
	if err := merr.ErrorOrNil(); err != nil {
		return nil, err
	}

	resp, err := post[*getAccountInfoRequest, getAccountInfoResponse](ctx, c, internal.AuthGetUsers, req)
	if err != nil {
		return nil, err
	}

	var users []*UserRecord
	for _, u := range resp.Users {
		eu, err := u.makeExportedUserRecord()
		if err != nil {
			return nil, err
		}
		users = append(users, eu.UserRecord)
	}

	var notFound []UserIdentifier
	for _, id := range identifiers {
		found := false
		for _, ur := range users {
			if id.matches(ur) {
				found = true
				break
			}
		}
		if !found {
			notFound = append(notFound, id)
		}
	}

	return &GetUsersResult{Users: users, NotFound: notFound}, nil
}

type userQueryResponse struct {
	UID                string      `json:"localId,omitempty"`
	DisplayName        string      `json:"displayName,omitempty"`
	Email              string      `json:"email,omitempty"`
	PhoneNumber        string      `json:"phoneNumber,omitempty"`
	PhotoURL           string      `json:"photoUrl,omitempty"`
	CreationTimestamp  int64       `json:"createdAt,string,omitempty"`
	LastLogInTimestamp int64       `json:"lastLoginAt,string,omitempty"`
	LastRefreshAt      string      `json:"lastRefreshAt,omitempty"`
	ProviderID         string      `json:"providerId,omitempty"`
	CustomAttributes   string      `json:"customAttributes,omitempty"`
	Disabled           bool        `json:"disabled,omitempty"`
	EmailVerified      bool        `json:"emailVerified,omitempty"`
	ProviderUserInfo   []*UserInfo `json:"providerUserInfo,omitempty"`
	PasswordHash       string      `json:"passwordHash,omitempty"`
	PasswordSalt       string      `json:"salt,omitempty"`
	ValidSinceSeconds  int64       `json:"validSince,string,omitempty"`
}

func (r *userQueryResponse) makeExportedUserRecord() (*ExportedUserRecord, error) {
	var customClaims map[string]interface{}
	if r.CustomAttributes != "" {
		if err := json.Unmarshal([]byte(r.CustomAttributes), &customClaims); err != nil {
			return nil, internal.WrapError(internal.KindResponseDecode, err, "invalid custom attributes")
		}
		if len(customClaims) == 0 {
			customClaims = nil
		}
	}

	// If the password hash is redacted (probably due to missing permissions) then clear it out,
	// similar to how the salt is returned. (Otherwise, it *looks* like a b64-encoded hash is
	// present, which is confusing.)
	hash := r.PasswordHash
	if hash == "UkVEQUNURUQ=" {
		hash = ""
	}

	var lastRefreshTimestamp int64
	if r.LastRefreshAt != "" {
		t, err := time.Parse(time.RFC3339, r.LastRefreshAt)
		if err != nil {
			return nil, internal.WrapError(internal.KindResponseDecode, err, "invalid last refresh time")
		}
		lastRefreshTimestamp = t.Unix() * 1000
	}

	return &ExportedUserRecord{
		UserRecord: &UserRecord{
			UserInfo: &UserInfo{
				DisplayName: r.DisplayName,
				Email:       r.Email,
				PhoneNumber: r.PhoneNumber,
				PhotoURL:    r.PhotoURL,
				UID:         r.UID,
				ProviderID:  defaultProviderID,
			},
			CustomClaims:           customClaims,
			Disabled:               r.Disabled,
			EmailVerified:          r.EmailVerified,
			ProviderUserInfo:       r.ProviderUserInfo,
			TokensValidAfterMillis: r.ValidSinceSeconds * 1000,
			UserMetadata: &UserMetadata{
				LastLogInTimestamp:   r.LastLogInTimestamp,
				CreationTimestamp:    r.CreationTimestamp,
				LastRefreshTimestamp: lastRefreshTimestamp,
			},
		},
		PasswordHash: hash,
		PasswordSalt: r.PasswordSalt,
	}, nil
}

func marshalCustomClaims(claims map[string]interface{}) (string, error) {
	if len(claims) == 0 {
		return "{}", nil
	}

	var merr *multierror.Error
	for _, key := range reservedClaims {
		if _, ok := claims[key]; ok {
			merr = multierror.Append(merr, fmt.Errorf("claim %q is reserved and must not be set", key))
		}
	}
	if err := merr.ErrorOrNil(); err != nil {
		return "", err
	}

	b, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("custom claims marshaling error: %v", err)
	}
	s := string(b)
	if len(s) > maxLenPayloadCC {
		return "", fmt.Errorf("serialized custom claims must not exceed %d characters", maxLenPayloadCC)
	}
	return s, nil
}

func validateDisplayName(val string) error {
	if val == "" {
		return errors.New("display name must be a non-empty string")
	}
	return nil
}

func validatePhotoURL(val string) error {
	if val == "" {
		return errors.New("photo url must be a non-empty string")
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return errors.New("email must be a non-empty string")
	}
	if parts := strings.Split(email, "@"); len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("malformed email string: %q", email)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("malformed email string: %q", email)
	}
	return nil
}

func validatePassword(val string) error {
	if len(val) < 6 {
		return errors.New("password must be a string at least 6 characters long")
	}
	return nil
}

func validateUID(uid string) error {
	if uid == "" {
		return errors.New("uid must be a non-empty string")
	}
	if len(uid) > 128 {
		return errors.New("uid string must not be longer than 128 characters")
	}
	return nil
}

func validatePhone(phone string) error {
	if phone == "" {
		return errors.New("phone number must be a non-empty string")
	}
	if !strings.HasPrefix(phone, "+") {
		return errors.New("phone number must be a valid, E.164 compliant identifier")
	}
	if _, err := strconv.ParseUint(strings.Map(keepDigits, phone), 10, 64); err != nil {
		return errors.New("phone number must be a valid, E.164 compliant identifier")
	}
	return nil
}

func keepDigits(r rune) rune {
	if r >= '0' && r <= '9' {
		return r
	}
	return -1
}
