// Copyright 2019 Google Inc. All Rights Reserved.
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
	"errors"
	"fmt"
	"net/url"

	"github.com/fbadmin/admin-sdk-go/internal"
)

// ActionCodeSettings specifies the required continue/state URL with optional Android and iOS settings. Used when
// invoking the email action link generation APIs.
type ActionCodeSettings struct {
	URL                   string `json:"continueUrl"`
	HandleCodeInApp       bool   `json:"canHandleCodeInApp"`
	IOSBundleID           string `json:"iOSBundleId,omitempty"`
	AndroidPackageName    string `json:"androidPackageName,omitempty"`
	AndroidMinimumVersion string `json:"androidMinimumVersion,omitempty"`
	AndroidInstallApp     bool   `json:"androidInstallApp,omitempty"`
	LinkDomain            string `json:"linkDomain,omitempty"`
}

func (settings *ActionCodeSettings) validate() error {
	if settings.URL == "" {
		return errors.New("URL must not be empty")
	}
	u, err := url.Parse(settings.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("malformed url string: %q", settings.URL)
	}
	if (settings.AndroidMinimumVersion != "" || settings.AndroidInstallApp) && settings.AndroidPackageName == "" {
		return errors.New("Android package name is required when specifying other Android settings")
	}
	return nil
}

type linkType string

const (
	emailLinkSignIn      linkType = "EMAIL_SIGNIN"
	emailVerification    linkType = "VERIFY_EMAIL"
	passwordReset        linkType = "PASSWORD_RESET"
	verifyAndChangeEmail linkType = "VERIFY_AND_CHANGE_EMAIL"
)

type oobCodeRequest struct {
	RequestType   linkType `json:"requestType"`
	Email         string   `json:"email"`
	NewEmail      string   `json:"newEmail,omitempty"`
	ReturnOobLink bool     `json:"returnOobLink"`
	*ActionCodeSettings
}

type oobCodeResponse struct {
	OOBLink string `json:"oobLink"`
}

func (r *oobCodeResponse) ValidateResponse() error {
	if r.OOBLink == "" {
		return errors.New("oob link is missing from the response")
	}
	return nil
}

// EmailVerificationLink generates the out-of-band email action link for email verification flows for the specified
// email address.
func (c *Client) EmailVerificationLink(ctx context.Context, email string) (string, error) {
	return c.EmailVerificationLinkWithSettings(ctx, email, nil)
}

// EmailVerificationLinkWithSettings generates the out-of-band email action link for email verification flows for the
// specified email address, using the action code settings provided.
func (c *Client) EmailVerificationLinkWithSettings(
	ctx context.Context, email string, settings *ActionCodeSettings) (string, error) {
	return c.generateEmailActionLink(ctx, &oobCodeRequest{
		RequestType:        emailVerification,
		Email:              email,
		ActionCodeSettings: settings,
	})
}

// PasswordResetLink generates the out-of-band email action link for password reset flows for the specified email
// address.
func (c *Client) PasswordResetLink(ctx context.Context, email string) (string, error) {
	return c.PasswordResetLinkWithSettings(ctx, email, nil)
}

// PasswordResetLinkWithSettings generates the out-of-band email action link for password reset flows for the
// specified email address, using the action code settings provided.
func (c *Client) PasswordResetLinkWithSettings(
	ctx context.Context, email string, settings *ActionCodeSettings) (string, error) {
	return c.generateEmailActionLink(ctx, &oobCodeRequest{
		RequestType:        passwordReset,
		Email:              email,
		ActionCodeSettings: settings,
	})
}

// EmailSignInLink generates the out-of-band email action link for email link sign-in flows, using the action
// code settings provided.
func (c *Client) EmailSignInLink(
	ctx context.Context, email string, settings *ActionCodeSettings) (string, error) {
	if settings == nil {
		return "", errors.New("ActionCodeSettings must not be nil when generating sign-in links")
	}
	return c.generateEmailActionLink(ctx, &oobCodeRequest{
		RequestType:        emailLinkSignIn,
		Email:              email,
		ActionCodeSettings: settings,
	})
}

// VerifyAndChangeEmailLink generates the out-of-band email action link for email verification and change flows for the
// specified email address.
func (c *Client) VerifyAndChangeEmailLink(ctx context.Context, email string, newEmail string) (string, error) {
	return c.VerifyAndChangeEmailLinkWithSettings(ctx, email, newEmail, nil)
}

// VerifyAndChangeEmailLinkWithSettings generates the out-of-band email action link for email verification and change
// flows for the specified email address, using the action code settings provided.
func (c *Client) VerifyAndChangeEmailLinkWithSettings(
	ctx context.Context, email string, newEmail string, settings *ActionCodeSettings) (string, error) {
	if newEmail == "" {
		return "", errors.New("newEmail must not be empty")
	}
	return c.generateEmailActionLink(ctx, &oobCodeRequest{
		RequestType:        verifyAndChangeEmail,
		Email:              email,
		NewEmail:           newEmail,
		ActionCodeSettings: settings,
	})
}

func (c *Client) generateEmailActionLink(ctx context.Context, req *oobCodeRequest) (string, error) {
	if req.Email == "" {
		return "", errors.New("email must not be empty")
	}
	if req.ActionCodeSettings != nil {
		if err := req.ActionCodeSettings.validate(); err != nil {
			return "", err
		}
	}

	req.ReturnOobLink = true
	resp, err := post[*oobCodeRequest, oobCodeResponse](ctx, c, internal.AuthSendOobCode, req)
	if err != nil {
		return "", err
	}
	return resp.OOBLink, nil
}
