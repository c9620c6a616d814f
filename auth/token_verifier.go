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
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/fbadmin/admin-sdk-go/internal"
	"github.com/fbadmin/admin-sdk-go/internal/logging"
)

const (
	idTokenCertURL            = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"
	idTokenIssuerPrefix       = "https://securetoken.google.com/"
	sessionCookieCertURL      = "https://identitytoolkit.googleapis.com/v1/sessionCookiePublicKeys"
	sessionCookieIssuerPrefix = "https://session.firebase.google.com/"

	clockSkew          = 5 * time.Minute
	keyRefreshInterval = time.Hour
	keyRefreshLimit    = 5 * time.Minute
	keyRefreshTimeout  = 10 * time.Second
	maxSubjectLength   = 128
)

var (
	// ErrIDTokenInvalid is matched by errors.Is for malformed, unsigned or mis-scoped ID tokens.
	ErrIDTokenInvalid = errors.New("invalid ID token")
	// ErrIDTokenExpired is matched by errors.Is for ID tokens past their expiry time.
	ErrIDTokenExpired = errors.New("ID token has expired")
	// ErrSessionCookieInvalid is matched by errors.Is for rejected session cookies.
	ErrSessionCookieInvalid = errors.New("invalid session cookie")
	// ErrSessionCookieExpired is matched by errors.Is for session cookies past their expiry time.
	ErrSessionCookieExpired = errors.New("session cookie has expired")

	errTokenExpired = errors.New("token has expired")
)

// timeNow is the clock used for token validation.
var timeNow = time.Now

// Token represents a decoded Firebase ID token or session cookie.
//
// Token provides typed accessors to the common JWT fields such as Audience (aud) and Expires
// (exp). Additionally it provides a UID field, which indicates the user ID of the account to
// which this token belongs. Any additional JWT claims can be accessed via the Claims map.
type Token struct {
	AuthTime int64
	Issuer   string
	Audience string
	Expires  int64
	IssuedAt int64
	Subject  string
	UID      string
	Firebase FirebaseInfo
	Claims   map[string]interface{}
}

// FirebaseInfo represents the information about the sign-in event, including which auth
// provider was used and provider-specific identity details.
type FirebaseInfo struct {
	SignInProvider string
	Tenant         string
	Identities     map[string]interface{}
}

// TokenVerifier verifies Firebase ID tokens or session cookies issued for a single project.
//
// Live verifiers check the RS256 signature against a JWK set that is fetched on first use and
// refreshed in the background. Emulated verifiers accept the unsigned tokens minted by the
// Auth emulator. Both apply the same claim checks.
type TokenVerifier struct {
	shortName    string
	projectID    string
	issuerPrefix string
	jwksURL      string
	invalid      error
	expired      error
	emulated     bool
	httpClient   *http.Client
	logger       *zap.SugaredLogger

	mu   sync.Mutex
	jwks *keyfunc.JWKS
}

// NewIDTokenVerifier creates a verifier for Firebase ID tokens.
//
// This function can only be invoked from within the SDK. Client applications should access the
// verifier through firebase.App.
func NewIDTokenVerifier(ctx context.Context, conf *internal.TokenVerifierConfig) (*TokenVerifier, error) {
	return newTokenVerifier(ctx, conf, &TokenVerifier{
		shortName:    "ID token",
		issuerPrefix: idTokenIssuerPrefix,
		jwksURL:      idTokenCertURL,
		invalid:      ErrIDTokenInvalid,
		expired:      ErrIDTokenExpired,
	})
}

// NewSessionCookieVerifier creates a verifier for Firebase session cookies.
func NewSessionCookieVerifier(ctx context.Context, conf *internal.TokenVerifierConfig) (*TokenVerifier, error) {
	return newTokenVerifier(ctx, conf, &TokenVerifier{
		shortName:    "session cookie",
		issuerPrefix: sessionCookieIssuerPrefix,
		jwksURL:      sessionCookieCertURL,
		invalid:      ErrSessionCookieInvalid,
		expired:      ErrSessionCookieExpired,
	})
}

func newTokenVerifier(ctx context.Context, conf *internal.TokenVerifierConfig, v *TokenVerifier) (*TokenVerifier, error) {
	if conf.ProjectID == "" {
		return nil, fmt.Errorf("project ID is required to verify %ss", v.shortName)
	}
	v.projectID = conf.ProjectID
	v.emulated = conf.Emulated
	v.httpClient = conf.HTTPClient
	if v.httpClient == nil {
		v.httpClient = http.DefaultClient
	}
	v.logger = conf.Logger
	if v.logger == nil {
		v.logger = logging.FromContext(ctx)
	}
	return v, nil
}

// VerifyIDToken verifies the signature and payload of the provided ID token.
//
// VerifyIDToken accepts a signed JWT token string, and verifies that it is current, issued for
// the correct Firebase project, and signed by the Google Firebase services in the cloud. It
// returns a Token containing the decoded claims in the input JWT.
//
// This does not check whether or not the token has been revoked.
func (v *TokenVerifier) VerifyIDToken(ctx context.Context, idToken string) (*Token, error) {
	return v.verify(ctx, idToken)
}

// VerifySessionCookie verifies the signature and payload of the provided session cookie.
func (v *TokenVerifier) VerifySessionCookie(ctx context.Context, cookie string) (*Token, error) {
	return v.verify(ctx, cookie)
}

// Close stops the background refresh of the public keys, if one was started.
func (v *TokenVerifier) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.jwks != nil {
		v.jwks.EndBackground()
		v.jwks = nil
	}
}

func (v *TokenVerifier) verify(ctx context.Context, token string) (*Token, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: %s must be a non-empty string", v.invalid, v.shortName)
	}

	methods := []string{jwt.SigningMethodRS256.Alg()}
	var keyFunc jwt.Keyfunc
	if v.emulated {
		methods = []string{jwt.SigningMethodNone.Alg()}
		keyFunc = func(*jwt.Token) (interface{}, error) {
			return jwt.UnsafeAllowNoneSignatureType, nil
		}
	} else {
		jwks, err := v.keySet(ctx)
		if err != nil {
			return nil, err
		}
		keyFunc = jwks.Keyfunc
	}

	rc := rawClaims{}
	if _, err := jwt.ParseWithClaims(token, &rc, keyFunc, jwt.WithValidMethods(methods)); err != nil {
		if errors.Is(err, errTokenExpired) {
			return nil, fmt.Errorf("%w: %w", v.expired, err)
		}
		return nil, fmt.Errorf("%w: %w", v.invalid, err)
	}

	if aud, _ := rc["aud"].(string); aud != v.projectID {
		return nil, fmt.Errorf("%w: %s has invalid 'aud' (audience) claim; expected %q but got %q",
			v.invalid, v.shortName, v.projectID, aud)
	}
	wantIssuer := v.issuerPrefix + v.projectID
	if iss, _ := rc["iss"].(string); iss != wantIssuer {
		return nil, fmt.Errorf("%w: %s has invalid 'iss' (issuer) claim; expected %q but got %q",
			v.invalid, v.shortName, wantIssuer, iss)
	}
	return rc.toToken(), nil
}

// keySet returns the JWK set of the verifier, fetching it on first use. A failed fetch is not
// cached, so the next verification retries.
func (v *TokenVerifier) keySet(ctx context.Context) (*keyfunc.JWKS, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.jwks != nil {
		return v.jwks, nil
	}

	jwks, err := keyfunc.Get(v.jwksURL, keyfunc.Options{
		Client:            v.httpClient,
		RefreshInterval:   keyRefreshInterval,
		RefreshRateLimit:  keyRefreshLimit,
		RefreshTimeout:    keyRefreshTimeout,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			v.logger.Warnw("failed to refresh public keys", "url", v.jwksURL, "error", err)
		},
	})
	if err != nil {
		return nil, internal.WrapError(internal.KindFailedToSendRequest, err,
			fmt.Sprintf("failed to fetch public keys for %s verification", v.shortName))
	}
	v.logger.Debugw("fetched public keys", "url", v.jwksURL, "kids", jwks.KIDs())
	v.jwks = jwks
	return jwks, nil
}

type rawClaims map[string]interface{}

// Valid checks the time-based claims and the subject, allowing for clock skew.
func (c rawClaims) Valid() error {
	now := timeNow()
	iat, ok := c["iat"].(float64)
	if !ok || time.Unix(int64(iat), 0).After(now.Add(clockSkew)) {
		return fmt.Errorf("token has invalid 'iat' (issued-at) claim: %v", c["iat"])
	}
	exp, ok := c["exp"].(float64)
	if !ok {
		return fmt.Errorf("token has invalid 'exp' (expiry) claim: %v", c["exp"])
	}
	if time.Unix(int64(exp), 0).Add(clockSkew).Before(now) {
		return errTokenExpired
	}
	if sub, ok := c["sub"].(string); !ok || sub == "" || len(sub) > maxSubjectLength {
		return fmt.Errorf("token has invalid 'sub' (subject) claim: %v", c["sub"])
	}
	return nil
}

func (c rawClaims) toToken() *Token {
	num := func(k string) int64 {
		f, _ := c[k].(float64)
		return int64(f)
	}
	str := func(k string) string {
		s, _ := c[k].(string)
		return s
	}

	t := &Token{
		AuthTime: num("auth_time"),
		Issuer:   str("iss"),
		Audience: str("aud"),
		Expires:  num("exp"),
		IssuedAt: num("iat"),
		Subject:  str("sub"),
		UID:      str("sub"),
		Claims:   make(map[string]interface{}),
	}
	if fb, ok := c["firebase"].(map[string]interface{}); ok {
		t.Firebase.SignInProvider, _ = fb["sign_in_provider"].(string)
		t.Firebase.Tenant, _ = fb["tenant"].(string)
		t.Firebase.Identities, _ = fb["identities"].(map[string]interface{})
	}
	for k, v := range c {
		switch k {
		case "auth_time", "iss", "aud", "exp", "iat", "sub", "firebase":
		default:
			t.Claims[k] = v
		}
	}
	return t
}

// IsIDTokenInvalid checks if the given error was due to an invalid ID token.
func IsIDTokenInvalid(err error) bool {
	return errors.Is(err, ErrIDTokenInvalid)
}

// IsIDTokenExpired checks if the given error was due to an expired ID token.
func IsIDTokenExpired(err error) bool {
	return errors.Is(err, ErrIDTokenExpired)
}

// IsSessionCookieInvalid checks if the given error was due to an invalid session cookie.
func IsSessionCookieInvalid(err error) bool {
	return errors.Is(err, ErrSessionCookieInvalid)
}

// IsSessionCookieExpired checks if the given error was due to an expired session cookie.
func IsSessionCookieExpired(err error) bool {
	return errors.Is(err, ErrSessionCookieExpired)
}
