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

// Package firebase is the entry point to the Firebase Admin SDK. It provides functionality for initializing App
// instances, which serve as the central entities that provide access to various other Firebase services exposed
// from the SDK.
//
// An App runs either live, against the production endpoints with OAuth2 credentials, or emulated, against the
// Firebase Local Emulator Suite without credentials. The services obtained from an App behave the same in both
// modes.
package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"cloud.google.com/go/firestore"
	"github.com/sethvargo/go-envconfig"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/transport"

	"github.com/fbadmin/admin-sdk-go/auth"
	"github.com/fbadmin/admin-sdk-go/credentials"
	"github.com/fbadmin/admin-sdk-go/internal"
	"github.com/fbadmin/admin-sdk-go/internal/logging"
	"github.com/fbadmin/admin-sdk-go/messaging"
	"github.com/fbadmin/admin-sdk-go/storage"
)

// Version of the Firebase Go Admin SDK.
const Version = "1.0.0"

// firebaseEnvName is the name of the environment variable with the Config.
const firebaseEnvName = "FIREBASE_CONFIG"

// An App holds configuration and state common to all Firebase services that are exposed from the SDK.
//
// The project ID of an App is resolved once, when the App is created. The credentials and the HTTP client
// of an App are shared by all the service clients it creates, and each client gets its own transport.
type App struct {
	creds            credentials.Provider
	projectID        string
	emulated         bool
	storageBucket    string
	authEmulatorHost string
	fcmEmulatorHost  string
	httpClient       *http.Client
	logger           *zap.SugaredLogger
	clientOpts       []option.ClientOption
	hc               *internal.HTTPClient
}

// Config represents the configuration used to initialize an App.
type Config struct {
	ProjectID     string `json:"projectId"`
	StorageBucket string `json:"storageBucket"`
}

// AppOption configures an App.
type AppOption func(*App)

// WithHTTPClient sets the HTTP client used by the services of the App.
func WithHTTPClient(hc *http.Client) AppOption {
	return func(a *App) {
		a.httpClient = hc
	}
}

// WithLogger sets the logger of the App.
func WithLogger(logger *zap.SugaredLogger) AppOption {
	return func(a *App) {
		a.logger = logger
	}
}

// WithAuthEmulatorHost sets the host:port of the Auth emulator. Only used by emulated apps.
func WithAuthEmulatorHost(host string) AppOption {
	return func(a *App) {
		a.authEmulatorHost = host
	}
}

// WithFCMEmulatorHost sets the host:port of a server that emulates the FCM API. Only used by emulated apps.
func WithFCMEmulatorHost(host string) AppOption {
	return func(a *App) {
		a.fcmEmulatorHost = host
	}
}

// WithStorageBucket sets the name of the default Cloud Storage bucket.
func WithStorageBucket(bucket string) AppOption {
	return func(a *App) {
		a.storageBucket = bucket
	}
}

// WithClientOptions sets the options passed to the Google Cloud clients (Firestore and Cloud Storage)
// created by the App.
func WithClientOptions(opts ...option.ClientOption) AppOption {
	return func(a *App) {
		a.clientOpts = append(a.clientOpts, opts...)
	}
}

// NewEmulatedApp creates an App that talks to the Firebase Local Emulator Suite.
//
// Requests sent by an emulated App never carry credentials. The project ID is used as given.
func NewEmulatedApp(projectID string, opts ...AppOption) *App {
	a := newApp(credentials.NewEmulated(projectID), projectID, true, opts)
	a.logger.Infow("initialized emulated app",
		"projectID", projectID, "authEmulatorHost", a.authEmulatorHost, "fcmEmulatorHost", a.fcmEmulatorHost)
	return a
}

// NewLiveApp creates an App that talks to the production Firebase endpoints, authorized by creds.
//
// The project ID of creds is resolved before NewLiveApp returns. A failure to resolve it is reported as a
// credentials error, and no App is created.
func NewLiveApp(ctx context.Context, creds *credentials.Live, opts ...AppOption) (*App, error) {
	if creds == nil {
		return nil, internal.Error(internal.KindCredentials, "credentials must not be nil")
	}
	projectID, err := creds.ProjectID(ctx)
	if err != nil {
		if internal.HasErrorKind(err, internal.KindCredentials) {
			return nil, err
		}
		return nil, internal.WrapError(internal.KindCredentials, err, "failed to resolve project id")
	}

	a := newApp(creds, projectID, false, opts)
	a.logger.Infow("initialized live app", "projectID", projectID)
	return a, nil
}

func newApp(creds credentials.Provider, projectID string, emulated bool, opts []AppOption) *App {
	a := &App{
		creds:     creds,
		projectID: projectID,
		emulated:  emulated,
	}
	for _, o := range opts {
		o(a)
	}
	if a.logger == nil {
		a.logger = logging.DefaultLogger()
	}

	a.hc = internal.NewHTTPClient(a.httpClient)
	a.hc.Logger = a.logger
	a.hc.Opts = []internal.HTTPOption{
		internal.WithHeader("X-Client-Version", fmt.Sprintf("Go/Admin/%s", Version)),
	}
	return a
}

func (a *App) newTransport() *internal.AuthenticatedClient {
	return internal.NewAuthenticatedClient(a.creds, a.hc)
}

// ProjectID returns the ID of the project the App is bound to.
func (a *App) ProjectID() string {
	return a.projectID
}

// Emulated reports whether the App talks to the Firebase Local Emulator Suite.
func (a *App) Emulated() bool {
	return a.emulated
}

// Auth returns an instance of auth.Client.
func (a *App) Auth(ctx context.Context) (*auth.Client, error) {
	conf := &internal.AuthConfig{
		ProjectID: a.projectID,
		Transport: a.newTransport(),
	}
	if a.emulated {
		if a.authEmulatorHost == "" {
			return nil, errors.New("auth emulator host is required to access Auth from an emulated app")
		}
		conf.EmulatorHost = a.authEmulatorHost
	}
	return auth.NewClient(ctx, conf)
}

// AuthEmulator returns a client of the administrative API of the Auth emulator. It is only available
// from an emulated App.
func (a *App) AuthEmulator(ctx context.Context) (*auth.EmulatorClient, error) {
	if !a.emulated {
		return nil, errors.New("the Auth emulator is only available from an emulated app")
	}
	return auth.NewEmulatorClient(ctx, &internal.AuthEmulatorConfig{
		ProjectID:    a.projectID,
		Transport:    a.newTransport(),
		EmulatorHost: a.authEmulatorHost,
	})
}

// Messaging returns an instance of messaging.Client.
func (a *App) Messaging(ctx context.Context) (*messaging.Client, error) {
	conf := &internal.MessagingConfig{
		ProjectID: a.projectID,
		Transport: a.newTransport(),
	}
	if a.emulated {
		conf.EmulatorHost = a.fcmEmulatorHost
	}
	return messaging.NewClient(ctx, conf)
}

// IDTokenVerifier returns a verifier of the ID tokens issued for the project of the App.
//
// The verifier of an emulated App accepts the unsigned tokens minted by the Auth emulator. Call Close on
// the verifier to release its background key refresh.
func (a *App) IDTokenVerifier(ctx context.Context) (*auth.TokenVerifier, error) {
	return auth.NewIDTokenVerifier(ctx, a.verifierConfig())
}

// SessionCookieVerifier returns a verifier of the session cookies issued for the project of the App.
func (a *App) SessionCookieVerifier(ctx context.Context) (*auth.TokenVerifier, error) {
	return auth.NewSessionCookieVerifier(ctx, a.verifierConfig())
}

func (a *App) verifierConfig() *internal.TokenVerifierConfig {
	return &internal.TokenVerifierConfig{
		ProjectID:  a.projectID,
		HTTPClient: a.httpClient,
		Emulated:   a.emulated,
		Logger:     a.logger,
	}
}

// Firestore returns a new firestore.Client instance from the https://godoc.org/cloud.google.com/go/firestore
// package.
//
// Emulated apps connect to the emulator named by the FIRESTORE_EMULATOR_HOST environment variable.
func (a *App) Firestore(ctx context.Context) (*firestore.Client, error) {
	if a.projectID == "" {
		return nil, errors.New("project id is required to access Firestore")
	}
	return firestore.NewClient(ctx, a.projectID, a.cloudClientOptions()...)
}

// Storage returns a new instance of storage.Client.
func (a *App) Storage(ctx context.Context) (*storage.Client, error) {
	return storage.NewClient(ctx, &internal.StorageConfig{
		Opts:   a.cloudClientOptions(),
		Bucket: a.storageBucket,
	})
}

// cloudClientOptions authorizes the Google Cloud clients with the credentials of the App. Options set with
// WithClientOptions come last, and take precedence.
func (a *App) cloudClientOptions() []option.ClientOption {
	var opts []option.ClientOption
	if a.emulated {
		opts = append(opts, option.WithoutAuthentication())
	} else {
		opts = append(opts, option.WithTokenSource(credentials.AsTokenSource(a.creds, credentials.ScopeCloudPlatform)))
	}
	return append(opts, a.clientOpts...)
}

// envConfig holds the environment settings read by NewApp.
type envConfig struct {
	AuthEmulatorHost   string `env:"FIREBASE_AUTH_EMULATOR_HOST"`
	FirebaseConfig     string `env:"FIREBASE_CONFIG"`
	GoogleCloudProject string `env:"GOOGLE_CLOUD_PROJECT"`
	GCloudProject      string `env:"GCLOUD_PROJECT"`
	LogLevel           string `env:"FIREBASE_LOG_LEVEL"`
}

// NewApp creates a new App from the provided config, the environment and client options.
//
// When the FIREBASE_AUTH_EMULATOR_HOST environment variable is set, NewApp creates an emulated App. Otherwise,
// if the client options contain a valid credential (a service account file, a refresh token file or an
// oauth2.TokenSource) the App will be authenticated using that credential. Otherwise, NewApp attempts to
// authenticate the App with Google application default credentials.
//
// When config is nil, it is read from the FIREBASE_CONFIG environment variable, which holds either a JSON
// object or the path to a JSON file.
func NewApp(ctx context.Context, config *Config, opts ...option.ClientOption) (*App, error) {
	return newAppFromEnv(ctx, config, envconfig.OsLookuper(), opts)
}

func newAppFromEnv(ctx context.Context, config *Config, lookuper envconfig.Lookuper, opts []option.ClientOption) (*App, error) {
	var env envConfig
	if err := envconfig.ProcessWith(ctx, &env, lookuper); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	config, err := amendConfigWithDefaults(config, env.FirebaseConfig)
	if err != nil {
		return nil, err
	}

	logger := logging.FromContext(ctx)
	if env.LogLevel != "" {
		logger = logging.NewLogger(env.LogLevel, false)
	}

	projectID := config.ProjectID
	if projectID == "" {
		projectID = env.GoogleCloudProject
	}
	if projectID == "" {
		projectID = env.GCloudProject
	}

	appOpts := []AppOption{
		WithLogger(logger),
		WithStorageBucket(config.StorageBucket),
		WithClientOptions(opts...),
	}
	if env.AuthEmulatorHost != "" {
		if projectID == "" {
			return nil, internal.Error(internal.KindCredentials, "project id is required to run against the emulator")
		}
		appOpts = append(appOpts, WithAuthEmulatorHost(env.AuthEmulatorHost))
		return NewEmulatedApp(projectID, appOpts...), nil
	}

	o := []option.ClientOption{option.WithScopes(credentials.FirebaseScopes...)}
	o = append(o, opts...)
	creds, err := transport.Creds(ctx, o...)
	if err != nil {
		return nil, internal.WrapError(internal.KindCredentials, err, "failed to find credentials")
	}
	live, err := credentials.NewFromDefaultCredentials(creds, credentials.FirebaseScopes,
		credentials.WithProjectID(projectID), credentials.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return NewLiveApp(ctx, live, appOpts...)
}

// amendConfigWithDefaults returns a copy of config. A nil config is read from fbConfig, the value of the
// FIREBASE_CONFIG env variable.
func amendConfigWithDefaults(config *Config, fbConfig string) (*Config, error) {
	result := &Config{}
	if config != nil {
		*result = *config
		return result, nil
	}
	if fbConfig == "" {
		return result, nil
	}

	var dat []byte
	if strings.HasPrefix(strings.TrimSpace(fbConfig), "{") {
		dat = []byte(fbConfig)
	} else {
		var err error
		if dat, err = os.ReadFile(fbConfig); err != nil {
			return nil, fmt.Errorf("failed to read %s file: %w", firebaseEnvName, err)
		}
	}

	d := json.NewDecoder(bytes.NewReader(dat))
	d.DisallowUnknownFields()
	if err := d.Decode(result); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", firebaseEnvName, err)
	}
	return result, nil
}
