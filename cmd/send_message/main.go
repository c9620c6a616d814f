// Copyright 2024 Google Inc. All Rights Reserved.
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

// Sends a single notification to a device, either through FCM with a service account key or
// through a local FCM emulator.
package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/sethvargo/go-envconfig"

	firebase "github.com/fbadmin/admin-sdk-go"
	"github.com/fbadmin/admin-sdk-go/credentials"
	"github.com/fbadmin/admin-sdk-go/errorutils"
	"github.com/fbadmin/admin-sdk-go/internal/logging"
	"github.com/fbadmin/admin-sdk-go/messaging"
)

type config struct {
	ServiceAccountKey string `env:"SERVICE_ACCOUNT_KEY"`
	Token             string `env:"FCM_TEST_TOKEN, required"`

	// When set, the message is sent to an emulator of the FCM API in the given project.
	EmulatorHost string `env:"FCM_EMULATOR_HOST"`
	ProjectID    string `env:"FIREBASE_PROJECT_ID, default=demo-project"`

	Title    string `env:"MESSAGE_TITLE, default=test"`
	Body     string `env:"MESSAGE_BODY, default=test"`
	DryRun   bool   `env:"DRY_RUN"`
	LogLevel string `env:"LOG_LEVEL, default=info"`
}

func main() {
	ctx, done := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	logger := logging.NewLoggerFromEnv()
	ctx = logging.WithLogger(ctx, logger)

	defer func() {
		done()
		if r := recover(); r != nil {
			logger.Fatalw("application panic", "panic", r)
		}
	}()

	err := realMain(ctx)
	done()

	if err != nil {
		logger.Fatal(err)
	}
}

func realMain(ctx context.Context) error {
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return fmt.Errorf("failed to process config: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, false)
	ctx = logging.WithLogger(ctx, logger)

	app, err := newApp(ctx, &cfg)
	if err != nil {
		return err
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return fmt.Errorf("failed to create messaging client: %w", err)
	}

	msg := &messaging.Message{
		Token: cfg.Token,
		Notification: &messaging.Notification{
			Title: cfg.Title,
			Body:  cfg.Body,
		},
	}
	send := client.Send
	if cfg.DryRun {
		send = client.SendDryRun
	}
	id, err := send(ctx, msg)
	if err != nil {
		logger.Errorw("failed to send message",
			"remote", errorutils.IsRemoteError(err),
			"status", errorutils.StatusCode(err),
			"unregistered", messaging.IsUnregistered(err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	logger.Infow("sent message", "id", id, "project", app.ProjectID(), "dryRun", cfg.DryRun)
	return nil
}

func newApp(ctx context.Context, cfg *config) (*firebase.App, error) {
	logger := logging.FromContext(ctx)
	if cfg.EmulatorHost != "" {
		return firebase.NewEmulatedApp(cfg.ProjectID,
			firebase.WithFCMEmulatorHost(cfg.EmulatorHost),
			firebase.WithLogger(logger)), nil
	}

	if cfg.ServiceAccountKey == "" {
		return nil, fmt.Errorf("SERVICE_ACCOUNT_KEY is required unless FCM_EMULATOR_HOST is set")
	}
	creds, err := credentials.NewServiceAccountFile(cfg.ServiceAccountKey, credentials.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to load service account key: %w", err)
	}
	return firebase.NewLiveApp(ctx, creds, firebase.WithLogger(logger))
}
