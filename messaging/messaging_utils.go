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

package messaging

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/hashicorp/go-multierror"
)

var (
	bareTopicNamePattern = regexp.MustCompile("^[a-zA-Z0-9-_.~%]+$")
	colorPattern         = regexp.MustCompile("^#[0-9a-fA-F]{6}$")
)

// problems collects the validation failures of a message.
type problems struct {
	merr *multierror.Error
}

// check records msg unless ok holds.
func (p *problems) check(ok bool, msg string) {
	if !ok {
		p.merr = multierror.Append(p.merr, errors.New(msg))
	}
}

// noOverlap records every custom data key that collides with a standard field.
func (p *problems) noOverlap(standard, custom map[string]interface{}) {
	for k := range custom {
		if _, ok := standard[k]; ok {
			p.merr = multierror.Append(p.merr, fmt.Errorf("multiple specifications for the key %q", k))
		}
	}
}

func (p *problems) err() error {
	return p.merr.ErrorOrNil()
}

// validateMessage reports every problem found in the message, so that the caller can fix them
// in one go. Only a missing or ambiguous target short-circuits.
func validateMessage(message *Message) error {
	if message == nil {
		return errors.New("message must not be nil")
	}
	if countNonEmpty(message.Token, message.Condition, message.Topic) != 1 {
		return errors.New("exactly one of token, topic or condition must be specified")
	}

	var p problems
	if message.Topic != "" {
		p.check(bareTopicNamePattern.MatchString(strings.TrimPrefix(message.Topic, "/topics/")), "malformed topic name")
	}
	p.android(message.Android)
	p.webpush(message.Webpush)
	p.apns(message.APNS)
	return p.err()
}

func (p *problems) android(config *AndroidConfig) {
	if config == nil {
		return
	}
	p.check(config.TTL == nil || config.TTL.Seconds() >= 0, "ttl duration must not be negative")
	switch config.Priority {
	case "", "normal", "high":
	default:
		p.check(false, "priority must be 'normal' or 'high'")
	}

	n := config.Notification
	if n == nil {
		return
	}
	p.check(n.Color == "" || colorPattern.MatchString(n.Color), "color must be in the #RRGGBB form")
	p.check(len(n.TitleLocArgs) == 0 || n.TitleLocKey != "", "titleLocKey is required when specifying titleLocArgs")
	p.check(len(n.BodyLocArgs) == 0 || n.BodyLocKey != "", "bodyLocKey is required when specifying bodyLocArgs")
}

func (p *problems) apns(config *APNSConfig) {
	if config == nil || config.Payload == nil || config.Payload.Aps == nil {
		return
	}
	aps := config.Payload.Aps
	p.check(aps.Alert == nil || aps.AlertString == "", "multiple alert specifications")
	p.noOverlap(aps.standardFields(), aps.CustomData)

	if alert := aps.Alert; alert != nil {
		p.check(len(alert.TitleLocArgs) == 0 || alert.TitleLocKey != "", "titleLocKey is required when specifying titleLocArgs")
		p.check(len(alert.LocArgs) == 0 || alert.LocKey != "", "locKey is required when specifying locArgs")
	}
}

func (p *problems) webpush(config *WebpushConfig) {
	if config == nil || config.Notification == nil {
		return
	}
	n := config.Notification
	switch n.Direction {
	case "", "ltr", "rtl", "auto":
	default:
		p.check(false, "direction must be 'ltr', 'rtl' or 'auto'")
	}
	p.noOverlap(n.standardFields(), n.CustomData)
}

func countNonEmpty(values ...string) int {
	count := 0
	for _, s := range values {
		if s != "" {
			count++
		}
	}
	return count
}
