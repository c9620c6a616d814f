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

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Endpoint is a logical REST endpoint of an API family. Path returns its fixed path fragment.
type Endpoint interface {
	Path() string
}

// URIBuilder produces absolute URIs for the logical endpoints of a single API family.
//
// The scheme and the authority are validated once when the builder is created. A URIBuilder
// is immutable and safe for concurrent use.
type URIBuilder struct {
	scheme    string
	authority string
	prefix    string
}

// NewURIBuilder creates a URIBuilder rooted at scheme://authority with an optional path prefix.
func NewURIBuilder(scheme, authority, prefix string) (*URIBuilder, error) {
	if scheme != "http" && scheme != "https" {
		return nil, Errorf(KindInvalidURI, "unsupported uri scheme: %q", scheme)
	}
	if err := validateAuthority(scheme, authority); err != nil {
		return nil, err
	}
	if prefix != "" {
		if !strings.HasPrefix(prefix, "/") {
			return nil, Errorf(KindInvalidURI, "path prefix must start with '/': %q", prefix)
		}
		if strings.Contains(prefix, "://") {
			return nil, Errorf(KindInvalidURI, "path prefix must not contain a scheme: %q", prefix)
		}
	}

	return &URIBuilder{
		scheme:    scheme,
		authority: authority,
		prefix:    prefix,
	}, nil
}

// Authority returns the host[:port] this builder targets.
func (b *URIBuilder) Authority() string {
	return b.authority
}

// Build returns the absolute URI of the given endpoint.
//
// The path and query of the result is exactly the path prefix followed by the endpoint path
// fragment. Characters that are not allowed in a URI path and query are reported as an
// error, never escaped.
func (b *URIBuilder) Build(e Endpoint) (*url.URL, error) {
	pathAndQuery := b.prefix + e.Path()
	if err := validatePathAndQuery(pathAndQuery); err != nil {
		return nil, err
	}

	u, err := url.Parse(b.scheme + "://" + b.authority + pathAndQuery)
	if err != nil {
		return nil, WrapError(KindInvalidURI, err, fmt.Sprintf("invalid path and query: %q", pathAndQuery))
	}

	got := u.EscapedPath()
	if u.ForceQuery || u.RawQuery != "" {
		got += "?" + u.RawQuery
	}
	if got != pathAndQuery {
		return nil, Errorf(KindInvalidURI, "path and query %q does not round trip (got %q)", pathAndQuery, got)
	}
	return u, nil
}

func validateAuthority(scheme, authority string) error {
	if authority == "" {
		return Error(KindInvalidURI, "uri authority must not be empty")
	}

	u, err := url.Parse(scheme + "://" + authority)
	if err != nil {
		return WrapError(KindInvalidURI, err, fmt.Sprintf("invalid uri authority: %q", authority))
	}
	if u.Host != authority || u.User != nil || u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		return Errorf(KindInvalidURI, "invalid uri authority: %q", authority)
	}
	if u.Hostname() == "" {
		return Errorf(KindInvalidURI, "uri authority has no host: %q", authority)
	}
	if port := u.Port(); port != "" {
		if n, err := strconv.Atoi(port); err != nil || n > 65535 {
			return Errorf(KindInvalidURI, "invalid port in uri authority: %q", authority)
		}
	}
	return nil
}

// disallowed lists the printable ASCII characters that may not appear in a path and query.
const disallowed = "\"<>\\^`{|}#"

func validatePathAndQuery(s string) error {
	if !strings.HasPrefix(s, "/") {
		return Errorf(KindInvalidURI, "path must start with '/': %q", s)
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c <= ' ' || c >= 0x7f:
			return Errorf(KindInvalidURI, "invalid character %q at offset %d in path: %q", c, i, s)
		case strings.IndexByte(disallowed, c) >= 0:
			return Errorf(KindInvalidURI, "invalid character %q at offset %d in path: %q", c, i, s)
		case c == '%':
			if i+2 >= len(s) || !isHex(s[i+1]) || !isHex(s[i+2]) {
				return Errorf(KindInvalidURI, "malformed escape at offset %d in path: %q", i, s)
			}
		}
	}
	return nil
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
