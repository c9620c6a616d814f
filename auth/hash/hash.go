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

// Package hash contains the password hash algorithms accepted by auth.ImportUsers. Each
// algorithm validates its parameters and renders them as the hash fields of an import request.
package hash

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/fbadmin/admin-sdk-go/internal"
	"github.com/fbadmin/admin-sdk-go/ptr"
)

// InputOrderType specifies the order in which users' passwords/salts are hashed
type InputOrderType int

// Available InputOrderType values
const (
	InputOrderUnspecified InputOrderType = iota
	InputOrderSaltFirst
	InputOrderPasswordFirst
)

// wire returns the passwordHashOrder value of o, or "" when the order is left to the backend.
func (o InputOrderType) wire() string {
	switch o {
	case InputOrderSaltFirst:
		return "SALT_AND_PASSWORD"
	case InputOrderPasswordFirst:
		return "PASSWORD_AND_SALT"
	default:
		return ""
	}
}

func encodeKey(key []byte) string {
	return base64.RawURLEncoding.EncodeToString(key)
}

// keyed is an HMAC algorithm that signs with a secret key.
type keyed struct {
	algorithm string
	key       []byte
	order     InputOrderType
}

func (k keyed) config() (internal.HashConfig, error) {
	if len(k.key) == 0 {
		return internal.HashConfig{}, errors.New("signer key not specified")
	}
	return internal.HashConfig{
		HashAlgorithm:     k.algorithm,
		SignerKey:         encodeKey(k.key),
		PasswordHashOrder: k.order.wire(),
	}, nil
}

// iterated is a digest algorithm applied a bounded number of rounds.
type iterated struct {
	algorithm string
	rounds    int
	order     InputOrderType
	min, max  int
}

func (it iterated) config() (internal.HashConfig, error) {
	if it.rounds < it.min || it.rounds > it.max {
		return internal.HashConfig{}, fmt.Errorf("rounds must be between %d and %d", it.min, it.max)
	}
	return internal.HashConfig{
		HashAlgorithm:     it.algorithm,
		Rounds:            ptr.Int(it.rounds),
		PasswordHashOrder: it.order.wire(),
	}, nil
}

// Bcrypt represents the BCRYPT hash algorithm.
type Bcrypt struct{}

// Config returns the validated hash configuration.
func (Bcrypt) Config() (internal.HashConfig, error) {
	return internal.HashConfig{HashAlgorithm: "BCRYPT"}, nil
}

// StandardScrypt represents the standard scrypt hash algorithm.
type StandardScrypt struct {
	BlockSize        int
	DerivedKeyLength int
	MemoryCost       int
	Parallelization  int
}

// Config returns the validated hash configuration.
func (s StandardScrypt) Config() (internal.HashConfig, error) {
	return internal.HashConfig{
		HashAlgorithm:    "STANDARD_SCRYPT",
		BlockSize:        ptr.Int(s.BlockSize),
		DerivedKeyLength: ptr.Int(s.DerivedKeyLength),
		MemoryCost:       ptr.Int(s.MemoryCost),
		Parallelization:  ptr.Int(s.Parallelization),
	}, nil
}

// Scrypt represents the modified scrypt used by Firebase Auth.
//
// Rounds must be between 1 and 8, and the MemoryCost must be between 1 and 14. Key is required.
type Scrypt struct {
	Key           []byte
	SaltSeparator []byte
	Rounds        int
	MemoryCost    int
}

// Config returns the validated hash configuration. All invalid parameters are reported
// together.
func (s Scrypt) Config() (internal.HashConfig, error) {
	var merr *multierror.Error
	if len(s.Key) == 0 {
		merr = multierror.Append(merr, errors.New("signer key not specified"))
	}
	if s.Rounds < 1 || s.Rounds > 8 {
		merr = multierror.Append(merr, errors.New("rounds must be between 1 and 8"))
	}
	if s.MemoryCost < 1 || s.MemoryCost > 14 {
		merr = multierror.Append(merr, errors.New("memory cost must be between 1 and 14"))
	}
	if err := merr.ErrorOrNil(); err != nil {
		return internal.HashConfig{}, err
	}
	return internal.HashConfig{
		HashAlgorithm: "SCRYPT",
		SignerKey:     encodeKey(s.Key),
		SaltSeparator: ptr.String(encodeKey(s.SaltSeparator)),
		Rounds:        ptr.Int(s.Rounds),
		MemoryCost:    ptr.Int(s.MemoryCost),
	}, nil
}

// HMACMD5 represents the HMAC MD5 hash algorithm. Key is required.
type HMACMD5 struct {
	Key        []byte
	InputOrder InputOrderType
}

// Config returns the validated hash configuration.
func (h HMACMD5) Config() (internal.HashConfig, error) {
	return keyed{"HMAC_MD5", h.Key, h.InputOrder}.config()
}

// HMACSHA1 represents the HMAC SHA1 hash algorithm. Key is required.
type HMACSHA1 struct {
	Key        []byte
	InputOrder InputOrderType
}

// Config returns the validated hash configuration.
func (h HMACSHA1) Config() (internal.HashConfig, error) {
	return keyed{"HMAC_SHA1", h.Key, h.InputOrder}.config()
}

// HMACSHA256 represents the HMAC SHA256 hash algorithm. Key is required.
type HMACSHA256 struct {
	Key        []byte
	InputOrder InputOrderType
}

// Config returns the validated hash configuration.
func (h HMACSHA256) Config() (internal.HashConfig, error) {
	return keyed{"HMAC_SHA256", h.Key, h.InputOrder}.config()
}

// HMACSHA512 represents the HMAC SHA512 hash algorithm. Key is required.
type HMACSHA512 struct {
	Key        []byte
	InputOrder InputOrderType
}

// Config returns the validated hash configuration.
func (h HMACSHA512) Config() (internal.HashConfig, error) {
	return keyed{"HMAC_SHA512", h.Key, h.InputOrder}.config()
}

// MD5 represents the MD5 hash algorithm. Rounds must be between 0 and 8192.
type MD5 struct {
	Rounds     int
	InputOrder InputOrderType
}

// Config returns the validated hash configuration.
func (h MD5) Config() (internal.HashConfig, error) {
	return iterated{"MD5", h.Rounds, h.InputOrder, 0, 8192}.config()
}

// SHA1 represents the SHA1 hash algorithm. Rounds must be between 1 and 8192.
type SHA1 struct {
	Rounds     int
	InputOrder InputOrderType
}

// Config returns the validated hash configuration.
func (h SHA1) Config() (internal.HashConfig, error) {
	return iterated{"SHA1", h.Rounds, h.InputOrder, 1, 8192}.config()
}

// SHA256 represents the SHA256 hash algorithm. Rounds must be between 1 and 8192.
type SHA256 struct {
	Rounds     int
	InputOrder InputOrderType
}

// Config returns the validated hash configuration.
func (h SHA256) Config() (internal.HashConfig, error) {
	return iterated{"SHA256", h.Rounds, h.InputOrder, 1, 8192}.config()
}

// SHA512 represents the SHA512 hash algorithm. Rounds must be between 1 and 8192.
type SHA512 struct {
	Rounds     int
	InputOrder InputOrderType
}

// Config returns the validated hash configuration.
func (h SHA512) Config() (internal.HashConfig, error) {
	return iterated{"SHA512", h.Rounds, h.InputOrder, 1, 8192}.config()
}

// PBKDFSHA1 represents the PBKDF SHA1 hash algorithm. Rounds must be between 0 and 120000.
type PBKDFSHA1 struct {
	Rounds int
}

// Config returns the validated hash configuration.
func (h PBKDFSHA1) Config() (internal.HashConfig, error) {
	return iterated{"PBKDF_SHA1", h.Rounds, InputOrderUnspecified, 0, 120000}.config()
}

// PBKDF2SHA256 represents the PBKDF2 SHA256 hash algorithm. Rounds must be between 0 and 120000.
type PBKDF2SHA256 struct {
	Rounds int
}

// Config returns the validated hash configuration.
func (h PBKDF2SHA256) Config() (internal.HashConfig, error) {
	return iterated{"PBKDF2_SHA256", h.Rounds, InputOrderUnspecified, 0, 120000}.config()
}
