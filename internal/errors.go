// Copyright 2020 Google Inc. All Rights Reserved.
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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind identifies the stage of the request pipeline that produced an error.
type ErrorKind string

const (
	// KindInvalidURI is raised when an API URI cannot be constructed.
	KindInvalidURI ErrorKind = "INVALID_URI"

	// KindCredentials is raised when the project identity or the key material cannot be
	// resolved.
	KindCredentials ErrorKind = "CREDENTIALS"

	// KindAuthenticationFailure is raised when a scoped access token cannot be obtained.
	KindAuthenticationFailure ErrorKind = "AUTHENTICATION_FAILURE"

	// KindFailedToSendRequest is raised on transport level failures.
	KindFailedToSendRequest ErrorKind = "FAILED_TO_SEND_REQUEST"

	// KindRemoteError is raised when the remote service responds with a non-2xx status.
	KindRemoteError ErrorKind = "REMOTE_ERROR"

	// KindSerialization is raised when a request body cannot be encoded.
	KindSerialization ErrorKind = "SERIALIZATION_ERROR"

	// KindResponseDecode is raised when a successful response cannot be decoded.
	KindResponseDecode ErrorKind = "RESPONSE_DECODE_ERROR"
)

// ErrorCode represents the platform-wide error codes that can be raised by
// Admin SDK APIs.
type ErrorCode string

const (
	// InvalidArgument is a OnePlatform error code.
	InvalidArgument ErrorCode = "INVALID_ARGUMENT"

	// FailedPrecondition is a OnePlatform error code.
	FailedPrecondition ErrorCode = "FAILED_PRECONDITION"

	// OutOfRange is a OnePlatform error code.
	OutOfRange ErrorCode = "OUT_OF_RANGE"

	// Unauthenticated is a OnePlatform error code.
	Unauthenticated ErrorCode = "UNAUTHENTICATED"

	// PermissionDenied is a OnePlatform error code.
	PermissionDenied ErrorCode = "PERMISSION_DENIED"

	// NotFound is a OnePlatform error code.
	NotFound ErrorCode = "NOT_FOUND"

	// Conflict is a custom error code that represents HTTP 409 responses.
	//
	// OnePlatform APIs typically respond with ABORTED or ALREADY_EXISTS explicitly. But a few
	// old APIs send HTTP 409 Conflict without any additional details to distinguish between the two
	// cases. For these we currently use this error code.
	Conflict ErrorCode = "CONFLICT"

	// Aborted is a OnePlatform error code.
	Aborted ErrorCode = "ABORTED"

	// AlreadyExists is a OnePlatform error code.
	AlreadyExists ErrorCode = "ALREADY_EXISTS"

	// ResourceExhausted is a OnePlatform error code.
	ResourceExhausted ErrorCode = "RESOURCE_EXHAUSTED"

	// Cancelled is a OnePlatform error code.
	Cancelled ErrorCode = "CANCELLED"

	// DataLoss is a OnePlatform error code.
	DataLoss ErrorCode = "DATA_LOSS"

	// Unknown is a OnePlatform error code.
	Unknown ErrorCode = "UNKNOWN"

	// Internal is a OnePlatform error code.
	Internal ErrorCode = "INTERNAL"

	// Unavailable is a OnePlatform error code.
	Unavailable ErrorCode = "UNAVAILABLE"

	// DeadlineExceeded is a OnePlatform error code.
	DeadlineExceeded ErrorCode = "DEADLINE_EXCEEDED"
)

var defaultErrorCodes = map[ErrorKind]ErrorCode{
	KindInvalidURI:            InvalidArgument,
	KindCredentials:           Internal,
	KindAuthenticationFailure: Unauthenticated,
	KindFailedToSendRequest:   Unavailable,
	KindSerialization:         Internal,
	KindResponseDecode:        Unknown,
}

// RemoteErrorInfo is the error payload reported by a Google API in the body of a non-2xx
// response.
type RemoteErrorInfo struct {
	Code    int                      `json:"code"`
	Message string                   `json:"message"`
	Status  string                   `json:"status"`
	Details []map[string]interface{} `json:"details,omitempty"`
}

// FirebaseError is the error type returned by every API in the SDK.
//
// Kind tells which stage of the request pipeline failed. ErrorCode carries the platform error
// code, which is derived from the HTTP status and the response payload for remote errors.
// The underlying error, if any, is available through errors.Unwrap.
type FirebaseError struct {
	Kind      ErrorKind
	ErrorCode ErrorCode
	String    string
	Response  *http.Response
	Remote    *RemoteErrorInfo
	Ext       map[string]interface{}
	cause     error
}

func (fe *FirebaseError) Error() string {
	if fe.cause != nil {
		return fmt.Sprintf("%s: %v", fe.String, fe.cause)
	}
	return fe.String
}

// Unwrap returns the error this FirebaseError was created from.
func (fe *FirebaseError) Unwrap() error {
	return fe.cause
}

// StatusCode returns the HTTP status of the response that caused this error, or 0 if the
// error did not originate from a remote response.
func (fe *FirebaseError) StatusCode() int {
	if fe.Response == nil {
		return 0
	}
	return fe.Response.StatusCode
}

// Error creates a new FirebaseError of the given kind.
func Error(kind ErrorKind, msg string) *FirebaseError {
	return &FirebaseError{
		Kind:      kind,
		ErrorCode: defaultErrorCodes[kind],
		String:    msg,
	}
}

// Errorf creates a new FirebaseError of the given kind with a formatted message.
func Errorf(kind ErrorKind, format string, args ...interface{}) *FirebaseError {
	return Error(kind, fmt.Sprintf(format, args...))
}

// WrapError creates a new FirebaseError of the given kind, retaining err as its cause.
func WrapError(kind ErrorKind, err error, msg string) *FirebaseError {
	fe := Error(kind, msg)
	fe.cause = err
	return fe
}

// AsFirebaseError finds the first FirebaseError in the chain of err.
func AsFirebaseError(err error) (*FirebaseError, bool) {
	var fe *FirebaseError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// HasPlatformErrorCode checks if the given error contains a specific error code.
func HasPlatformErrorCode(err error, code ErrorCode) bool {
	fe, ok := AsFirebaseError(err)
	return ok && fe.ErrorCode == code
}

// HasErrorKind checks if the given error was raised by the given pipeline stage.
func HasErrorKind(err error, kind ErrorKind) bool {
	fe, ok := AsFirebaseError(err)
	return ok && fe.Kind == kind
}

var httpStatusToErrorCodes = map[int]ErrorCode{
	http.StatusBadRequest:          InvalidArgument,
	http.StatusUnauthorized:        Unauthenticated,
	http.StatusForbidden:           PermissionDenied,
	http.StatusNotFound:            NotFound,
	http.StatusConflict:            Conflict,
	http.StatusTooManyRequests:     ResourceExhausted,
	http.StatusInternalServerError: Internal,
	http.StatusServiceUnavailable:  Unavailable,
}

// NewFirebaseError creates a new remote error from the given HTTP response.
func NewFirebaseError(resp *Response) *FirebaseError {
	code, ok := httpStatusToErrorCodes[resp.Status]
	if !ok {
		code = Unknown
	}

	return &FirebaseError{
		Kind:      KindRemoteError,
		ErrorCode: code,
		String:    fmt.Sprintf("unexpected http response with status: %d\n%s", resp.Status, string(resp.Body)),
		Response:  resp.LowLevelResponse(),
	}
}

// NewFirebaseErrorOnePlatform parses the response payload as a GCP error response
// and creates an error from the details extracted.
//
// If the response fails to parse, or otherwise doesn't provide any useful details
// NewFirebaseErrorOnePlatform creates an error with some sensible defaults.
func NewFirebaseErrorOnePlatform(resp *Response) *FirebaseError {
	base := NewFirebaseError(resp)

	var gcpError struct {
		Error *RemoteErrorInfo `json:"error"`
	}
	// A non-object error field leaves an empty RemoteErrorInfo behind. Ignore any json parse
	// errors at this level.
	json.Unmarshal(resp.Body, &gcpError)
	if gcpError.Error == nil || (gcpError.Error.Status == "" && gcpError.Error.Message == "") {
		return base
	}

	base.Remote = gcpError.Error
	if gcpError.Error.Status != "" {
		base.ErrorCode = ErrorCode(gcpError.Error.Status)
	}
	if gcpError.Error.Message != "" {
		base.String = gcpError.Error.Message
	}
	return base
}
