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

// Package ptr is a utility package for getting pointers to values, as required by the optional
// fields of the request types in the SDK.
package ptr

// Of returns a pointer to a copy of v.
func Of[T any](v T) *T {
	return &v
}

// String returns a pointer to the string value passed in.
func String(v string) *string {
	return Of(v)
}

// Bool returns a pointer to the bool value passed in.
func Bool(v bool) *bool {
	return Of(v)
}

// Int returns a pointer to the int value passed in.
func Int(v int) *int {
	return Of(v)
}

// Int64 returns a pointer to the int64 value passed in.
func Int64(v int64) *int64 {
	return Of(v)
}
