// Copyright 2025 Buf Technologies, Inc.
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

package wirepb

import (
	"fmt"
	"strings"
)

// ParseError is returned when a message fails to parse.
//
// It wraps the cause, typically a [*wire.ParseError] or an
// [*UninitializedError], and carries whatever had been parsed before the
// failure.
type ParseError struct {
	err error

	// Partial is the message as parsed up to the point of failure, built
	// without checking required fields.
	Partial *DynamicMessage
}

// Unwrap implements error unwrapping viz [errors.Unwrap].
func (e *ParseError) Unwrap() error {
	return e.err
}

// Error implements [error].
func (e *ParseError) Error() string {
	return fmt.Sprintf("wirepb: failed to parse %s: %v", e.Partial.Descriptor().FullName(), e.err)
}

// UninitializedError is returned when a message is missing required fields.
type UninitializedError struct {
	// Missing is the path to each missing field, such as "foo.bar[2].baz".
	Missing []string
}

// Error implements [error].
func (e *UninitializedError) Error() string {
	return "wirepb: message is missing required fields: " + strings.Join(e.Missing, ", ")
}
